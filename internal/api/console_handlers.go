package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pedrofnts/konver-app-sub001/internal/store"
)

// Handlers for the authenticated console: CRUD over bots, flows,
// integrations, knowledge files and the feedback review screen.

const maxKnowledgeFileSize = 10 << 20 // 10 MiB upload cap

func notFoundOrError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, what+" not found", http.StatusNotFound)
		return
	}
	log.Printf("Console request failed: %v", err)
	http.Error(w, "Failed to process "+what, http.StatusInternalServerError)
}

// Bots

type BotRequest struct {
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	SystemPrompt string  `json:"system_prompt"`
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	Active       *bool   `json:"active"`
}

func (h *APIHandler) CreateBotHandler(w http.ResponseWriter, r *http.Request) {
	var req BotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Bot name is required", http.StatusBadRequest)
		return
	}

	bot := store.Bot{
		Name:         req.Name,
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
		Temperature:  req.Temperature,
		Active:       req.Active == nil || *req.Active,
	}
	if err := h.dbStore.CreateBot(&bot); err != nil {
		log.Printf("Error creating bot: %v", err)
		http.Error(w, "Failed to create bot", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, bot)
}

func (h *APIHandler) ListBotsHandler(w http.ResponseWriter, r *http.Request) {
	bots, err := h.dbStore.ListBots()
	if err != nil {
		log.Printf("Error listing bots: %v", err)
		http.Error(w, "Failed to list bots", http.StatusInternalServerError)
		return
	}
	if bots == nil {
		bots = []store.Bot{}
	}
	writeJSON(w, http.StatusOK, bots)
}

func (h *APIHandler) GetBotHandler(w http.ResponseWriter, r *http.Request) {
	bot, err := h.dbStore.GetBotByID(chi.URLParam(r, "botID"))
	if err != nil {
		log.Printf("Error getting bot: %v", err)
		http.Error(w, "Failed to get bot", http.StatusInternalServerError)
		return
	}
	if bot == nil {
		http.Error(w, "Bot not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

func (h *APIHandler) UpdateBotHandler(w http.ResponseWriter, r *http.Request) {
	existing, err := h.dbStore.GetBotByID(chi.URLParam(r, "botID"))
	if err != nil {
		log.Printf("Error getting bot: %v", err)
		http.Error(w, "Failed to get bot", http.StatusInternalServerError)
		return
	}
	if existing == nil {
		http.Error(w, "Bot not found", http.StatusNotFound)
		return
	}

	var req BotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Description != nil {
		existing.Description = req.Description
	}
	if req.SystemPrompt != "" {
		existing.SystemPrompt = req.SystemPrompt
	}
	if req.Model != "" {
		existing.Model = req.Model
	}
	if req.Temperature > 0 {
		existing.Temperature = req.Temperature
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}

	if err := h.dbStore.UpdateBot(existing); err != nil {
		notFoundOrError(w, err, "bot")
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (h *APIHandler) DeleteBotHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.dbStore.DeleteBot(chi.URLParam(r, "botID")); err != nil {
		notFoundOrError(w, err, "bot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Flows

type FlowRequest struct {
	Name           string          `json:"name"`
	TriggerKeyword string          `json:"trigger_keyword"`
	Steps          json.RawMessage `json:"steps"`
	Active         *bool           `json:"active"`
}

func (h *APIHandler) CreateFlowHandler(w http.ResponseWriter, r *http.Request) {
	var req FlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Flow name is required", http.StatusBadRequest)
		return
	}

	flow := store.Flow{
		BotID:          chi.URLParam(r, "botID"),
		Name:           req.Name,
		TriggerKeyword: req.TriggerKeyword,
		Steps:          req.Steps,
		Active:         req.Active == nil || *req.Active,
	}
	if err := h.dbStore.CreateFlow(&flow); err != nil {
		log.Printf("Error creating flow: %v", err)
		http.Error(w, "Failed to create flow", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, flow)
}

func (h *APIHandler) ListFlowsHandler(w http.ResponseWriter, r *http.Request) {
	flows, err := h.dbStore.ListFlowsByBot(chi.URLParam(r, "botID"))
	if err != nil {
		log.Printf("Error listing flows: %v", err)
		http.Error(w, "Failed to list flows", http.StatusInternalServerError)
		return
	}
	if flows == nil {
		flows = []store.Flow{}
	}
	writeJSON(w, http.StatusOK, flows)
}

func (h *APIHandler) UpdateFlowHandler(w http.ResponseWriter, r *http.Request) {
	existing, err := h.dbStore.GetFlowByID(chi.URLParam(r, "flowID"), chi.URLParam(r, "botID"))
	if err != nil {
		log.Printf("Error getting flow: %v", err)
		http.Error(w, "Failed to get flow", http.StatusInternalServerError)
		return
	}
	if existing == nil {
		http.Error(w, "Flow not found", http.StatusNotFound)
		return
	}

	var req FlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.TriggerKeyword != "" {
		existing.TriggerKeyword = req.TriggerKeyword
	}
	if len(req.Steps) > 0 {
		existing.Steps = req.Steps
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}

	if err := h.dbStore.UpdateFlow(existing); err != nil {
		notFoundOrError(w, err, "flow")
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (h *APIHandler) DeleteFlowHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.dbStore.DeleteFlow(chi.URLParam(r, "flowID"), chi.URLParam(r, "botID")); err != nil {
		notFoundOrError(w, err, "flow")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Integrations

type IntegrationRequest struct {
	Provider     string          `json:"provider"`
	InstanceName string          `json:"instance_name"`
	Config       json.RawMessage `json:"config"`
}

func (h *APIHandler) CreateIntegrationHandler(w http.ResponseWriter, r *http.Request) {
	var req IntegrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Provider != "evolution" && req.Provider != "kommo" {
		http.Error(w, "Provider must be 'evolution' or 'kommo'", http.StatusBadRequest)
		return
	}

	integration := store.Integration{
		BotID:        chi.URLParam(r, "botID"),
		Provider:     req.Provider,
		InstanceName: req.InstanceName,
		Config:       req.Config,
	}
	if err := h.dbStore.CreateIntegration(&integration); err != nil {
		log.Printf("Error creating integration: %v", err)
		http.Error(w, "Failed to create integration", http.StatusInternalServerError)
		return
	}

	// Register the instance on the gateway. Failures are not fatal here;
	// an already-registered instance rejects the call and connect still works.
	if integration.Provider == "evolution" && integration.InstanceName != "" && h.gateway != nil {
		if err := h.gateway.CreateInstance(r.Context(), integration.InstanceName); err != nil {
			log.Printf("Error registering instance %s on gateway: %v", integration.InstanceName, err)
		}
	}

	writeJSON(w, http.StatusCreated, integration)
}

func (h *APIHandler) ListIntegrationsHandler(w http.ResponseWriter, r *http.Request) {
	integrations, err := h.dbStore.ListIntegrationsByBot(chi.URLParam(r, "botID"))
	if err != nil {
		log.Printf("Error listing integrations: %v", err)
		http.Error(w, "Failed to list integrations", http.StatusInternalServerError)
		return
	}
	if integrations == nil {
		integrations = []store.Integration{}
	}
	writeJSON(w, http.StatusOK, integrations)
}

func (h *APIHandler) DeleteIntegrationHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.dbStore.DeleteIntegration(chi.URLParam(r, "integrationID"), chi.URLParam(r, "botID")); err != nil {
		notFoundOrError(w, err, "integration")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Knowledge files

func (h *APIHandler) UploadKnowledgeFileHandler(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		http.Error(w, "filename query parameter is required", http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(io.LimitReader(r.Body, maxKnowledgeFileSize+1))
	if err != nil {
		http.Error(w, "Failed to read file content", http.StatusBadRequest)
		return
	}
	if len(content) == 0 {
		http.Error(w, "File content is empty", http.StatusBadRequest)
		return
	}
	if len(content) > maxKnowledgeFileSize {
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	file := store.KnowledgeFile{
		BotID:       chi.URLParam(r, "botID"),
		Filename:    filename,
		ContentType: contentType,
		Content:     content,
	}
	if err := h.dbStore.CreateKnowledgeFile(&file); err != nil {
		log.Printf("Error storing knowledge file: %v", err)
		http.Error(w, "Failed to store knowledge file", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, file)
}

func (h *APIHandler) ListKnowledgeFilesHandler(w http.ResponseWriter, r *http.Request) {
	files, err := h.dbStore.ListKnowledgeFilesByBot(chi.URLParam(r, "botID"))
	if err != nil {
		log.Printf("Error listing knowledge files: %v", err)
		http.Error(w, "Failed to list knowledge files", http.StatusInternalServerError)
		return
	}
	if files == nil {
		files = []store.KnowledgeFile{}
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *APIHandler) DownloadKnowledgeFileHandler(w http.ResponseWriter, r *http.Request) {
	file, err := h.dbStore.GetKnowledgeFileByID(chi.URLParam(r, "fileID"), chi.URLParam(r, "botID"))
	if err != nil {
		log.Printf("Error getting knowledge file: %v", err)
		http.Error(w, "Failed to get knowledge file", http.StatusInternalServerError)
		return
	}
	if file == nil {
		http.Error(w, "Knowledge file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	w.Write(file.Content)
}

func (h *APIHandler) DeleteKnowledgeFileHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.dbStore.DeleteKnowledgeFile(chi.URLParam(r, "fileID"), chi.URLParam(r, "botID")); err != nil {
		notFoundOrError(w, err, "knowledge file")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Feedback review

type CreateFeedbackRequest struct {
	UserMessageContext  string          `json:"user_message_context"`
	OriginalBotResponse string          `json:"original_bot_response"`
	ImprovedResponse    string          `json:"improved_response"`
	ConversationContext json.RawMessage `json:"conversation_context"`
}

func (h *APIHandler) CreateFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	record := store.FeedbackRecord{
		BotID:               chi.URLParam(r, "botID"),
		UserMessageContext:  req.UserMessageContext,
		OriginalBotResponse: req.OriginalBotResponse,
		ImprovedResponse:    req.ImprovedResponse,
		ConversationContext: req.ConversationContext,
	}
	if err := h.feedbackService.CreateFeedback(&record); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *APIHandler) GetFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	record, err := h.dbStore.GetFeedbackByID(chi.URLParam(r, "feedbackID"), chi.URLParam(r, "botID"))
	if err != nil {
		log.Printf("Error getting feedback: %v", err)
		http.Error(w, "Failed to get feedback", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "Feedback not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *APIHandler) ListFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.feedbackService.ListFeedback(chi.URLParam(r, "botID"), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []store.FeedbackRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
