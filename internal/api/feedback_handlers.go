package api

import (
	"encoding/json"
	"net/http"
)

// Handlers for the public feedback matching API. Every route is scoped by
// the bot_id header or query parameter, enforced by RequireBotID.

type SearchFeedbackRequest struct {
	UserMessage string `json:"userMessage"`
	Limit       int    `json:"limit,omitempty"`
}

func (h *APIHandler) SearchFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req SearchFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body: " + err.Error()})
		return
	}

	feedbacks, err := h.feedbackService.SearchFeedback(botID(r), req.UserMessage, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"feedbacks": feedbacks,
		"total":     len(feedbacks),
	})
}

type BestResponseRequest struct {
	UserMessage string  `json:"userMessage"`
	Threshold   float64 `json:"threshold,omitempty"`
}

func (h *APIHandler) BestResponseHandler(w http.ResponseWriter, r *http.Request) {
	var req BestResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := h.feedbackService.GetBestResponse(botID(r), req.UserMessage, req.Threshold)
	if err != nil {
		writeError(w, err)
		return
	}

	if !result.Found {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"found":   false,
			"message": "No matching feedback found",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"found":             true,
		"improved_response": result.ImprovedResponse,
		"confidence":        result.Confidence,
		"feedback_id":       result.FeedbackID,
	})
}

type ApplyFeedbackRequest struct {
	FeedbackID string `json:"feedbackId"`
}

func (h *APIHandler) ApplyFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req ApplyFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body: " + err.Error()})
		return
	}

	feedback, err := h.feedbackService.ApplyFeedback(req.FeedbackID, botID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"feedback": feedback,
	})
}

func (h *APIHandler) FeedbackStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.feedbackService.GetStats(botID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}
