package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/pedrofnts/konver-app-sub001/internal/auth"
	"github.com/pedrofnts/konver-app-sub001/internal/core"
	"github.com/pedrofnts/konver-app-sub001/internal/evolution"
	"github.com/pedrofnts/konver-app-sub001/internal/store"
	"github.com/pedrofnts/konver-app-sub001/internal/whatsapp"
)

type APIHandler struct {
	dbStore         *store.SQLiteStore
	feedbackService *core.FeedbackService
	relayService    *core.RelayService
	gateway         *evolution.Client
	whatsappManager *whatsapp.Manager
}

func NewAPIHandler(
	db *store.SQLiteStore,
	feedback *core.FeedbackService,
	relay *core.RelayService,
	gateway *evolution.Client,
	manager *whatsapp.Manager,
) *APIHandler {
	return &APIHandler{
		dbStore:         db,
		feedbackService: feedback,
		relayService:    relay,
		gateway:         gateway,
		whatsappManager: manager,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeError converts a service error into the structured JSON body and
// status the taxonomy prescribes. Nothing is retried here; the caller
// decides.
func writeError(w http.ResponseWriter, err error) {
	status := core.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("Request failed (%d): %v", status, err)
	}
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

// botID reads the tenant scope from the bot_id header, falling back to
// the query string. Header wins when both are present.
func botID(r *http.Request) string {
	if id := r.Header.Get("bot_id"); id != "" {
		return id
	}
	return r.URL.Query().Get("bot_id")
}

// RequireBotID rejects feedback API requests without a tenant scope.
func (h *APIHandler) RequireBotID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if botID(r) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bot_id is required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type contextKey string

const userEmailKey contextKey = "userEmail"

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		email, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.dbStore.GetUserByEmail(email)
		if err != nil {
			log.Printf("Error in JWTAuthMiddleware for user %s: %v", email, err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userEmailKey, user.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for user %s: %v", req.Email, err)
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.dbStore.CreateUser(req.Email, hashedPassword)
	if err != nil {
		log.Printf("Error creating user %s: %v", req.Email, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.dbStore.GetUserByEmail(req.Email)
	if err != nil {
		log.Printf("Error getting user %s: %v", req.Email, err)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(req.Email)
	if err != nil {
		log.Printf("Error generating JWT for user %s: %v", req.Email, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
