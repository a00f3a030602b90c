package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "bot_id"},
	}))

	// Feedback matching API, consumed by the workflow engine and the
	// console. Scoped by bot_id header or query parameter.
	r.Route("/bot-feedback-api", func(r chi.Router) {
		r.Use(apiHandler.RequireBotID)
		r.Post("/search", apiHandler.SearchFeedbackHandler)
		r.Post("/best-response", apiHandler.BestResponseHandler)
		r.Post("/apply-feedback", apiHandler.ApplyFeedbackHandler)
		r.Get("/stats", apiHandler.FeedbackStatsHandler)
	})

	// Chat relay to the workflow engine.
	r.Post("/assistant-chat", apiHandler.AssistantChatHandler)

	// Console API
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/register", apiHandler.RegisterHandler)
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Authenticated console routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Post("/bots", apiHandler.CreateBotHandler)
			r.Get("/bots", apiHandler.ListBotsHandler)

			r.Route("/bots/{botID}", func(r chi.Router) {
				r.Get("/", apiHandler.GetBotHandler)
				r.Put("/", apiHandler.UpdateBotHandler)
				r.Delete("/", apiHandler.DeleteBotHandler)

				r.Post("/flows", apiHandler.CreateFlowHandler)
				r.Get("/flows", apiHandler.ListFlowsHandler)
				r.Put("/flows/{flowID}", apiHandler.UpdateFlowHandler)
				r.Delete("/flows/{flowID}", apiHandler.DeleteFlowHandler)

				r.Post("/integrations", apiHandler.CreateIntegrationHandler)
				r.Get("/integrations", apiHandler.ListIntegrationsHandler)
				r.Delete("/integrations/{integrationID}", apiHandler.DeleteIntegrationHandler)

				r.Post("/knowledge", apiHandler.UploadKnowledgeFileHandler)
				r.Get("/knowledge", apiHandler.ListKnowledgeFilesHandler)
				r.Get("/knowledge/{fileID}", apiHandler.DownloadKnowledgeFileHandler)
				r.Delete("/knowledge/{fileID}", apiHandler.DeleteKnowledgeFileHandler)

				r.Post("/feedback", apiHandler.CreateFeedbackHandler)
				r.Get("/feedback", apiHandler.ListFeedbackHandler)
				r.Get("/feedback/{feedbackID}", apiHandler.GetFeedbackHandler)

				r.Post("/whatsapp/connect", apiHandler.WhatsAppConnectHandler)
				r.Get("/whatsapp/status", apiHandler.WhatsAppStatusHandler)
				r.Get("/whatsapp/qr", apiHandler.WhatsAppQRHandler)
				r.Post("/whatsapp/disconnect", apiHandler.WhatsAppDisconnectHandler)
				r.Delete("/whatsapp/instance", apiHandler.WhatsAppDeleteInstanceHandler)
			})
		})
	})

	return r
}
