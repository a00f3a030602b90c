package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pedrofnts/konver-app-sub001/internal/store"
)

// WhatsApp instance control for a bot's Evolution integration. The
// monitor does the polling; these handlers only trigger explicit actions
// and expose the current state.

func (h *APIHandler) evolutionIntegration(w http.ResponseWriter, r *http.Request) *store.Integration {
	integrations, err := h.dbStore.ListIntegrationsByBot(chi.URLParam(r, "botID"))
	if err != nil {
		log.Printf("Error listing integrations: %v", err)
		http.Error(w, "Failed to resolve integration", http.StatusInternalServerError)
		return nil
	}
	for i := range integrations {
		if integrations[i].Provider == "evolution" && integrations[i].InstanceName != "" {
			return &integrations[i]
		}
	}
	http.Error(w, "Bot has no Evolution integration", http.StatusNotFound)
	return nil
}

func (h *APIHandler) WhatsAppConnectHandler(w http.ResponseWriter, r *http.Request) {
	integration := h.evolutionIntegration(w, r)
	if integration == nil {
		return
	}

	monitor := h.whatsappManager.Monitor(integration.InstanceName)
	qr, err := monitor.Connect(r.Context())
	if err != nil {
		log.Printf("Error connecting instance %s: %v", integration.InstanceName, err)
		http.Error(w, "Failed to connect WhatsApp instance", http.StatusBadGateway)
		return
	}

	if err := h.dbStore.UpdateIntegrationStatus(integration.ID, integration.BotID, string(monitor.State())); err != nil {
		log.Printf("Error updating integration status: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"state":   monitor.State(),
		"qr":      qr,
	})
}

func (h *APIHandler) WhatsAppStatusHandler(w http.ResponseWriter, r *http.Request) {
	integration := h.evolutionIntegration(w, r)
	if integration == nil {
		return
	}

	monitor := h.whatsappManager.Monitor(integration.InstanceName)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"instance": integration.InstanceName,
		"state":    monitor.State(),
	})
}

func (h *APIHandler) WhatsAppQRHandler(w http.ResponseWriter, r *http.Request) {
	integration := h.evolutionIntegration(w, r)
	if integration == nil {
		return
	}

	qr := h.whatsappManager.Monitor(integration.InstanceName).QR()
	if qr == nil {
		http.Error(w, "No QR code available, instance is not pairing", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "qr": qr})
}

func (h *APIHandler) WhatsAppDisconnectHandler(w http.ResponseWriter, r *http.Request) {
	integration := h.evolutionIntegration(w, r)
	if integration == nil {
		return
	}

	monitor := h.whatsappManager.Monitor(integration.InstanceName)
	if err := monitor.Disconnect(r.Context()); err != nil {
		log.Printf("Error disconnecting instance %s: %v", integration.InstanceName, err)
		http.Error(w, "Failed to disconnect WhatsApp instance", http.StatusBadGateway)
		return
	}

	if err := h.dbStore.UpdateIntegrationStatus(integration.ID, integration.BotID, string(monitor.State())); err != nil {
		log.Printf("Error updating integration status: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "state": monitor.State()})
}

func (h *APIHandler) WhatsAppDeleteInstanceHandler(w http.ResponseWriter, r *http.Request) {
	integration := h.evolutionIntegration(w, r)
	if integration == nil {
		return
	}

	monitor := h.whatsappManager.Monitor(integration.InstanceName)
	if err := monitor.DeleteInstance(r.Context()); err != nil {
		log.Printf("Error deleting instance %s: %v", integration.InstanceName, err)
		http.Error(w, "Failed to delete WhatsApp instance", http.StatusBadGateway)
		return
	}
	h.whatsappManager.Remove(integration.InstanceName)

	if err := h.dbStore.UpdateIntegrationStatus(integration.ID, integration.BotID, "disconnected"); err != nil {
		log.Printf("Error updating integration status: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "state": "disconnected"})
}
