package api

import (
	"encoding/json"
	"net/http"

	"github.com/pedrofnts/konver-app-sub001/internal/core"
)

// AssistantChatHandler forwards one chat turn to the workflow engine and
// relays the reply. No retry, no queueing; a timeout surfaces as 408 and
// any upstream failure as 502.
func (h *APIHandler) AssistantChatHandler(w http.ResponseWriter, r *http.Request) {
	var turn core.ChatTurn
	if err := json.NewDecoder(r.Body).Decode(&turn); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body: " + err.Error()})
		return
	}

	reply, err := h.relayService.Relay(r.Context(), &turn)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}
