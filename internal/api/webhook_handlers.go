package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/capturelabs/capturesink/internal/capture"
)

// handleCapture accepts a provider callback on POST /v1/webhooks/capture and
// merges its captured sections into the document store. Payloads without a
// usable task or URL still succeed under the "unknown" document key.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	s.ingestCapture(w, r, false)
}

// handleCaptureStrict behaves like handleCapture but rejects payloads that
// carry no task id with 400.
func (s *Server) handleCaptureStrict(w http.ResponseWriter, r *http.Request) {
	s.ingestCapture(w, r, true)
}

func (s *Server) ingestCapture(w http.ResponseWriter, r *http.Request, strict bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeWebhookError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	var payload capture.WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		writeWebhookError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strict && (payload.Task == nil || payload.Task.ID == "") {
		writeWebhookError(w, http.StatusBadRequest, "task.id is required")
		return
	}
	res, err := s.ingest.Ingest(r.Context(), payload, raw)
	if err != nil {
		writeWebhookError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{
		Success: true,
		Message: "callback processed",
		DocName: res.DocKey,
	})
}

func writeWebhookError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, webhookResponse{Error: msg})
}

// webhookResponse mirrors the acknowledgment shape the capture provider
// expects on its callback URLs.
type webhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	DocName string `json:"docName,omitempty"`
	Error   string `json:"error,omitempty"`
}
