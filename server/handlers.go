package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/stakwork/hivebridge/integrations"
)

// userIDHeader carries the authenticated user id. Authentication itself is
// terminated upstream; an absent header means an unauthenticated request.
const userIDHeader = "X-User-ID"

// maxDeliveryBytes caps inbound webhook payloads. GitHub caps deliveries at
// 25 MB.
const maxDeliveryBytes = 25 << 20

// errorResponse is the JSON body returned for failed requests.
type errorResponse struct {
	Error string `json:"error"`
}

// healthResponse is the health check response.
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ensureWebhookRequest is the body of an ensure-webhook call.
type ensureWebhookRequest struct {
	WorkspaceID   string `json:"workspaceId"`
	RepositoryURL string `json:"repositoryUrl"`
	CallbackURL   string `json:"callbackUrl,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req integrations.InstallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = r.Header.Get(userIDHeader)

	result, err := s.integrations.RequestInstall(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEnsureWebhook(w http.ResponseWriter, r *http.Request) {
	var req ensureWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	userID := r.Header.Get(userIDHeader)

	result, err := s.integrations.EnsureRepoWebhook(r.Context(), userID, req.WorkspaceID, req.RepositoryURL, req.CallbackURL)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request) {
	workspaceSlug := mux.Vars(r)["workspaceSlug"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDeliveryBytes))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to close request body")
		}
	}()

	delivery := integrations.Delivery{
		WorkspaceSlug: workspaceSlug,
		Event:         r.Header.Get("X-GitHub-Event"),
		DeliveryID:    r.Header.Get("X-GitHub-Delivery"),
		Signature:     r.Header.Get("X-Hub-Signature-256"),
		Payload:       body,
	}

	if err := s.integrations.VerifyAndEnqueueDelivery(r.Context(), delivery); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "enqueued"})
}

// writeServiceError translates integration errors to status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, integrations.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, integrations.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, integrations.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, integrations.ErrEnsureWebhook):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	} else {
		s.logger.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request rejected")
	}
	s.writeError(w, r, status, err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.metrics.IncHTTPError(r.Context(), status)
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
