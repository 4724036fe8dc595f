package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"towing-contact/api/services/contact"
	"towing-contact/api/services/storage"
)

// SessionResponse is the JSON view of one page view's form.
type SessionResponse struct {
	ID     uuid.UUID        `json:"id"`
	Fields contact.Fields   `json:"fields"`
	Status contact.Snapshot `json:"status"`
}

// SubmitResponse is returned by the submit endpoint. Relay failures are
// business outcomes: they come back as 200 with status "error".
type SubmitResponse struct {
	SubmissionID string           `json:"submissionId,omitempty"`
	Fields       contact.Fields   `json:"fields"`
	Status       contact.Snapshot `json:"status"`
}

type serviceTypeJSON struct {
	Value contact.ServiceType `json:"value"`
	Label string              `json:"label"`
}

func newSessionResponse(sess *storage.Session) SessionResponse {
	state := sess.Form.State()
	return SessionResponse{ID: sess.ID, Fields: state.Fields, Status: state.Status}
}

// HandleListServiceTypes returns the selectable service types in order.
func (s *Service) HandleListServiceTypes(w http.ResponseWriter, r *http.Request) {
	opts := contact.ServiceTypes()
	out := make([]serviceTypeJSON, len(opts))
	for i, o := range opts {
		out[i] = serviceTypeJSON{Value: o.Value, Label: o.Label}
	}
	writeJSON(w, r, http.StatusOK, out)
}

// HandleCreateSession starts a new empty form, the API equivalent of
// loading the page.
func (s *Service) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)

	sess, err := s.storage.CreateSession(r.Context())
	if err != nil {
		s.writeStorageError(w, rid, "", err)
		return
	}
	slog.Debug("form session created", "sessionId", sess.ID, "requestId", rid)
	writeJSON(w, r, http.StatusCreated, newSessionResponse(sess))
}

// HandleGetSession returns the current fields and status label.
func (s *Service) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, newSessionResponse(sess))
}

// HandleDeleteSession drops a form before it expires.
func (s *Service) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}
	if err := s.storage.DeleteSession(r.Context(), id); err != nil {
		s.writeStorageError(w, rid, id.String(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChangeField applies one field change: {"value": "..."}.
func (s *Service) HandleChangeField(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	field := mux.Vars(r)["field"]

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var body struct {
		Value *string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == nil {
		slog.Warn("failed to decode field change", "sessionId", sess.ID, "field", field, "requestId", rid, "error", err)
		writeErrorJSON(w, "INVALID_BODY", "invalid request body", http.StatusBadRequest)
		return
	}

	if err := sess.Form.Change(field, *body.Value); err != nil {
		switch {
		case errors.Is(err, contact.ErrUnknownField):
			writeErrorJSON(w, "UNKNOWN_FIELD", "unknown field", http.StatusNotFound)
		case errors.Is(err, contact.ErrUnknownServiceType):
			writeErrorJSON(w, "INVALID_SERVICE_TYPE", "unknown service type", http.StatusBadRequest)
		default:
			slog.Error("failed to change field", "sessionId", sess.ID, "field", field, "requestId", rid, "error", err)
			writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, r, http.StatusOK, newSessionResponse(sess))
}

// HandleSubmit runs the submission for a session.
//
//   - 422 when required fields are missing (nothing is sent, status unchanged)
//   - 409 when a submission is already sending
//   - 200 with status "success" or "error" otherwise
func (s *Service) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	out, err := sess.Form.Submit(r.Context())
	var verrs contact.ValidationErrors
	switch {
	case err == nil:
	case errors.As(err, &verrs):
		slog.Debug("submission blocked by validation", "sessionId", sess.ID, "requestId", rid, "fields", len(verrs))
		w.WriteHeader(http.StatusUnprocessableEntity)
		writeBody(w, rid, map[string]any{
			"code":    "INVALID_FIELDS",
			"message": "required fields are missing or invalid",
			"fields":  verrs,
		})
		return
	case errors.Is(err, contact.ErrInFlight):
		writeErrorJSON(w, "IN_FLIGHT", "submission already in progress", http.StatusConflict)
		return
	case errors.Is(err, contact.ErrSubmissionFailed):
		slog.Warn("contact submission failed",
			"sessionId", sess.ID,
			"submissionId", out.SubmissionID,
			"requestId", rid,
			"error", err,
		)
	default:
		slog.Error("unexpected submit error", "sessionId", sess.ID, "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, SubmitResponse{
		SubmissionID: out.SubmissionID,
		Fields:       sess.Form.Fields(),
		Status:       out.Status,
	})
}

func parseSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		slog.Warn("invalid session id", "id", raw, "requestId", reqID(r), "error", err)
		writeErrorJSON(w, "INVALID_ID", "invalid session id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Service) loadSession(w http.ResponseWriter, r *http.Request) (*storage.Session, bool) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return nil, false
	}
	sess, err := s.storage.GetSession(r.Context(), id)
	if err != nil {
		s.writeStorageError(w, reqID(r), id.String(), err)
		return nil, false
	}
	return sess, true
}

func (s *Service) writeStorageError(w http.ResponseWriter, rid, id string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		slog.Warn("session not found", "sessionId", id, "requestId", rid)
		writeErrorJSON(w, "NOT_FOUND", "session not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrFull):
		slog.Warn("session store full", "requestId", rid)
		writeErrorJSON(w, "UNAVAILABLE", "too many open forms, try again later", http.StatusServiceUnavailable)
	default:
		slog.Error("session storage error", "sessionId", id, "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal response", "requestId", reqID(r), "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		slog.Error("failed to write response", "requestId", reqID(r), "error", err)
	}
}

func writeBody(w http.ResponseWriter, rid string, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "requestId", rid, "error", err)
	}
}

func writeErrorJSON(w http.ResponseWriter, errCode, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"code": errCode, "message": message})
}
