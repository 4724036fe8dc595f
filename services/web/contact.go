package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"towing-contact/api/services/contact"
	"towing-contact/api/services/storage"
)

// HandleContactPage renders the form for the visitor's session, starting a
// new one when the cookie is missing or stale.
func (s *Service) HandleContactPage(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	sess, ok := s.pageSession(w, r, true)
	if !ok {
		return
	}
	slog.Debug("rendering contact form", "sessionId", sess.ID, "requestId", rid)
	s.renderPage(w, r, http.StatusOK, s.formView(sess, nil, ""))
}

// HandleContactSubmit applies the posted fields and submits them.
// A rendered error label is a normal outcome, so relay failures still
// answer 200; blocked and duplicate submits answer 422 and 409.
func (s *Service) HandleContactSubmit(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	sess, ok := s.pageSession(w, r, true)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		slog.Warn("failed to parse contact form", "sessionId", sess.ID, "requestId", rid, "error", err)
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	var changes []contact.Change
	for _, name := range contact.FieldNames {
		if _, present := r.PostForm[name]; !present {
			continue
		}
		changes = append(changes, contact.Change{Field: name, Value: r.PostForm.Get(name)})
	}
	if err := sess.Form.Apply(changes...); err != nil {
		slog.Warn("rejected field value", "sessionId", sess.ID, "requestId", rid, "error", err)
		s.renderPage(w, r, http.StatusUnprocessableEntity,
			s.formView(sess, contact.ValidationErrors{{Field: contact.FieldServiceType, Rule: "oneof"}}, "Izaberite uslugu sa liste."))
		return
	}

	out, err := sess.Form.Submit(r.Context())
	var verrs contact.ValidationErrors
	switch {
	case err == nil:
		slog.Info("contact form submitted", "sessionId", sess.ID, "submissionId", out.SubmissionID, "requestId", rid)
		s.renderPage(w, r, http.StatusOK, s.formView(sess, nil, ""))
	case errors.As(err, &verrs):
		s.renderPage(w, r, http.StatusUnprocessableEntity, s.formView(sess, verrs, ""))
	case errors.Is(err, contact.ErrInFlight):
		s.renderPage(w, r, http.StatusConflict, s.formView(sess, nil, ""))
	case errors.Is(err, contact.ErrSubmissionFailed):
		slog.Warn("contact submission failed",
			"sessionId", sess.ID,
			"submissionId", out.SubmissionID,
			"requestId", rid,
			"error", err,
		)
		s.renderPage(w, r, http.StatusOK, s.formView(sess, nil, ""))
	default:
		slog.Error("unexpected submit error", "sessionId", sess.ID, "requestId", rid, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Service) formView(sess *storage.Session, invalid contact.ValidationErrors, notice string) FormView {
	return FormView{
		State:     sess.Form.State(),
		Labels:    sess.Form.Labels(),
		Invalid:   invalid,
		Notice:    notice,
		Action:    "/contact",
		EventsURL: "/contact/events",
	}
}

func (s *Service) renderPage(w http.ResponseWriter, r *http.Request, status int, v FormView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := ContactPage(v).Render(r.Context(), w); err != nil {
		slog.Error("failed to render contact page", "requestId", reqID(r), "error", err)
	}
}

// pageSession resolves the session cookie. With create set, a missing or
// expired session is replaced by a new one and the cookie is reissued.
func (s *Service) pageSession(w http.ResponseWriter, r *http.Request, create bool) (*storage.Session, bool) {
	rid := reqID(r)
	ctx := r.Context()

	if c, err := r.Cookie(sessionCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			sess, err := s.storage.GetSession(ctx, id)
			if err == nil {
				return sess, true
			}
			if !errors.Is(err, storage.ErrNotFound) {
				slog.Error("session storage error", "sessionId", id, "requestId", rid, "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return nil, false
			}
		}
	}

	if !create {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}

	sess, err := s.storage.CreateSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrFull) {
			slog.Warn("session store full", "requestId", rid)
			http.Error(w, "too many open forms, try again later", http.StatusServiceUnavailable)
			return nil, false
		}
		slog.Error("failed to create session", "requestId", rid, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil, false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	slog.Debug("form session created", "sessionId", sess.ID, "requestId", rid)
	return sess, true
}
