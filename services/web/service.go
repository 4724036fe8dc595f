package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"towing-contact/api/services/storage"
)

// maxRequestBody limits form posts and API bodies.
const maxRequestBody = 64 << 10 // 64KB

const (
	sessionCookie   = "contact_session"
	requestIDHeader = "X-Request-ID"
)

type ctxKey int

const requestIDKey ctxKey = iota

// Options configures cookie and websocket behaviour.
type Options struct {
	// SecureCookies marks the session cookie Secure (HTTPS deployments).
	SecureCookies bool
	// OriginPatterns are extra hosts allowed to open the status websocket.
	OriginPatterns []string
}

// Service handles HTTP requests for the contact form.
// It depends on the Storage interface rather than a concrete implementation,
// keeping the HTTP layer decoupled from session bookkeeping.
type Service struct {
	storage storage.Storage
	opts    Options
}

// NewService creates a contact form Service with the given session store.
func NewService(store storage.Storage, opts Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("service: store cannot be nil")
	}
	return &Service{storage: store, opts: opts}, nil
}

// jsonMiddleware sets the Content-Type header to application/json
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware tags each request with the caller's X-Request-ID or a
// fresh UUID and echoes it back.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoadRoutes registers the HTML form on the parent router and the JSON API
// under /api/v1.
func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	parentRouter.Use(requestIDMiddleware)

	parentRouter.HandleFunc("/healthz", s.HandleHealth).Methods("GET")
	parentRouter.Handle("/", http.RedirectHandler("/contact", http.StatusFound)).Methods("GET")

	parentRouter.HandleFunc("/contact", s.HandleContactPage).Methods("GET")
	parentRouter.HandleFunc("/contact", s.HandleContactSubmit).Methods("POST")
	parentRouter.HandleFunc("/contact/events", s.HandleStatusEvents).Methods("GET")

	api := parentRouter.PathPrefix("/api/v1/contact").Subrouter()
	api.StrictSlash(false)
	api.Use(jsonMiddleware)

	api.HandleFunc("/service-types", s.HandleListServiceTypes).Methods("GET")
	api.HandleFunc("/sessions", s.HandleCreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.HandleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.HandleDeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/fields/{field}", s.HandleChangeField).Methods("PUT")
	api.HandleFunc("/sessions/{id}/submit", s.HandleSubmit).Methods("POST")
}

func (s *Service) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// reqID extracts the request ID from context (set by requestIDMiddleware).
func reqID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}
