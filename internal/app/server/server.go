// Package server exposes the HTTP surface: the web pages consumed by
// the browser UI, the basic-auth JSON API, login and search. Handlers
// translate between HTTP and the store; all consistency logic lives in
// the flush pipeline.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"udb/internal/config"
	"udb/internal/domain"
	"udb/internal/importer"
	"udb/internal/metrics"
	"udb/internal/rules"
	"udb/internal/security"
	"udb/internal/store"
)

// Deps is everything a request handler may need, injected by the
// application container.
type Deps struct {
	Config        *config.Config
	DB            *gorm.DB
	Store         *store.Store
	Engine        *rules.Engine
	Sessions      *security.SessionStore
	Limiter       *security.RateLimiter
	Authenticator *security.Authenticator
	Importer      *importer.Importer
	Metrics       *metrics.Metrics
}

type Server struct {
	Deps
	access *log.Logger
}

func New(deps Deps) *Server {
	s := &Server{Deps: deps, access: log.Default()}
	if deps.Config.LogAccessFile != "" {
		f, err := os.OpenFile(deps.Config.LogAccessFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Warn("cannot open access log file", "file", deps.Config.LogAccessFile, "error", err)
		} else {
			s.access = log.New(f)
			s.access.SetLevel(log.DebugLevel)
		}
	}
	return s
}

// Router builds the full route table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.observe)

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard/", http.StatusSeeOther)
	}).Methods(http.MethodGet)

	r.HandleFunc("/login/", s.login).Methods(http.MethodPost)
	r.HandleFunc("/logout/", s.logout).Methods(http.MethodGet)
	r.HandleFunc("/language/{lang}", s.language).Methods(http.MethodGet)
	r.Handle("/metrics", s.Metrics.Handler()).Methods(http.MethodGet)

	// Web surface, session-cookie gated.
	web := r.NewRoute().Subrouter()
	web.Use(s.requireSession)
	web.HandleFunc("/dashboard/", s.dashboard).Methods(http.MethodGet)
	web.HandleFunc("/search/", s.search).Methods(http.MethodGet)
	web.HandleFunc("/search/query.json", s.search).Methods(http.MethodGet)
	web.HandleFunc("/load/", s.load).Methods(http.MethodPost)
	web.HandleFunc("/{kind}/", s.listEntities).Methods(http.MethodGet)
	web.HandleFunc("/{kind}/data.json", s.listEntities).Methods(http.MethodGet)
	web.HandleFunc("/{kind}/new", s.newEntity).Methods(http.MethodPost)
	web.HandleFunc("/{kind}/{id:[0-9]+}/edit", s.getEntity).Methods(http.MethodGet)
	web.HandleFunc("/{kind}/{id:[0-9]+}/edit", s.editEntity).Methods(http.MethodPost)
	web.HandleFunc("/{kind}/{id:[0-9]+}/follow", s.follow).Methods(http.MethodPost)
	web.HandleFunc("/{kind}/{id:[0-9]+}/unfollow", s.unfollow).Methods(http.MethodPost)

	// JSON API, basic-auth gated and rate limited.
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireBasicAuth)
	api.HandleFunc("/", s.apiStatus).Methods(http.MethodGet)
	api.HandleFunc("/{kind}/", s.apiList).Methods(http.MethodGet)
	api.HandleFunc("/{kind}/", s.apiCreate).Methods(http.MethodPost)
	api.HandleFunc("/{kind}/{id:[0-9]+}", s.apiGet).Methods(http.MethodGet)
	api.HandleFunc("/{kind}/{id:[0-9]+}", s.apiUpdate).Methods(http.MethodPut)
	api.HandleFunc("/{kind}/{id:[0-9]+}", s.apiDelete).Methods(http.MethodDelete)
	api.NotFoundHandler = http.HandlerFunc(apiNotFound)

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func apiNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"message": "Nothing matches the given URI",
		"status":  "404 Not Found",
	})
}

// writeError maps a core error kind onto its HTTP rendition.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *domain.ValidationError
	var conflict *domain.ConflictError
	var referential *domain.ReferentialError
	var fatal *domain.FatalError
	var violation *rules.ViolationError

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"field":   validation.Field,
			"message": validation.Message,
		})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{
			"field":   conflict.Field,
			"message": conflict.Message,
		})
	case errors.As(err, &referential):
		writeJSON(w, http.StatusConflict, map[string]string{"message": referential.Message})
	case errors.As(err, &violation):
		writeJSON(w, http.StatusConflict, map[string]string{"message": violation.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Forbidden"})
	case errors.Is(err, domain.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "Too Many Requests"})
	case errors.As(err, &fatal):
		log.Error("fatal error serving request", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal Server Error"})
	default:
		log.Error("unhandled error serving request", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal Server Error"})
	}
}

// pathKind resolves the {kind} route variable.
func pathKind(r *http.Request) (domain.Kind, error) {
	kind := domain.Kind(mux.Vars(r)["kind"])
	if !store.KnownKind(kind) {
		return "", domain.ErrNotFound
	}
	return kind, nil
}
