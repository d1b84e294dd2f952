package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"udb/internal/domain"
	"udb/internal/search"
)

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := s.Store.DashboardCounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	authors, err := s.Store.TopAuthors(r.Context(), 10)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var violations int64
	err = s.DB.WithContext(r.Context()).Model(&domain.RuleViolation{}).Count(&violations).Error
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.Metrics.SetOpenViolations(int(violations))

	writeJSON(w, http.StatusOK, map[string]any{
		"counts":     counts,
		"authors":    authors,
		"violations": violations,
		"welcome":    s.Config.WelcomeMsg,
	})
}

// search runs the federated query; messages=1 restricts matching to the
// audit trail, leaving entity fields out.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	query := search.Query
	if isTrue(r.URL.Query().Get("messages")) {
		query = search.QueryMessages
	}
	results, err := query(r.Context(), s.DB, q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"q": q, "data": results})
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if !user.HasRole(domain.RoleUser) {
		writeError(w, r, domain.ErrForbidden)
		return
	}

	// Up to 32 MiB in memory, the rest spills to disk.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, domain.NewValidationError("upload_file", "invalid multipart body"))
		return
	}
	typeFile := r.FormValue("type_file")
	file, _, err := r.FormFile("upload_file")
	if err != nil {
		writeError(w, r, domain.NewValidationError("upload_file", "upload_file is required"))
		return
	}
	defer file.Close()

	result, err := s.Importer.Load(r.Context(), &user.ID, typeFile, file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	message := "File imported with success !"
	switch typeFile {
	case "subnet":
		message = "CSV File imported with success !"
	case "dnsrecord":
		message = "Zone file imported with success !"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": message,
		"rows":    result.Rows,
		"created": result.Created,
	})
}

// languages is the strings bundle served to the browser. The catalog is
// deliberately small; the web UI carries its own translations.
var languages = map[string]map[string]string{
	"en": {
		"login":   "Sign in",
		"logout":  "Sign out",
		"search":  "Search",
		"welcome": "Welcome",
	},
	"fr": {
		"login":   "Se connecter",
		"logout":  "Se déconnecter",
		"search":  "Rechercher",
		"welcome": "Bienvenue",
	},
	"de": {
		"login":   "Anmelden",
		"logout":  "Abmelden",
		"search":  "Suchen",
		"welcome": "Willkommen",
	},
}

func (s *Server) language(w http.ResponseWriter, r *http.Request) {
	lang := mux.Vars(r)["lang"]
	bundle, ok := languages[lang]
	if !ok {
		bundle = languages["en"]
	}
	writeJSON(w, http.StatusOK, bundle)
}
