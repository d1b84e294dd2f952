package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"udb/internal/domain"
	"udb/internal/store"
)

func (s *Server) apiStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) apiList(w http.ResponseWriter, r *http.Request) {
	s.listEntities(w, r)
}

func (s *Server) apiGet(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entity, err := s.Store.Get(r.Context(), kind, pathID(r))
	if err != nil {
		writeError(w, r, store.MapError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entity})
}

func (s *Server) apiCreate(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := currentUser(r)
	if !canWrite(user, kind) {
		writeError(w, r, domain.ErrForbidden)
		return
	}
	form, err := jsonForm(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entity, err := s.Store.NewEntity(kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entity.Meta().Status = domain.StatusEnabled
	if err := s.bindEntity(r.Context(), entity, form); err != nil {
		writeError(w, r, err)
		return
	}
	if rule, ok := entity.(*domain.Rule); ok {
		if err := s.Engine.Validate(r.Context(), rule); err != nil {
			writeError(w, r, err)
			return
		}
	}

	sess := s.Store.NewSession(&user.ID)
	sess.Create(entity)
	if err := s.commit(r, sess); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": entity})
}

func (s *Server) apiUpdate(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := currentUser(r)
	if !canWrite(user, kind) {
		writeError(w, r, domain.ErrForbidden)
		return
	}
	form, err := jsonForm(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess := s.Store.NewSession(&user.ID)
	entity, err := sess.Get(r.Context(), kind, pathID(r))
	if err != nil {
		writeError(w, r, store.MapError(err))
		return
	}
	if err := s.bindEntity(r.Context(), entity, form); err != nil {
		writeError(w, r, err)
		return
	}
	if rule, ok := entity.(*domain.Rule); ok {
		if err := s.Engine.Validate(r.Context(), rule); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if err := s.commit(r, sess); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entity})
}

func (s *Server) apiDelete(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := currentUser(r)
	if !canWrite(user, kind) {
		writeError(w, r, domain.ErrForbidden)
		return
	}
	if err := s.Store.SoftDelete(r.Context(), &user.ID, kind, pathID(r)); err != nil {
		writeError(w, r, store.MapError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// jsonForm flattens a JSON object into form values so the API and the
// web forms share one binder. Arrays become comma separated lists.
func jsonForm(r *http.Request) (url.Values, error) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, domain.NewValidationError("body", "invalid JSON body")
	}

	form := url.Values{}
	for key, value := range payload {
		switch v := value.(type) {
		case nil:
			form.Set(key, "")
		case string:
			form.Set(key, v)
		case bool:
			form.Set(key, strconv.FormatBool(v))
		case float64:
			form.Set(key, strconv.FormatFloat(v, 'f', -1, 64))
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			form.Set(key, strings.Join(parts, ","))
		default:
			return nil, domain.NewValidationError(key, "unsupported value type")
		}
	}
	return form, nil
}
