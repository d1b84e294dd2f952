package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"udb/internal/domain"
	"udb/internal/store"
)

func (s *Server) listEntities(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Aggregates come with their live reference counts.
	switch kind {
	case domain.KindIp:
		rows, err := s.Store.IpRows(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": rows})
		return
	case domain.KindMac:
		rows, err := s.Store.MacRows(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": rows})
		return
	}

	filter, paging, err := listParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entities, err := s.Store.Query(r.Context(), kind, filter, paging)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entities})
}

func listParams(r *http.Request) (store.Filter, store.Paging, error) {
	q := r.URL.Query()
	filter := store.Filter{
		Substring:      q.Get("q"),
		ContainsAddr:   q.Get("address"),
		IncludeDeleted: isTrue(q.Get("deleted")),
	}
	if raw := q.Get("status"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, store.Paging{}, domain.NewValidationError("status", "invalid status %q", raw)
		}
		status := domain.Status(n)
		filter.Status = &status
	}
	if raw := q.Get("owner"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return filter, store.Paging{}, domain.NewValidationError("owner", "invalid owner %q", raw)
		}
		owner := uint(n)
		filter.OwnerID = &owner
	}

	var paging store.Paging
	if raw := q.Get("limit"); raw != "" {
		paging.Limit, _ = strconv.Atoi(raw)
	}
	if raw := q.Get("offset"); raw != "" {
		paging.Offset, _ = strconv.Atoi(raw)
	}
	return filter, paging, nil
}

func pathID(r *http.Request) uint {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	return uint(id)
}

func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := pathID(r)

	entity, err := s.Store.Get(r.Context(), kind, id)
	if err != nil {
		writeError(w, r, store.MapError(err))
		return
	}
	messages, err := s.Store.Messages(r.Context(), kind, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var violations []domain.RuleViolation
	err = s.DB.WithContext(r.Context()).
		Where("model_name = ? AND model_id = ?", kind, id).
		Find(&violations).Error
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":       entity,
		"messages":   messages,
		"violations": violations,
	})
}

func (s *Server) newEntity(w http.ResponseWriter, r *http.Request) {
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
	if err := r.ParseForm(); err != nil {
		writeError(w, r, domain.NewValidationError("form", "invalid form data"))
		return
	}

	entity, err := s.Store.NewEntity(kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entity.Meta().Status = domain.StatusEnabled
	if err := s.bindEntity(r.Context(), entity, r.PostForm); err != nil {
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
	if body := r.PostFormValue("comment"); body != "" {
		sess.Comment(entity, body)
	}
	if err := s.commit(r, sess); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entity})
}

func (s *Server) editEntity(w http.ResponseWriter, r *http.Request) {
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
	if err := r.ParseForm(); err != nil {
		writeError(w, r, domain.NewValidationError("form", "invalid form data"))
		return
	}

	sess := s.Store.NewSession(&user.ID)
	entity, err := sess.Get(r.Context(), kind, pathID(r))
	if err != nil {
		writeError(w, r, store.MapError(err))
		return
	}
	if err := s.bindEntity(r.Context(), entity, r.PostForm); err != nil {
		writeError(w, r, err)
		return
	}
	if rule, ok := entity.(*domain.Rule); ok {
		if err := s.Engine.Validate(r.Context(), rule); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if body := r.PostFormValue("comment"); body != "" {
		sess.Comment(entity, body)
	}
	if err := s.commit(r, sess); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entity})
}

func (s *Server) follow(w http.ResponseWriter, r *http.Request) {
	s.setFollow(w, r, true)
}

func (s *Server) unfollow(w http.ResponseWriter, r *http.Request) {
	s.setFollow(w, r, false)
}

func (s *Server) setFollow(w http.ResponseWriter, r *http.Request, follow bool) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := currentUser(r)
	id := pathID(r)

	if _, err := s.Store.Get(r.Context(), kind, id); err != nil {
		writeError(w, r, store.MapError(err))
		return
	}
	if follow {
		err = s.Store.Follow(r.Context(), user.ID, kind, id)
	} else {
		err = s.Store.Unfollow(r.Context(), user.ID, kind, id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// commit runs the unit of work and feeds the flush metrics.
func (s *Server) commit(r *http.Request, sess *store.Session) error {
	start := time.Now()
	err := sess.Commit(r.Context())
	s.Metrics.ObserveCommit(err, time.Since(start))
	return err
}
