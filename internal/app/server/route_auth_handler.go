package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"udb/internal/domain"
)

const loginScope = "udb-login"

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, domain.NewValidationError("form", "invalid form data"))
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	persistent := isTrue(r.PostFormValue("persistent"))

	redirect := r.PostFormValue("redirect")
	if redirect == "" {
		redirect = "/dashboard/"
	}
	// Only site-local targets; anything else is an open redirect.
	if !strings.HasPrefix(redirect, "/") || strings.HasPrefix(redirect, "//") {
		writeError(w, r, domain.NewValidationError("redirect", "invalid redirect target"))
		return
	}

	client := clientIP(r)
	blocked, err := s.Limiter.Blocked(r.Context(), loginScope, client)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if blocked {
		s.Metrics.ObserveRateLimitBlock()
		writeError(w, r, domain.ErrRateLimited)
		return
	}

	user, err := s.Authenticator.Login(r.Context(), username, password)
	if err != nil {
		s.Metrics.ObserveLogin(false)
		nowBlocked, hitErr := s.Limiter.Hit(r.Context(), loginScope, client)
		if hitErr != nil {
			writeError(w, r, hitErr)
			return
		}
		if nowBlocked {
			s.Metrics.ObserveRateLimitBlock()
			writeError(w, r, domain.ErrRateLimited)
			return
		}
		writeError(w, r, domain.ErrUnauthorized)
		return
	}
	s.Metrics.ObserveLogin(true)

	cookieValue, err := s.Sessions.Issue(r.Context(), user.ID, persistent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cookie := &http.Cookie{
		Name:     sessionCookie,
		Value:    cookieValue,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if persistent {
		cookie.MaxAge = int((30 * 24 * time.Hour).Seconds())
	}
	http.SetCookie(w, cookie)
	log.Info("user logged in", "username", user.Username, "client", client)
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.Sessions.Revoke(r.Context(), cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/login/", http.StatusSeeOther)
}

func isTrue(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
