package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"udb/internal/domain"
)

type contextKey int

const userKey contextKey = 0

// currentUser returns the authenticated user, nil on public routes.
func currentUser(r *http.Request) *domain.User {
	u, _ := r.Context().Value(userKey).(*domain.User)
	return u
}

func withUser(r *http.Request, u *domain.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userKey, u))
}

// statusRecorder captures the response code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// observe feeds the access log and the request metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		s.Metrics.ObserveRequest(r.URL.Path, rec.status, elapsed)
		s.accessLog(r, rec.status, elapsed)
	})
}

func (s *Server) accessLog(r *http.Request, status int, elapsed time.Duration) {
	s.access.Debug("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"duration", elapsed,
		"client", clientIP(r))
}

// requireSession resolves the session cookie; anonymous requests are
// redirected to the login page.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.sessionUser(r)
		if err != nil {
			http.Redirect(w, r, "/login/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, withUser(r, user))
	})
}

const sessionCookie = "session"

func (s *Server) sessionUser(r *http.Request) (*domain.User, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	session, err := s.Sessions.Resolve(r.Context(), cookie.Value)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	var user domain.User
	err = s.DB.WithContext(r.Context()).First(&user, session.UserID).Error
	if err != nil || user.Status != domain.StatusEnabled {
		return nil, domain.ErrUnauthorized
	}
	return &user, nil
}

const apiRealm = "udb-api"

// requireBasicAuth gates the JSON API. Failed credentials count toward
// the tumbling-window limit; a blocked client stays blocked until the
// window elapses even with valid credentials.
func (s *Server) requireBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)

		blocked, err := s.Limiter.Blocked(r.Context(), apiRealm, client)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if blocked {
			s.Metrics.ObserveRateLimitBlock()
			writeError(w, r, domain.ErrRateLimited)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+apiRealm+`"`)
			writeError(w, r, domain.ErrUnauthorized)
			return
		}

		user, err := s.Authenticator.Login(r.Context(), username, password)
		if err != nil {
			nowBlocked, hitErr := s.Limiter.Hit(r.Context(), apiRealm, client)
			if hitErr != nil {
				writeError(w, r, hitErr)
				return
			}
			if nowBlocked {
				s.Metrics.ObserveRateLimitBlock()
				writeError(w, r, domain.ErrRateLimited)
				return
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="`+apiRealm+`"`)
			writeError(w, r, domain.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, withUser(r, user))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// canWrite is the role matrix for mutating operations.
func canWrite(user *domain.User, kind domain.Kind) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleDnsZoneMgmt:
		return kind == domain.KindDnsZone || kind == domain.KindDnsRecord ||
			kind == domain.KindDhcpRecord || kind == domain.KindIp || kind == domain.KindMac
	case domain.RoleSubnetMgmt:
		return kind == domain.KindVrf || kind == domain.KindSubnet ||
			kind == domain.KindDhcpRecord || kind == domain.KindIp || kind == domain.KindMac
	case domain.RoleUser:
		return kind == domain.KindDnsRecord || kind == domain.KindDhcpRecord ||
			kind == domain.KindIp || kind == domain.KindMac
	}
	return false
}
