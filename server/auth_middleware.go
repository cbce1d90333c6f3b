package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-agent-chat/server/clientregistry"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyInstance stores the *clientregistry.Instance of the request's client
	ContextKeyInstance ContextKey = "client_instance"
)

// ClientMiddleware identifies the browser client by its session cookie,
// issuing one when absent, and attaches the client's instance to the
// request context.
func (s *Server) ClientMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := ""
		if cookie, err := r.Cookie(clientCookieName); err == nil {
			if _, err := uuid.Parse(cookie.Value); err == nil {
				clientID = cookie.Value
			}
		}
		if clientID == "" {
			clientID = uuid.New().String()
			s.SetClientCookie(w, r, clientID)
		}

		inst, err := s.clients.Get(r.Context(), clientID)
		if err != nil {
			log.Err(err).Msg("failed to create client instance")
			http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyInstance, inst)
		next(w, r.WithContext(ctx))
	}
}

// instanceFromContext returns the instance ClientMiddleware attached.
func instanceFromContext(ctx context.Context) *clientregistry.Instance {
	inst, _ := ctx.Value(ContextKeyInstance).(*clientregistry.Instance)
	return inst
}

// RequireAuthenticated sends unauthenticated clients to the login page.
func (s *Server) RequireAuthenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := instanceFromContext(r.Context())
		if inst == nil || !inst.Publisher.Current().IsAuthenticated {
			if wantsJSON(r) {
				writeJSONError(w, r, http.StatusUnauthorized, "not signed in")
				return
			}
			redirectSuccess(w, r, RouteLogin)
			return
		}
		next(w, r)
	}
}

// RequireSSOEnabled hides the SSO routes when no domain is verified.
func (s *Server) RequireSSOEnabled(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.config.GetVerifiedDomains().Enabled() {
			http.NotFound(w, r)
			return
		}
		next(w, r)
	}
}
