package server

import (
	"net/http"

	"github.com/jrsteele09/go-agent-chat/session"
)

type SessionResponse struct {
	Session session.Session `json:"session"`
	Route   string          `json:"route"`
}

func sessionResponse(p *session.Publisher) SessionResponse {
	return SessionResponse{Session: p.Current(), Route: string(p.Route())}
}

// SessionAPIHandler returns the client's published session (GET /api/session)
func (s *Server) SessionAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := instanceFromContext(r.Context())
		writeJSON(w, r, http.StatusOK, sessionResponse(inst.Publisher))
	}
}

type ConfigResponse struct {
	AppName        string `json:"appName"`
	SSOEnabled     bool   `json:"ssoEnabled"`
	MaxUploadBytes int64  `json:"maxUploadBytes"`
}

// ConfigAPIHandler exposes the client facing settings (GET /api/config)
func (s *Server) ConfigAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, ConfigResponse{
			AppName:        s.config.GetAppName(),
			SSOEnabled:     s.config.GetVerifiedDomains().Enabled(),
			MaxUploadBytes: s.config.GetChatMaxUploadBytes(),
		})
	}
}
