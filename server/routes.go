package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-agent-chat/internal/metrics"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare(s.ClientMiddleware)...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageUIHandler(), s.HTMLMiddleWare(s.ClientMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare(s.ClientMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare(s.ClientMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare(s.ClientMiddleware)...))

	// SIGNUP
	s.RegisterRouteHandler("POST "+RouteSignup, ChainMiddleware(s.SignupPostHandler(), s.HTMLMiddleWare(s.ClientMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteVerify, ChainMiddleware(s.VerifyGetHandler(), s.HTMLMiddleWare(s.ClientMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteVerify, ChainMiddleware(s.VerifyPostHandler(), s.HTMLMiddleWare(s.ClientMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteVerifyCancel, ChainMiddleware(s.VerifyCancelHandler(), s.HTMLMiddleWare(s.ClientMiddleware)...))

	// COMPANY SSO
	s.RegisterRouteHandler("POST "+RouteSSO, ChainMiddleware(s.SSOInitiateHandler(), s.HTMLMiddleWare(s.RequireSSOEnabled, s.ClientMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteSSOVerify, ChainMiddleware(s.SSOVerifyGetHandler(), s.HTMLMiddleWare(s.RequireSSOEnabled, s.ClientMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteSSOVerify, ChainMiddleware(s.SSOVerifyPostHandler(), s.HTMLMiddleWare(s.RequireSSOEnabled, s.ClientMiddleware)...))

	// CHAT (require an authenticated session)
	s.RegisterRouteHandler("GET "+RouteChat, ChainMiddleware(s.ChatPageHandler(), s.HTMLMiddleWare(s.ClientMiddleware, s.RequireAuthenticated)...))
	s.RegisterRouteHandler("POST "+RouteChatMessages, ChainMiddleware(s.ChatMessageHandler(), s.HTMLMiddleWare(s.ClientMiddleware, s.RequireAuthenticated)...))
	s.RegisterRouteHandler("POST "+RouteChatNew, ChainMiddleware(s.NewChatHandler(), s.HTMLMiddleWare(s.ClientMiddleware, s.RequireAuthenticated)...))
	s.RegisterRouteHandler("POST "+RouteChatAttachments, ChainMiddleware(s.AttachmentUploadHandler(), s.HTMLMiddleWare(s.ClientMiddleware, s.RequireAuthenticated)...))
	s.RegisterRouteHandler("POST "+RouteChatAttachRemove, ChainMiddleware(s.AttachmentRemoveHandler(), s.HTMLMiddleWare(s.ClientMiddleware, s.RequireAuthenticated)...))
	s.RegisterRouteHandler("GET "+RouteChatWebSocket, ChainMiddleware(s.ChatWebSocketHandler(), s.LoggingMiddleware, s.RecoverMiddleware, s.ClientMiddleware, s.RequireAuthenticated))

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionAPIHandler(), s.APIMiddleware(s.ClientMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteAPIConfig, ChainMiddleware(s.ConfigAPIHandler(), s.APIMiddleware()...))
	if s.deps.Gatherer != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler(s.deps.Gatherer))
	}

	s.RegisterRouteHandler("GET "+RouteStaticCSS, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteStaticJS, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		err := StreamFile(w, r, filePath)
		if err != nil {
			logError("GET", filePath, err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}
