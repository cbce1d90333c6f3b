package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Auth Routes - Login & Logout
	RouteLogin      = "/login"
	RouteAuthLogin  = "/auth/login"
	RouteAuthLogout = "/auth/logout"

	// Auth Routes - Signup & Verification
	RouteSignup       = "/auth/signup"
	RouteVerify       = "/auth/verify"
	RouteVerifyCancel = "/auth/verify/cancel"

	// Auth Routes - Company SSO
	RouteSSO       = "/auth/sso"
	RouteSSOVerify = "/auth/sso/verify"

	// Chat Routes
	RouteChat             = "/chat"
	RouteChatMessages     = "/chat/messages"
	RouteChatNew          = "/chat/new"
	RouteChatAttachments  = "/chat/attachments"
	RouteChatAttachRemove = "/chat/attachments/{id}/remove"
	RouteChatWebSocket    = "/chat/ws"

	// API Routes
	RouteAPISession = "/api/session"
	RouteAPIConfig  = "/api/config"
	RouteMetrics    = "/metrics"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
	RouteStaticJS  = "/js/{file}"
)
