package config

import (
	"strings"
	"time"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	envVar         = "ENV"
	baseURLVar     = "BASE_URL"
	logLevelEnvVar = "LOG_LEVEL"

	identityProviderVar    = "IDENTITY_PROVIDER"
	cognitoUserPoolIDVar   = "COGNITO_USER_POOL_ID"
	cognitoClientIDVar     = "COGNITO_CLIENT_ID"
	cognitoClientSecretVar = "COGNITO_CLIENT_SECRET"
	cognitoRegionVar       = "COGNITO_REGION"
	localIdPSecretVar      = "LOCAL_IDP_SECRET"
	localIdPIssuerVar      = "LOCAL_IDP_ISSUER"
	smtpHostVar            = "SMTP_HOST"
	smtpPortVar            = "SMTP_PORT"
	smtpAccountVar         = "SMTP_ACCOUNT"
	smtpPasswordVar        = "SMTP_PASSWORD"

	ssoVerifiedDomainsVar = "SSO_VERIFIED_DOMAINS"

	sessionStoreVar          = "SESSION_STORE"
	redisAddrVar             = "REDIS_ADDR"
	redisPasswordVar         = "REDIS_PASSWORD"
	redisDBVar               = "REDIS_DB"
	pendingSSOTTLVar         = "PENDING_SSO_TTL"
	secretSealKeyVar         = "SECRET_SEAL_KEY"
	clientIdleTimeoutVar     = "CLIENT_IDLE_TIMEOUT"
	authAttemptsPerMinuteVar = "AUTH_ATTEMPTS_PER_MINUTE"

	chatBackendURLVar     = "CHAT_BACKEND_URL"
	chatReplyDelayVar     = "CHAT_REPLY_DELAY"
	chatMaxUploadBytesVar = "CHAT_MAX_UPLOAD_BYTES"

	corsAllowedOriginsVar = "CORS_ALLOWED_ORIGINS"
	corsAllowedMethodsVar = "CORS_ALLOWED_METHODS"
	corsAllowedHeadersVar = "CORS_ALLOWED_HEADERS"
)

const (
	IdentityProviderLocal   = "local"
	IdentityProviderCognito = "cognito"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

var defaults = map[string]any{
	portEnvVar:               "8080",
	appNameVar:               "AI Agent",
	envVar:                   "DEV",
	baseURLVar:               "http://localhost:8080",
	logLevelEnvVar:           "info",
	identityProviderVar:      IdentityProviderLocal,
	localIdPIssuerVar:        "agent-chat-local",
	smtpHostVar:              "smtp.gmail.com",
	smtpPortVar:              587,
	sessionStoreVar:          SessionStoreMemory,
	redisAddrVar:             "localhost:6379",
	redisDBVar:               0,
	pendingSSOTTLVar:         time.Hour,
	clientIdleTimeoutVar:     2 * time.Hour,
	authAttemptsPerMinuteVar: 10,
	chatReplyDelayVar:        1500 * time.Millisecond,
	chatMaxUploadBytesVar:    int64(25 << 20),
	corsAllowedMethodsVar:    "GET, POST",
	corsAllowedHeadersVar:    "Content-Type, HX-Request, HX-Target, HX-Current-URL",
}

func (c *mainConfig) GetPort() string {
	port := strings.TrimSpace(c.v.GetString(portEnvVar))
	if port == "" {
		port = "8080"
	}
	if port[0] != ':' {
		port = ":" + port
	}
	return port
}

func (c *mainConfig) GetAppName() string {
	return c.v.GetString(appNameVar)
}

func (c *mainConfig) GetEnv() string {
	if env := c.v.GetString(envVar); env != "" {
		return env
	}
	return "DEV"
}

func (c *mainConfig) IsDev() bool {
	return strings.EqualFold(c.GetEnv(), "DEV")
}

// GetBaseURL returns the externally visible origin, without a trailing slash.
func (c *mainConfig) GetBaseURL() string {
	return strings.TrimRight(c.v.GetString(baseURLVar), "/")
}

func (c *mainConfig) GetLogLevel() string {
	return strings.ToLower(c.v.GetString(logLevelEnvVar))
}

func (c *mainConfig) GetChatBackendURL() string {
	return strings.TrimSpace(c.v.GetString(chatBackendURLVar))
}

func (c *mainConfig) GetChatReplyDelay() time.Duration {
	return c.v.GetDuration(chatReplyDelayVar)
}

func (c *mainConfig) GetChatMaxUploadBytes() int64 {
	return c.v.GetInt64(chatMaxUploadBytesVar)
}
