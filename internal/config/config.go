// Package config resolves settings from the environment (and an optional
// .env file) through one getter interface per concern.
package config

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-agent-chat/authflow"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	IdentityConfig
	SSOConfig
	SessionConfig
	ChatConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
	IsDev() bool
}

type IdentityConfig interface {
	GetIdentityProvider() string
	GetCognitoUserPoolID() string
	GetCognitoClientID() string
	GetCognitoClientSecret() string
	GetCognitoRegion() string
	GetLocalIdPSecret() string
	GetLocalIdPIssuer() string
	GetSmtpHost() string
	GetSmtpPort() int
	GetSmtpAccount() string
	GetSmtpPassword() string
}

type SSOConfig interface {
	GetVerifiedDomains() authflow.VerifiedDomains
}

type SessionConfig interface {
	GetSessionStore() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetPendingSSOTTL() time.Duration
	GetSecretSealKey() string
	GetClientIdleTimeout() time.Duration
	GetAuthAttemptsPerMinute() int
}

type ChatConfig interface {
	GetChatBackendURL() string
	GetChatReplyDelay() time.Duration
	GetChatMaxUploadBytes() int64
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	v       *viper.Viper
	domains authflow.VerifiedDomains
}

var _ Config = (*mainConfig)(nil)

// New loads .env (when present) and returns the resolved configuration.
// SSO_VERIFIED_DOMAINS is read once here and never again.
func New() Config {
	_ = godotenv.Load()
	return newFromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

func newFromViper(v *viper.Viper) *mainConfig {
	return &mainConfig{
		v:       v,
		domains: authflow.ParseVerifiedDomains(v.GetString(ssoVerifiedDomainsVar)),
	}
}

func (c *mainConfig) GetVerifiedDomains() authflow.VerifiedDomains {
	return c.domains
}
