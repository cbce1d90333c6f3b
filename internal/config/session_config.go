package config

import (
	"strings"
	"time"
)

func (c *mainConfig) GetSessionStore() string {
	return strings.ToLower(strings.TrimSpace(c.v.GetString(sessionStoreVar)))
}

func (c *mainConfig) GetRedisAddr() string {
	return c.v.GetString(redisAddrVar)
}

func (c *mainConfig) GetRedisPassword() string {
	return c.v.GetString(redisPasswordVar)
}

func (c *mainConfig) GetRedisDB() int {
	return c.v.GetInt(redisDBVar)
}

func (c *mainConfig) GetPendingSSOTTL() time.Duration {
	return c.v.GetDuration(pendingSSOTTLVar)
}

// GetSecretSealKey is the base64 encoded 32 byte key used to encrypt
// credentials at rest. Empty disables encryption.
func (c *mainConfig) GetSecretSealKey() string {
	return strings.TrimSpace(c.v.GetString(secretSealKeyVar))
}

func (c *mainConfig) GetClientIdleTimeout() time.Duration {
	return c.v.GetDuration(clientIdleTimeoutVar)
}

func (c *mainConfig) GetAuthAttemptsPerMinute() int {
	return c.v.GetInt(authAttemptsPerMinuteVar)
}
