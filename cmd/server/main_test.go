package main

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-agent-chat/chat"
	"github.com/jrsteele09/go-agent-chat/credstore"
	"github.com/jrsteele09/go-agent-chat/identity/localidp"
	"github.com/jrsteele09/go-agent-chat/internal/config"
	"github.com/jrsteele09/go-agent-chat/server/loginsession"
	"github.com/stretchr/testify/require"
)

func setupTestConfig(t *testing.T, env ...string) config.Config {
	t.Helper()
	for _, name := range []string{"ENV", "IDENTITY_PROVIDER", "LOCAL_IDP_SECRET", "SMTP_ACCOUNT", "SESSION_STORE", "SECRET_SEAL_KEY", "CHAT_BACKEND_URL", "COGNITO_USER_POOL_ID", "COGNITO_CLIENT_ID"} {
		t.Setenv(name, "")
	}
	t.Setenv("ENV", "DEV")
	for i := 0; i+1 < len(env); i += 2 {
		t.Setenv(env[i], env[i+1])
	}
	return config.New()
}

func TestNewIdentityProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("local provider in DEV", func(t *testing.T) {
		provider, err := newIdentityProvider(ctx, setupTestConfig(t))
		require.NoError(t, err)
		require.IsType(t, &localidp.Provider{}, provider)
	})

	t.Run("local provider needs a secret outside DEV", func(t *testing.T) {
		_, err := newIdentityProvider(ctx, setupTestConfig(t, "ENV", "PROD"))
		require.ErrorContains(t, err, "LOCAL_IDP_SECRET")

		provider, err := newIdentityProvider(ctx, setupTestConfig(t, "ENV", "PROD", "LOCAL_IDP_SECRET", "prod-secret"))
		require.NoError(t, err)
		require.NotNil(t, provider)
	})

	t.Run("cognito needs a pool and client", func(t *testing.T) {
		_, err := newIdentityProvider(ctx, setupTestConfig(t, "IDENTITY_PROVIDER", config.IdentityProviderCognito))
		require.ErrorContains(t, err, "user pool id and client id are required")
	})
}

func TestNewCredentialBackend(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

	t.Run("memory by default", func(t *testing.T) {
		backend, closeFn, err := newCredentialBackend(setupTestConfig(t))
		require.NoError(t, err)
		defer closeFn()
		require.IsType(t, &credstore.MemoryBackend{}, backend)
	})

	t.Run("sealed when a key is set", func(t *testing.T) {
		backend, closeFn, err := newCredentialBackend(setupTestConfig(t, "SECRET_SEAL_KEY", key))
		require.NoError(t, err)
		defer closeFn()
		require.IsType(t, &credstore.SealedBackend{}, backend)
	})

	t.Run("bad seal keys", func(t *testing.T) {
		_, _, err := newCredentialBackend(setupTestConfig(t, "SECRET_SEAL_KEY", "not base64!"))
		require.ErrorContains(t, err, "SECRET_SEAL_KEY")

		short := base64.StdEncoding.EncodeToString([]byte("short"))
		_, _, err = newCredentialBackend(setupTestConfig(t, "SECRET_SEAL_KEY", short))
		require.Error(t, err)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		backend, closeFn, err := newCredentialBackend(setupTestConfig(t, "SESSION_STORE", config.SessionStoreRedis, "REDIS_ADDR", mr.Addr()))
		require.NoError(t, err)
		defer closeFn()
		require.IsType(t, &credstore.RedisBackend{}, backend)
	})
}

func TestBuildDependencies(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		deps, closeFn, err := buildDependencies(ctx, setupTestConfig(t))
		require.NoError(t, err)
		defer closeFn()

		require.IsType(t, &loginsession.InMemoryRepo{}, deps.LoginSessions)
		require.IsType(t, &chat.Simulated{}, deps.ChatBackend)
		require.NotNil(t, deps.Credentials)
		require.NotNil(t, deps.Metrics)
		require.NotNil(t, deps.Gatherer)
	})

	t.Run("redis sessions and http chat backend", func(t *testing.T) {
		mr := miniredis.RunT(t)
		deps, closeFn, err := buildDependencies(ctx, setupTestConfig(t,
			"SESSION_STORE", config.SessionStoreRedis,
			"REDIS_ADDR", mr.Addr(),
			"CHAT_BACKEND_URL", "http://agent.internal/chat",
		))
		require.NoError(t, err)
		defer closeFn()

		require.IsType(t, &loginsession.BackendRepo{}, deps.LoginSessions)
		require.IsType(t, &chat.HTTPBackend{}, deps.ChatBackend)
	})
}
