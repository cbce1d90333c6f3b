package credstore_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/jrsteele09/go-agent-chat/credstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var testSealKey = bytes.Repeat([]byte{7}, 32)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := credstore.NewMemoryBackend(credstore.WithNowTime(func() time.Time { return now }))

	value := []byte("secret")
	require.NoError(t, m.Put(ctx, "k", value, time.Minute))
	value[0] = 'X'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), got)

	t.Run("expiry", func(t *testing.T) {
		now = now.Add(time.Minute)
		_, err := m.Get(ctx, "k")
		require.ErrorIs(t, err, credstore.ErrNotFound)
		require.Equal(t, 0, m.Len())
	})

	t.Run("sweep", func(t *testing.T) {
		require.NoError(t, m.Put(ctx, "a", []byte("1"), time.Second))
		require.NoError(t, m.Put(ctx, "b", []byte("2"), time.Hour))
		now = now.Add(time.Minute)
		require.Equal(t, 1, m.Sweep())
		require.Equal(t, 1, m.Len())
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, m.Delete(ctx, "b"))
		_, err := m.Get(ctx, "b")
		require.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		require.Error(t, m.Put(ctx, "", []byte("x"), time.Minute))
		require.Error(t, m.Put(ctx, "x", []byte("x"), 0))
	})
}

func TestRedisBackend(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	r := credstore.NewRedisBackend(client, "")

	require.NoError(t, r.Put(ctx, "k", []byte("secret"), time.Minute))
	require.True(t, mr.Exists(credstore.DefaultRedisPrefix+"k"))

	got, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), got)

	mr.FastForward(2 * time.Minute)
	_, err = r.Get(ctx, "k")
	require.ErrorIs(t, err, credstore.ErrNotFound)

	require.NoError(t, r.Put(ctx, "k", []byte("secret"), time.Minute))
	require.NoError(t, r.Delete(ctx, "k"))
	_, err = r.Get(ctx, "k")
	require.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestRedisBackend_Failures(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	r := credstore.NewRedisBackend(db, "p:")

	mock.ExpectGet("p:missing").RedisNil()
	_, err := r.Get(ctx, "missing")
	require.ErrorIs(t, err, credstore.ErrNotFound)

	mock.ExpectGet("p:k").SetErr(errors.New("connection refused"))
	_, err = r.Get(ctx, "k")
	require.Error(t, err)
	require.NotErrorIs(t, err, credstore.ErrNotFound)
	require.Contains(t, err.Error(), "connection refused")

	mock.ExpectDel("p:k").SetErr(errors.New("connection refused"))
	require.Error(t, r.Delete(ctx, "k"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSealedBackend(t *testing.T) {
	ctx := context.Background()
	inner := credstore.NewMemoryBackend()
	sealed, err := credstore.NewSealedBackend(inner, testSealKey)
	require.NoError(t, err)

	require.NoError(t, sealed.Put(ctx, "k", []byte("Gen3rated!Password"), time.Minute))

	raw, err := inner.Get(ctx, "k")
	require.NoError(t, err)
	require.NotContains(t, string(raw), "Gen3rated!Password")

	got, err := sealed.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "Gen3rated!Password", string(got))

	t.Run("tampered", func(t *testing.T) {
		raw[len(raw)-1] ^= 0xff
		require.NoError(t, inner.Put(ctx, "k", raw, time.Minute))
		_, err := sealed.Get(ctx, "k")
		require.ErrorIs(t, err, credstore.ErrCorrupt)
	})

	t.Run("moved to another key", func(t *testing.T) {
		require.NoError(t, sealed.Put(ctx, "a", []byte("v"), time.Minute))
		moved, err := inner.Get(ctx, "a")
		require.NoError(t, err)
		require.NoError(t, inner.Put(ctx, "b", moved, time.Minute))
		_, err = sealed.Get(ctx, "b")
		require.ErrorIs(t, err, credstore.ErrCorrupt)
	})

	t.Run("missing passes through", func(t *testing.T) {
		_, err := sealed.Get(ctx, "nope")
		require.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("bad key", func(t *testing.T) {
		_, err := credstore.NewSealedBackend(inner, []byte("short"))
		require.Error(t, err)
	})
}

func TestParseSealKey(t *testing.T) {
	key, err := credstore.ParseSealKey(base64.StdEncoding.EncodeToString(testSealKey))
	require.NoError(t, err)
	require.Equal(t, testSealKey, key)

	_, err = credstore.ParseSealKey("!!!")
	require.Error(t, err)
	_, err = credstore.ParseSealKey(base64.StdEncoding.EncodeToString([]byte("short")))
	require.Error(t, err)
}

func TestStore_PendingSSO(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	backend := credstore.NewMemoryBackend(credstore.WithNowTime(func() time.Time { return now }))
	store := credstore.NewStore(backend, 30*time.Minute)

	alice := store.Scope("client-a")
	bob := store.Scope("client-b")

	_, err := alice.PendingSSO(ctx)
	require.ErrorIs(t, err, credstore.ErrNotFound)

	first := credstore.PendingSSO{Email: "alice@corp.io", Username: "user_1", Password: "P@ss1"}
	require.NoError(t, alice.SavePendingSSO(ctx, first))

	t.Run("scoped per client", func(t *testing.T) {
		_, err := bob.PendingSSO(ctx)
		require.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("new attempt overwrites", func(t *testing.T) {
		second := credstore.PendingSSO{Email: "alice@corp.io", Username: "user_2", Password: "P@ss2"}
		require.NoError(t, alice.SavePendingSSO(ctx, second))

		got, err := alice.PendingSSO(ctx)
		require.NoError(t, err)
		require.Equal(t, "user_2", got.Username)
		require.Equal(t, 1, backend.Len())
	})

	t.Run("expires", func(t *testing.T) {
		now = now.Add(31 * time.Minute)
		_, err := alice.PendingSSO(ctx)
		require.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, alice.SavePendingSSO(ctx, first))
		require.NoError(t, alice.ClearPendingSSO(ctx))
		_, err := alice.PendingSSO(ctx)
		require.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("corrupt value", func(t *testing.T) {
		require.NoError(t, backend.Put(ctx, "sso:client-c", []byte("{"), time.Minute))
		_, err := store.Scope("client-c").PendingSSO(ctx)
		require.ErrorIs(t, err, credstore.ErrCorrupt)
	})
}

func TestPendingSSO_StringRedactsPassword(t *testing.T) {
	p := credstore.PendingSSO{Email: "alice@corp.io", Username: "user_1", Password: "Secr3t!Value"}
	require.NotContains(t, p.String(), "Secr3t!Value")
	require.Contains(t, p.String(), "alice@corp.io")
}
