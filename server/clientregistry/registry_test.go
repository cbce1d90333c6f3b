package clientregistry_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-agent-chat/identity/identityfake"
	"github.com/jrsteele09/go-agent-chat/server/clientregistry"
	"github.com/jrsteele09/go-agent-chat/session"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	now      time.Time
	built    atomic.Int32
	live     atomic.Int32
	registry *clientregistry.Registry
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{now: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)}
	factory := func(ctx context.Context, clientID string) (*clientregistry.Instance, error) {
		f.built.Add(1)
		return &clientregistry.Instance{Publisher: session.NewPublisher(identityfake.New())}, nil
	}
	f.registry = clientregistry.New(factory,
		clientregistry.WithNowTime(func() time.Time { return f.now }),
		clientregistry.WithIdleTimeout(time.Hour),
		clientregistry.WithSizeObserver(func(live int) { f.live.Store(int32(live)) }),
	)
	return f
}

func TestGetBuildsOncePerClient(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	a1, err := f.registry.Get(ctx, "client-a")
	require.NoError(t, err)
	a2, err := f.registry.Get(ctx, "client-a")
	require.NoError(t, err)
	require.Same(t, a1, a2)
	require.Equal(t, "client-a", a1.ID)

	b, err := f.registry.Get(ctx, "client-b")
	require.NoError(t, err)
	require.NotSame(t, a1, b)

	require.Equal(t, int32(2), f.built.Load())
	require.Equal(t, int32(2), f.live.Load())
	require.Equal(t, 2, f.registry.Len())
}

func TestGetRejectsEmptyID(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.registry.Get(context.Background(), "")
	require.Error(t, err)
}

func TestGetFactoryError(t *testing.T) {
	registry := clientregistry.New(func(context.Context, string) (*clientregistry.Instance, error) {
		return nil, errors.New("provider down")
	})
	_, err := registry.Get(context.Background(), "client-a")
	require.Error(t, err)
	require.Equal(t, 0, registry.Len())
}

func TestConcurrentGetSharesInstance(t *testing.T) {
	f := setupTestFixture(t)
	var wg sync.WaitGroup
	got := make([]*clientregistry.Instance, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inst, err := f.registry.Get(context.Background(), "client-a")
			require.NoError(t, err)
			got[i] = inst
		}(i)
	}
	wg.Wait()
	for _, inst := range got {
		require.Same(t, got[0], inst)
	}
	require.Equal(t, 1, f.registry.Len())
}

func TestEvictIdle(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	old, err := f.registry.Get(ctx, "client-old")
	require.NoError(t, err)
	sub, cancel := old.Publisher.Subscribe()
	defer cancel()
	<-sub // current value

	f.now = f.now.Add(50 * time.Minute)
	_, err = f.registry.Get(ctx, "client-new")
	require.NoError(t, err)

	f.now = f.now.Add(20 * time.Minute)
	require.Equal(t, 1, f.registry.EvictIdle())

	_, ok := f.registry.Lookup("client-old")
	require.False(t, ok)
	_, ok = f.registry.Lookup("client-new")
	require.True(t, ok)
	require.Equal(t, int32(1), f.live.Load())

	_, open := <-sub
	require.False(t, open)
}

func TestDeleteAndClose(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	_, err := f.registry.Get(ctx, "client-a")
	require.NoError(t, err)
	_, err = f.registry.Get(ctx, "client-b")
	require.NoError(t, err)

	f.registry.Delete("client-a")
	require.Equal(t, 1, f.registry.Len())

	f.registry.Close()
	require.Equal(t, 0, f.registry.Len())
	require.Equal(t, int32(0), f.live.Load())
}
