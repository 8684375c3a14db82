package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ErenAtasun/MaskHeist/internal/config"
	"github.com/ErenAtasun/MaskHeist/internal/session"
)

func newTestHub(t *testing.T) (*Hub, *int) {
	t.Helper()
	created := 0
	factory := func(ctx context.Context, code string) (*session.Session, error) {
		if code == "BROKEN" {
			return nil, errors.New("boom")
		}
		created++
		return session.New(ctx, session.Options{
			Code:   code,
			Config: config.Default().Game,
			Clock:  clockwork.NewFakeClock(),
			Log:    zaptest.NewLogger(t),
		})
	}
	h := NewHub(context.Background(), factory, zaptest.NewLogger(t))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return h, &created
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	s1, err := h.Create(ctx, "ZED123")
	require.NoError(t, err)
	s2, err := h.Get(ctx, "ZED123")
	require.NoError(t, err)

	require.NotNil(t, s1)
	assert.Same(t, s1, s2)
	assert.Equal(t, "ZED123", s1.Code())

	missing, err := h.Get(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestHub_CreateRejectsTakenCode(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	_, err := h.Create(ctx, "ZED123")
	require.NoError(t, err)
	_, err = h.Create(ctx, "ZED123")
	assert.ErrorIs(t, err, ErrCodeTaken)
}

func TestHub_EnsureCreatesOnce(t *testing.T) {
	h, created := newTestHub(t)
	ctx := context.Background()

	s1, fresh, err := h.Ensure(ctx, "ABC")
	require.NoError(t, err)
	assert.True(t, fresh)
	s2, fresh, err := h.Ensure(ctx, "ABC")
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Same(t, s1, s2)

	codes, err := h.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC"}, codes)
	assert.Equal(t, 1, *created)
}

func TestHub_FactoryErrorIsReturned(t *testing.T) {
	h, _ := newTestHub(t)
	_, err := h.Create(context.Background(), "BROKEN")
	assert.EqualError(t, err, "boom")

	codes, err := h.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestHub_RemoveStopsSession(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()
	s, err := h.Create(ctx, "B")
	require.NoError(t, err)
	_, err = h.Create(ctx, "A")
	require.NoError(t, err)

	require.NoError(t, h.Remove(ctx, "B"))
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("removed session kept running")
	}
	codes, err := h.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, codes)
}

func TestHub_StoppedSessionIsForgotten(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()
	s, err := h.Create(ctx, "GONE")
	require.NoError(t, err)

	s.Inbox() <- session.Shutdown{}
	<-s.Done()

	assert.Eventually(t, func() bool {
		got, err := h.Get(ctx, "GONE")
		return err == nil && got == nil
	}, time.Second, 10*time.Millisecond)
}

func TestHub_Shutdown(t *testing.T) {
	h, _ := newTestHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s, err := h.Create(ctx, "X")
	require.NoError(t, err)

	require.NoError(t, h.Shutdown(ctx))
	<-s.Done()

	_, err = h.Get(ctx, "X")
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, h.Shutdown(ctx), "second shutdown is a no-op")
}
