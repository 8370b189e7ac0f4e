package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probeEndpoint(t *testing.T, fn http.HandlerFunc) (int, statusResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestReadyEndpoint_NotReadyUntilSet(t *testing.T) {
	h := New()

	code, resp := probeEndpoint(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Status)

	h.SetReady(true)
	code, resp = probeEndpoint(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, h.IsReady())
}

func TestCheck_FailureThreshold(t *testing.T) {
	failing := func(context.Context) error { return errors.New("db down") }
	c := newCheck("db", time.Second, failing)
	ctx := context.Background()

	c.run(ctx)
	c.run(ctx)
	assert.True(t, c.healthy.Load(), "below threshold stays healthy")

	c.run(ctx)
	assert.False(t, c.healthy.Load(), "third consecutive failure trips the check")
}

func TestCheck_SingleSuccessRecovers(t *testing.T) {
	var fail bool
	probe := func(context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	}
	c := newCheck("dep", time.Second, probe)
	ctx := context.Background()

	fail = true
	for range 3 {
		c.run(ctx)
	}
	require.False(t, c.healthy.Load())

	fail = false
	c.run(ctx)
	assert.True(t, c.healthy.Load())
}

func TestReadyEndpoint_ReportsFailingCheck(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})

	h.mu.RLock()
	c := h.readiness[0]
	h.mu.RUnlock()
	for range 3 {
		c.run(context.Background())
	}

	code, resp := probeEndpoint(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, resp.Checks["db"], "connection refused")
	assert.False(t, h.IsReady())
}

func TestLiveEndpoint_HealthyByDefault(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(10_000))

	code, resp := probeEndpoint(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
}

func TestStartStop(t *testing.T) {
	h := New()
	ran := make(chan struct{}, 1)
	h.AddLivenessCheck("ping", time.Second, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	defer h.Stop()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("check never ran")
	}
}
