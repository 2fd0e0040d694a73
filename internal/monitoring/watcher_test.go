package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/harvest-cli/internal/config"
	"github.com/sells-group/harvest-cli/internal/model"
)

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	src := &fakeSource{snaps: map[string]*model.Snapshot{
		"h1": testSnapshot("h1"),
	}}
	cfg := config.MonitoringConfig{IntervalSecs: 1, FailureRateThreshold: 0.5}
	w := NewWatcher(NewCollector(src), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx, "h1")
		close(done)
	}()

	// Let it tick once then cancel.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Run returned.
	case <-time.After(5 * time.Second):
		t.Fatal("Watcher.Run did not stop after context cancellation")
	}
}

func TestWatcher_DefaultInterval(t *testing.T) {
	cfg := config.MonitoringConfig{}
	w := NewWatcher(NewCollector(&fakeSource{}), NewAlerter(cfg), cfg)
	assert.NotNil(t, w)

	// Zero interval defaults; start and immediately cancel to verify the
	// loop exits cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx, "h1")
}

func TestWatcher_CheckSendsStallAlert(t *testing.T) {
	var received atomic.Int32
	var lastType atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		lastType.Store(string(alert.Type))
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	// Below the failure-rate minimum, so a stall is the only possible alert.
	src := &fakeSource{snaps: map[string]*model.Snapshot{
		"h1": {HarvestID: "h1", Discovered: 10, Pending: 6, Done: 4},
	}}
	cfg := config.MonitoringConfig{FailureRateThreshold: 0.5, WebhookURL: ts.URL}
	w := NewWatcher(NewCollector(src), NewAlerter(cfg), cfg)

	log := zap.NewNop()
	ctx := context.Background()

	// First check seeds the baseline; the second sees no movement.
	w.check(ctx, "h1", log)
	assert.Equal(t, int32(0), received.Load())

	w.check(ctx, "h1", log)
	assert.Equal(t, int32(1), received.Load())
	assert.Equal(t, string(AlertHarvestStalled), lastType.Load())
}

func TestWatcher_CheckSurvivesCollectError(t *testing.T) {
	src := &fakeSource{snapErr: assert.AnError}
	cfg := config.MonitoringConfig{FailureRateThreshold: 0.5}
	w := NewWatcher(NewCollector(src), NewAlerter(cfg), cfg)

	w.check(context.Background(), "h1", zap.NewNop())
	assert.Nil(t, w.prev)
}
