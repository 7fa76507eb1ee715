package reconciler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mikempw/dnsfailover/internal/metrics"
)

// Event names a reconciler notification, mirroring
// original_source/victoriametrics/vm_sync.py's notify() event strings.
type Event string

const (
	EventGapDetected   Event = "gap_detected"
	EventSyncComplete  Event = "sync_complete"
	EventFailbackReady Event = "failback_ready"
	EventNewUnit       Event = "new_unit"
)

// Notifier posts a one-line webhook message per event, the same
// best-effort fire-and-forget semantics as the Python original (a
// notification failure is logged and never fails the reconciler cycle).
type Notifier struct {
	Webhook string
	Log     *zap.SugaredLogger
	client  *http.Client
}

func NewNotifier(webhook string, log *zap.SugaredLogger) *Notifier {
	client := metrics.NewInstrumentedClient("notify", &http.Client{Timeout: 10 * time.Second})
	return &Notifier{Webhook: webhook, Log: log, client: client}
}

func (n *Notifier) Send(ctx context.Context, event Event, state SyncState) {
	if n.Webhook == "" {
		return
	}

	message := formatMessage(event, state)
	payload, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		n.Log.Warnw("failed to encode notification", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Webhook, bytes.NewReader(payload))
	if err != nil {
		n.Log.Warnw("failed to build notification request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.Log.Warnw("failed to send notification", "event", event, "error", err)
		return
	}
	defer resp.Body.Close()
	n.Log.Debugw("notification sent", "event", event)
}

func formatMessage(event Event, state SyncState) string {
	switch event {
	case EventGapDetected:
		return fmt.Sprintf("reconciler: %d units with a gap detected. active site: %s", state.UnitsWithGap, state.ActiveSite)
	case EventSyncComplete:
		return fmt.Sprintf("reconciler: sync complete, %d units repaired, %d rows synced", state.UnitsSynced, state.RowsSynced)
	case EventFailbackReady:
		return fmt.Sprintf("reconciler: FAILBACK READY, data parity confirmed after %d clean cycles", state.ConsecutiveClean)
	case EventNewUnit:
		return "reconciler: new unit discovered on the active site"
	default:
		return fmt.Sprintf("reconciler event: %s", event)
	}
}
