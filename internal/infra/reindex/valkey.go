package reindex

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

type event struct {
	Origin string    `json:"origin"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// ValkeyNotifier rebuilds locally and fans the change out to every other
// replica over a Valkey pub/sub channel.
type ValkeyNotifier struct {
	client   valkey.Client
	channel  string
	origin   string
	logger   *slog.Logger
	backoff  time.Duration
	mu       sync.RWMutex
	handler  Handler
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewValkeyNotifier constructs a Valkey-backed notifier.
func NewValkeyNotifier(client valkey.Client, channel string, logger *slog.Logger) *ValkeyNotifier {
	if channel == "" {
		channel = "faq:reindex"
	}
	return &ValkeyNotifier{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger.With("component", "reindex.valkey", "channel", channel),
		backoff: 2 * time.Second,
	}
}

// SetHandler installs the rebuild handler and starts the subscription loop.
func (n *ValkeyNotifier) SetHandler(handler Handler) {
	n.mu.Lock()
	n.handler = handler
	start := handler != nil && n.cancel == nil
	var ctx context.Context
	if start {
		ctx, n.cancel = context.WithCancel(context.Background())
		n.done = make(chan struct{})
	}
	n.mu.Unlock()
	if start {
		go n.subscribe(ctx)
	}
}

// Notify rebuilds the local index, then publishes the change for the other
// replicas. A publish failure leaves the local rebuild in place.
func (n *ValkeyNotifier) Notify(ctx context.Context, reason string) error {
	if handler := n.currentHandler(); handler != nil {
		if err := handler(ctx, reason); err != nil {
			return err
		}
	}
	encoded, err := json.Marshal(event{Origin: n.origin, Reason: reason, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	cmd := n.client.B().Publish().Channel(n.channel).Message(string(encoded)).Build()
	return n.client.Do(ctx, cmd).Error()
}

// Close stops the subscription loop.
func (n *ValkeyNotifier) Close() {
	n.stopOnce.Do(func() {
		n.mu.Lock()
		cancel, done := n.cancel, n.done
		n.mu.Unlock()
		if cancel == nil {
			return
		}
		cancel()
		<-done
	})
}

func (n *ValkeyNotifier) subscribe(ctx context.Context) {
	defer close(n.done)
	for {
		err := n.client.Receive(ctx, n.client.B().Subscribe().Channel(n.channel).Build(), func(msg valkey.PubSubMessage) {
			n.handle(ctx, msg.Message)
		})
		if ctx.Err() != nil {
			return
		}
		n.logger.Warn("reindex subscription dropped, retrying", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(n.backoff):
		}
	}
}

func (n *ValkeyNotifier) handle(ctx context.Context, raw string) {
	var evt event
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		n.logger.Warn("reindex event unmarshal failed", "error", err)
		return
	}
	if evt.Origin == n.origin {
		return
	}
	handler := n.currentHandler()
	if handler == nil {
		return
	}
	if err := handler(ctx, evt.Reason); err != nil {
		n.logger.Warn("remote reindex failed", "reason", evt.Reason, "origin", evt.Origin, "error", err)
		return
	}
	n.logger.Info("remote reindex applied", "reason", evt.Reason, "origin", evt.Origin)
}

func (n *ValkeyNotifier) currentHandler() Handler {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.handler
}

var _ HandlerNotifier = (*ValkeyNotifier)(nil)
