package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Bridge carries external messages into typed topics. Producers publish raw
// payloads to a watermill topic; Forward decodes each one and publishes it to
// a Topic, acknowledging the message once that publish has settled.
type Bridge struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger *slog.Logger
	wg     sync.WaitGroup

	mu         sync.Mutex
	forwarding map[string]int
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithBridgeLogger sets the logger forward loops report failures to.
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

const metaKeySource = "source"

// NewBridge initializes an in-memory bridge backed by watermill's GoChannel.
func NewBridge(opts ...BridgeOption) *Bridge {
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)

	b := &Bridge{
		pub:        goChannel,
		sub:        goChannel,
		logger:     slog.Default(),
		forwarding: make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Send publishes payload on the watermill topic source.
func (b *Bridge) Send(ctx context.Context, source string, payload []byte, metadata map[string]string) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(metaKeySource, source)
	for k, v := range metadata {
		msg.Metadata.Set(k, v)
	}
	return b.pub.Publish(source, msg)
}

// Decoder turns a raw payload into a topic value.
type Decoder[T any] func(payload []byte) (T, error)

// JSONDecoder decodes payloads as JSON.
func JSONDecoder[T any]() Decoder[T] {
	return func(payload []byte) (T, error) {
		var v T
		err := json.Unmarshal(payload, &v)
		return v, err
	}
}

// Forward subscribes to source and publishes every decoded message to topic.
// It returns once the subscription is active; delivery continues until ctx is
// cancelled or the bridge is closed. Messages are acknowledged after their
// publish settles. Undecodable messages and failed publishes are logged and
// acknowledged too, since redelivery would hit the same subscribers again.
func Forward[T any](ctx context.Context, b *Bridge, source string, topic *Topic[T], decode Decoder[T]) error {
	if decode == nil {
		decode = JSONDecoder[T]()
	}

	messages, err := b.sub.Subscribe(ctx, source)
	if err != nil {
		return fmt.Errorf("pubsub: subscribe to %s: %w", source, err)
	}

	b.mu.Lock()
	b.forwarding[source]++
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.stopForwarding(source)
		for wmMsg := range messages {
			value, err := decode(wmMsg.Payload)
			if err != nil {
				b.logger.Error("Failed to decode bridged message", "source", source, "msg_id", wmMsg.UUID, "error", err)
				wmMsg.Ack()
				continue
			}

			if err := topic.Publish(wmMsg.Context(), value).Wait(context.Background()); err != nil {
				b.logger.Error("Bridged publish failed", "source", source, "topic", topic.label(), "msg_id", wmMsg.UUID, "error", err)
			}
			wmMsg.Ack()
		}
		b.logger.Debug("Bridge forward loop ended", "source", source)
	}()

	return nil
}

// Forwarding reports whether a Forward loop is consuming source. Messages
// sent to a source nobody forwards are dropped.
func (b *Bridge) Forwarding(source string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.forwarding[source] > 0
}

func (b *Bridge) stopForwarding(source string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.forwarding[source]--; b.forwarding[source] <= 0 {
		delete(b.forwarding, source)
	}
}

// Close shuts the GoChannel down and waits for forward loops to end.
func (b *Bridge) Close() error {
	err := b.sub.Close()
	b.wg.Wait()
	return err
}
