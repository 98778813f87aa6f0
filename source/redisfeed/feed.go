package redisfeed

import (
	"context"
	"log/slog"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-optimistic-cache/store"
	"github.com/redis/go-redis/v9"
)

// Subscriber is the go-redis surface the feed needs. *redis.Client satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Publisher is the go-redis surface used by Publish. *redis.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Sink receives decoded updates; source.Synchronizer implements it.
type Sink interface {
	HandleUpdate(ctx context.Context, update store.Entity) (bool, error)
}

// ErrorHandler is called for every message that could not be decoded or applied.
type ErrorHandler func(msg *redis.Message, err error)

// Feed relays one pub/sub channel into a Sink.
type Feed struct {
	client  Subscriber
	channel string
	sink    Sink
	codec   Codec
	logger  *slog.Logger
	onError ErrorHandler
}

// Option configures a Feed.
type Option func(*Feed)

// WithCodec replaces the default JSONCodec.
func WithCodec(c Codec) Option {
	return func(f *Feed) {
		if c != nil {
			f.codec = c
		}
	}
}

// WithLogger sets the logger. The default discards records.
func WithLogger(l *slog.Logger) Option {
	return func(f *Feed) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithErrorHandler reports per-message failures to the caller.
func WithErrorHandler(h ErrorHandler) Option {
	return func(f *Feed) {
		f.onError = h
	}
}

// New returns a feed for channel.
func New(client Subscriber, channel string, sink Sink, opts ...Option) *Feed {
	f := &Feed{
		client:  client,
		channel: channel,
		sink:    sink,
		codec:   JSONCodec{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run subscribes and relays messages until ctx is done or the subscription closes.
// Subscription failures are returned; per-message failures go to the ErrorHandler.
func (f *Feed) Run(ctx context.Context) error {
	ps := f.client.Subscribe(ctx, f.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "subscribe to update channel").
			WithMetadata(map[string]any{"channel": f.channel})
	}
	f.logger.Info("live update feed subscribed", "channel", f.channel)
	return f.Consume(ctx, ps.Channel())
}

// Consume relays messages from msgs. It returns ctx.Err() on cancellation and nil when
// msgs is closed.
func (f *Feed) Consume(ctx context.Context, msgs <-chan *redis.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				f.logger.Info("live update feed closed", "channel", f.channel)
				return nil
			}
			f.handle(ctx, msg)
		}
	}
}

func (f *Feed) handle(ctx context.Context, msg *redis.Message) {
	if msg == nil {
		return
	}
	update, err := f.codec.Decode([]byte(msg.Payload))
	if err == nil {
		_, err = f.sink.HandleUpdate(ctx, update)
	}
	if err != nil {
		f.logger.Warn("live update rejected", "channel", msg.Channel, "error", err)
		if f.onError != nil {
			f.onError(msg, err)
		}
	}
}

// Publish encodes update with codec and publishes it on channel.
func Publish(ctx context.Context, client Publisher, channel string, codec Codec, update store.Entity) error {
	if codec == nil {
		codec = JSONCodec{}
	}
	payload, err := codec.Encode(update)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "encode live update")
	}
	if err := client.Publish(ctx, channel, payload).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "publish live update").
			WithMetadata(map[string]any{"channel": channel, "entity_id": update.ID})
	}
	return nil
}
