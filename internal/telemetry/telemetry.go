package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/benbjohnson/clock"

	"github.com/ivlev/slidefeed/internal/logger"
)

const module = "Telemetry"

// TopicSlideVisible carries one SlideVisible per committed slide change.
const TopicSlideVisible = "slide.visible"

type SlideVisible struct {
	Session string    `json:"session"`
	Name    string    `json:"name"`
	Index   int       `json:"index"`
	At      time.Time `json:"at"`
}

// NewPubSub returns an in-process pub/sub that logs through log.
func NewPubSub(log logger.ILogger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		NewWatermillLogger(log),
	)
}

type Publisher struct {
	pub     message.Publisher
	topic   string
	session string
	clock   clock.Clock
	logger  logger.ILogger
}

func NewPublisher(pub message.Publisher, session string, log logger.ILogger) *Publisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Publisher{pub: pub, topic: TopicSlideVisible, session: session, clock: clock.New(), logger: log}
}

// Visible publishes a slide change. It never blocks on subscribers and
// matches the engine's visibility hook signature.
func (p *Publisher) Visible(name string, index int) {
	payload, err := json.Marshal(SlideVisible{Session: p.session, Name: name, Index: index, At: p.clock.Now().UTC()})
	if err != nil {
		p.logger.Error(module, "Failed to encode event", map[string]interface{}{"error": err.Error()})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("session", p.session)
	if err := p.pub.Publish(p.topic, msg); err != nil {
		p.logger.Warn(module, "Failed to publish event", map[string]interface{}{"error": err.Error(), "index": index})
	}
}

// LogHook is the default visibility hook: one log line per slide change.
func LogHook(log logger.ILogger) func(name string, index int) {
	return func(name string, index int) {
		log.Info(module, "Visible slide", map[string]interface{}{"name": name, "index": index})
	}
}

type Consumer struct {
	sub      message.Subscriber
	topic    string
	logger   logger.ILogger
	handlers []func(SlideVisible)
}

func NewConsumer(sub message.Subscriber, log logger.ILogger, handlers ...func(SlideVisible)) *Consumer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Consumer{sub: sub, topic: TopicSlideVisible, logger: log, handlers: handlers}
}

// Consume subscribes and processes events on its own goroutine until ctx is done.
func (c *Consumer) Consume(ctx context.Context) error {
	messages, err := c.sub.Subscribe(ctx, c.topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			c.process(msg)
		}
	}()
	return nil
}

func (c *Consumer) process(msg *message.Message) {
	var ev SlideVisible
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		c.logger.Error(module, "Failed to decode event", map[string]interface{}{"error": err.Error(), "uuid": msg.UUID})
		// a malformed payload never gets better on redelivery
		msg.Ack()
		return
	}

	c.logger.Info(module, "Visible slide", map[string]interface{}{
		"session": ev.Session, "name": ev.Name, "index": ev.Index, "uuid": msg.UUID,
	})
	for _, h := range c.handlers {
		h(ev)
	}
	msg.Ack()
}
