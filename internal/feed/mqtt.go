package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/luki/dhtwatch/internal/config"
)

const (
	eventBuffer = 64

	defaultConnectTimeout = 5 * time.Second
	defaultRetryInterval  = 5 * time.Second
)

// ErrStopped is returned by Subscribe after Unsubscribe.
var ErrStopped = errors.New("feed stopped")

// MQTTOptions locate the broker and the topic that stands for the
// sensor_data path.
type MQTTOptions struct {
	Broker   string
	Port     int
	ClientID string
	Username string
	Password string
	Topic    string

	// ConnectTimeout bounds one connection attempt; RetryInterval is the
	// pause before the next one. Zero means 5s each.
	ConnectTimeout time.Duration
	RetryInterval  time.Duration
}

// OptionsFromConfig maps the environment configuration.
func OptionsFromConfig(cfg config.Config) MQTTOptions {
	return MQTTOptions{
		Broker:   cfg.FeedBroker,
		Port:     cfg.FeedPort,
		ClientID: cfg.FeedClientID,
		Username: cfg.FeedUsername,
		Password: cfg.FeedPassword,
		Topic:    cfg.FeedTopic,
	}
}

// MQTT is a Feed backed by an MQTT broker. The sensor publishes retained
// JSON readings on Topic; the client's connect/connection-lost callbacks
// report link health. The first connection is retried here so that an
// unreachable broker shows up as a link-down event; later reconnects are
// left to paho.
type MQTT struct {
	client mqtt.Client
	opts   MQTTOptions
	logger *slog.Logger

	mu         sync.Mutex
	events     chan Event
	closed     bool
	subscribed bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMQTT configures a paho client for o. Nothing connects until Subscribe.
func NewMQTT(o MQTTOptions, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.Default()
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = defaultRetryInterval
	}
	m := &MQTT{
		opts:   o,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", o.Broker, o.Port))
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(o.ConnectTimeout)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// With a clean session the subscription is gone after every reconnect,
	// so it is (re)established from the connect handler.
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("feed connected", "broker", o.Broker, "port", o.Port)
		m.emit(Event{Kind: KindLink, Connected: true})
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.subscribe(); err != nil {
				m.emit(Event{Kind: KindError, Err: err})
			}
		}()
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("feed connection lost", "error", err)
		m.emit(Event{Kind: KindLink, Connected: false})
	})

	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Debug("feed reconnecting", "broker", o.Broker)
	})

	m.client = mqtt.NewClient(opts)
	return m
}

// Subscribe starts connecting and returns the event channel immediately.
// A failed first attempt arrives as a KindLink event with Connected false;
// attempts continue every RetryInterval until one succeeds.
func (m *MQTT) Subscribe(ctx context.Context) (<-chan Event, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrStopped
	}
	if m.subscribed {
		m.mu.Unlock()
		return nil, fmt.Errorf("feed already subscribed")
	}
	m.subscribed = true
	m.events = make(chan Event, eventBuffer)
	ch := m.events
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.connect(ctx); err != nil {
			m.logger.Debug("feed connect abandoned", "error", err)
		}
	}()
	return ch, nil
}

// connect retries the initial connection until it succeeds, ctx ends or
// Unsubscribe is called. Link-down is reported once per outage.
func (m *MQTT) connect(ctx context.Context) error {
	down := false
	for {
		err := m.attempt(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrStopped) || ctx.Err() != nil {
			return err
		}

		m.logger.Warn("feed connect failed",
			"broker", m.opts.Broker,
			"port", m.opts.Port,
			"error", err,
			"retry_in", m.opts.RetryInterval,
		)
		if !down {
			down = true
			m.emit(Event{Kind: KindLink, Connected: false})
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopCh:
			return ErrStopped
		case <-time.After(m.opts.RetryInterval):
		}
	}
}

// attempt runs one paho Connect. On stop it still waits for the attempt to
// settle so that none of paho's goroutines outlive Unsubscribe.
func (m *MQTT) attempt(ctx context.Context) error {
	select {
	case <-m.stopCh:
		return ErrStopped
	default:
	}

	token := m.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		token.WaitTimeout(m.opts.ConnectTimeout + time.Second)
		return ctx.Err()
	case <-m.stopCh:
		token.WaitTimeout(m.opts.ConnectTimeout + time.Second)
		return ErrStopped
	}
}

func (m *MQTT) subscribe() error {
	topic := m.opts.Topic
	qos := byte(1)

	token := m.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		m.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	m.logger.Info("subscribed to feed", "topic", topic, "qos", qos)
	return nil
}

func (m *MQTT) handleMessage(topic string, payload []byte) {
	m.logger.Debug("feed message", "topic", topic, "size", len(payload))

	ev, err := decodePayload(payload)
	if err != nil {
		m.logger.Warn("failed to parse feed message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}
	if ev.Kind == KindEmpty {
		m.logger.Info("no data found on feed", "topic", topic)
	}
	m.emit(ev)
}

// emit never blocks on data: paho runs callbacks on its own goroutines and
// a slow consumer must not stall the client, so readings that do not fit
// are dropped. Link events carry state the consumer cannot rebuild and wait
// for room until Unsubscribe.
func (m *MQTT) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.events == nil {
		return
	}
	if ev.Kind == KindLink {
		select {
		case m.events <- ev:
		case <-m.stopCh:
		}
		return
	}
	select {
	case m.events <- ev:
	default:
		m.logger.Warn("feed event dropped, consumer too slow", "kind", ev.Kind.String())
	}
}

// Unsubscribe stops the feed, disconnects from the broker and closes the
// event channel. Safe to call more than once.
func (m *MQTT) Unsubscribe() {
	m.stopOnce.Do(func() {
		close(m.stopCh)

		if m.client.IsConnectionOpen() {
			token := m.client.Unsubscribe(m.opts.Topic)
			token.WaitTimeout(2 * time.Second)
		}
		m.client.Disconnect(250)
		m.wg.Wait()

		m.mu.Lock()
		m.closed = true
		if m.events != nil {
			close(m.events)
		}
		m.mu.Unlock()
		m.logger.Info("feed unsubscribed", "topic", m.opts.Topic)
	})
}
