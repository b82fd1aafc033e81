// Package mqttbridge connects the broker to the board: it subscribes to
// the command topics, dispatches them to the scheduler and state manager,
// and stores snapshots as retained messages.
package mqttbridge

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jfryman/vestaboard-mqtt/internal/board"
	"github.com/jfryman/vestaboard-mqtt/internal/config"
	"github.com/jfryman/vestaboard-mqtt/internal/scheduler"
	"github.com/jfryman/vestaboard-mqtt/internal/store"
)

const handlerTimeout = 60 * time.Second

// Bridge owns the MQTT connection and routes command topics into the
// scheduler and the save-state manager.
type Bridge struct {
	cfg    config.Config
	prefix string
	qos    byte

	client mqtt.Client
	board  board.DisplayPort
	states *store.Manager
	sched  *scheduler.Scheduler
	log    zerolog.Logger
}

func New(cfg config.Config, display board.DisplayPort, logger zerolog.Logger) (*Bridge, error) {
	b := &Bridge{
		cfg:    cfg,
		prefix: strings.TrimRight(cfg.MQTT.TopicPrefix, "/"),
		qos:    byte(cfg.MQTT.QoS),
		board:  display,
		log:    logger,
	}

	opts, err := b.clientOptions()
	if err != nil {
		return nil, err
	}
	b.client = mqtt.NewClient(opts)

	retained := newRetainedStore(b.client, b.prefix, 1)
	b.states = store.NewManager(retained, logger)
	b.sched = scheduler.New(scheduler.Config{
		Display: display,
		States:  b.states,
		Logger:  logger,
	})
	return b, nil
}

func (b *Bridge) clientOptions() (*mqtt.ClientOptions, error) {
	m := b.cfg.MQTT

	scheme := "tcp"
	if m.TLS.Enabled {
		scheme = "ssl"
	}

	clientID := m.ClientID
	if clientID == "" {
		clientID = "vestaboard-mqtt-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, m.Host, m.Port)).
		SetClientID(clientID).
		SetCleanSession(m.CleanSession).
		SetKeepAlive(time.Duration(m.Keepalive) * time.Second).
		SetAutoReconnect(true).
		// Handlers block on board I/O and the retained store does a
		// subscribe-read inside handler calls, so delivery must not be
		// serialized through a single router goroutine.
		SetOrderMatters(false)

	if m.Username != "" {
		opts.SetUsername(m.Username)
		opts.SetPassword(m.Password)
	}

	if m.TLS.Enabled {
		tlsCfg, err := newTLSConfig(m.TLS)
		if err != nil {
			return nil, fmt.Errorf("configuring TLS: %w", err)
		}
		opts.SetTLSConfig(tlsCfg)
		b.log.Info().Msg("TLS configured for MQTT connection")
		if m.TLS.Insecure {
			b.log.Warn().Msg("TLS certificate verification DISABLED")
		}
	}

	if m.LWT.Topic != "" {
		payload := m.LWT.Payload
		if payload == "" {
			payload = "offline"
		}
		opts.SetWill(m.LWT.Topic, payload, byte(m.LWT.QoS), m.LWT.Retain)
		b.log.Info().Str("topic", m.LWT.Topic).Msg("last will configured")
	}

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		b.log.Info().Str("client_id", clientID).Msg("connected to MQTT broker")
		connectedGauge.Set(1)
		b.subscribe(c)
		if m.LWT.Topic != "" {
			c.Publish(m.LWT.Topic, byte(m.LWT.QoS), m.LWT.Retain, "online")
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		connectedGauge.Set(0)
		b.log.Warn().Err(err).Msg("lost connection to MQTT broker")
	})

	return opts, nil
}

func newTLSConfig(cfg config.TLS) (*tls.Config, error) {
	tlsCfg := &tls.Config{InsecureSkipVerify: cfg.Insecure}
	if cfg.CACerts != "" {
		pem, err := os.ReadFile(cfg.CACerts)
		if err != nil {
			return nil, fmt.Errorf("reading CA certs: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CACerts)
		}
		tlsCfg.RootCAs = pool
	}
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// Topic returns the full topic for a suffix under the configured prefix.
func (b *Bridge) Topic(suffix string) string {
	return b.prefix + "/" + suffix
}

func (b *Bridge) subscribe(c mqtt.Client) {
	for _, suffix := range subscriptions {
		topic := b.Topic(suffix)
		token := c.Subscribe(topic, b.qos, b.onMessage)
		if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
			b.log.Error().Err(token.Error()).Str("topic", topic).Msg("subscribe failed")
			continue
		}
		b.log.Debug().Str("topic", topic).Uint8("qos", b.qos).Msg("subscribed")
	}
}

// Start connects to the broker. Subscriptions happen in the on-connect
// handler so they are re-established after a reconnect.
func (b *Bridge) Start(ctx context.Context) error {
	b.log.Info().
		Str("host", b.cfg.MQTT.Host).
		Int("port", b.cfg.MQTT.Port).
		Str("topic_prefix", b.prefix).
		Msg("connecting to MQTT broker")
	return waitToken(ctx, b.client.Connect())
}

// Stop cancels all active timers and disconnects cleanly, publishing the
// offline status first so the will payload is not the only signal.
func (b *Bridge) Stop() {
	b.sched.CancelAll()
	if m := b.cfg.MQTT; m.LWT.Topic != "" && b.client.IsConnected() {
		payload := m.LWT.Payload
		if payload == "" {
			payload = "offline"
		}
		b.client.Publish(m.LWT.Topic, byte(m.LWT.QoS), m.LWT.Retain, payload).WaitTimeout(2 * time.Second)
	}
	b.client.Disconnect(250)
	connectedGauge.Set(0)
	b.log.Info().Msg("MQTT bridge stopped")
}

// Connected reports broker connectivity, for the readiness probe.
func (b *Bridge) Connected() bool {
	return b.client != nil && b.client.IsConnectionOpen()
}

// ActiveTimers returns the number of scheduled timers, for /status.
func (b *Bridge) ActiveTimers() int { return b.sched.ActiveCount() }

// Scheduler exposes the scheduler for tests and the HTTP surface.
func (b *Bridge) Scheduler() *scheduler.Scheduler { return b.sched }

// onMessage routes an inbound command to its handler.
func (b *Bridge) onMessage(_ mqtt.Client, m mqtt.Message) {
	topic := m.Topic()
	suffix, ok := strings.CutPrefix(topic, b.prefix+"/")
	if !ok {
		b.log.Warn().Str("topic", topic).Msg("message on unexpected topic")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	b.route(ctx, suffix, m.Payload())
}

func (b *Bridge) route(ctx context.Context, suffix string, payload []byte) {
	switch {
	case suffix == topicMessage:
		observeHandled("message", b.handleMessage(ctx, payload))
	case suffix == topicTimedMessage:
		observeHandled("timed-message", b.handleTimedMessage(ctx, payload))
	case suffix == topicListTimers:
		observeHandled("list-timers", b.handleListTimers(payload))
	case strings.HasPrefix(suffix, "save/"):
		observeHandled("save", b.handleSave(ctx, strings.TrimPrefix(suffix, "save/")))
	case strings.HasPrefix(suffix, "restore/"):
		observeHandled("restore", b.handleRestore(ctx, strings.TrimPrefix(suffix, "restore/")))
	case strings.HasPrefix(suffix, "delete/"):
		observeHandled("delete", b.handleDelete(ctx, strings.TrimPrefix(suffix, "delete/")))
	case strings.HasPrefix(suffix, "cancel-timer/"):
		observeHandled("cancel-timer", b.handleCancelTimer(strings.TrimPrefix(suffix, "cancel-timer/")))
	default:
		b.log.Warn().Str("suffix", suffix).Msg("unknown topic suffix")
	}
}
