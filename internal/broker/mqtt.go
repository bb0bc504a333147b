package broker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/packets"
	"github.com/eclipse/paho.golang/paho"
	"github.com/rs/zerolog"

	"github.com/coldwatch/coldwatch/internal/ingest"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultKeepAlive      = 60 * time.Second

	// Subscribe with at-least-once delivery.
	subscribeQoS = 1
)

var (
	// ErrSubscribeRejected is returned when the broker refuses the subscription.
	ErrSubscribeRejected = errors.New("subscription rejected by broker")
	// ErrServerDisconnect wraps a DISCONNECT sent by the broker.
	ErrServerDisconnect = errors.New("broker sent disconnect")
)

// Config describes how to reach the broker
type Config struct {
	Host           string
	Port           int
	TLS            bool
	TLSConfig      *tls.Config
	Username       string
	Password       string
	Topic          string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

// Dialer opens MQTT v5 connections with a single QoS 1 subscription.
type Dialer struct {
	cfg    Config
	logger zerolog.Logger
}

// NewDialer creates a new MQTT dialer
func NewDialer(cfg Config, logger zerolog.Logger) *Dialer {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	return &Dialer{
		cfg:    cfg,
		logger: logger.With().Str("component", "broker").Logger(),
	}
}

// Address returns host:port of the broker
func (d *Dialer) Address() string {
	return net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
}

// Dial connects with a clean session and subscribes to the configured topic.
// The whole exchange is bounded by the connect timeout.
func (d *Dialer) Dial(ctx context.Context, clientID string) (ingest.Link, error) {
	dialCtx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()

	d.logger.Info().
		Str("address", d.Address()).
		Str("client_id", clientID).
		Msg("Connecting to MQTT broker")

	conn, err := d.openConn(dialCtx)
	if err != nil {
		return nil, err
	}

	l := newLink(d.logger)
	// Readings are acknowledged by the ingest loop once processed.
	l.client = paho.NewClient(paho.ClientConfig{
		ClientID:                   clientID,
		Conn:                       conn,
		OnPublishReceived:          []func(paho.PublishReceived) (bool, error){l.onPublish},
		EnableManualAcknowledgment: true,
		OnClientError:              l.onClientError,
		OnServerDisconnect:         l.onServerDisconnect,
	})

	connack, err := l.client.Connect(dialCtx, d.connectPacket(clientID))
	if err != nil {
		_ = conn.Close()
		if connack != nil {
			return nil, fmt.Errorf("connect refused (reason code %d): %w", connack.ReasonCode, err)
		}
		return nil, fmt.Errorf("connect: %w", err)
	}

	suback, err := l.client.Subscribe(dialCtx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{
			Topic: d.cfg.Topic,
			QoS:   subscribeQoS,
		}},
	})
	if err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("subscribe %s: %w", d.cfg.Topic, err)
	}
	if len(suback.Reasons) == 0 || suback.Reasons[0] >= 0x80 {
		_ = l.Close()
		return nil, fmt.Errorf("%w: topic %s", ErrSubscribeRejected, d.cfg.Topic)
	}

	d.logger.Info().
		Str("topic", d.cfg.Topic).
		Uint8("granted_qos", suback.Reasons[0]).
		Msg("Subscribed")
	return l, nil
}

func (d *Dialer) connectPacket(clientID string) *paho.Connect {
	return &paho.Connect{
		ClientID:     clientID,
		CleanStart:   true,
		KeepAlive:    uint16(d.cfg.KeepAlive.Seconds()),
		Username:     d.cfg.Username,
		UsernameFlag: d.cfg.Username != "",
		Password:     []byte(d.cfg.Password),
		PasswordFlag: d.cfg.Password != "",
	}
}

func (d *Dialer) openConn(ctx context.Context) (net.Conn, error) {
	if !d.cfg.TLS {
		var nd net.Dialer
		conn, err := nd.DialContext(ctx, "tcp", d.Address())
		if err != nil {
			return nil, fmt.Errorf("opening TCP connection: %w", err)
		}
		return packets.NewThreadSafeConn(conn), nil
	}

	td := tls.Dialer{Config: d.cfg.TLSConfig}
	conn, err := td.DialContext(ctx, "tcp", d.Address())
	if err != nil {
		return nil, fmt.Errorf("opening TLS connection: %w", err)
	}
	return packets.NewThreadSafeConn(conn), nil
}

// link is one paho client bound to the ingest loop.
type link struct {
	client   *paho.Client
	logger   zerolog.Logger
	messages chan ingest.Message
	errs     chan error
	closed   chan struct{}

	closeOnce sync.Once
	closeErr  error
	failOnce  sync.Once
	failed    chan struct{}
}

func newLink(logger zerolog.Logger) *link {
	return &link{
		logger:   logger,
		messages: make(chan ingest.Message),
		errs:     make(chan error, 1),
		closed:   make(chan struct{}),
		failed:   make(chan struct{}),
	}
}

func (l *link) Messages() <-chan ingest.Message { return l.messages }

func (l *link) Errors() <-chan error { return l.errs }

// Close sends DISCONNECT unless the connection already failed.
func (l *link) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
		select {
		case <-l.failed:
			return
		default:
		}
		if l.client != nil {
			l.closeErr = l.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		}
	})
	return l.closeErr
}

// onPublish hands the message to the receive loop and blocks until the loop
// takes it, so at most one reading is off the wire at a time. Nothing is
// acknowledged here; the loop acks after processing.
func (l *link) onPublish(pr paho.PublishReceived) (bool, error) {
	pub := pr.Packet
	msg := ingest.Message{Payload: pub.Payload}
	if pub.QoS > 0 {
		msg.Ack = func() error { return pr.Client.Ack(pub) }
	}

	select {
	case l.messages <- msg:
	case <-l.closed:
		l.logger.Debug().Str("topic", pub.Topic).Msg("Link closed, leaving message unacknowledged")
	}
	return true, nil
}

func (l *link) onClientError(err error) {
	l.fail(fmt.Errorf("client error: %w", err))
}

func (l *link) onServerDisconnect(d *paho.Disconnect) {
	reason := ""
	if d.Properties != nil {
		reason = d.Properties.ReasonString
	}
	l.fail(fmt.Errorf("%w: reason code %d %s", ErrServerDisconnect, d.ReasonCode, reason))
}

// fail reports the first transport error; later ones are dropped.
func (l *link) fail(err error) {
	l.failOnce.Do(func() {
		close(l.failed)
		select {
		case l.errs <- err:
		default:
		}
	})
}
