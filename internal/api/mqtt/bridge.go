package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/oshokin/alco-lock/internal/api/web"
	"github.com/oshokin/alco-lock/internal/config"
	domain "github.com/oshokin/alco-lock/internal/domain/carlock"
	"github.com/oshokin/alco-lock/internal/logger"
)

const (
	// PayloadOnline is published on the availability topic after connecting.
	PayloadOnline = "online"
	// PayloadOffline is published on close and registered as the will.
	PayloadOffline = "offline"

	// actorUsername identifies commands received from the broker.
	actorUsername = "mqtt"
	// disconnectQuiesce is how long Disconnect waits for in-flight work, in ms.
	disconnectQuiesce = 250
)

var (
	// errTimeout is returned when the broker does not acknowledge in time.
	errTimeout = errors.New("mqtt operation timed out")
	// errNotConnected is returned by Publish while the broker is unreachable.
	errNotConnected = errors.New("mqtt client is not connected")
)

// Service abstracts the business operations the bridge depends on.
type Service interface {
	Status(ctx context.Context) *domain.Status
	Execute(ctx context.Context, actor *domain.Actor, cmd domain.Command) (*domain.Status, error)
}

// Bridge connects the lock service to an MQTT broker.
type Bridge struct {
	// ctx carries the bridge logger into paho callbacks.
	ctx context.Context //nolint:containedctx // Callbacks have no context of their own.
	// client is the paho client.
	client paho.Client
	// service executes commands received on the set topic.
	service Service
	// settings holds broker, prefix and discovery settings.
	settings config.MQTT
	// timeout bounds every broker round-trip.
	timeout time.Duration
	// brokerHost is recorded as the actor host of MQTT commands.
	brokerHost string
}

// NewBridge builds a bridge with auto-reconnect and an offline will.
// Call Connect to start it.
func NewBridge(ctx context.Context, settings config.MQTT, timeout time.Duration, service Service) *Bridge {
	b := newBridge(ctx, nil, settings, timeout, service)

	opts := paho.NewClientOptions()
	opts.AddBroker(settings.BrokerURI)
	opts.SetClientID(sessionClientID(settings.ClientID))
	opts.SetUsername(settings.Username)
	opts.SetPassword(settings.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(timeout)
	opts.SetOrderMatters(false)
	opts.SetWill(b.topic(topicAvailability), PayloadOffline, 1, true)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(b.onConnectionLost)

	b.client = paho.NewClient(opts)

	return b
}

// newBridge wires a bridge around an existing client.
func newBridge(
	ctx context.Context,
	client paho.Client,
	settings config.MQTT,
	timeout time.Duration,
	service Service,
) *Bridge {
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}

	brokerHost := settings.BrokerURI
	if u, err := url.Parse(settings.BrokerURI); err == nil && u.Hostname() != "" {
		brokerHost = u.Hostname()
	}

	return &Bridge{
		ctx:        logger.WithName(ctx, "mqtt"),
		client:     client,
		service:    service,
		settings:   settings,
		timeout:    timeout,
		brokerHost: brokerHost,
	}
}

// Connect starts the client. When the broker does not answer within the
// timeout the client keeps retrying in the background and Connect returns nil.
func (b *Bridge) Connect(ctx context.Context) error {
	err := b.wait(ctx, b.client.Connect())

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errTimeout):
		logger.WarnKV(b.ctx, "Broker not reachable yet, retrying in background", "broker", b.settings.BrokerURI)

		return nil
	default:
		return fmt.Errorf("connect to %s: %w", b.settings.BrokerURI, err)
	}
}

// Publish sends status as a retained JSON document on the state topic.
func (b *Bridge) Publish(ctx context.Context, status *domain.Status) error {
	if !b.client.IsConnectionOpen() {
		return errNotConnected
	}

	return b.publishStatus(ctx, b.client, status)
}

// publishStatus sends the retained state document through client.
func (b *Bridge) publishStatus(ctx context.Context, client paho.Client, status *domain.Status) error {
	payload, err := json.Marshal(web.NewStatusResponse(status))
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	if err = b.wait(ctx, client.Publish(b.topic(topicState), 1, true, payload)); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}

	return nil
}

// Close announces the bridge offline and disconnects.
func (b *Bridge) Close(ctx context.Context) {
	if b.client.IsConnectionOpen() {
		token := b.client.Publish(b.topic(topicAvailability), 1, true, PayloadOffline)
		if err := b.wait(ctx, token); err != nil {
			logger.WarnKV(b.ctx, "Failed to publish offline availability", "error", err)
		}
	}

	b.client.Disconnect(disconnectQuiesce)
	logger.Info(b.ctx, "Disconnected from broker")
}

// onConnect runs after every (re)connection.
func (b *Bridge) onConnect(client paho.Client) {
	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	logger.InfoKV(ctx, "Connected to broker", "broker", b.settings.BrokerURI)

	if err := b.wait(ctx, client.Publish(b.topic(topicAvailability), 1, true, PayloadOnline)); err != nil {
		logger.WarnKV(ctx, "Failed to publish availability", "error", err)
	}

	if err := b.wait(ctx, client.Subscribe(b.topic(topicSet), 1, b.handleCommand)); err != nil {
		logger.ErrorKV(ctx, "Failed to subscribe to command topic", "topic", b.topic(topicSet), "error", err)
	}

	if b.settings.Discovery {
		b.advertise(ctx, client)
	}

	// The retained state may be missing or left over from a previous run.
	if err := b.publishStatus(ctx, client, b.service.Status(ctx)); err != nil {
		logger.WarnKV(ctx, "Failed to publish current status", "error", err)
	}
}

func (b *Bridge) onConnectionLost(_ paho.Client, err error) {
	logger.WarnKV(b.ctx, "Connection to broker lost", "error", err)
}

// handleCommand applies lock and unlock payloads from the set topic.
func (b *Bridge) handleCommand(_ paho.Client, message paho.Message) {
	raw := strings.TrimSpace(string(message.Payload()))

	cmd, ok := domain.ParseCommand(raw)
	if _, isRelay := cmd.RelayTarget(); !ok || !isRelay {
		logger.WarnKV(b.ctx, "Ignoring MQTT command", "topic", message.Topic(), "payload", raw)

		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	actor := &domain.Actor{
		Hostname: b.brokerHost,
		Username: actorUsername,
	}

	if _, err := b.service.Execute(ctx, actor, cmd); err != nil {
		logger.WarnKV(ctx, "MQTT command not applied", "command", string(cmd), "error", err)
	}
}

// sessionClientID returns base with a random suffix, unique per process.
func sessionClientID(base string) string {
	return base + "-" + uuid.NewString()[:8]
}

// wait blocks until token completes, ctx ends or the timeout elapses.
func (b *Bridge) wait(ctx context.Context, token paho.Token) error {
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errTimeout
	}
}
