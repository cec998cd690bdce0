package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/alco-lock/internal/config"
	domain "github.com/oshokin/alco-lock/internal/domain/carlock"
)

// mockClient records publishes and subscriptions.
type mockClient struct {
	mu             sync.Mutex
	connected      bool
	connectToken   paho.Token
	publishCalls   []publishCall
	subscribeCalls []subscribeCall
	disconnected   bool
}

type publishCall struct {
	Payload  any
	Topic    string
	QoS      byte
	Retained bool
}

type subscribeCall struct {
	Handler paho.MessageHandler
	Topic   string
	QoS     byte
}

func (m *mockClient) IsConnected() bool { return m.isOpen() }

func (m *mockClient) IsConnectionOpen() bool { return m.isOpen() }

func (m *mockClient) isOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.connected
}

func (m *mockClient) Connect() paho.Token {
	if m.connectToken != nil {
		return m.connectToken
	}

	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()

	return &mockToken{}
}

func (m *mockClient) Disconnect(uint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	m.disconnected = true
}

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload any) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.publishCalls = append(m.publishCalls, publishCall{
		Topic:    topic,
		QoS:      qos,
		Retained: retained,
		Payload:  payload,
	})

	return &mockToken{}
}

func (m *mockClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscribeCalls = append(m.subscribeCalls, subscribeCall{
		Topic:   topic,
		QoS:     qos,
		Handler: callback,
	})

	return &mockToken{}
}

func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &mockToken{}
}

func (m *mockClient) Unsubscribe(...string) paho.Token { return &mockToken{} }

func (m *mockClient) AddRoute(string, paho.MessageHandler) {}

func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

func (m *mockClient) publishes() []publishCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]publishCall(nil), m.publishCalls...)
}

// mockToken completes immediately with err, unless pending is set.
type mockToken struct {
	err     error
	pending bool
}

func (m *mockToken) Wait() bool { return !m.pending }

func (m *mockToken) WaitTimeout(time.Duration) bool { return !m.pending }

func (m *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !m.pending {
		close(ch)
	}

	return ch
}

func (m *mockToken) Error() error { return m.err }

// mockMessage is an inbound message.
type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

// recordingService records executed commands.
type recordingService struct {
	mu       sync.Mutex
	status   *domain.Status
	actors   []*domain.Actor
	commands []domain.Command
}

func (r *recordingService) Status(context.Context) *domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == nil {
		return &domain.Status{}
	}

	return r.status.Clone()
}

func (r *recordingService) Execute(
	_ context.Context,
	actor *domain.Actor,
	cmd domain.Command,
) (*domain.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actors = append(r.actors, actor)
	r.commands = append(r.commands, cmd)

	return &domain.Status{}, nil
}

func testSettings() config.MQTT {
	return config.MQTT{
		BrokerURI:   "tcp://broker.local:1883",
		ClientID:    "alco-lock",
		TopicPrefix: "car/lock",
		Discovery:   true,
	}
}

func newTestBridge(client *mockClient, settings config.MQTT, svc Service) *Bridge {
	return newBridge(context.Background(), client, settings, time.Second, svc)
}

func TestBridge_OnConnect(t *testing.T) {
	t.Parallel()

	t.Run("with discovery", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{connected: true}
		svc := &recordingService{status: &domain.Status{
			AlcoholDetected: true,
			Timestamp:       time.Unix(1700000000, 0),
		}}
		b := newTestBridge(client, testSettings(), svc)

		b.onConnect(client)

		publishes := client.publishes()
		require.Len(t, publishes, 4)
		require.Equal(t, publishCall{
			Topic:    "car/lock/availability",
			QoS:      1,
			Retained: true,
			Payload:  PayloadOnline,
		}, publishes[0])

		require.Equal(t, "homeassistant/binary_sensor/alco-lock/alcohol/config", publishes[1].Topic)
		require.True(t, publishes[1].Retained)

		var sensor map[string]any
		require.NoError(t, json.Unmarshal(publishes[1].Payload.([]byte), &sensor))
		require.Equal(t, "gas", sensor["device_class"])
		require.Equal(t, "car/lock/state", sensor["state_topic"])

		var ignition map[string]any
		require.Equal(t, "homeassistant/switch/alco-lock/ignition/config", publishes[2].Topic)
		require.NoError(t, json.Unmarshal(publishes[2].Payload.([]byte), &ignition))
		require.Equal(t, "car/lock/set", ignition["command_topic"])
		require.Equal(t, "unlock", ignition["payload_on"])
		require.Equal(t, "lock", ignition["payload_off"])

		require.Equal(t, "car/lock/state", publishes[3].Topic)
		require.True(t, publishes[3].Retained)

		var state map[string]any
		require.NoError(t, json.Unmarshal(publishes[3].Payload.([]byte), &state))
		require.Equal(t, true, state["alcohol_detected"])
		require.Equal(t, false, state["relay_active"])
		require.InDelta(t, 1700000000, state["timestamp"], 0)

		require.Len(t, client.subscribeCalls, 1)
		require.Equal(t, "car/lock/set", client.subscribeCalls[0].Topic)
		require.NotNil(t, client.subscribeCalls[0].Handler)
	})

	t.Run("without discovery", func(t *testing.T) {
		t.Parallel()

		settings := testSettings()
		settings.Discovery = false

		client := &mockClient{connected: true}
		b := newTestBridge(client, settings, new(recordingService))

		b.onConnect(client)

		publishes := client.publishes()
		require.Len(t, publishes, 2)
		require.Equal(t, "car/lock/availability", publishes[0].Topic)
		require.Equal(t, "car/lock/state", publishes[1].Topic)
		require.Len(t, client.subscribeCalls, 1)
	})
}

func TestBridge_HandleCommand(t *testing.T) {
	t.Parallel()

	svc := new(recordingService)
	b := newTestBridge(&mockClient{}, testSettings(), svc)

	for _, payload := range []string{" LOCK\n", "unlock", "simulate_on", "explode", ""} {
		b.handleCommand(nil, &mockMessage{topic: "car/lock/set", payload: []byte(payload)})
	}

	require.Equal(t, []domain.Command{domain.CommandLock, domain.CommandUnlock}, svc.commands)
	require.Equal(t, &domain.Actor{Hostname: "broker.local", Username: "mqtt"}, svc.actors[0])
}

func TestBridge_Publish(t *testing.T) {
	t.Parallel()

	status := &domain.Status{
		Timestamp:       time.Unix(1700000000, 0),
		AlcoholDetected: true,
		RelayActive:     false,
	}

	t.Run("not connected", func(t *testing.T) {
		t.Parallel()

		client := new(mockClient)
		b := newTestBridge(client, testSettings(), new(recordingService))

		require.ErrorIs(t, b.Publish(context.Background(), status), errNotConnected)
		require.Empty(t, client.publishes())
	})

	t.Run("retained state document", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{connected: true}
		b := newTestBridge(client, testSettings(), new(recordingService))

		require.NoError(t, b.Publish(context.Background(), status))

		publishes := client.publishes()
		require.Len(t, publishes, 1)
		require.Equal(t, "car/lock/state", publishes[0].Topic)
		require.True(t, publishes[0].Retained)
		require.JSONEq(t,
			`{"alcohol_detected":true,"relay_active":false,"timestamp":1700000000,"simulation":false}`,
			string(publishes[0].Payload.([]byte)))
	})
}

func TestBridge_Close(t *testing.T) {
	t.Parallel()

	client := &mockClient{connected: true}
	b := newTestBridge(client, testSettings(), new(recordingService))

	b.Close(context.Background())

	publishes := client.publishes()
	require.Len(t, publishes, 1)
	require.Equal(t, "car/lock/availability", publishes[0].Topic)
	require.Equal(t, PayloadOffline, publishes[0].Payload)
	require.True(t, client.disconnected)
}

func TestBridge_Connect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		token   paho.Token
		wantErr bool
	}{
		{name: "connected", token: nil},
		{name: "broker pending", token: &mockToken{pending: true}},
		{name: "refused", token: &mockToken{err: errors.New("not authorized")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &mockClient{connectToken: tt.token}
			b := newBridge(context.Background(), client, testSettings(), 20*time.Millisecond, new(recordingService))

			err := b.Connect(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestSessionClientID(t *testing.T) {
	t.Parallel()

	first := sessionClientID("alco-lock")
	second := sessionClientID("alco-lock")

	require.True(t, strings.HasPrefix(first, "alco-lock-"))
	require.Len(t, first, len("alco-lock-")+8)
	require.NotEqual(t, first, second)
}
