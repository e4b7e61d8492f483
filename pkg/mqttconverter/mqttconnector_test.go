package mqttconverter_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/illmade-knight/go-mqttnorth/pkg/messagepipeline"
	"github.com/illmade-knight/go-mqttnorth/pkg/mqttconverter"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks for Paho MQTT Client ---

type mockToken struct {
	err  error
	done chan struct{}
}

// completedToken returns a token that has already finished with err.
func completedToken(err error) *mockToken {
	ch := make(chan struct{})
	close(ch)
	return &mockToken{err: err, done: ch}
}

// pendingToken returns a token that never completes.
func pendingToken() *mockToken {
	return &mockToken{done: make(chan struct{})}
}

func (m *mockToken) Wait() bool {
	<-m.done
	return true
}
func (m *mockToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-m.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (m *mockToken) Done() <-chan struct{} { return m.done }
func (m *mockToken) Error() error          { return m.err }

type publishedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type mockMqttClient struct {
	mu              sync.Mutex
	options         *mqtt.ClientOptions
	connectToken    mqtt.Token
	publishToken    func(call int) mqtt.Token
	published       []publishedMessage
	disconnectCalls int
}

func (m *mockMqttClient) IsConnected() bool      { return true }
func (m *mockMqttClient) IsConnectionOpen() bool { return true }
func (m *mockMqttClient) Connect() mqtt.Token {
	if m.connectToken != nil {
		return m.connectToken
	}
	return completedToken(nil)
}
func (m *mockMqttClient) Disconnect(quiesce uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectCalls++
}
func (m *mockMqttClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedMessage{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	if m.publishToken != nil {
		return m.publishToken(len(m.published) - 1)
	}
	return completedToken(nil)
}

// Stubs for unused methods to satisfy the interface.
func (m *mockMqttClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return completedToken(nil)
}
func (m *mockMqttClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return completedToken(nil)
}
func (m *mockMqttClient) Unsubscribe(topics ...string) mqtt.Token          { return completedToken(nil) }
func (m *mockMqttClient) AddRoute(topic string, callback mqtt.MessageHandler) {}
func (m *mockMqttClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

func newTestConnector(t *testing.T, clients *[]*mockMqttClient, build func() *mockMqttClient) *mqttconverter.PahoConnector {
	t.Helper()
	cfg := mqttconverter.DefaultMQTTClientConfig()
	cfg.BrokerURL = "tcp://localhost:1883"
	cfg.ConnectTimeout = 200 * time.Millisecond
	cfg.PublishTimeout = 200 * time.Millisecond
	factory := func(opts *mqtt.ClientOptions) mqtt.Client {
		c := build()
		c.options = opts
		*clients = append(*clients, c)
		return c
	}
	connector, err := mqttconverter.NewPahoConnector(cfg, factory, zerolog.Nop())
	require.NoError(t, err)
	return connector
}

// --- Test Cases ---

func TestNewPahoConnector_RequiresBrokerURL(t *testing.T) {
	_, err := mqttconverter.NewPahoConnector(&mqttconverter.MQTTClientConfig{}, nil, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker URL is required")
}

func TestPahoConnector_ConnectPublishClose(t *testing.T) {
	var clients []*mockMqttClient
	connector := newTestConnector(t, &clients, func() *mockMqttClient { return &mockMqttClient{} })

	session, err := connector.Connect(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 1)

	err = session.Publish(context.Background(), "Fledge/pump", []byte(`{"id":1}`), 2)
	require.NoError(t, err)
	require.NoError(t, session.Close())
	require.NoError(t, session.Close(), "Close should be idempotent")

	client := clients[0]
	require.Len(t, client.published, 1)
	assert.Equal(t, "Fledge/pump", client.published[0].topic)
	assert.Equal(t, byte(2), client.published[0].qos)
	assert.False(t, client.published[0].retained, "messages must never be retained")
	assert.JSONEq(t, `{"id":1}`, string(client.published[0].payload))
	assert.Equal(t, 1, client.disconnectCalls)

	// The session client is single-use and must not reconnect on its own.
	assert.False(t, client.options.AutoReconnect)
	assert.False(t, client.options.ConnectRetry)
	assert.True(t, strings.HasPrefix(client.options.ClientID, "mqtt-north-"))
}

func TestPahoConnector_EachConnectCreatesNewClient(t *testing.T) {
	var clients []*mockMqttClient
	connector := newTestConnector(t, &clients, func() *mockMqttClient { return &mockMqttClient{} })

	for i := 0; i < 2; i++ {
		session, err := connector.Connect(context.Background())
		require.NoError(t, err)
		require.NoError(t, session.Close())
	}
	require.Len(t, clients, 2)
	assert.NotEqual(t, clients[0].options.ClientID, clients[1].options.ClientID)
}

func TestPahoConnector_ConnectFailures(t *testing.T) {
	t.Run("Broker refuses connection", func(t *testing.T) {
		var clients []*mockMqttClient
		connector := newTestConnector(t, &clients, func() *mockMqttClient {
			return &mockMqttClient{connectToken: completedToken(errors.New("connection refused"))}
		})

		session, err := connector.Connect(context.Background())
		require.Error(t, err)
		assert.Nil(t, session)

		var connErr *messagepipeline.ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, "tcp://localhost:1883", connErr.Broker)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("Handshake times out", func(t *testing.T) {
		var clients []*mockMqttClient
		connector := newTestConnector(t, &clients, func() *mockMqttClient {
			return &mockMqttClient{connectToken: pendingToken()}
		})

		_, err := connector.Connect(context.Background())
		var connErr *messagepipeline.ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Contains(t, err.Error(), "no response from broker")
		require.Len(t, clients, 1)
		assert.Equal(t, 1, clients[0].disconnectCalls, "abandoned client must be disconnected")
	})

	t.Run("Context cancelled while connecting", func(t *testing.T) {
		var clients []*mockMqttClient
		connector := newTestConnector(t, &clients, func() *mockMqttClient {
			return &mockMqttClient{connectToken: pendingToken()}
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := connector.Connect(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPahoSession_PublishFailures(t *testing.T) {
	t.Run("Publish error is returned", func(t *testing.T) {
		var clients []*mockMqttClient
		connector := newTestConnector(t, &clients, func() *mockMqttClient {
			return &mockMqttClient{publishToken: func(int) mqtt.Token { return completedToken(errors.New("not connected")) }}
		})
		session, err := connector.Connect(context.Background())
		require.NoError(t, err)
		t.Cleanup(func() { _ = session.Close() })

		err = session.Publish(context.Background(), "t", []byte("x"), 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not connected")
	})

	t.Run("Publish times out", func(t *testing.T) {
		var clients []*mockMqttClient
		connector := newTestConnector(t, &clients, func() *mockMqttClient {
			return &mockMqttClient{publishToken: func(int) mqtt.Token { return pendingToken() }}
		})
		session, err := connector.Connect(context.Background())
		require.NoError(t, err)
		t.Cleanup(func() { _ = session.Close() })

		err = session.Publish(context.Background(), "t", []byte("x"), 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no response from broker")
	})
}
