package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/servicedesk-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "servicedesk-test",
		},
		QoS:         1,
		TopicPrefix: "servicedesk",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

type fakeMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeToken struct {
	pahomqtt.Token
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakePaho records publishes instead of talking to a broker.
type fakePaho struct {
	pahomqtt.Client

	mu             sync.Mutex
	connected      bool
	published      []fakeMessage
	publishErr     error
	publishTimeout bool
	disconnected   bool
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload any) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	var b []byte
	switch p := payload.(type) {
	case string:
		b = []byte(p)
	case []byte:
		b = p
	default:
		b = []byte(fmt.Sprint(p))
	}
	f.published = append(f.published, fakeMessage{topic: topic, qos: qos, retained: retained, payload: b})
	return &fakeToken{err: f.publishErr, timeout: f.publishTimeout}
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	f.connected = false
}

func (f *fakePaho) messages() []fakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeMessage(nil), f.published...)
}

func connectedClient() (*Client, *fakePaho) {
	pc := &fakePaho{connected: true}
	return newClient(pc, testConfig(), true), pc
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Info(msg string, _ ...any) { l.add("INFO " + msg) }
func (l *recordingLogger) Warn(msg string, _ ...any) { l.add("WARN " + msg) }

func (l *recordingLogger) add(s string) {
	l.mu.Lock()
	l.lines = append(l.lines, s)
	l.mu.Unlock()
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 1 // nothing listens here

	_, err := Connect(cfg)
	if err == nil {
		t.Fatal("Connect() expected error for unreachable broker")
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose(t *testing.T) {
	client, pc := connectedClient()

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
	if !pc.disconnected {
		t.Error("Close() did not disconnect")
	}

	msgs := pc.messages()
	if len(msgs) != 1 {
		t.Fatalf("Close() published %d messages, want 1", len(msgs))
	}
	if msgs[0].topic != "servicedesk/system/status" || !msgs[0].retained {
		t.Errorf("Close() published %+v, want retained status", msgs[0])
	}

	var status statusMessage
	if err := json.Unmarshal(msgs[0].payload, &status); err != nil {
		t.Fatalf("status payload not JSON: %v", err)
	}
	if status.Status != "offline" || status.Reason != "graceful_shutdown" || status.ClientID != "servicedesk-test" {
		t.Errorf("status = %+v", status)
	}
}

func TestClose_Disconnected(t *testing.T) {
	pc := &fakePaho{}
	client := newClient(pc, testConfig(), false)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(pc.messages()) != 0 {
		t.Error("Close() published status while disconnected")
	}
	if !pc.disconnected {
		t.Error("Close() did not disconnect")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() on nil client = true")
	}
}

func TestHandleConnect(t *testing.T) {
	pc := &fakePaho{connected: true}
	client := newClient(pc, testConfig(), false)
	logger := &recordingLogger{}
	client.SetLogger(logger)

	client.handleConnect()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after handleConnect")
	}
	msgs := pc.messages()
	if len(msgs) != 1 {
		t.Fatalf("handleConnect published %d messages, want 1", len(msgs))
	}
	if !strings.Contains(string(msgs[0].payload), `"status":"online"`) {
		t.Errorf("payload = %s, want online status", msgs[0].payload)
	}
	if strings.Contains(string(msgs[0].payload), "reason") {
		t.Errorf("online payload carries a reason: %s", msgs[0].payload)
	}
	if len(logger.lines) != 1 || logger.lines[0] != "INFO mqtt connected" {
		t.Errorf("log lines = %v", logger.lines)
	}
}

func TestHandleDisconnect(t *testing.T) {
	client, _ := connectedClient()
	logger := &recordingLogger{}
	client.SetLogger(logger)

	client.handleDisconnect(errors.New("broker went away"))

	if client.IsConnected() {
		t.Error("IsConnected() = true after handleDisconnect")
	}
	if len(logger.lines) != 1 || logger.lines[0] != "WARN mqtt connection lost" {
		t.Errorf("log lines = %v", logger.lines)
	}
}

// =============================================================================
// HealthCheck Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	client, _ := connectedClient()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client, _ := connectedClient()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.HealthCheck(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client, pc := connectedClient()
	pc.mu.Lock()
	pc.connected = false
	pc.mu.Unlock()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublish(t *testing.T) {
	client, pc := connectedClient()

	topic := client.Topics().Audit("login")
	if err := client.Publish(topic, []byte(`{"action":"login"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := pc.messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	got := msgs[0]
	if got.topic != "servicedesk/audit/login" || got.qos != 1 || got.retained {
		t.Errorf("published %+v", got)
	}
	if string(got.payload) != `{"action":"login"}` {
		t.Errorf("payload = %s", got.payload)
	}
}

func TestPublishRetained(t *testing.T) {
	client, pc := connectedClient()

	if err := client.PublishRetained("servicedesk/system/status", []byte(`{}`)); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}

	got := pc.messages()[0]
	if !got.retained || got.qos != 1 {
		t.Errorf("PublishRetained() sent qos=%d retained=%v, want 1/true", got.qos, got.retained)
	}
}

func TestPublishErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*fakePaho)
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", nil, "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", nil, "t", []byte("x"), 3, ErrInvalidQoS},
		{"payload too large", nil, "t", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", func(f *fakePaho) { f.connected = false }, "t", []byte("x"), 1, ErrNotConnected},
		{"broker error", func(f *fakePaho) { f.publishErr = errors.New("denied") }, "t", []byte("x"), 1, ErrPublishFailed},
		{"timeout", func(f *fakePaho) { f.publishTimeout = true }, "t", []byte("x"), 1, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, pc := connectedClient()
			if tt.setup != nil {
				tt.setup(pc)
			}

			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishNilPayload(t *testing.T) {
	client, _ := connectedClient()

	if err := client.Publish("servicedesk/test", nil, 0, false); err != nil {
		t.Errorf("Publish() with nil payload error = %v", err)
	}
}

// =============================================================================
// Options and Topic Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "desk", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "servicedesk-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "desk" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Errorf("AutoReconnect = %v, CleanSession = %v, want true/true", opts.AutoReconnect, opts.CleanSession)
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig != nil && len(opts.TLSConfig.Certificates) > 0 {
		t.Error("TLS configured without broker.tls")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %s, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLSConfig = %+v, want MinVersion TLS 1.2", opts.TLSConfig)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := pahomqtt.NewClientOptions()
	configureLWT(opts, Topics{Prefix: "desk"}, "core-1")

	if !opts.WillEnabled || !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will enabled=%v retained=%v qos=%d", opts.WillEnabled, opts.WillRetained, opts.WillQos)
	}
	if opts.WillTopic != "desk/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var status statusMessage
	if err := json.Unmarshal(opts.WillPayload, &status); err != nil {
		t.Fatalf("will payload not JSON: %v", err)
	}
	if status.Status != "offline" || status.Reason != "unexpected_disconnect" || status.ClientID != "core-1" {
		t.Errorf("will status = %+v", status)
	}
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"audit", Topics{Prefix: "servicedesk"}.Audit("login"), "servicedesk/audit/login"},
		{"audit custom prefix", Topics{Prefix: "acme/desk"}.Audit("logout"), "acme/desk/audit/logout"},
		{"prefix slashes trimmed", Topics{Prefix: "/acme/"}.Audit("register"), "acme/audit/register"},
		{"zero value prefix", Topics{}.Audit("refresh"), "servicedesk/audit/refresh"},
		{"all audit", Topics{}.AllAudit(), "servicedesk/audit/+"},
		{"system status", Topics{Prefix: "desk"}.SystemStatus(), "desk/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
