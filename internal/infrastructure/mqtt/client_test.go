package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/comfortclick-bridge/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "comfortclick-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		StatusTopic: "comfortclick-test/status",
	}
}

// connectOrSkip connects to a local broker, skipping when none is running.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	client, err := Connect(testConfig())
	if err != nil {
		t.Skipf("no MQTT broker at 127.0.0.1:1883: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "bridge", Password: "secret"}

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "comfortclick-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if !opts.CleanSession || !opts.AutoReconnect {
		t.Error("expected clean session with auto-reconnect")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS configured for plain tcp")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)
	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS minimum version not set")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, testConfig())

	if !opts.WillEnabled || !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will = enabled:%v retained:%v qos:%d", opts.WillEnabled, opts.WillRetained, opts.WillQos)
	}
	if opts.WillTopic != "comfortclick-test/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	var p StatusPayload
	if err := json.Unmarshal(opts.WillPayload, &p); err != nil {
		t.Fatal(err)
	}
	if p.Status != StatusOffline || p.Reason != "unexpected_disconnect" || p.ClientID != "comfortclick-test" {
		t.Errorf("will payload = %+v", p)
	}

	cfg := testConfig()
	cfg.StatusTopic = ""
	bare := buildClientOptions(cfg)
	configureLWT(bare, cfg)
	if bare.WillEnabled {
		t.Error("will set without a status topic")
	}
}

func TestStatusPayloads(t *testing.T) {
	var online, offline StatusPayload
	if err := json.Unmarshal([]byte(buildOnlinePayload("c1")), &online); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(buildOfflinePayload("c1")), &offline); err != nil {
		t.Fatal(err)
	}
	if online.Status != StatusOnline || online.Reason != "" {
		t.Errorf("online = %+v", online)
	}
	if offline.Status != StatusOffline || offline.Reason != "graceful_shutdown" {
		t.Errorf("offline = %+v", offline)
	}
	if _, err := time.Parse(time.RFC3339, online.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", online.Timestamp, err)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{cfg: testConfig()}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"invalid qos", "a/b", nil, 3, ErrInvalidQoS},
		{"oversized payload", "a/b", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "a/b", []byte("x"), 1, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := &Client{cfg: testConfig()}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: %v", err)
	}
	if err := c.Subscribe("a/#", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: %v", err)
	}
	if err := c.Subscribe("a/#", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: %v", err)
	}
	if err := c.Subscribe("a/#", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: %v", err)
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("unsubscribe empty: %v", err)
	}
	if c.SubscriptionCount() != 0 || c.HasSubscription("a/#") {
		t.Error("failed subscribe was tracked")
	}
}

func TestCloseAndHealthCheck_NoConnection(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := c.HealthCheck(t.Context()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true for a client that never connected")
	}
}

func TestWrapHandler_RecoversPanicsAndLogsErrors(t *testing.T) {
	log := &recordingLogger{}
	c := &Client{}
	c.SetLogger(log)
	msg := fakeMessage{topic: "comfortclick/lock/door/set", payload: []byte("UNLOCK")}

	c.wrapHandler(func(string, []byte) error { panic("boom") })(nil, msg)
	c.wrapHandler(func(string, []byte) error { return errors.New("bad payload") })(nil, msg)

	var got string
	c.wrapHandler(func(_ string, payload []byte) error {
		got = string(payload)
		return nil
	})(nil, msg)

	if got != "UNLOCK" {
		t.Errorf("payload = %q", got)
	}
	if len(log.errors) != 1 || len(log.warns) != 1 {
		t.Errorf("errors=%v warns=%v", log.errors, log.warns)
	}
}

func TestCallbacks(t *testing.T) {
	c := &Client{}
	var connected, lost bool
	c.SetOnConnect(func() { connected = true })
	c.SetOnDisconnect(func(error) { lost = true })

	c.handleDisconnect(errors.New("eof"))
	if !lost {
		t.Error("disconnect callback not called")
	}
	c.callbackMu.RLock()
	cb := c.onConnect
	c.callbackMu.RUnlock()
	cb()
	if !connected {
		t.Error("connect callback not stored")
	}
}

func TestTopics(t *testing.T) {
	topics := NewTopics("comfortclick/", "")

	tests := []struct {
		got, want string
	}{
		{topics.Status(), "comfortclick/status"},
		{topics.PanelAvailability(), "comfortclick/panel/availability"},
		{topics.Discovery("lock", "front"), "homeassistant/lock/front/config"},
		{topics.State("fan", "f1"), "comfortclick/fan/f1/state"},
		{topics.Attribute("climate", "r1", "action"), "comfortclick/climate/r1/action"},
		{topics.Command("select", "s1"), "comfortclick/select/s1/set"},
		{topics.AttributeCommand("climate", "r1", "target_temperature"), "comfortclick/climate/r1/target_temperature/set"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}

	filters := topics.CommandFilters()
	if len(filters) != 2 || filters[0] != "comfortclick/+/+/set" || filters[1] != "comfortclick/+/+/+/set" {
		t.Errorf("CommandFilters() = %v", filters)
	}
}

func TestTopics_ParseCommand(t *testing.T) {
	topics := NewTopics("comfortclick", "homeassistant")

	tests := []struct {
		topic                     string
		component, objectID, attr string
		ok                        bool
	}{
		{"comfortclick/lock/front/set", "lock", "front", "", true},
		{"comfortclick/climate/r1/target_temperature/set", "climate", "r1", "target_temperature", true},
		{"comfortclick/lock/front/state", "", "", "", false},
		{"other/lock/front/set", "", "", "", false},
		{"comfortclick/set", "", "", "", false},
		{"comfortclick/a/b/c/d/set", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			c, o, a, ok := topics.ParseCommand(tt.topic)
			if c != tt.component || o != tt.objectID || a != tt.attr || ok != tt.ok {
				t.Errorf("ParseCommand() = %q %q %q %v", c, o, a, ok)
			}
		})
	}
}

func TestObjectID(t *testing.T) {
	tests := map[string]string{
		"room-1-Heat.01":    "room-1-heat_01",
		`Floor\Door 1`:      "floor_door_1",
		"already_safe-id_9": "already_safe-id_9",
		"":                  "",
	}
	for in, want := range tests {
		if got := ObjectID(in); got != want {
			t.Errorf("ObjectID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBroker_PublishSubscribeRoundtrip(t *testing.T) {
	client := connectOrSkip(t)

	topic := fmt.Sprintf("comfortclick-test/roundtrip/%d", time.Now().UnixNano())
	received := make(chan string, 1)
	err := client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topic) {
		t.Error("subscription not tracked")
	}

	if err := client.Publish(topic, []byte("hello"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	select {
	case got := <-received:
		if got != "hello" {
			t.Errorf("payload = %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}

	if err := client.Unsubscribe(topic); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}
