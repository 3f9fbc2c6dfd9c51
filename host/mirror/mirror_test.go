package mirror

import (
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"rover/dashboard"
	"rover/host/config"
)

type fakeToken struct{}

func (fakeToken) Wait() bool                     { return true }
func (fakeToken) WaitTimeout(time.Duration) bool { return true }
func (fakeToken) Error() error                   { return nil }
func (fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type pub struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

type fakeClient struct {
	mu          sync.Mutex
	connected   bool
	pubs        []pub
	disconnects int
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return fakeToken{}
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	c.connected = false
	c.disconnects++
	c.mu.Unlock()
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	var body string
	switch p := payload.(type) {
	case []byte:
		body = string(p)
	case string:
		body = p
	}
	c.pubs = append(c.pubs, pub{topic, qos, retained, body})
	return fakeToken{}
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token { return fakeToken{} }

func (c *fakeClient) AddRoute(topic string, callback mqtt.MessageHandler) {}

func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func (c *fakeClient) published() []pub {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]pub(nil), c.pubs...)
}

// quiet interval keeps the loop from flushing on its own so tests can
// drive flush directly.
func newTestMirror(connected bool) (*Mirror, *fakeClient, *dashboard.Table) {
	cfg := config.MirrorConfig{Enabled: true, Broker: "tcp://unused", Prefix: "bot", QoS: 1, MinIntervalMs: 3600000}
	table := dashboard.New()
	m := New(cfg, "simbot", table)
	client := &fakeClient{connected: connected}
	m.startWith(client)
	return m, client, table
}

func findPub(pubs []pub, topic string) (pub, bool) {
	for _, p := range pubs {
		if p.topic == topic {
			return p, true
		}
	}
	return pub{}, false
}

func TestFlushPublishesJSONValues(t *testing.T) {
	m, client, table := newTestMirror(true)
	defer m.Close()

	table.SetNumber("Speed", 3.5)
	table.SetString("Mode", "auto")
	table.SetBool("Enabled", true)
	table.SetNumberArray("Ids", []float64{1, 2})
	table.SetStringArray("Names", []string{"Drive", "Turn"})
	m.flush()

	pubs := client.published()
	if len(pubs) != 5 {
		t.Fatalf("Expected 5 publishes, got %d: %v", len(pubs), pubs)
	}
	want := map[string]string{
		"bot/Speed":   "3.5",
		"bot/Mode":    `"auto"`,
		"bot/Enabled": "true",
		"bot/Ids":     "[1,2]",
		"bot/Names":   `["Drive","Turn"]`,
	}
	for topic, body := range want {
		p, ok := findPub(pubs, topic)
		if !ok {
			t.Errorf("Expected a publish on %s", topic)
			continue
		}
		if p.payload != body {
			t.Errorf("%s: expected payload %s, got %s", topic, body, p.payload)
		}
		if p.qos != 1 {
			t.Errorf("%s: expected qos 1, got %d", topic, p.qos)
		}
		if p.retained {
			t.Errorf("%s: expected non-retained publish", topic)
		}
	}
}

func TestFlushCoalescesRepeatedChanges(t *testing.T) {
	m, client, table := newTestMirror(true)
	defer m.Close()

	table.SetNumber("Speed", 1)
	table.SetNumber("Speed", 2)
	table.SetNumber("Speed", 3)
	m.flush()

	pubs := client.published()
	if len(pubs) != 1 {
		t.Fatalf("Expected 1 publish, got %d", len(pubs))
	}
	if pubs[0].payload != "3" {
		t.Errorf("Expected latest value 3, got %s", pubs[0].payload)
	}

	m.flush()
	if got := len(client.published()); got != 1 {
		t.Errorf("Expected no republish without changes, got %d publishes", got)
	}
}

func TestOutageKeepsKeysDirty(t *testing.T) {
	m, client, table := newTestMirror(false)
	defer m.Close()

	table.SetNumber("Speed", 9)
	m.flush()
	if got := len(client.published()); got != 0 {
		t.Fatalf("Expected no publishes while disconnected, got %d", got)
	}

	client.Connect()
	m.flush()
	pubs := client.published()
	if len(pubs) != 1 || pubs[0].payload != "9" {
		t.Fatalf("Expected the held value after reconnect, got %v", pubs)
	}
}

func TestUnknownDirtyKeyIsSkipped(t *testing.T) {
	m, client, _ := newTestMirror(true)
	defer m.Close()

	m.markDirty("NeverSet")
	m.flush()
	if got := len(client.published()); got != 0 {
		t.Errorf("Expected no publishes for an unknown key, got %d", got)
	}
}

func TestSessionMetadataRetained(t *testing.T) {
	m, client, _ := newTestMirror(true)
	defer m.Close()

	m.publishSession(client)
	pubs := client.published()
	if len(pubs) != 1 {
		t.Fatalf("Expected 1 publish, got %d", len(pubs))
	}
	p := pubs[0]
	if p.topic != "bot/session" {
		t.Errorf("Expected topic bot/session, got %s", p.topic)
	}
	if !p.retained {
		t.Error("Expected the session record to be retained")
	}
	if !strings.Contains(p.payload, `"robot":"simbot"`) {
		t.Errorf("Expected robot name in session payload, got %s", p.payload)
	}
	if !strings.Contains(p.payload, m.SessionID()) {
		t.Errorf("Expected session id in payload, got %s", p.payload)
	}
}

func TestLoopPublishesAndCloseDisconnects(t *testing.T) {
	cfg := config.MirrorConfig{Enabled: true, Broker: "tcp://unused", Prefix: "bot", MinIntervalMs: 5}
	table := dashboard.New()
	m := New(cfg, "simbot", table)
	client := &fakeClient{connected: true}
	m.startWith(client)

	table.SetNumber("Heading", 42)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := findPub(client.published(), "bot/Heading"); ok {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if _, ok := findPub(client.published(), "bot/Heading"); !ok {
		t.Fatal("Expected the loop to publish the change")
	}

	m.Close()
	m.Close()
	client.mu.Lock()
	disconnects := client.disconnects
	client.mu.Unlock()
	if disconnects != 1 {
		t.Errorf("Expected exactly one disconnect, got %d", disconnects)
	}
}
