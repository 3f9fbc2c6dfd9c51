// Package mirror republishes the dashboard table over MQTT so anything
// on the network can watch the robot live. Each table key becomes a
// topic under the configured prefix with its value as a bare JSON
// document; session metadata is retained at <prefix>/session. Changes
// are coalesced so a hot key publishes at most once per interval, and
// a broker outage degrades to warnings while dirty keys wait for the
// reconnect.
package mirror

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"rover/dashboard"
	"rover/host/config"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Mirror exports one dashboard table to one broker.
type Mirror struct {
	cfg       config.MirrorConfig
	robot     string
	table     *dashboard.Table
	sessionID string
	clientID  string
	started   time.Time

	client mqtt.Client

	mu    sync.Mutex
	dirty map[string]bool

	stop        chan struct{}
	done        chan struct{}
	loopStarted bool
	closeOnce   sync.Once
}

type sessionInfo struct {
	Robot   string `json:"robot"`
	Session string `json:"session"`
	Started string `json:"started"`
}

// New builds a mirror for the table. Nothing is published until Start.
func New(cfg config.MirrorConfig, robot string, table *dashboard.Table) *Mirror {
	sessionID := uuid.NewString()
	return &Mirror{
		cfg:       cfg,
		robot:     robot,
		table:     table,
		sessionID: sessionID,
		clientID:  cfg.Prefix + "-" + sessionID[:8],
		started:   time.Now(),
		dirty:     make(map[string]bool),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start connects to the broker and begins mirroring. An unreachable
// broker is not fatal: paho keeps retrying in the background and the
// mirror catches up once connected.
func (m *Mirror) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.Broker)
	opts.SetClientID(m.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		slog.Info("mirror connected", "broker", m.cfg.Broker, "client_id", m.clientID)
		m.publishSession(c)
		m.markAll()
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		slog.Warn("mirror connection lost, will reconnect", "error", err, "broker", m.cfg.Broker)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		slog.Warn("mirror broker not reachable yet, retrying in background", "broker", m.cfg.Broker)
	} else if err := token.Error(); err != nil {
		return fmt.Errorf("mirror connect: %w", err)
	}

	m.startWith(client)
	return nil
}

// startWith begins mirroring through an already built client.
func (m *Mirror) startWith(client mqtt.Client) {
	m.client = client
	m.table.OnChange(func(key string) { m.markDirty(key) })
	m.loopStarted = true
	go m.loop()
}

// Close flushes pending keys and disconnects.
func (m *Mirror) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)
		if m.loopStarted {
			<-m.done
		}
		if m.client != nil && m.client.IsConnected() {
			m.client.Disconnect(250)
			slog.Info("mirror disconnected")
		}
	})
}

// SessionID identifies this run in the retained session metadata.
func (m *Mirror) SessionID() string {
	return m.sessionID
}

func (m *Mirror) markDirty(key string) {
	m.mu.Lock()
	m.dirty[key] = true
	m.mu.Unlock()
}

func (m *Mirror) markAll() {
	for _, key := range m.table.Keys() {
		m.markDirty(key)
	}
}

func (m *Mirror) loop() {
	defer close(m.done)
	interval := m.cfg.MinInterval()
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			m.flush()
			return
		case <-t.C:
			m.flush()
		}
	}
}

// flush publishes every dirty key once. Keys stay dirty through an
// outage so nothing is lost, only delayed.
func (m *Mirror) flush() {
	if m.client == nil || !m.client.IsConnected() {
		return
	}
	m.mu.Lock()
	if len(m.dirty) == 0 {
		m.mu.Unlock()
		return
	}
	dirty := m.dirty
	m.dirty = make(map[string]bool)
	m.mu.Unlock()

	snap := m.table.Snapshot()
	for key := range dirty {
		value, ok := lookup(snap, key)
		if !ok {
			continue
		}
		payload, err := json.Marshal(value)
		if err != nil {
			slog.Warn("mirror value not serializable", "key", key, "error", err)
			continue
		}
		topic := m.cfg.Prefix + "/" + key
		token := m.client.Publish(topic, byte(m.cfg.QoS), false, payload)
		if !token.WaitTimeout(publishTimeout) {
			slog.Warn("mirror publish timed out", "topic", topic)
		} else if err := token.Error(); err != nil {
			slog.Warn("mirror publish failed", "topic", topic, "error", err)
		}
	}
}

func (m *Mirror) publishSession(client mqtt.Client) {
	payload, err := json.Marshal(sessionInfo{
		Robot:   m.robot,
		Session: m.sessionID,
		Started: m.started.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	token := client.Publish(m.cfg.Prefix+"/session", byte(m.cfg.QoS), true, payload)
	if !token.WaitTimeout(publishTimeout) {
		slog.Warn("mirror session publish timed out")
	}
}

func lookup(snap dashboard.Snapshot, key string) (interface{}, bool) {
	if v, ok := snap.Numbers[key]; ok {
		return v, true
	}
	if v, ok := snap.Strings[key]; ok {
		return v, true
	}
	if v, ok := snap.Bools[key]; ok {
		return v, true
	}
	if v, ok := snap.NumberArrays[key]; ok {
		return v, true
	}
	if v, ok := snap.StringArrays[key]; ok {
		return v, true
	}
	return nil, false
}
