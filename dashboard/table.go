// Package dashboard holds the live telemetry table a robot program
// shares with its operator tooling. The table is a flat typed key/value
// store: the scheduler publishes its running set into it, subsystems
// report their holders, and exporters such as the MQTT mirror read it
// back out. All access is safe for concurrent use.
package dashboard

import "sync"

// Table is a typed key/value store with change listeners. The zero
// value is not usable; create tables with New.
type Table struct {
	mu        sync.RWMutex
	numbers   map[string]float64
	strings   map[string]string
	bools     map[string]bool
	numArrays map[string][]float64
	strArrays map[string][]string

	listenerMu sync.Mutex
	listeners  []func(key string)
}

// New returns an empty table.
func New() *Table {
	return &Table{
		numbers:   make(map[string]float64),
		strings:   make(map[string]string),
		bools:     make(map[string]bool),
		numArrays: make(map[string][]float64),
		strArrays: make(map[string][]string),
	}
}

// OnChange registers fn to be called with the key of every write. The
// callback runs on the writer's goroutine, outside the table lock, so
// it may read the table but must not assume the value is still the one
// that triggered it.
func (t *Table) OnChange(fn func(key string)) {
	if fn == nil {
		return
	}
	t.listenerMu.Lock()
	t.listeners = append(t.listeners, fn)
	t.listenerMu.Unlock()
}

func (t *Table) notify(key string) {
	t.listenerMu.Lock()
	fns := append(([]func(string))(nil), t.listeners...)
	t.listenerMu.Unlock()
	for _, fn := range fns {
		fn(key)
	}
}

// SetNumber stores value under key.
func (t *Table) SetNumber(key string, value float64) {
	t.mu.Lock()
	t.numbers[key] = value
	t.mu.Unlock()
	t.notify(key)
}

// Number returns the number stored under key, or 0 when absent.
func (t *Table) Number(key string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.numbers[key]
}

// SetString stores value under key.
func (t *Table) SetString(key, value string) {
	t.mu.Lock()
	t.strings[key] = value
	t.mu.Unlock()
	t.notify(key)
}

// String returns the string stored under key, or "" when absent.
func (t *Table) String(key string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.strings[key]
}

// SetBool stores value under key.
func (t *Table) SetBool(key string, value bool) {
	t.mu.Lock()
	t.bools[key] = value
	t.mu.Unlock()
	t.notify(key)
}

// Bool returns the bool stored under key, or false when absent.
func (t *Table) Bool(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bools[key]
}

// SetNumberArray stores a copy of value under key. A nil value clears
// the entry.
func (t *Table) SetNumberArray(key string, value []float64) {
	t.mu.Lock()
	if value == nil {
		delete(t.numArrays, key)
	} else {
		t.numArrays[key] = append([]float64(nil), value...)
	}
	t.mu.Unlock()
	t.notify(key)
}

// NumberArray returns a copy of the array stored under key, or nil
// when absent.
func (t *Table) NumberArray(key string) []float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.numArrays[key]
	if !ok {
		return nil
	}
	return append([]float64(nil), v...)
}

// SetStringArray stores a copy of value under key. A nil value clears
// the entry.
func (t *Table) SetStringArray(key string, value []string) {
	t.mu.Lock()
	if value == nil {
		delete(t.strArrays, key)
	} else {
		t.strArrays[key] = append([]string(nil), value...)
	}
	t.mu.Unlock()
	t.notify(key)
}

// StringArray returns a copy of the array stored under key, or nil
// when absent.
func (t *Table) StringArray(key string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.strArrays[key]
	if !ok {
		return nil
	}
	return append([]string(nil), v...)
}

// Keys returns every key present in the table, across all types, in no
// particular order.
func (t *Table) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[string]bool)
	var keys []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range t.numbers {
		add(k)
	}
	for k := range t.strings {
		add(k)
	}
	for k := range t.bools {
		add(k)
	}
	for k := range t.numArrays {
		add(k)
	}
	for k := range t.strArrays {
		add(k)
	}
	return keys
}

// Snapshot is a point-in-time copy of a table's contents.
type Snapshot struct {
	Numbers      map[string]float64
	Strings      map[string]string
	Bools        map[string]bool
	NumberArrays map[string][]float64
	StringArrays map[string][]string
}

// Snapshot returns a deep copy of the table taken under one read lock,
// so exporters see a consistent view.
func (t *Table) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := Snapshot{
		Numbers:      make(map[string]float64, len(t.numbers)),
		Strings:      make(map[string]string, len(t.strings)),
		Bools:        make(map[string]bool, len(t.bools)),
		NumberArrays: make(map[string][]float64, len(t.numArrays)),
		StringArrays: make(map[string][]string, len(t.strArrays)),
	}
	for k, v := range t.numbers {
		snap.Numbers[k] = v
	}
	for k, v := range t.strings {
		snap.Strings[k] = v
	}
	for k, v := range t.bools {
		snap.Bools[k] = v
	}
	for k, v := range t.numArrays {
		snap.NumberArrays[k] = append([]float64(nil), v...)
	}
	for k, v := range t.strArrays {
		snap.StringArrays[k] = append([]string(nil), v...)
	}
	return snap
}
