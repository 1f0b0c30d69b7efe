// Package cache holds the engine's memo tables.
//
// Weak memos are keyed by node identity and drop entries once the key is
// garbage collected. Strong memos are keyed by a hash of a composite key and
// live until Clear.
package cache

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"weak"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/net/html"
)

// WeakMemo maps an object identity to a value without keeping the object
// alive.
type WeakMemo[K any, V any] struct {
	mu      sync.Mutex
	entries map[weak.Pointer[K]]V
	hits    int
	misses  int
}

func NewWeakMemo[K any, V any]() *WeakMemo[K, V] {
	return &WeakMemo[K, V]{entries: make(map[weak.Pointer[K]]V)}
}

// Get returns the memoized value for key.
func (m *WeakMemo[K, V]) Get(key *K) (V, bool) {
	var zero V
	if key == nil {
		return zero, false
	}
	wp := weak.Make(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[wp]
	if ok {
		m.hits++
	} else {
		m.misses++
	}
	return v, ok
}

// Put stores v for key. The entry is removed after key is collected.
func (m *WeakMemo[K, V]) Put(key *K, v V) {
	if key == nil {
		return
	}
	wp := weak.Make(key)
	m.mu.Lock()
	_, existed := m.entries[wp]
	m.entries[wp] = v
	m.mu.Unlock()
	if !existed {
		runtime.AddCleanup(key, m.evict, wp)
	}
}

// GetOrCompute returns the memoized value or computes and stores it.
func (m *WeakMemo[K, V]) GetOrCompute(key *K, compute func() V) V {
	if v, ok := m.Get(key); ok {
		return v
	}
	v := compute()
	m.Put(key, v)
	return v
}

func (m *WeakMemo[K, V]) evict(wp weak.Pointer[K]) {
	m.mu.Lock()
	delete(m.entries, wp)
	m.mu.Unlock()
}

// Len returns the number of live entries.
func (m *WeakMemo[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns hit and miss counts since the last Clear.
func (m *WeakMemo[K, V]) Stats() (hits, misses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}

// Clear drops every entry. Pending cleanups for dropped keys become no-ops.
func (m *WeakMemo[K, V]) Clear() {
	m.mu.Lock()
	m.entries = make(map[weak.Pointer[K]]V)
	m.hits, m.misses = 0, 0
	m.mu.Unlock()
}

// WeakNodes is a node list that does not pin the nodes it names.
type WeakNodes []weak.Pointer[html.Node]

// MakeWeakNodes converts nodes into weak references.
func MakeWeakNodes(nodes []*html.Node) WeakNodes {
	out := make(WeakNodes, len(nodes))
	for i, n := range nodes {
		out[i] = weak.Make(n)
	}
	return out
}

// Resolve returns the nodes, or false when any of them has been collected.
func (w WeakNodes) Resolve() ([]*html.Node, bool) {
	out := make([]*html.Node, len(w))
	for i, wp := range w {
		n := wp.Value()
		if n == nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// Memo is a strong map keyed by the xxhash of a composite key.
type Memo[V any] struct {
	mu      sync.RWMutex
	entries map[uint64]V
}

func NewMemo[V any]() *Memo[V] {
	return &Memo[V]{entries: make(map[uint64]V)}
}

// Key hashes the parts of a composite key. Parts are separated so that
// ("ab","c") and ("a","bc") differ.
func Key(parts ...string) uint64 {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(strconv.Itoa(len(p)))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(p)
	}
	return d.Sum64()
}

func (m *Memo[V]) Get(key uint64) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *Memo[V]) Put(key uint64, v V) {
	m.mu.Lock()
	m.entries[key] = v
	m.mu.Unlock()
}

func (m *Memo[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memo[V]) Clear() {
	m.mu.Lock()
	m.entries = make(map[uint64]V)
	m.mu.Unlock()
}

// Identity hands out sequential ids for nodes so they can take part in
// strong composite keys. Ids are never reused.
type Identity struct {
	ids  *WeakMemo[html.Node, uint64]
	mu   sync.Mutex
	next uint64
}

func NewIdentity() *Identity {
	return &Identity{ids: NewWeakMemo[html.Node, uint64]()}
}

// ID returns the id of n, assigning one on first sight.
func (i *Identity) ID(n *html.Node) uint64 {
	if id, ok := i.ids.Get(n); ok {
		return id
	}
	i.mu.Lock()
	i.next++
	id := i.next
	i.mu.Unlock()
	i.ids.Put(n, id)
	return id
}

// Token renders the ids of nodes as one key part.
func (i *Identity) Token(nodes ...*html.Node) string {
	parts := make([]string, len(nodes))
	for k, n := range nodes {
		parts[k] = strconv.FormatUint(i.ID(n), 36)
	}
	return strings.Join(parts, ",")
}

func (i *Identity) Clear() {
	i.ids.Clear()
}
