package triage

import "sync"

// SlotStore holds per-session slot state. Get creates an empty SlotSet
// for an unseen key and never fails; Commit atomically replaces the
// stored state. Expiry is an external concern.
//
// Acquire provides the per-session mutual exclusion the merge
// invariant requires: a session's SlotSet must never be
// read-modify-written by two turns at once, while distinct sessions
// proceed fully in parallel.
type SlotStore interface {
	Get(sessionKey string) SlotSet
	Commit(sessionKey string, slots SlotSet)
	Acquire(sessionKey string) (release func())
}

type memoryStore struct {
	mu    sync.RWMutex
	slots map[string]SlotSet
	locks map[string]*sync.Mutex
}

// NewMemoryStore returns an in-process SlotStore. State resets on
// restart; multiple orchestrator instances needing shared state would
// swap in a different implementation behind the same interface.
func NewMemoryStore() SlotStore {
	return &memoryStore{
		slots: map[string]SlotSet{},
		locks: map[string]*sync.Mutex{},
	}
}

func (m *memoryStore) Get(sessionKey string) SlotSet {
	m.mu.RLock()
	s, ok := m.slots[sessionKey]
	m.mu.RUnlock()
	if !ok {
		return NewSlotSet()
	}
	return s.Clone()
}

func (m *memoryStore) Commit(sessionKey string, slots SlotSet) {
	m.mu.Lock()
	m.slots[sessionKey] = slots.Clone()
	m.mu.Unlock()
}

func (m *memoryStore) Acquire(sessionKey string) func() {
	m.mu.Lock()
	l, ok := m.locks[sessionKey]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionKey] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}
