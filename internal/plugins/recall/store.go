package recall

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/samber/lo"

	"github.com/dawidmalina/alertops/internal/alert"
)

// Entry is one stored occurrence of an alert.
type Entry struct {
	ID          string      `json:"id"`
	Fingerprint string      `json:"fingerprint"`
	Alert       alert.Alert `json:"alert"`
	ReceivedAt  time.Time   `json:"received_at"`
	Receiver    string      `json:"receiver"`
	ExternalURL string      `json:"external_url"`
	GroupKey    string      `json:"group_key"`
}

// Query filters stored entries. Empty fields match everything.
type Query struct {
	Status    alert.Status
	AlertName string
	Limit     int
}

// Stats summarizes the store contents.
type Stats struct {
	UniqueFingerprints int   `json:"unique_fingerprints"`
	TotalStored        int   `json:"total_alerts_stored"`
	Firing             int   `json:"firing_alerts"`
	Resolved           int   `json:"resolved_alerts"`
	TotalReceived      int64 `json:"total_alerts_received"`
}

// Store keeps the recent history of up to maxKeys alerts, each capped at
// maxHistory entries. The least recently updated alert is evicted first.
type Store struct {
	maxHistory int
	now        func() time.Time

	mu       sync.Mutex
	cache    *lru.Cache[string, []Entry]
	received int64
}

// NewStore creates a Store.
func NewStore(maxKeys, maxHistory int) (*Store, error) {
	cache, err := lru.New[string, []Entry](maxKeys)
	if err != nil {
		return nil, err
	}
	return &Store{
		maxHistory: maxHistory,
		now:        time.Now,
		cache:      cache,
	}, nil
}

// Add stores every alert of p and returns how many were stored.
func (s *Store) Add(p *alert.Payload) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	for _, a := range p.Alerts {
		key := a.Key()
		hist, _ := s.cache.Peek(key)
		hist = append(hist, Entry{
			ID:          uuid.NewString(),
			Fingerprint: key,
			Alert:       a,
			ReceivedAt:  now,
			Receiver:    p.Receiver,
			ExternalURL: p.ExternalURL,
			GroupKey:    p.GroupKey,
		})
		if over := len(hist) - s.maxHistory; over > 0 {
			hist = append([]Entry(nil), hist[over:]...)
		}
		s.cache.Add(key, hist)
	}
	s.received += int64(len(p.Alerts))
	return len(p.Alerts)
}

// Query returns matching entries, newest first.
func (s *Store) Query(q Query) []Entry {
	s.mu.Lock()
	var all []Entry
	for _, key := range s.cache.Keys() {
		hist, _ := s.cache.Peek(key)
		all = append(all, hist...)
	}
	s.mu.Unlock()

	out := lo.Filter(all, func(e Entry, _ int) bool {
		if q.Status != "" && e.Alert.Status != q.Status {
			return false
		}
		if q.AlertName != "" && e.Alert.Name() != q.AlertName {
			return false
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// History returns the stored entries for one key, oldest first.
func (s *Store) History(key string) ([]Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist, ok := s.cache.Peek(key)
	if !ok {
		return nil, false
	}
	return append([]Entry(nil), hist...), true
}

// Stats returns a summary of the store.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		UniqueFingerprints: s.cache.Len(),
		TotalReceived:      s.received,
	}
	for _, key := range s.cache.Keys() {
		hist, _ := s.cache.Peek(key)
		st.TotalStored += len(hist)
		for _, e := range hist {
			switch e.Alert.Status {
			case alert.StatusFiring:
				st.Firing++
			case alert.StatusResolved:
				st.Resolved++
			}
		}
	}
	return st
}

// Purge drops every stored entry.
func (s *Store) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}
