package lifecycle

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store that enforces the same unique constraints
// as the Postgres schema. Useful for tests; not intended for production use.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]Record
	timeline []TimelineEntry
	seen     map[timelineKey]struct{}

	// FailUpsert and FailTimeline inject errors for fault-isolation tests.
	FailUpsert   error
	FailTimeline error
}

type timelineKey struct {
	callSid string
	event   StatusLabel
	key     string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		seen:    make(map[timelineKey]struct{}),
	}
}

func (s *MemoryStore) UpsertLifecycle(ctx context.Context, rec Record, guard bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpsert != nil {
		return false, s.FailUpsert
	}
	if cur, ok := s.records[rec.CallSid]; ok && guard {
		if cur.Kind == rec.Kind && cur.StatusRank > rec.StatusRank {
			return false, nil
		}
	}
	rec.Metadata = copyFields(rec.Metadata)
	s.records[rec.CallSid] = rec
	return true, nil
}

func (s *MemoryStore) AppendTimeline(ctx context.Context, e TimelineEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailTimeline != nil {
		return false, s.FailTimeline
	}
	k := timelineKey{callSid: e.CallSid, event: e.Event, key: e.IdempotencyKey}
	if _, dup := s.seen[k]; dup {
		return false, nil
	}
	s.seen[k] = struct{}{}
	e.Metadata = copyFields(e.Metadata)
	s.timeline = append(s.timeline, e)
	return true, nil
}

func (s *MemoryStore) GetLifecycle(ctx context.Context, callSid string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[callSid]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Metadata = copyFields(rec.Metadata)
	return rec, nil
}

func (s *MemoryStore) ListTimeline(ctx context.Context, callSid string) ([]TimelineEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TimelineEntry
	for _, e := range s.timeline {
		if e.CallSid == callSid {
			out = append(out, e)
		}
	}
	return out, nil
}

// RecordCount returns the number of lifecycle rows.
func (s *MemoryStore) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// TimelineCount returns the number of timeline rows across all calls.
func (s *MemoryStore) TimelineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timeline)
}

func copyFields(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
