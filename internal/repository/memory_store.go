package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps documents in process memory. It backs tests and local
// development without a database.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]Record
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]Record),
		now:  time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, collection string, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.docs[collection]
	if !ok {
		coll = make(map[string]Record)
		s.docs[collection] = coll
	}
	if _, exists := coll[rec.ID]; exists {
		return Record{}, ErrAlreadyExists
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	rec.Version = 1
	rec.Body = cloneBody(rec.Body)
	coll[rec.ID] = rec
	return copyRecord(rec), nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id, orgID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[collection][id]
	if !ok || rec.OrganizationID != orgID {
		return Record{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *MemoryStore) Update(ctx context.Context, collection string, rec Record, expectedVersion int64) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.docs[collection][rec.ID]
	if !ok || current.OrganizationID != rec.OrganizationID {
		return Record{}, ErrNotFound
	}
	if expectedVersion > 0 && current.Version != expectedVersion {
		return Record{}, ErrVersionConflict
	}
	rec.CreatedAt = current.CreatedAt
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now().UTC()
	}
	rec.Version = current.Version + 1
	rec.Body = cloneBody(rec.Body)
	s.docs[collection][rec.ID] = rec
	return copyRecord(rec), nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id, orgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[collection][id]
	if !ok || rec.OrganizationID != orgID {
		return ErrNotFound
	}
	delete(s.docs[collection], id)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection, orgID string, q Query) ([]Record, error) {
	matched, err := s.match(collection, orgID, q)
	if err != nil {
		return nil, err
	}
	sortRecords(matched, q)

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []Record{}, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]Record, 0, len(matched))
	for _, m := range matched {
		out = append(out, m.rec)
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, collection, orgID string, q Query) (int, error) {
	matched, err := s.match(collection, orgID, q)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (s *MemoryStore) FindAcrossTenants(ctx context.Context, collection, field, value string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.docs[collection] {
		fields, err := decodeFields(rec.Body)
		if err != nil {
			return nil, err
		}
		if v, ok := fieldText(fields, field); ok && v == value {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

type memoryMatch struct {
	rec    Record
	fields map[string]any
}

func (s *MemoryStore) match(collection, orgID string, q Query) ([]memoryMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := q.searchTerm()
	var out []memoryMatch
	for _, rec := range s.docs[collection] {
		if rec.OrganizationID != orgID {
			continue
		}
		if q.CreatedFrom != nil && rec.CreatedAt.Before(*q.CreatedFrom) {
			continue
		}
		if q.CreatedTo != nil && rec.CreatedAt.After(*q.CreatedTo) {
			continue
		}
		fields, err := decodeFields(rec.Body)
		if err != nil {
			return nil, err
		}
		if !matchesEquals(fields, q.Equals) || !matchesIn(fields, q.In) {
			continue
		}
		if term != "" && !matchesSearch(fields, q.SearchFields, term) {
			continue
		}
		out = append(out, memoryMatch{rec: copyRecord(rec), fields: fields})
	}
	return out, nil
}

func matchesEquals(fields map[string]any, equals map[string]string) bool {
	for key, want := range equals {
		got, ok := fieldText(fields, key)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func matchesIn(fields map[string]any, in map[string][]string) bool {
	for key, allowed := range in {
		if len(allowed) == 0 {
			continue
		}
		got, ok := fieldText(fields, key)
		if !ok {
			return false
		}
		found := false
		for _, a := range allowed {
			if a == got {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func matchesSearch(fields map[string]any, searchFields []string, term string) bool {
	for _, key := range searchFields {
		if v, ok := fieldText(fields, key); ok && strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

func sortRecords(matched []memoryMatch, q Query) {
	key := q.sortKey()
	desc := q.sortDescending()
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less, equal bool
		switch key {
		case sortCreatedAt:
			less, equal = a.rec.CreatedAt.Before(b.rec.CreatedAt), a.rec.CreatedAt.Equal(b.rec.CreatedAt)
		case sortUpdatedAt:
			less, equal = a.rec.UpdatedAt.Before(b.rec.UpdatedAt), a.rec.UpdatedAt.Equal(b.rec.UpdatedAt)
		default:
			av, _ := fieldText(a.fields, key)
			bv, _ := fieldText(b.fields, key)
			less, equal = av < bv, av == bv
		}
		if equal {
			return a.rec.ID < b.rec.ID
		}
		if desc {
			return !less
		}
		return less
	})
}

func decodeFields(body json.RawMessage) (map[string]any, error) {
	fields := map[string]any{}
	if len(body) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// fieldText renders a JSON value the way Postgres' ->> operator does.
func fieldText(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok || v == nil {
		return "", false
	}
	switch typed := v.(type) {
	case string:
		return typed, true
	case bool:
		return strconv.FormatBool(typed), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	default:
		raw, err := json.Marshal(typed)
		if err != nil {
			return "", false
		}
		return string(raw), true
	}
}

func cloneBody(body json.RawMessage) json.RawMessage {
	if body == nil {
		return nil
	}
	out := make(json.RawMessage, len(body))
	copy(out, body)
	return out
}

func copyRecord(rec Record) Record {
	rec.Body = cloneBody(rec.Body)
	return rec
}
