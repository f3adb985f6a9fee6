package delivery

import (
	"strings"
	"sync"
	"time"
)

// DefaultPendingTTL is how long a fetched artifact waits for the user's choice
const DefaultPendingTTL = time.Hour

// PendingDelivery is a fetched artifact awaiting the user's choice of delivery
type PendingDelivery struct {
	ArtifactPath string    `json:"artifact_path"`
	Link         string    `json:"link"`
	Title        string    `json:"title"`
	SourceURL    string    `json:"source_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// Expired reports whether the record is older than ttl at now
func (p *PendingDelivery) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(p.CreatedAt) >= ttl
}

// PendingStore keeps pending deliveries between a fetch and the user's selection.
// Implementations must be safe for concurrent use.
type PendingStore interface {
	// Put stores a record under id, replacing any previous record
	Put(id string, pending *PendingDelivery) error
	// Take removes and returns the record under id. It returns nil without error when the
	// record is absent or expired. A record is returned by at most one Take.
	Take(id string) (*PendingDelivery, error)
	// Len returns the number of live records
	Len() (int, error)
	// Sweep removes and returns every record expired at now
	Sweep(now time.Time) ([]*PendingDelivery, error)
}

// IdentifierFor derives the pending delivery identifier from an artifact filename
func IdentifierFor(filename string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(filename)
}

// MemoryStore is an in-process PendingStore
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[string]*PendingDelivery
}

// NewMemoryStore creates an in-memory store whose records expire after ttl.
// A non-positive ttl disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]*PendingDelivery),
	}
}

// SetTTL changes the expiry applied to existing and future records
func (s *MemoryStore) SetTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttl = ttl
}

func (s *MemoryStore) Put(id string, pending *PendingDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := *pending
	s.records[id] = &record
	return nil
}

func (s *MemoryStore) Take(id string) (*PendingDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	if record.Expired(s.now(), s.ttl) {
		// left for Sweep so the janitor can remove the artifact
		return nil, nil
	}

	delete(s.records, id)
	return record, nil
}

func (s *MemoryStore) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for _, record := range s.records {
		if !record.Expired(now, s.ttl) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Sweep(now time.Time) ([]*PendingDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*PendingDelivery
	for id, record := range s.records {
		if record.Expired(now, s.ttl) {
			expired = append(expired, record)
			delete(s.records, id)
		}
	}
	return expired, nil
}
