package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps entries in process memory. Used with the memory
// credential driver, where there is no database.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Create implements Repository.
func (r *MemoryRepository) Create(_ context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "aud-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	r.mu.Lock()
	r.entries = append(r.entries, *entry)
	r.mu.Unlock()
	return nil
}

// List implements Repository.
func (r *MemoryRepository) List(_ context.Context, filter Filter) (*ListResult, error) {
	filter = clampPage(filter)

	r.mu.RLock()
	matched := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		matched = append(matched, e)
	}
	r.mu.RUnlock()

	// Newest first; insertion order breaks ties.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := []Entry{}
	if filter.Offset < len(matched) {
		end := min(filter.Offset+filter.Limit, len(matched))
		page = matched[filter.Offset:end]
	}

	return &ListResult{
		Entries: page,
		Total:   len(matched),
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
