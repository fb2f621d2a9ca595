package usecase

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
	"github.com/chrisisia/traza-assistant/internal/core/ports"
)

// VocabularyCache holds the distinct values of each vocabulary column.
// Entries are loaded lazily, published atomically per field and never
// invalidated; bypass is the only refresh path.
type VocabularyCache struct {
	store ports.MetadataStore
	limit int

	mu     sync.RWMutex
	values map[domain.VocabularyField][]string
	group  singleflight.Group
}

func NewVocabularyCache(store ports.MetadataStore, limit int) *VocabularyCache {
	if limit <= 0 {
		limit = 1000
	}
	return &VocabularyCache{
		store:  store,
		limit:  limit,
		values: make(map[domain.VocabularyField][]string),
	}
}

// Values returns the known values for one field, loading them on first use.
// Concurrent first loads of the same field collapse into a single query.
func (c *VocabularyCache) Values(ctx context.Context, field domain.VocabularyField, bypass bool) ([]string, error) {
	if !bypass {
		c.mu.RLock()
		cached, ok := c.values[field]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}
	}

	loaded, err, _ := c.group.Do(string(field), func() (any, error) {
		values, err := c.store.DistinctValues(ctx, field, c.limit)
		if err != nil {
			return nil, fmt.Errorf("load vocabulary %s: %w", string(field), err)
		}
		c.mu.Lock()
		c.values[field] = values
		c.mu.Unlock()
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return loaded.([]string), nil
}
