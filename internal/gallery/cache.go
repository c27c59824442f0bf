// Package gallery caches match-ready student embeddings per partition
// filter so frame processing never scans the student store directly.
package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// DefaultTTL bounds gallery staleness. Profile edits become visible on
// the next rebuild; only deletion invalidates eagerly.
const DefaultTTL = 10 * time.Minute

// StudentSource lists enrolled students (those with at least one stored
// embedding) inside a partition, in stable ascending student-id order.
type StudentSource interface {
	ListEnrolled(ctx context.Context, filter domain.PartitionFilter) ([]domain.StudentProfile, error)
}

type entry struct {
	list      []domain.GalleryEntry
	filter    domain.PartitionFilter
	fetchedAt time.Time
}

// Cache holds one averaged-embedding list per partition key. Reads of a
// fresh entry take the shared lock only; rebuilds are single-flight per
// key so concurrent misses cannot stampede the store.
type Cache struct {
	source StudentSource
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	entries   map[string]*entry
	refreshMu map[string]*sync.Mutex
}

func New(source StudentSource, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		source:    source,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
		entries:   make(map[string]*entry),
		refreshMu: make(map[string]*sync.Mutex),
	}
}

// Snapshot returns the gallery for the filter, rebuilding it when
// missing or older than the TTL. Within the TTL window repeated calls
// return the identical slice.
func (c *Cache) Snapshot(ctx context.Context, filter domain.PartitionFilter) ([]domain.GalleryEntry, error) {
	key := filter.Key()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.list, nil
	}

	// Single-flight per key: first caller rebuilds, the rest wait and
	// reuse the fresh entry.
	km := c.keyMutex(key)
	km.Lock()
	defer km.Unlock()

	c.mu.RLock()
	e, ok = c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.list, nil
	}

	list, err := c.rebuild(ctx, filter)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = &entry{list: list, filter: filter, fetchedAt: c.now()}
	c.mu.Unlock()

	c.logger.Info("gallery cache refreshed",
		slog.String("partition", key),
		slog.Int("entries", len(list)),
	)

	return list, nil
}

func (c *Cache) rebuild(ctx context.Context, filter domain.PartitionFilter) ([]domain.GalleryEntry, error) {
	students, err := c.source.ListEnrolled(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("rebuild gallery %q: %w", filter.Key(), err)
	}

	list := make([]domain.GalleryEntry, 0, len(students))
	for i := range students {
		s := &students[i]
		avg := averageEmbeddings(s.Embeddings)
		if avg == nil {
			continue
		}
		list = append(list, domain.GalleryEntry{
			StudentID:   s.StudentID,
			StudentName: s.Name,
			Embedding:   avg,
			Partition: domain.PartitionFilter{
				Department: s.Department,
				Year:       s.Year,
				Division:   s.Division,
			},
		})
	}

	return list, nil
}

// Invalidate drops every cached gallery that could contain a student
// with the given partition attributes. Wildcard filters ("all", or a
// department-only gallery) cache students from many partitions, so
// matching runs against each entry's filter rather than one exact key.
// Used on student deletion.
func (c *Cache) Invalidate(partition domain.PartitionFilter) {
	profile := domain.StudentProfile{
		Department: partition.Department,
		Year:       partition.Year,
		Division:   partition.Division,
	}

	c.mu.Lock()
	for key, e := range c.entries {
		if e.filter.Matches(&profile) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// InvalidateAll drops every cached partition.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

// Sweep evicts entries stale beyond twice the TTL. Run periodically so
// abandoned partitions don't pin their rosters in memory. Refresh
// mutexes without a live entry are dropped too; a rebuild in flight
// simply repopulates both maps when it finishes.
func (c *Cache) Sweep() {
	cutoff := c.now().Add(-2 * c.ttl)

	c.mu.Lock()
	for key, e := range c.entries {
		if e.fetchedAt.Before(cutoff) {
			delete(c.entries, key)
		}
	}
	for key := range c.refreshMu {
		if _, ok := c.entries[key]; !ok {
			delete(c.refreshMu, key)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) keyMutex(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.refreshMu[key]
	if !ok {
		m = &sync.Mutex{}
		c.refreshMu[key] = m
	}
	return m
}

// averageEmbeddings folds multiple stored vectors into one
// representative vector. Vectors of unexpected length are skipped; nil
// is returned when nothing usable remains.
func averageEmbeddings(embeddings [][]float64) []float64 {
	var acc []float64
	n := 0

	for _, emb := range embeddings {
		if len(emb) == 0 {
			continue
		}
		if acc == nil {
			acc = make([]float64, len(emb))
		}
		if len(emb) != len(acc) {
			continue
		}
		floats.Add(acc, emb)
		n++
	}

	if n == 0 {
		return nil
	}
	floats.Scale(1/float64(n), acc)
	return acc
}
