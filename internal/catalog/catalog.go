// Package catalog holds the assembled dataset records: one record per
// dataset root, indexed for query by type and curation status.
package catalog

import (
	"hash/fnv"
	"sort"
	"sync"

	"github.com/geonas-tools/nascat/internal/classify"
)

const shardCount = 32

// Catalog is the one mutable shared structure of a scan. The record map is
// sharded by root path so concurrent insert-or-update calls on distinct
// roots proceed independently while calls on the same root serialize.
type Catalog struct {
	shards [shardCount]shard
}

type shard struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// New creates an empty catalog.
func New() *Catalog {
	c := &Catalog{}
	for i := range c.shards {
		c.shards[i].records = make(map[string]*Record)
	}
	return c
}

func (c *Catalog) shardFor(root string) *shard {
	h := fnv.New32a()
	h.Write([]byte(root))
	return &c.shards[h.Sum32()%shardCount]
}

// MergeFunc merges an incoming record into an existing one and returns the
// record to store. existing is nil on first insert. Merges must be
// commutative per root: workers always target disjoint roots.
type MergeFunc func(existing, incoming *Record) *Record

// Upsert inserts or updates the record for incoming.Root. All mutation goes
// through here; a colliding root is merged, never duplicated. Returns true
// when the root was newly added.
func (c *Catalog) Upsert(incoming *Record, merge MergeFunc) bool {
	s := c.shardFor(incoming.Root)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.records[incoming.Root]
	if merge != nil {
		s.records[incoming.Root] = merge(existing, incoming)
	} else {
		s.records[incoming.Root] = incoming
	}
	return existing == nil
}

// Get returns a copy of the record for root.
func (c *Catalog) Get(root string) (*Record, bool) {
	s := c.shardFor(root)
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[root]
	return r.Clone(), ok
}

// Update applies fn to the record for root under the shard lock. Returns
// false when the root is unknown.
func (c *Catalog) Update(root string, fn func(*Record)) bool {
	s := c.shardFor(root)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[root]
	if !ok {
		return false
	}
	fn(r)
	return true
}

// Remove deletes the record for root. Records are only ever removed by this
// explicit call, never by a scan.
func (c *Catalog) Remove(root string) bool {
	s := c.shardFor(root)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[root]; !ok {
		return false
	}
	delete(s.records, root)
	return true
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	n := 0
	for i := range c.shards {
		c.shards[i].mu.RLock()
		n += len(c.shards[i].records)
		c.shards[i].mu.RUnlock()
	}
	return n
}

// List returns copies of all records, sorted by root path so output is
// stable across runs. Finite and restartable: each call yields a fresh
// snapshot.
func (c *Catalog) List() []*Record {
	return c.filter(func(*Record) bool { return true })
}

// QueryByType returns records whose dominant type matches tag.
func (c *Catalog) QueryByType(tag classify.Tag) []*Record {
	return c.filter(func(r *Record) bool { return r.Type == tag })
}

// QueryByStatus returns records in the given curation state.
func (c *Catalog) QueryByStatus(status CurationStatus) []*Record {
	return c.filter(func(r *Record) bool { return r.Status == status })
}

func (c *Catalog) filter(keep func(*Record) bool) []*Record {
	var out []*Record
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		for _, r := range s.records {
			if keep(r) {
				out = append(out, r.Clone())
			}
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Root < out[j].Root })
	return out
}

// Load replaces the catalog contents with records from a storage backend.
func (c *Catalog) Load(records []*Record) {
	for i := range c.shards {
		c.shards[i].mu.Lock()
		c.shards[i].records = make(map[string]*Record)
		c.shards[i].mu.Unlock()
	}
	for _, r := range records {
		s := c.shardFor(r.Root)
		s.mu.Lock()
		s.records[r.Root] = r.Clone()
		s.mu.Unlock()
	}
}
