package comfortclick

import (
	"strings"
	"sync"
)

// NormalizeName collapses doubled backslashes in a device name.
func NormalizeName(name string) string {
	return strings.ReplaceAll(name, `\\`, `\`)
}

// NamesEqual reports whether two device names refer to the same point.
func NamesEqual(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}

// Record is one device point and its last known raw value.
type Record struct {
	DeviceName string `json:"DeviceName"`
	Value      any    `json:"Value"`
}

// Cache is the ordered projection of panel state.
//
// It is a sequence rather than a map: lookups scan for the first record whose
// normalized name matches, so a later duplicate is shadowed by an earlier one.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Writes come from the poll
//     goroutine only; the API and entity consumers read concurrently.
type Cache struct {
	mu      sync.RWMutex
	records []Record
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps the whole content for records.
func (c *Cache) Replace(records []Record) {
	cp := make([]Record, len(records))
	copy(cp, records)

	c.mu.Lock()
	c.records = cp
	c.mu.Unlock()
}

// Update sets the value of the first record matching name.
// Unknown names are ignored; it reports whether a record was updated.
func (c *Cache) Update(name string, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(name)
	if i < 0 {
		return false
	}
	c.records[i].Value = value
	return true
}

// Lookup returns the value of the first record matching name.
func (c *Cache) Lookup(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.indexLocked(name)
	if i < 0 {
		return nil, false
	}
	return c.records[i].Value, true
}

// Snapshot returns a copy of all records in order.
func (c *Cache) Snapshot() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the number of records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

func (c *Cache) indexLocked(name string) int {
	want := NormalizeName(name)
	for i := range c.records {
		if NormalizeName(c.records[i].DeviceName) == want {
			return i
		}
	}
	return -1
}
