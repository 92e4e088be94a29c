package bag

import (
	"sync"
)

// Documents memoizes parsed documents, keyed by bag-relative path.  Many checks
// read the same metadata files; the first one to ask pays for reading and parsing,
// everyone else gets the same result (or the same error).
//
// Documents is safe for concurrent use.  Callers must treat loaded values as read only.
type Documents struct {
	mu      sync.Mutex
	entries map[string]*document
	loads   int
}

type document struct {
	once  sync.Once
	value interface{}
	err   error
}

// NewDocuments creates an empty cache
func NewDocuments() *Documents {
	return &Documents{
		entries: make(map[string]*document),
	}
}

// Load returns the cached document for the key, invoking load exactly once per key
// to populate it.  Concurrent callers asking for the same key wait for the first load.
func (d *Documents) Load(key string, load func() (interface{}, error)) (interface{}, error) {
	d.mu.Lock()
	doc, ok := d.entries[key]
	if !ok {
		doc = &document{}
		d.entries[key] = doc
	}
	d.mu.Unlock()

	doc.once.Do(func() {
		doc.value, doc.err = load()

		d.mu.Lock()
		d.loads++
		d.mu.Unlock()
	})

	return doc.value, doc.err
}

// Loads is the number of times a document was actually read, as opposed to served
// from the cache
func (d *Documents) Loads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loads
}
