package storage

import "sync"

// Overlay buffers mutations on top of a base Database. Reads see pending
// writes first and fall through to the base, so a multi-key action can be
// assembled and validated in full before anything is persisted. Flush applies
// the whole pending set to the base as one atomic batch; dropping the overlay
// without flushing discards it.
type Overlay struct {
	mu      sync.RWMutex
	base    Database
	writes  map[string][]byte
	deleted map[string]struct{}
}

// NewOverlay creates an empty overlay over the base store.
func NewOverlay(base Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.deleted, string(key))
	o.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if _, gone := o.deleted[string(key)]; gone {
		return nil, ErrNotFound
	}
	if value, ok := o.writes[string(key)]; ok {
		return append([]byte(nil), value...), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Has(key []byte) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if _, gone := o.deleted[string(key)]; gone {
		return false, nil
	}
	if _, ok := o.writes[string(key)]; ok {
		return true, nil
	}
	return o.base.Has(key)
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.writes, string(key))
	o.deleted[string(key)] = struct{}{}
	return nil
}

// Write folds a batch into the pending set without touching the base.
func (o *Overlay) Write(batch *Batch) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, op := range batch.ops {
		if op.delete {
			delete(o.writes, string(op.key))
			o.deleted[string(op.key)] = struct{}{}
			continue
		}
		delete(o.deleted, string(op.key))
		o.writes[string(op.key)] = append([]byte(nil), op.value...)
	}
	return nil
}

// Close satisfies the Database interface; the overlay owns no resources.
func (o *Overlay) Close() {}

// Pending returns the number of buffered mutations.
func (o *Overlay) Pending() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.writes) + len(o.deleted)
}

// Flush applies every pending mutation to the base store in one atomic batch.
// The overlay keeps its contents on failure so the caller can report and
// abandon it.
func (o *Overlay) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	batch := new(Batch)
	for key, value := range o.writes {
		batch.Put([]byte(key), value)
	}
	for key := range o.deleted {
		batch.Delete([]byte(key))
	}
	if err := o.base.Write(batch); err != nil {
		return err
	}
	o.writes = make(map[string][]byte)
	o.deleted = make(map[string]struct{})
	return nil
}
