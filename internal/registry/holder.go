package registry

import (
	"errors"
	"sync"
)

var ErrUnloaded = errors.New("no module loaded")

// Holder publishes the current ModuleRegistry. Readers borrow the snapshot for
// the length of one request; a new snapshot replaces the old one wholesale.
type Holder struct {
	lock    sync.RWMutex
	current *ModuleRegistry
}

func NewHolder() *Holder {
	return &Holder{}
}

// Acquire borrows the published registry. The returned func must be called
// once the caller is done with it.
func (h *Holder) Acquire() (*ModuleRegistry, func(), error) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if h.current == nil {
		return nil, func() {}, ErrUnloaded
	}
	reg := h.current
	reg.acquire()
	var once sync.Once
	return reg, func() { once.Do(reg.release) }, nil
}

// Publish makes reg the current registry and drops the holder's hold on the
// previous one.
func (h *Holder) Publish(reg *ModuleRegistry) {
	h.lock.Lock()
	prev := h.current
	h.current = reg
	h.lock.Unlock()
	if prev != nil {
		prev.release()
	}
}

func (h *Holder) Loaded() bool {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.current != nil
}

// Close unpublishes the current registry.
func (h *Holder) Close() {
	h.Publish(nil)
}
