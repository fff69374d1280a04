package registry

import (
	"sync"
)

// Loader rebuilds the registry from its options and publishes the result.
// A failed rebuild leaves the previously published registry in place.
type Loader struct {
	lock    sync.Mutex
	builder *Builder
	holder  *Holder
}

func NewLoader(opts Options, holder *Holder) (*Loader, error) {
	b, err := NewBuilder(opts)
	if err != nil {
		return nil, err
	}
	if holder == nil {
		holder = NewHolder()
	}
	return &Loader{builder: b, holder: holder}, nil
}

func (l *Loader) Holder() *Holder {
	return l.holder
}

func (l *Loader) WatchedFiles() []string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.builder.WatchedFiles()
}

// Reload rebuilds with the current options.
func (l *Loader) Reload() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.rebuild(l.builder)
}

// Reconfigure rebuilds with new options; they are kept only if the build succeeds.
func (l *Loader) Reconfigure(opts Options) error {
	b, err := NewBuilder(opts)
	if err != nil {
		return err
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if err := l.rebuild(b); err != nil {
		return err
	}
	l.builder = b
	return nil
}

func (l *Loader) rebuild(b *Builder) error {
	reg, err := b.Build()
	if err != nil {
		return err
	}
	l.holder.Publish(reg)
	return nil
}
