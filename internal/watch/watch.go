// Package watch rebuilds the registry when the module, the extensions or the
// data directory change on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/boardzilla/boardzilla-modreg/internal/registry"
	"github.com/gookit/color"
	"github.com/radovskyb/watcher"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultPoll     = 100 * time.Millisecond
)

type notifier struct {
	out      func()
	delay    time.Duration
	notified bool
	lock     sync.Mutex
	pending  sync.WaitGroup
}

// notify schedules out to run once delay has passed. Calls made while a run is
// pending are folded into it. Nothing runs once ctx is done.
func (n *notifier) notify(ctx context.Context) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if !n.notified {
		n.notified = true
		n.pending.Add(1)
		go func() {
			defer n.pending.Done()
			select {
			case <-time.After(n.delay):
			case <-ctx.Done():
			}
			n.lock.Lock()
			n.notified = false
			n.lock.Unlock()
			if ctx.Err() != nil {
				return
			}
			n.out()
		}()
	}
}

// wait blocks until every scheduled run has finished or been dropped.
func (n *notifier) wait() {
	n.pending.Wait()
}

type Watcher struct {
	loader   *registry.Loader
	poll     time.Duration
	w        *watcher.Watcher
	notifier *notifier
	onReload func(error)
}

// New returns a Watcher that reloads loader debounce after the last change.
// onReload sees the result of every reload; when nil the result is printed.
func New(loader *registry.Loader, debounce, poll time.Duration, onReload func(error)) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if poll <= 0 {
		poll = DefaultPoll
	}
	if onReload == nil {
		onReload = func(err error) { report(loader, err) }
	}
	w := &Watcher{
		loader:   loader,
		poll:     poll,
		w:        watcher.New(),
		onReload: onReload,
	}
	w.w.FilterOps(watcher.Create, watcher.Write, watcher.Remove, watcher.Rename, watcher.Move)
	w.notifier = &notifier{
		delay: debounce,
		out: func() {
			w.onReload(w.loader.Reload())
		},
	}
	return w
}

// Run watches until ctx is done or the watcher fails. It returns only after
// any reload it started has finished.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.notifier.wait()
	for _, p := range w.loader.WatchedFiles() {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		if info.IsDir() {
			err = w.w.AddRecursive(p)
		} else {
			err = w.w.Add(p)
		}
		if err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
	}

	started := make(chan error, 1)
	go func() {
		started <- w.w.Start(w.poll)
	}()
	defer w.w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.w.Event:
			w.notifier.notify(ctx)
		case err := <-w.w.Error:
			color.Printf("<red>watch error:</> %s\n", err.Error())
		case <-w.w.Closed:
			return nil
		case err := <-started:
			return err
		}
	}
}

// Wait blocks until Run has started polling.
func (w *Watcher) Wait() {
	w.w.Wait()
}

func report(loader *registry.Loader, err error) {
	if err != nil {
		color.Printf("<red>error during reload:</> %s\n", err.Error())
		return
	}
	reg, release, err := loader.Holder().Acquire()
	defer release()
	if err != nil {
		return
	}
	color.Printf("<green>%s %s reloaded due to change</> (%d pieces, %d diagnostics)\n",
		reg.Name(), reg.Version(), len(reg.Pieces()), len(reg.Diagnostics()))
}
