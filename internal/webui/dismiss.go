// Package webui holds the browser-side behaviour of the rendered pages:
// flash message dismissal and navigation helpers. It is DOM-agnostic; the
// wasm entry point in cmd/webui adapts the real document onto these
// interfaces.
package webui

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultDwell = 5000 * time.Millisecond
	DefaultFade  = 300 * time.Millisecond
)

// Element is one rendered alert.
type Element interface {
	Text() string
	Category() Category
	SetOpacity(v float64)
	// Attached reports whether the element is still part of the document.
	Attached() bool
	Remove()
}

// Host is the document the alerts live in.
type Host interface {
	// OnReady registers fn to run once when the document becomes interactive.
	OnReady(fn func())
	Alerts() []Element
}

// Dismisser fades and removes alerts after they have been visible for the
// dwell time.
type Dismisser struct {
	clock clockwork.Clock
	dwell time.Duration
	fade  time.Duration
	wg    sync.WaitGroup
}

func NewDismisser(clock clockwork.Clock) *Dismisser {
	return &Dismisser{
		clock: clock,
		dwell: DefaultDwell,
		fade:  DefaultFade,
	}
}

// Install schedules dismissal of every alert present when host becomes ready.
func (d *Dismisser) Install(ctx context.Context, host Host) {
	host.OnReady(func() {
		d.Dismiss(ctx, host.Alerts())
	})
}

// Dismiss starts an independent fade-and-remove sequence for each alert.
// ctx only ends pending sequences when the host goes away.
func (d *Dismisser) Dismiss(ctx context.Context, alerts []Element) {
	for _, el := range alerts {
		if el == nil {
			continue
		}
		d.wg.Add(1)
		go d.run(ctx, el)
	}
}

// Wait blocks until every scheduled sequence has finished.
func (d *Dismisser) Wait() {
	d.wg.Wait()
}

func (d *Dismisser) run(ctx context.Context, el Element) {
	defer d.wg.Done()

	if !d.sleep(ctx, d.dwell) {
		return
	}
	el.SetOpacity(0)

	if !d.sleep(ctx, d.fade) {
		return
	}
	// may already be gone through the close button
	if el.Attached() {
		el.Remove()
	}
}

func (d *Dismisser) sleep(ctx context.Context, dur time.Duration) bool {
	t := d.clock.NewTimer(dur)
	defer t.Stop()

	select {
	case <-t.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}

// Close removes el if it is still attached. It backs the alert's close button.
func Close(el Element) {
	if el != nil && el.Attached() {
		el.Remove()
	}
}
