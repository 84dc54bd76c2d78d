package webui

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAlert struct {
	clock    clockwork.Clock
	text     string
	category Category

	mu          sync.Mutex
	opacity     float64
	attached    bool
	removeCalls int
	fadedAt     time.Time
	removedAt   time.Time
}

func newFakeAlert(clock clockwork.Clock, category Category, text string) *fakeAlert {
	return &fakeAlert{clock: clock, text: text, category: category, opacity: 1, attached: true}
}

func (a *fakeAlert) Text() string       { return a.text }
func (a *fakeAlert) Category() Category { return a.category }

func (a *fakeAlert) SetOpacity(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.opacity = v
	a.fadedAt = a.clock.Now()
}

func (a *fakeAlert) Attached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attached
}

func (a *fakeAlert) Remove() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.attached {
		panic("remove called on detached alert")
	}
	a.attached = false
	a.removeCalls++
	a.removedAt = a.clock.Now()
}

func (a *fakeAlert) state() (opacity float64, attached bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.opacity, a.attached
}

type fakeHost struct {
	ready  func()
	alerts []Element
}

func (h *fakeHost) OnReady(fn func()) { h.ready = fn }
func (h *fakeHost) Alerts() []Element { return h.alerts }

func waitForTimers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n), "timed out waiting for %d timers", n)
}

func TestDismisser_FadesThenRemoves(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now()
	alert := newFakeAlert(clock, CategorySuccess, "Payment recorded successfully")

	d := NewDismisser(clock)
	d.Dismiss(context.Background(), []Element{alert})
	waitForTimers(t, clock, 1)

	clock.Advance(DefaultDwell - time.Millisecond)
	opacity, attached := alert.state()
	assert.Equal(t, 1.0, opacity, "alert must stay fully visible during the dwell")
	assert.True(t, attached)

	clock.Advance(time.Millisecond)
	waitForTimers(t, clock, 1) // fade timer
	opacity, attached = alert.state()
	assert.Equal(t, 0.0, opacity)
	assert.True(t, attached, "alert must stay attached while fading")

	clock.Advance(DefaultFade - time.Millisecond)
	_, attached = alert.state()
	assert.True(t, attached)

	clock.Advance(time.Millisecond)
	d.Wait()

	_, attached = alert.state()
	assert.False(t, attached)
	assert.Equal(t, DefaultDwell, alert.fadedAt.Sub(start))
	assert.Equal(t, DefaultFade, alert.removedAt.Sub(alert.fadedAt))
	assert.Equal(t, 1, alert.removeCalls)
}

func TestDismisser_IndependentAlerts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now()
	success := newFakeAlert(clock, CategorySuccess, "Student created")
	failure := newFakeAlert(clock, CategoryError, "Permission denied")

	d := NewDismisser(clock)
	d.Dismiss(context.Background(), []Element{success, failure})
	waitForTimers(t, clock, 2)

	clock.Advance(DefaultDwell)
	waitForTimers(t, clock, 2)
	for _, a := range []*fakeAlert{success, failure} {
		opacity, attached := a.state()
		assert.Equal(t, 0.0, opacity, a.text)
		assert.True(t, attached, a.text)
	}

	clock.Advance(DefaultFade)
	d.Wait()

	for _, a := range []*fakeAlert{success, failure} {
		_, attached := a.state()
		assert.False(t, attached, a.text)
		assert.Equal(t, start.Add(DefaultDwell+DefaultFade), a.removedAt, a.text)
	}
}

// A stuck element must not hold up the others.
type stuckAlert struct {
	*fakeAlert
	release chan struct{}
}

func (s *stuckAlert) SetOpacity(v float64) {
	<-s.release
	s.fakeAlert.SetOpacity(v)
}

func TestDismisser_SlowAlertDoesNotDelayOthers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	stuck := &stuckAlert{fakeAlert: newFakeAlert(clock, CategoryInfo, "stuck"), release: make(chan struct{})}
	normal := newFakeAlert(clock, CategoryInfo, "normal")

	d := NewDismisser(clock)
	d.Dismiss(context.Background(), []Element{stuck, normal})
	waitForTimers(t, clock, 2)

	clock.Advance(DefaultDwell)
	waitForTimers(t, clock, 1) // only the normal alert reaches its fade timer
	clock.Advance(DefaultFade)

	require.Eventually(t, func() bool {
		_, attached := normal.state()
		return !attached
	}, time.Second, time.Millisecond)

	_, attached := stuck.state()
	assert.True(t, attached)

	close(stuck.release)
	waitForTimers(t, clock, 1)
	clock.Advance(DefaultFade)
	d.Wait()

	_, attached = stuck.state()
	assert.False(t, attached)
}

func TestDismisser_ManualRemovalBetweenPhases(t *testing.T) {
	clock := clockwork.NewFakeClock()
	alert := newFakeAlert(clock, CategoryError, "Invalid username or password")

	d := NewDismisser(clock)
	d.Dismiss(context.Background(), []Element{alert})
	waitForTimers(t, clock, 1)

	clock.Advance(DefaultDwell)
	waitForTimers(t, clock, 1)

	// user clicks the close button while the alert fades
	Close(alert)

	assert.NotPanics(t, func() {
		clock.Advance(DefaultFade)
		d.Wait()
	})
	assert.Equal(t, 1, alert.removeCalls)
}

func TestDismisser_ManualRemovalBeforeDwell(t *testing.T) {
	clock := clockwork.NewFakeClock()
	alert := newFakeAlert(clock, CategoryInfo, "Please log in to access this page.")

	d := NewDismisser(clock)
	d.Dismiss(context.Background(), []Element{alert})
	waitForTimers(t, clock, 1)

	Close(alert)
	Close(alert)

	clock.Advance(DefaultDwell)
	waitForTimers(t, clock, 1)
	clock.Advance(DefaultFade)
	d.Wait()

	assert.Equal(t, 1, alert.removeCalls)
}

func TestDismisser_ContextEndsPendingSequences(t *testing.T) {
	clock := clockwork.NewFakeClock()
	alert := newFakeAlert(clock, CategorySuccess, "saved")

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDismisser(clock)
	d.Dismiss(ctx, []Element{alert})
	waitForTimers(t, clock, 1)

	cancel()
	d.Wait()

	opacity, attached := alert.state()
	assert.Equal(t, 1.0, opacity)
	assert.True(t, attached)
}

func TestDismisser_Install(t *testing.T) {
	clock := clockwork.NewFakeClock()
	alert := newFakeAlert(clock, CategoryInfo, "You have been logged out.")
	host := &fakeHost{alerts: []Element{alert, nil}}

	d := NewDismisser(clock)
	d.Install(context.Background(), host)
	require.NotNil(t, host.ready, "Install must register a ready hook")

	// nothing is scheduled until the document is ready
	_, attached := alert.state()
	assert.True(t, attached)

	host.ready()
	waitForTimers(t, clock, 1)
	clock.Advance(DefaultDwell)
	waitForTimers(t, clock, 1)
	clock.Advance(DefaultFade)
	d.Wait()

	_, attached = alert.state()
	assert.False(t, attached)
}

func TestDismisser_NoAlerts(t *testing.T) {
	d := NewDismisser(clockwork.NewFakeClock())
	d.Dismiss(context.Background(), nil)
	d.Wait()
}
