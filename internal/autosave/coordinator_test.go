package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/linguadesk/internal/domain/document"
)

type fakeTimer struct {
	f       func()
	d       time.Duration
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{f: f, d: d}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// fireLatest runs the most recent live timer on the calling goroutine.
func (c *fakeClock) fireLatest(t *testing.T) {
	t.Helper()

	c.mu.Lock()
	var live *fakeTimer
	for i := len(c.timers) - 1; i >= 0; i-- {
		if !c.timers[i].stopped {
			live = c.timers[i]
			break
		}
	}
	if live != nil {
		live.stopped = true
	}
	c.mu.Unlock()

	if live == nil {
		t.Fatalf("no armed timer")
	}
	live.f()
}

type saveCall struct {
	id    string
	title string
	pages []document.Page
}

type fakeSaver struct {
	mu    sync.Mutex
	calls []saveCall
	fn    func(ctx context.Context, id, title string, pages []document.Page) error
}

func (s *fakeSaver) SaveDocument(ctx context.Context, id, title string, pages []document.Page) error {
	s.mu.Lock()
	s.calls = append(s.calls, saveCall{id: id, title: title, pages: pages})
	fn := s.fn
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, id, title, pages)
	}
	return nil
}

func (s *fakeSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newDoc() document.Document {
	return document.New("owner-1", "Lesson", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestCoordinator_DebouncesMutations(t *testing.T) {
	clock := &fakeClock{}
	saver := &fakeSaver{}
	doc := newDoc()

	c := New(doc, saver, WithClock(clock))

	if c.State() != Idle {
		t.Fatalf("state = %v, want idle", c.State())
	}

	c.SetTitle("A")
	c.SetTitle("AB")
	if err := c.PatchPageContent(doc.Pages[0].ID, document.Content{document.FieldNative: "bonjour"}); err != nil {
		t.Fatalf("PatchPageContent: %v", err)
	}

	if c.State() != PendingSave {
		t.Fatalf("state = %v, want pending_save", c.State())
	}
	if clock.armed() != 1 {
		t.Fatalf("armed timers = %d, want 1", clock.armed())
	}
	if clock.timers[0].d != DefaultDelay {
		t.Fatalf("delay = %v, want %v", clock.timers[0].d, DefaultDelay)
	}

	clock.fireLatest(t)

	if saver.count() != 1 {
		t.Fatalf("saves = %d, want 1", saver.count())
	}

	got := saver.calls[0]
	if got.id != doc.ID || got.title != "AB" {
		t.Fatalf("saved %+v", got)
	}
	if len(got.pages) != 1 || got.pages[0].Content[document.FieldNative] != "bonjour" {
		t.Fatalf("saved pages = %+v", got.pages)
	}
	if c.State() != Idle {
		t.Fatalf("state = %v, want idle", c.State())
	}
}

func TestCoordinator_StaleTimerDoesNotSave(t *testing.T) {
	clock := &fakeClock{}
	saver := &fakeSaver{}

	c := New(newDoc(), saver, WithClock(clock))

	c.SetTitle("A")
	stale := clock.timers[0]
	c.SetTitle("B")

	// a stopped timer whose callback still runs must be ignored
	stale.f()
	if saver.count() != 0 {
		t.Fatalf("stale timer saved")
	}

	clock.fireLatest(t)
	if saver.count() != 1 || saver.calls[0].title != "B" {
		t.Fatalf("calls = %+v", saver.calls)
	}
}

func TestCoordinator_MutationDuringSavingStartsNewPending(t *testing.T) {
	clock := &fakeClock{}
	entered := make(chan struct{})
	release := make(chan struct{})

	saver := &fakeSaver{}
	saver.fn = func(context.Context, string, string, []document.Page) error {
		if saver.count() == 1 {
			close(entered)
			<-release
		}
		return nil
	}

	c := New(newDoc(), saver, WithClock(clock))

	c.SetTitle("first")

	done := make(chan struct{})
	go func() {
		defer close(done)
		clock.fireLatest(t)
	}()

	<-entered

	if c.State() != Saving || !c.Saving() {
		t.Fatalf("state = %v saving=%v, want saving", c.State(), c.Saving())
	}

	c.SetTitle("second")

	if c.State() != PendingSave {
		t.Fatalf("state = %v, want pending_save", c.State())
	}
	if !c.Saving() {
		t.Fatalf("in-flight save should still be reported")
	}

	// the second save goes out without waiting for the first
	clock.fireLatest(t)
	if saver.count() != 2 || saver.calls[1].title != "second" {
		t.Fatalf("calls = %+v", saver.calls)
	}

	close(release)
	<-done

	if c.State() != Idle || c.Saving() {
		t.Fatalf("state = %v saving=%v, want idle", c.State(), c.Saving())
	}
}

func TestCoordinator_FailedSaveIsNotRetried(t *testing.T) {
	clock := &fakeClock{}
	boom := errors.New("network down")
	saver := &fakeSaver{fn: func(context.Context, string, string, []document.Page) error { return boom }}

	var reported error
	c := New(newDoc(), saver, WithClock(clock), WithOnError(func(err error) { reported = err }))

	c.SetTitle("x")
	clock.fireLatest(t)

	if !errors.Is(c.LastError(), boom) || !errors.Is(reported, boom) {
		t.Fatalf("LastError=%v reported=%v", c.LastError(), reported)
	}
	if c.Saving() {
		t.Fatalf("saving indicator should clear after failure")
	}
	if clock.armed() != 0 {
		t.Fatalf("failed save re-armed a timer")
	}
	if saver.count() != 1 {
		t.Fatalf("saves = %d, want 1", saver.count())
	}

	saver.fn = nil
	c.SetTitle("y")
	clock.fireLatest(t)

	if c.LastError() != nil {
		t.Fatalf("LastError should clear after a successful save, got %v", c.LastError())
	}
}

func TestCoordinator_AddPage(t *testing.T) {
	clock := &fakeClock{}
	saver := &fakeSaver{}

	c := New(newDoc(), saver, WithClock(clock), WithDelay(500*time.Millisecond))

	p, err := c.AddPage(document.KindText)
	if err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	if clock.timers[0].d != 500*time.Millisecond {
		t.Fatalf("delay = %v", clock.timers[0].d)
	}

	if err := c.PatchPageContent(p.ID, document.Content{document.FieldText: "hello"}); err != nil {
		t.Fatalf("PatchPageContent: %v", err)
	}

	clock.fireLatest(t)

	pages := saver.calls[0].pages
	if len(pages) != 2 || pages[1].Kind != document.KindText || pages[1].Content[document.FieldText] != "hello" {
		t.Fatalf("pages = %+v", pages)
	}
}

func TestCoordinator_PatchRejectsUnknownPageAndForeignKey(t *testing.T) {
	clock := &fakeClock{}
	doc := newDoc()
	c := New(doc, &fakeSaver{}, WithClock(clock))

	if err := c.PatchPageContent("nope", document.Content{document.FieldNative: "x"}); !errors.Is(err, document.ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
	if err := c.PatchPageContent(doc.Pages[0].ID, document.Content{document.FieldText: "x"}); !errors.Is(err, document.ErrInvalidContentKey) {
		t.Fatalf("expected ErrInvalidContentKey, got %v", err)
	}
	if clock.armed() != 0 {
		t.Fatalf("rejected edits must not arm the timer")
	}
}

func TestCoordinator_FlushAndClose(t *testing.T) {
	clock := &fakeClock{}
	saver := &fakeSaver{}

	c := New(newDoc(), saver, WithClock(clock))

	if err := c.Flush(context.Background()); err != nil || saver.count() != 0 {
		t.Fatalf("flush with nothing pending: err=%v saves=%d", err, saver.count())
	}

	c.SetTitle("flushed")
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if saver.count() != 1 || saver.calls[0].title != "flushed" {
		t.Fatalf("calls = %+v", saver.calls)
	}
	if clock.armed() != 0 {
		t.Fatalf("flush should stop the timer")
	}

	c.SetTitle("dropped")
	c.Close()

	if c.State() != Idle {
		t.Fatalf("state = %v, want idle", c.State())
	}

	c.SetTitle("after close")
	if clock.armed() != 0 {
		t.Fatalf("closed coordinator armed a timer")
	}
	if c.Document().Title != "after close" {
		t.Fatalf("local edits should still apply after close")
	}
}
