package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/linguadesk/internal/domain/document"
)

const (
	DefaultDelay       = 2 * time.Second
	defaultSaveTimeout = 15 * time.Second
)

type State int

const (
	Idle State = iota
	PendingSave
	Saving
)

func (s State) String() string {
	switch s {
	case PendingSave:
		return "pending_save"
	case Saving:
		return "saving"
	default:
		return "idle"
	}
}

// Saver persists a full title and pages snapshot of one document.
type Saver interface {
	SaveDocument(ctx context.Context, id, title string, pages []document.Page) error
}

type Option func(*Coordinator)

func WithDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.delay = d
		}
	}
}

func WithClock(clock Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithSaveTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.saveTimeout = d
		}
	}
}

// WithOnError registers a callback for failed saves. It runs on the saving
// goroutine without the coordinator lock held.
func WithOnError(fn func(error)) Option {
	return func(c *Coordinator) {
		c.onError = fn
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// Coordinator holds the local copy of a document being edited and debounces
// writes of it. Every mutation re-arms a single timer; when it fires the whole
// current snapshot is saved. Saves are never awaited by later mutations and
// failed saves are not retried.
type Coordinator struct {
	id          string
	saver       Saver
	clock       Clock
	delay       time.Duration
	saveTimeout time.Duration
	onError     func(error)
	log         *slog.Logger

	mu       sync.Mutex
	doc      document.Document
	timer    Timer
	gen      uint64
	inFlight int
	lastErr  error
	closed   bool
}

func New(doc document.Document, saver Saver, opts ...Option) *Coordinator {
	c := &Coordinator{
		id:          doc.ID,
		saver:       saver,
		clock:       realClock{},
		delay:       DefaultDelay,
		saveTimeout: defaultSaveTimeout,
		log:         slog.Default(),
		doc:         doc.Clone(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) SetTitle(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.doc.Title = title
	c.armLocked()
}

// PatchPageContent shallow-merges patch into one page's content.
func (c *Coordinator) PatchPageContent(pageID string, patch document.Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.doc.PageByID(pageID)
	if !ok {
		return document.ErrPageNotFound
	}

	if err := p.MergeContent(patch); err != nil {
		return err
	}

	c.armLocked()
	return nil
}

func (c *Coordinator) AddPage(kind document.PageKind) (document.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.doc.AddPage(kind)
	if err != nil {
		return document.Page{}, err
	}

	c.armLocked()
	return p, nil
}

// Document returns a copy of the local state.
func (c *Coordinator) Document() document.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Clone()
}

// State reports PendingSave while a timer is armed, even if an earlier save
// is still in flight.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.timer != nil:
		return PendingSave
	case c.inFlight > 0:
		return Saving
	default:
		return Idle
	}
}

// Saving is the "saving..." indicator: true while any save is in flight.
func (c *Coordinator) Saving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}

// LastError is the error of the most recently completed save, nil on success.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Flush saves a pending snapshot now and waits for it. It is a no-op when
// nothing is pending.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()

	if c.timer == nil {
		c.mu.Unlock()
		return nil
	}

	c.timer.Stop()
	c.timer = nil
	c.gen++

	title, pages := c.snapshotLocked()
	c.inFlight++
	c.mu.Unlock()

	return c.save(ctx, title, pages)
}

// Close stops the pending timer. Unsaved edits are dropped; call Flush first
// to keep them.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.closed = true
}

func (c *Coordinator) armLocked() {
	if c.closed {
		return
	}

	if c.timer != nil {
		c.timer.Stop()
	}

	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.delay, func() { c.fire(gen) })
}

func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()

	// a later mutation, Flush or Close superseded this timer
	if gen != c.gen || c.timer == nil {
		c.mu.Unlock()
		return
	}

	c.timer = nil
	title, pages := c.snapshotLocked()
	c.inFlight++
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.saveTimeout)
	defer cancel()

	_ = c.save(ctx, title, pages)
}

func (c *Coordinator) snapshotLocked() (string, []document.Page) {
	return c.doc.Title, document.ClonePages(c.doc.Pages)
}

func (c *Coordinator) save(ctx context.Context, title string, pages []document.Page) error {
	err := c.saver.SaveDocument(ctx, c.id, title, pages)

	c.mu.Lock()
	c.inFlight--
	c.lastErr = err
	onError := c.onError
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("autosave failed", "doc_id", c.id, "err", err)
		if onError != nil {
			onError(err)
		}
	}

	return err
}
