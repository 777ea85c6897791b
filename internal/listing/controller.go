package listing

import (
	"context"
	"sync"
	"time"

	"github.com/fmc-ops/opsdash/internal/result"
)

// DefaultDebounce is the quiet period after a change notification before the
// current page is refetched.
const DefaultDebounce = 2 * time.Second

// State is the controller lifecycle state.
type State int

const (
	Idle State = iota
	Fetching
	Loaded
	Errored
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case Loaded:
		return "loaded"
	case Errored:
		return "errored"
	default:
		return "idle"
	}
}

// MarshalText lets State encode as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Fetcher loads one page. It must honour ctx cancellation.
type Fetcher[T any] func(ctx context.Context, q Query) result.Result[Page[T]]

// Subscribe registers onChange with a change feed and returns the
// unsubscribe function.
type Subscribe func(onChange func()) (unsubscribe func())

// Timer is the stoppable handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock schedules the debounce timer.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Options configures a Controller.
type Options struct {
	Query     Query
	Debounce  time.Duration
	Timeout   time.Duration
	Clock     Clock
	Subscribe Subscribe
}

// Snapshot is the observable state after a transition.
type Snapshot[T any] struct {
	Version    uint64 `json:"-"`
	State      State  `json:"state"`
	Loading    bool   `json:"loading"`
	Items      []T    `json:"items"`
	Total      int    `json:"total"`
	TotalPages int    `json:"total_pages"`
	Query      Query  `json:"query"`
	Error      string `json:"error,omitempty"`
}

// Controller keeps one list view in sync with its backend. At most one
// fetch is in flight. A query whose key equals the last initiated key is a
// no-op. Change notifications are debounced and force a refetch of the
// current page; one that lands while a fetch is running is remembered and
// replayed when that fetch completes. Responses for a query that is no
// longer current are discarded.
type Controller[T any] struct {
	fetch    Fetcher[T]
	clock    Clock
	debounce time.Duration
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	state          State
	query          Query
	lastKey        string
	items          []T
	total          int
	loadedSize     int
	errMsg         string
	inFlight       bool
	refreshPending bool
	timer          Timer
	timerGen       uint64
	version        uint64
	closed         bool
	unsubscribe    func()
	listeners      []func(Snapshot[T])

	emitMu      sync.Mutex
	lastEmitted uint64
}

// NewController builds an idle controller. Call Start to issue the first fetch.
func NewController[T any](fetch Fetcher[T], opts Options) *Controller[T] {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller[T]{
		fetch:    fetch,
		clock:    opts.Clock,
		debounce: opts.Debounce,
		timeout:  opts.Timeout,
		ctx:      ctx,
		cancel:   cancel,
		query:    opts.Query.Normalize(),
		items:    []T{},
	}
	c.loadedSize = c.query.PageSize
	if c.clock == nil {
		c.clock = wallClock{}
	}
	if c.debounce <= 0 {
		c.debounce = DefaultDebounce
	}
	if opts.Subscribe != nil {
		c.unsubscribe = opts.Subscribe(c.Notify)
	}
	return c
}

// OnChange registers fn to receive a snapshot after each transition.
func (c *Controller[T]) OnChange(fn func(Snapshot[T])) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || fn == nil {
		return
	}
	c.listeners = append(c.listeners, fn)
}

// Start issues the initial fetch for the configured query.
func (c *Controller[T]) Start() {
	c.SetQuery(c.Query())
}

// Query returns the current query.
func (c *Controller[T]) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// SetQuery makes q current and fetches it unless it matches the last
// initiated request.
func (c *Controller[T]) SetQuery(q Query) {
	q = q.Normalize()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.query = q
	if q.Key() == c.lastKey || c.inFlight {
		// An in-flight fetch re-checks the current key when it lands.
		c.mu.Unlock()
		return
	}
	snap, listeners := c.startLocked()
	c.mu.Unlock()
	c.emit(snap, listeners)
}

// Refresh refetches the current query. It is ignored while a fetch runs.
func (c *Controller[T]) Refresh() {
	c.mu.Lock()
	if c.closed || c.inFlight {
		c.mu.Unlock()
		return
	}
	snap, listeners := c.startLocked()
	c.mu.Unlock()
	c.emit(snap, listeners)
}

// Notify records a backend change. Bursts within the debounce window
// collapse into one refetch.
func (c *Controller[T]) Notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerGen++
	gen := c.timerGen
	c.timer = c.clock.AfterFunc(c.debounce, func() { c.fire(gen) })
}

func (c *Controller[T]) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.inFlight {
		c.refreshPending = true
		c.mu.Unlock()
		return
	}
	snap, listeners := c.startLocked()
	c.mu.Unlock()
	c.emit(snap, listeners)
}

// Snapshot returns the current observable state.
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close cancels the debounce timer and the subscription. Nothing is
// delivered after Close returns; a fetch still running is abandoned. Close
// waits for a delivery in progress, so listeners must not call it.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
	c.listeners = nil
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	c.emitMu.Lock()
	// Wait out a delivery that already passed the closed check.
	c.emitMu.Unlock()

	c.cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (c *Controller[T]) startLocked() (Snapshot[T], []func(Snapshot[T])) {
	q := c.query
	c.lastKey = q.Key()
	c.inFlight = true
	c.refreshPending = false
	c.state = Fetching
	go c.run(q)
	return c.transitionLocked()
}

func (c *Controller[T]) run(q Query) {
	ctx := c.ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	res := c.fetch(ctx, q)
	c.complete(q, res)
}

func (c *Controller[T]) complete(q Query, res result.Result[Page[T]]) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.inFlight = false
	current := q.Key() == c.query.Key()
	if current {
		if res.IsOk() {
			page := res.Value()
			c.items = page.Items
			if c.items == nil {
				c.items = []T{}
			}
			c.total = page.Total
			c.loadedSize = q.PageSize
			c.errMsg = ""
			c.state = Loaded
		} else {
			// Previous items stay visible next to the error.
			c.errMsg = res.ErrorMessage()
			c.state = Errored
		}
	}
	if !current || c.refreshPending {
		snap, listeners := c.startLocked()
		c.mu.Unlock()
		c.emit(snap, listeners)
		return
	}
	snap, listeners := c.transitionLocked()
	c.mu.Unlock()
	c.emit(snap, listeners)
}

func (c *Controller[T]) transitionLocked() (Snapshot[T], []func(Snapshot[T])) {
	c.version++
	listeners := make([]func(Snapshot[T]), len(c.listeners))
	copy(listeners, c.listeners)
	return c.snapshotLocked(), listeners
}

func (c *Controller[T]) snapshotLocked() Snapshot[T] {
	items := make([]T, len(c.items))
	copy(items, c.items)
	return Snapshot[T]{
		Version:    c.version,
		State:      c.state,
		Loading:    c.state == Fetching,
		Items:      items,
		Total:      c.total,
		TotalPages: TotalPages(c.total, c.loadedSize),
		Query:      c.query,
		Error:      c.errMsg,
	}
}

// emit delivers snap in version order; an older snapshot racing a newer one
// is dropped.
func (c *Controller[T]) emit(snap Snapshot[T], listeners []func(Snapshot[T])) {
	if len(listeners) == 0 {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if snap.Version <= c.lastEmitted {
		return
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.lastEmitted = snap.Version
	for _, fn := range listeners {
		fn(snap)
	}
}
