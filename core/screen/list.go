// Package screen holds the view state shared by every list-based screen:
// fetch a collection, show it, run a mutation, refetch.
package screen

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/learnearn/hub/services/learnapi"
)

type State int

const (
	Idle State = iota
	Loading
	Populated
	Empty
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Populated:
		return "populated"
	case Empty:
		return "empty"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrBusy      = errors.New("screen is loading")
	ErrUnmounted = errors.New("screen is unmounted")
)

type (
	// FetchFunc loads the whole collection.
	FetchFunc[T any] func(ctx context.Context) ([]T, error)

	// Action is one mutating API call; it returns the confirmation to show.
	Action func(ctx context.Context) (string, error)

	// SessionExpiredFunc performs the forced logout. It is called once per failed call.
	SessionExpiredFunc func(ctx context.Context)
)

type Options[T any] struct {
	Fetch FetchFunc[T]

	// EmptyText is shown in the Empty state, e.g. "No users found."
	EmptyText string
	// FailText is the fallback when a failed fetch carries no server message.
	FailText string

	OnSessionExpired SessionExpiredFunc
}

// Notice is a transient message shown after a mutation.
type Notice struct {
	Text  string
	Error bool
}

// Snapshot is a copy of the list's view state.
type Snapshot[T any] struct {
	State   State
	Items   []T
	Message string // EmptyText or the failure message
	Notice  *Notice
	// LoggedOut is set once a call failed with 401/403 and the forced logout ran.
	LoggedOut bool
}

// Busy reports whether the triggering controls must be disabled.
func (s Snapshot[T]) Busy() bool {
	return s.State == Loading
}

func (s Snapshot[T]) IsEmpty() bool  { return s.State == Empty }
func (s Snapshot[T]) IsFailed() bool { return s.State == Failed }

// List is the view state of one screen instance.
// Only one call is in flight at a time; results arriving after Unmount are dropped.
type List[T any] struct {
	opts Options[T]

	mu        sync.Mutex
	state     State
	items     []T
	message   string
	notice    *Notice
	loggedOut bool
	unmounted bool
}

func New[T any](opts Options[T]) *List[T] {
	if opts.EmptyText == "" {
		opts.EmptyText = "Nothing here yet."
	}
	if opts.FailText == "" {
		opts.FailText = "Could not load data."
	}
	return &List[T]{opts: opts}
}

func (l *List[T]) Snapshot() Snapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

func (l *List[T]) snapshot() Snapshot[T] {
	items := make([]T, len(l.items))
	copy(items, l.items)
	var n *Notice
	if l.notice != nil {
		cp := *l.notice
		n = &cp
	}
	return Snapshot[T]{State: l.state, Items: items, Message: l.message, Notice: n, LoggedOut: l.loggedOut}
}

// begin moves to Loading, refusing a second concurrent trigger.
func (l *List[T]) begin() (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unmounted {
		return l.state, ErrUnmounted
	}
	if l.state == Loading {
		return l.state, ErrBusy
	}
	prev := l.state
	l.state = Loading
	return prev, nil
}

// Load fetches the collection (on mount, on refresh).
// Failures end up in the snapshot; the error is only ErrBusy or ErrUnmounted.
func (l *List[T]) Load(ctx context.Context) (Snapshot[T], error) {
	if _, err := l.begin(); err != nil {
		return l.Snapshot(), err
	}
	return l.fetch(ctx), nil
}

// fetch runs the Fetch of a list already in Loading.
func (l *List[T]) fetch(ctx context.Context) Snapshot[T] {
	items, err := l.opts.Fetch(ctx)
	expired := l.finishLoad(ctx, items, err)
	if expired {
		l.expire(ctx)
	}
	return l.Snapshot()
}

func (l *List[T]) finishLoad(ctx context.Context, items []T, err error) (expired bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unmounted || ctx.Err() != nil {
		// nobody is looking anymore
		l.state = Idle
		return false
	}

	if err != nil {
		l.state = Failed
		l.items = nil
		l.message = learnapi.UserMessage(err, l.opts.FailText)
		return learnapi.IsSessionInvalid(err)
	}
	l.items = items
	if len(items) == 0 {
		l.state = Empty
		l.message = l.opts.EmptyText
	} else {
		l.state = Populated
		l.message = ""
	}
	return false
}

// Mutate runs one action. On success the confirmation becomes the notice and the
// collection is refetched; on failure the error becomes the notice and the items are kept.
func (l *List[T]) Mutate(ctx context.Context, action Action, fallback string) (Snapshot[T], error) {
	prev, err := l.begin()
	if err != nil {
		return l.Snapshot(), err
	}

	msg, err := action(ctx)

	l.mu.Lock()
	if l.unmounted || ctx.Err() != nil {
		l.state = prev
		l.mu.Unlock()
		return l.Snapshot(), nil
	}
	if err != nil {
		l.state = prev
		l.notice = &Notice{Text: learnapi.UserMessage(err, fallback), Error: true}
		l.mu.Unlock()
		if learnapi.IsSessionInvalid(err) {
			l.expire(ctx)
		}
		return l.Snapshot(), nil
	}
	if msg == "" {
		msg = "Done."
	}
	l.notice = &Notice{Text: msg}
	l.mu.Unlock()

	// still Loading: the refetch belongs to this trigger
	return l.fetch(ctx), nil
}

// Unmount detaches the list from its view.
func (l *List[T]) Unmount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unmounted = true
}

func (l *List[T]) expire(ctx context.Context) {
	l.mu.Lock()
	l.loggedOut = true
	l.mu.Unlock()
	if l.opts.OnSessionExpired != nil {
		l.opts.OnSessionExpired(ctx)
	}
}
