// Package board keeps a local view of the user collection in step with the
// remote collection endpoint.
//
// A Board holds the last successfully fetched collection plus the operator's
// pending input, and reconciles both after every remote call. The collection
// is only ever replaced wholesale by a fetch; the board never inserts or edits
// a user locally.
package board

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/msomdec/user-board/internal/domain"
)

// ErrClosed is returned when an operation ends after the board was closed.
var ErrClosed = errors.New("board closed")

// Syncer is the remote half of the board: the collection endpoint client.
type Syncer interface {
	FetchAll(ctx context.Context) ([]domain.User, error)
	Create(ctx context.Context, in domain.NewUser) error
}

// State is a snapshot of everything the view renders.
type State struct {
	Users []domain.User
	Name  string // pending name input
	Age   string // pending age input, unparsed
}

// Change tells subscribers which part of State moved.
type Change uint8

const (
	ChangeUsers Change = 1 << iota
	ChangePending
)

// Has reports whether c includes any bit of other.
func (c Change) Has(other Change) bool { return c&other != 0 }

type subscriber struct {
	id int
	fn func(State, Change)
}

// Board is safe for concurrent use. Remote calls never hold the lock, so
// completions are applied in the order they arrive.
type Board struct {
	id      string
	remote  Syncer
	logger  *slog.Logger
	onPhase func(Phase)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	closed  bool
	subs    []subscriber
	nextSub int
}

// Option configures a Board.
type Option func(*Board)

// WithLogger sets the logger for the board.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Board) { b.logger = logger }
}

// WithPhaseHook registers fn to observe every submit phase transition.
func WithPhaseHook(fn func(Phase)) Option {
	return func(b *Board) { b.onPhase = fn }
}

// WithPending starts the board with the given pending input instead of empty
// fields, for boards rebuilt from input the browser still holds.
func WithPending(name, age string) Option {
	return func(b *Board) {
		b.state.Name = name
		b.state.Age = age
	}
}

// New creates a board backed by s. Call Mount to load the collection and
// Close when the view goes away.
func New(s Syncer, opts ...Option) *Board {
	b := &Board{
		id:     uuid.NewString(),
		remote: s,
		logger: slog.Default(),
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("board", b.id)
	return b
}

// ID returns the board's unique id, also attached to its log lines.
func (b *Board) ID() string { return b.id }

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Board) snapshotLocked() State {
	s := b.state
	s.Users = slices.Clone(b.state.Users)
	if s.Users == nil {
		s.Users = []domain.User{}
	}
	return s
}

// SetName records a change to the pending name.
func (b *Board) SetName(name string) {
	b.update(func(s *State) Change {
		s.Name = name
		return ChangePending
	})
}

// SetAge records a change to the pending age.
func (b *Board) SetAge(age string) {
	b.update(func(s *State) Change {
		s.Age = age
		return ChangePending
	})
}

// Subscribe registers fn to be called after every mutation with the new
// state. The returned func removes the subscription.
func (b *Board) Subscribe(fn func(State, Change)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscriber) bool { return s.id == id })
	}
}

// Close cancels in-flight remote calls. Results arriving afterwards are
// dropped, and further mutations are ignored.
func (b *Board) Close() {
	b.mu.Lock()
	b.closed = true
	b.subs = nil
	b.mu.Unlock()
	b.cancel()
}

// Closed reports whether Close has been called.
func (b *Board) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// update applies fn under the lock and notifies subscribers. It reports false
// when the board is closed and nothing was applied.
func (b *Board) update(fn func(*State) Change) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	change := fn(&b.state)
	snap := b.snapshotLocked()
	subs := slices.Clone(b.subs)
	b.mu.Unlock()

	if change != 0 {
		for _, s := range subs {
			s.fn(snap, change)
		}
	}
	return true
}

// bind derives a context that is also canceled when the board closes.
func (b *Board) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
