package board

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/msomdec/user-board/internal/domain"
)

// Notices shown to the operator when a submission is rejected locally.
const (
	NoticeMissingInput = "이름과 나이를 입력하세요!"
	NoticeInvalidAge   = "나이는 숫자로 입력하세요!"
)

var (
	ErrMissingInput = fmt.Errorf("%w: name and age are required", domain.ErrInvalidInput)
	ErrInvalidAge   = fmt.Errorf("%w: age must be an integer", domain.ErrInvalidInput)
)

// ValidationError rejects a submission before any network call. Notice is the
// text to show the operator.
type ValidationError struct {
	Notice string
	Err    error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Phase is a step of a submission.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseAborted
	PhaseSubmitting
	PhaseSucceeded
	PhaseFailed
	PhaseRefreshing
)

var phaseNames = [...]string{"idle", "validating", "aborted", "submitting", "succeeded", "failed", "refreshing"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Mount loads the collection for a freshly shown view.
func (b *Board) Mount(ctx context.Context) error {
	return b.Refresh(ctx)
}

// Refresh replaces the collection with the endpoint's current one. On failure
// the previous collection stays and the error is logged and returned.
func (b *Board) Refresh(ctx context.Context) error {
	ctx, done := b.bind(ctx)
	defer done()

	users, err := b.remote.FetchAll(ctx)
	if err != nil {
		if b.Closed() {
			b.logger.Debug("dropped fetch failure after close", "error", err)
			return ErrClosed
		}
		b.logger.Warn("fetch users", "error", err)
		return err
	}

	applied := b.update(func(s *State) Change {
		s.Users = users
		return ChangeUsers
	})
	if !applied {
		b.logger.Debug("dropped fetch result after close", "users", len(users))
		return ErrClosed
	}
	return nil
}

// Submit sends the pending input as a new user. Empty or non-numeric input is
// rejected with a *ValidationError and nothing is sent. A failed create keeps
// the pending input. A successful one clears it and refreshes the collection;
// a failing refresh is only logged.
func (b *Board) Submit(ctx context.Context) error {
	if b.Closed() {
		return ErrClosed
	}

	b.phase(PhaseValidating)
	snap := b.Snapshot()
	// Whitespace-only fields count as empty, so "  " is never sent as a name.
	in, err := parseInput(snap.Name, snap.Age)
	if err != nil {
		b.phase(PhaseAborted)
		b.phase(PhaseIdle)
		return err
	}

	b.phase(PhaseSubmitting)
	ctx, done := b.bind(ctx)
	defer done()

	if err := b.remote.Create(ctx, in); err != nil {
		b.phase(PhaseFailed)
		b.phase(PhaseIdle)
		if b.Closed() {
			b.logger.Debug("dropped create failure after close", "error", err)
			return ErrClosed
		}
		b.logger.Warn("create user", "name", in.Name, "error", err)
		return err
	}
	b.phase(PhaseSucceeded)

	cleared := b.update(func(s *State) Change {
		s.Name = ""
		s.Age = ""
		return ChangePending
	})
	if !cleared {
		b.logger.Debug("dropped create result after close", "name", in.Name)
		b.phase(PhaseIdle)
		return ErrClosed
	}

	b.phase(PhaseRefreshing)
	if err := b.Refresh(ctx); err != nil && !errors.Is(err, ErrClosed) {
		b.logger.Info("collection stale after create", "error", err)
	}
	b.phase(PhaseIdle)
	return nil
}

func (b *Board) phase(p Phase) {
	if b.onPhase != nil {
		b.onPhase(p)
	}
}

func parseInput(name, age string) (domain.NewUser, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(age) == "" {
		return domain.NewUser{}, &ValidationError{Notice: NoticeMissingInput, Err: ErrMissingInput}
	}
	n, err := strconv.Atoi(strings.TrimSpace(age))
	if err != nil {
		return domain.NewUser{}, &ValidationError{Notice: NoticeInvalidAge, Err: ErrInvalidAge}
	}
	return domain.NewUser{Name: name, Age: n}, nil
}
