package board_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/msomdec/user-board/internal/board"
	"github.com/msomdec/user-board/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemote = errors.New("remote unavailable")

// fakeRemote is an in-memory collection endpoint.
type fakeRemote struct {
	mu         sync.Mutex
	users      []domain.User
	nextID     int64
	fetches    int
	creates    int
	failFetch  bool
	failCreate bool
	// When set, calls block until it is closed or ctx is done.
	gate chan struct{}
	// Runs after a successful create, before it returns.
	afterCreate func()
}

func (f *fakeRemote) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRemote) FetchAll(ctx context.Context) ([]domain.User, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.failFetch {
		return nil, errRemote
	}
	return append([]domain.User{}, f.users...), nil
}

func (f *fakeRemote) Create(ctx context.Context, in domain.NewUser) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	f.creates++
	if f.failCreate {
		f.mu.Unlock()
		return errRemote
	}
	f.nextID++
	f.users = append(f.users, domain.User{ID: f.nextID, Name: in.Name, Age: in.Age})
	after := f.afterCreate
	f.mu.Unlock()

	if after != nil {
		after()
	}
	return nil
}

func (f *fakeRemote) calls() (fetches, creates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, f.creates
}

func TestMount_LoadsCollection(t *testing.T) {
	remote := &fakeRemote{users: []domain.User{{ID: 1, Name: "a8m", Age: 30}}}
	b := board.New(remote)
	defer b.Close()

	require.NoError(t, b.Mount(context.Background()))
	assert.Equal(t, []domain.User{{ID: 1, Name: "a8m", Age: 30}}, b.Snapshot().Users)
}

func TestSnapshot_EmptyBoard(t *testing.T) {
	b := board.New(&fakeRemote{})
	defer b.Close()

	s := b.Snapshot()
	assert.NotNil(t, s.Users)
	assert.Empty(t, s.Users)
	assert.Empty(t, s.Name)
	assert.Empty(t, s.Age)
}

func TestRefresh_Idempotent(t *testing.T) {
	remote := &fakeRemote{users: []domain.User{{ID: 1, Name: "Kim", Age: 30}, {ID: 2, Name: "Lee", Age: 41}}}
	b := board.New(remote)
	defer b.Close()

	require.NoError(t, b.Refresh(context.Background()))
	first := b.Snapshot().Users
	require.NoError(t, b.Refresh(context.Background()))
	assert.Equal(t, first, b.Snapshot().Users)
}

func TestRefresh_FailureKeepsPreviousCollection(t *testing.T) {
	remote := &fakeRemote{users: []domain.User{{ID: 1, Name: "Kim", Age: 30}}}
	b := board.New(remote)
	defer b.Close()
	require.NoError(t, b.Mount(context.Background()))

	remote.failFetch = true
	remote.users = nil
	err := b.Refresh(context.Background())
	assert.ErrorIs(t, err, errRemote)
	assert.Equal(t, []domain.User{{ID: 1, Name: "Kim", Age: 30}}, b.Snapshot().Users)
}

func TestSubmit_MissingInputNeverCallsRemote(t *testing.T) {
	cases := []struct{ name, age string }{
		{"", ""},
		{"Kim", ""},
		{"", "30"},
		{"   ", "30"},
	}
	for _, tc := range cases {
		remote := &fakeRemote{}
		b := board.New(remote)
		b.SetName(tc.name)
		b.SetAge(tc.age)

		err := b.Submit(context.Background())

		var verr *board.ValidationError
		require.ErrorAs(t, err, &verr, "input %+v", tc)
		assert.Equal(t, board.NoticeMissingInput, verr.Notice)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		fetches, creates := remote.calls()
		assert.Zero(t, fetches)
		assert.Zero(t, creates)

		s := b.Snapshot()
		assert.Equal(t, tc.name, s.Name)
		assert.Equal(t, tc.age, s.Age)
		b.Close()
	}
}

func TestSubmit_NonNumericAgeIsValidationFailure(t *testing.T) {
	remote := &fakeRemote{}
	b := board.New(remote, board.WithPending("Kim", "thirty"))
	defer b.Close()

	err := b.Submit(context.Background())

	var verr *board.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, board.NoticeInvalidAge, verr.Notice)
	assert.ErrorIs(t, err, board.ErrInvalidAge)

	_, creates := remote.calls()
	assert.Zero(t, creates)
	assert.Equal(t, "thirty", b.Snapshot().Age)
}

func TestSubmit_FailureKeepsPendingInput(t *testing.T) {
	remote := &fakeRemote{failCreate: true}
	b := board.New(remote)
	defer b.Close()
	b.SetName("Kim")
	b.SetAge("30")

	err := b.Submit(context.Background())
	assert.ErrorIs(t, err, errRemote)

	s := b.Snapshot()
	assert.Equal(t, "Kim", s.Name)
	assert.Equal(t, "30", s.Age)

	fetches, _ := remote.calls()
	assert.Zero(t, fetches, "no refresh after a failed create")
}

func TestSubmit_SuccessClearsInputAndRefreshes(t *testing.T) {
	remote := &fakeRemote{}
	b := board.New(remote)
	defer b.Close()
	b.SetName("Kim")
	b.SetAge(" 30 ")

	require.NoError(t, b.Submit(context.Background()))

	s := b.Snapshot()
	assert.Empty(t, s.Name)
	assert.Empty(t, s.Age)
	assert.Equal(t, []domain.User{{ID: 1, Name: "Kim", Age: 30}}, s.Users)
}

func TestSubmit_RefreshFailureAfterCreateLeavesStaleView(t *testing.T) {
	remote := &fakeRemote{users: []domain.User{{ID: 7, Name: "a8m", Age: 30}}, nextID: 7}
	b := board.New(remote)
	defer b.Close()
	require.NoError(t, b.Mount(context.Background()))

	remote.failFetch = true
	b.SetName("Kim")
	b.SetAge("30")
	require.NoError(t, b.Submit(context.Background()))

	s := b.Snapshot()
	assert.Empty(t, s.Name, "create succeeded so input is cleared")
	assert.Equal(t, []domain.User{{ID: 7, Name: "a8m", Age: 30}}, s.Users)
}

func TestSubmit_PhaseSequence(t *testing.T) {
	var phases []board.Phase
	record := board.WithPhaseHook(func(p board.Phase) { phases = append(phases, p) })

	b := board.New(&fakeRemote{}, record, board.WithPending("Kim", "30"))
	require.NoError(t, b.Submit(context.Background()))
	b.Close()
	assert.Equal(t, []board.Phase{
		board.PhaseValidating, board.PhaseSubmitting, board.PhaseSucceeded, board.PhaseRefreshing, board.PhaseIdle,
	}, phases)

	phases = nil
	b = board.New(&fakeRemote{}, record)
	assert.Error(t, b.Submit(context.Background()))
	b.Close()
	assert.Equal(t, []board.Phase{board.PhaseValidating, board.PhaseAborted, board.PhaseIdle}, phases)

	phases = nil
	b = board.New(&fakeRemote{failCreate: true}, record, board.WithPending("Kim", "30"))
	assert.Error(t, b.Submit(context.Background()))
	b.Close()
	assert.Equal(t, []board.Phase{board.PhaseValidating, board.PhaseSubmitting, board.PhaseFailed, board.PhaseIdle}, phases)
	assert.Equal(t, "refreshing", board.PhaseRefreshing.String())
}

func TestSubscribe_NotifiedOnEveryMutation(t *testing.T) {
	b := board.New(&fakeRemote{})
	defer b.Close()

	var changes []board.Change
	var last board.State
	unsubscribe := b.Subscribe(func(s board.State, c board.Change) {
		changes = append(changes, c)
		last = s
	})

	b.SetName("K")
	b.SetName("Kim")
	b.SetAge("30")
	require.NoError(t, b.Submit(context.Background()))

	assert.Equal(t, []board.Change{
		board.ChangePending, board.ChangePending, board.ChangePending,
		board.ChangePending, board.ChangeUsers,
	}, changes)
	assert.Len(t, last.Users, 1)

	unsubscribe()
	b.SetName("ignored")
	assert.Len(t, changes, 5)
}

func TestClose_DropsLateFetch(t *testing.T) {
	remote := &fakeRemote{users: []domain.User{{ID: 1, Name: "Kim", Age: 30}}, gate: make(chan struct{})}
	b := board.New(remote)

	errc := make(chan error, 1)
	go func() { errc <- b.Mount(context.Background()) }()

	b.Close()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, board.ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("mount did not return after close")
	}
	assert.Empty(t, b.Snapshot().Users)
}

func TestClose_CancelsPendingCreate(t *testing.T) {
	remote := &fakeRemote{gate: make(chan struct{})}
	submitting := make(chan struct{})
	var phases []board.Phase
	var mu sync.Mutex
	b := board.New(remote, board.WithPending("Kim", "30"), board.WithPhaseHook(func(p board.Phase) {
		mu.Lock()
		phases = append(phases, p)
		mu.Unlock()
		if p == board.PhaseSubmitting {
			close(submitting)
		}
	}))

	errc := make(chan error, 1)
	go func() { errc <- b.Submit(context.Background()) }()

	<-submitting
	b.Close()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, board.ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("submit did not return after close")
	}

	s := b.Snapshot()
	assert.Equal(t, "Kim", s.Name)
	assert.Equal(t, "30", s.Age)
	fetches, creates := remote.calls()
	assert.Zero(t, fetches)
	assert.Zero(t, creates)

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, phases, board.PhaseRefreshing)
	assert.NotContains(t, phases, board.PhaseSucceeded)
}

func TestClose_DropsLateCreateResult(t *testing.T) {
	remote := &fakeRemote{}
	var phases []board.Phase
	b := board.New(remote, board.WithPending("Kim", "30"), board.WithPhaseHook(func(p board.Phase) {
		phases = append(phases, p)
	}))
	// The create lands on the server, but the view goes away before the
	// response is applied.
	remote.afterCreate = b.Close

	err := b.Submit(context.Background())
	require.ErrorIs(t, err, board.ErrClosed)

	s := b.Snapshot()
	assert.Equal(t, "Kim", s.Name)
	assert.Equal(t, "30", s.Age)
	assert.Empty(t, s.Users)

	fetches, creates := remote.calls()
	assert.Zero(t, fetches, "no refresh after close")
	assert.Equal(t, 1, creates)
	assert.Equal(t, []board.Phase{
		board.PhaseValidating,
		board.PhaseSubmitting,
		board.PhaseSucceeded,
		board.PhaseIdle,
	}, phases)
}

func TestClose_IgnoresMutations(t *testing.T) {
	b := board.New(&fakeRemote{})
	b.SetName("Kim")
	b.Close()

	b.SetName("Lee")
	assert.Equal(t, "Kim", b.Snapshot().Name)
	assert.ErrorIs(t, b.Submit(context.Background()), board.ErrClosed)
	assert.True(t, b.Closed())
}

func TestSubmit_ConcurrentSubmissionsAreNotSerialized(t *testing.T) {
	gate := make(chan struct{})
	remote := &fakeRemote{gate: gate}
	b := board.New(remote, board.WithPending("Kim", "30"))
	defer b.Close()

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, b.Submit(context.Background()))
		}()
	}
	// Let all three reach the remote before releasing them.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	_, creates := remote.calls()
	assert.Equal(t, 3, creates)

	// Refreshes may land out of order; a final one settles the view.
	require.NoError(t, b.Refresh(context.Background()))
	assert.Len(t, b.Snapshot().Users, 3)
}
