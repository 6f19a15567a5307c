package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sethvargo/go-retry"

	"leetclash/internal/app/service"
	"leetclash/internal/domain/game"
	"leetclash/internal/domain/model"
	"leetclash/internal/domain/repository"
	"leetclash/internal/platform/queue"
	"leetclash/internal/platform/store"
	"leetclash/internal/platform/store/memstore"
)

type stubJudge struct {
	verdict model.JudgeResult
}

func (j stubJudge) Check(context.Context, string, model.Problem) model.JudgeResult {
	return j.verdict
}

type countingJudge struct {
	mu      sync.Mutex
	verdict model.JudgeResult
	calls   int
}

func (j *countingJudge) Check(context.Context, string, model.Problem) model.JudgeResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	return j.verdict
}

func fastBackoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewConstant(time.Millisecond))
}

type recordingApplier struct {
	mu      sync.Mutex
	applied []model.SubmissionTicket
	done    chan struct{}
}

func (r *recordingApplier) CompleteSubmission(_ context.Context, t model.SubmissionTicket, v model.JudgeResult) (*model.Match, error) {
	r.mu.Lock()
	r.applied = append(r.applied, t)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil, nil
}

func (r *recordingApplier) ReleaseSubmission(context.Context, model.SubmissionTicket) error {
	return nil
}

// failingApplier rejects the first failures verdicts with a write conflict.
type failingApplier struct {
	mu       sync.Mutex
	failures int
	applied  int
	attempts int
	released int
}

func (a *failingApplier) CompleteSubmission(context.Context, model.SubmissionTicket, model.JudgeResult) (*model.Match, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts++
	if a.failures != 0 {
		a.failures--
		return nil, store.ErrTransactionConflict
	}
	a.applied++
	return nil, nil
}

func (a *failingApplier) ReleaseSubmission(context.Context, model.SubmissionTicket) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.released++
	return nil
}

func TestJudgeWorkerAppliesVerdicts(t *testing.T) {
	q := queue.NewMemoryQueue(4)
	applier := &recordingApplier{done: make(chan struct{}, 4)}
	w := NewJudgeWorker(q, stubJudge{verdict: model.JudgeResult{Success: true, Reason: model.ReasonPassed}}, applier, 2)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(stopped)
	}()

	for _, id := range []string{"t1", "t2"} {
		payload, _ := json.Marshal(model.SubmissionTicket{ID: id, MatchID: "ABC123", PlayerID: model.PlayerA})
		if err := q.Push(ctx, payload); err != nil {
			t.Fatal(err)
		}
	}
	if err := q.Push(ctx, []byte("not json")); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-applier.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for verdicts")
		}
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	applier.mu.Lock()
	defer applier.mu.Unlock()
	if len(applier.applied) != 2 {
		t.Fatalf("applied %d tickets, want 2", len(applier.applied))
	}
}

func TestJudgeWorkerRetriesVerdictWithoutRejudging(t *testing.T) {
	j := &countingJudge{verdict: model.JudgeResult{Success: true, Reason: model.ReasonPassed}}
	applier := &failingApplier{failures: 2}
	w := NewJudgeWorker(queue.NewMemoryQueue(1), j, applier, 1)
	w.backoff = fastBackoff

	w.Process(context.Background(), model.SubmissionTicket{ID: "t1", MatchID: "ABC123", PlayerID: model.PlayerA})

	if j.calls != 1 {
		t.Errorf("judge called %d times, want 1", j.calls)
	}
	if applier.attempts != 3 || applier.applied != 1 {
		t.Errorf("attempts = %d, applied = %d; want 3 and 1", applier.attempts, applier.applied)
	}
	if applier.released != 0 {
		t.Errorf("gate released %d times after a successful verdict", applier.released)
	}
}

func TestJudgeWorkerReleasesGateWhenVerdictIsLost(t *testing.T) {
	j := &countingJudge{verdict: model.JudgeResult{Success: true, Reason: model.ReasonPassed}}
	applier := &failingApplier{failures: -1}
	w := NewJudgeWorker(queue.NewMemoryQueue(1), j, applier, 1)
	w.backoff = fastBackoff

	w.Process(context.Background(), model.SubmissionTicket{ID: "t1", MatchID: "ABC123", PlayerID: model.PlayerA})

	if j.calls != 1 {
		t.Errorf("judge called %d times, want 1", j.calls)
	}
	if applier.applied != 0 {
		t.Errorf("applied = %d, want 0", applier.applied)
	}
	if applier.released != 1 {
		t.Errorf("gate released %d times, want 1", applier.released)
	}
}

// conflictingStore fails the next armed Transact calls as a concurrent
// writer would.
type conflictingStore struct {
	store.Store
	mu    sync.Mutex
	armed int
}

func (s *conflictingStore) arm(n int) {
	s.mu.Lock()
	s.armed = n
	s.mu.Unlock()
}

func (s *conflictingStore) Transact(ctx context.Context, key string, fn store.TxFunc) ([]byte, error) {
	s.mu.Lock()
	if s.armed > 0 {
		s.armed--
		s.mu.Unlock()
		return nil, store.ErrTransactionConflict
	}
	s.mu.Unlock()
	return s.Store.Transact(ctx, key, fn)
}

func TestJudgeWorkerSurvivesConflictOnResolve(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	backing := &conflictingStore{Store: memstore.New()}
	matches := repository.NewMatchStore(backing, "games/")
	tickets := queue.NewMemoryQueue(4)
	svc := service.NewMatchService(matches, nil, tickets, clock)

	problems := []model.Problem{
		{ID: "first", Complexity: "O(n)", Template: "def first(x):\n    pass"},
		{ID: "second", Complexity: "O(1)", Template: "def second(x):\n    pass"},
	}
	waiting, err := game.NewDuel("ABC123", problems, model.DifficultyEasy, "alice", clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	playing, ok := game.Join(waiting, "bob", clock.Now())
	if !ok {
		t.Fatal("join refused")
	}
	if err := matches.Create(ctx, playing); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Submit(ctx, "ABC123", "alice"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	payload, err := tickets.Pop(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ticket model.SubmissionTicket
	if err := json.Unmarshal(payload, &ticket); err != nil {
		t.Fatal(err)
	}

	w := NewJudgeWorker(tickets, stubJudge{verdict: model.JudgeResult{Success: true, Reason: model.ReasonPassed}}, svc, 1)
	w.backoff = fastBackoff
	backing.arm(1)
	w.Process(ctx, ticket)

	m, err := matches.Get(ctx, "ABC123")
	if err != nil {
		t.Fatal(err)
	}
	alice := m.Player(model.PlayerA)
	if alice.IsSubmitting {
		t.Fatal("submission gate still raised after the verdict")
	}
	if alice.CurrentProblem != 1 {
		t.Errorf("CurrentProblem = %d, want 1", alice.CurrentProblem)
	}
	if _, err := svc.Submit(ctx, "ABC123", "alice"); err != nil {
		t.Errorf("second Submit() error = %v", err)
	}
}

func TestJudgeWorkerLowersGateWhenResolveKeepsFailing(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	backing := &conflictingStore{Store: memstore.New()}
	matches := repository.NewMatchStore(backing, "games/")
	tickets := queue.NewMemoryQueue(4)
	svc := service.NewMatchService(matches, nil, tickets, clock)

	waiting, _ := game.NewDuel("ABC123", []model.Problem{{ID: "first", Complexity: "O(n)"}}, model.DifficultyEasy, "alice", clock.Now())
	playing, _ := game.Join(waiting, "bob", clock.Now())
	if err := matches.Create(ctx, playing); err != nil {
		t.Fatal(err)
	}
	ticket, err := svc.Submit(ctx, "ABC123", "alice")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	w := NewJudgeWorker(tickets, stubJudge{verdict: model.JudgeResult{Success: true, Reason: model.ReasonPassed}}, svc, 1)
	w.backoff = fastBackoff
	// Every verdict attempt conflicts; the release that follows goes through.
	backing.arm(4)
	w.Process(ctx, *ticket)

	m, err := matches.Get(ctx, "ABC123")
	if err != nil {
		t.Fatal(err)
	}
	alice := m.Player(model.PlayerA)
	if alice.IsSubmitting {
		t.Fatal("submission gate still raised after the verdict was lost")
	}
	if alice.CurrentProblem != 0 || m.Status != model.StatusPlaying {
		t.Errorf("lost verdict was applied: problem %d, status %s", alice.CurrentProblem, m.Status)
	}
	if _, err := svc.Submit(ctx, "ABC123", "alice"); err != nil {
		t.Errorf("second Submit() error = %v", err)
	}
}
