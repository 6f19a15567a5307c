package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"leetclash/internal/app/generator"
	"leetclash/internal/common"
	"leetclash/internal/domain/model"
	"leetclash/internal/domain/repository"
	"leetclash/internal/platform/queue"
	"leetclash/internal/platform/store/memstore"
)

var epoch = time.UnixMilli(1_700_000_000_000).UTC()

func problemSet(n int) []model.Problem {
	complexities := []string{"O(n)", "O(1)", "O(n log n)"}
	out := make([]model.Problem, n)
	for i := range out {
		id := "problem_" + string(rune('a'+i))
		out[i] = model.Problem{
			ID:          id,
			Description: "Solve " + id,
			Tests:       []model.Test{{Inputs: []json.RawMessage{json.RawMessage(`1`)}, Expected: json.RawMessage(`2`)}},
			Complexity:  complexities[i%len(complexities)],
			Template:    "def " + id + "(x):\n    pass",
		}
	}
	return out
}

type fakeGenerator struct {
	problems []model.Problem
	err      error
	calls    int
}

func (g *fakeGenerator) Generate(_ context.Context, count int, _ model.ProblemDifficulty) ([]model.Problem, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	if g.problems != nil {
		return g.problems, nil
	}
	return problemSet(count), nil
}

func (g *fakeGenerator) GenerateFromIdeas(_ context.Context, ideas []string, _ model.ProblemDifficulty) ([]model.Problem, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return problemSet(len(ideas)), nil
}

var _ generator.Generator = (*fakeGenerator)(nil)

type fakeProblemRepo struct {
	mu    sync.Mutex
	saved map[string][]model.Problem
}

func (r *fakeProblemRepo) SaveProblemSet(_ context.Context, matchID string, _ model.ProblemDifficulty, problems []model.Problem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved == nil {
		r.saved = make(map[string][]model.Problem)
	}
	r.saved[matchID] = problems
	return nil
}

func (r *fakeProblemRepo) ListRecent(context.Context, int, model.ProblemDifficulty) ([]model.ArchivedProblem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ArchivedProblem
	for matchID, set := range r.saved {
		for i, p := range set {
			out = append(out, model.ArchivedProblem{Problem: p, MatchID: matchID, Position: i})
		}
	}
	return out, nil
}

var _ repository.ProblemRepository = (*fakeProblemRepo)(nil)

type fakeJudge struct {
	mu      sync.Mutex
	verdict model.JudgeResult
	codes   []string
	gate    chan struct{}
}

func (j *fakeJudge) Check(_ context.Context, code string, _ model.Problem) model.JudgeResult {
	if j.gate != nil {
		<-j.gate
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.codes = append(j.codes, code)
	return j.verdict
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
	// conflicts makes the next Create calls fail as if the name were taken
	conflicts int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		return common.ErrConflict
	}
	for _, existing := range r.users {
		if existing.Username == u.Username || (u.Email != "" && existing.Email == u.Email) {
			return common.ErrConflict
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) find(match func(*model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email != "" && u.Email == email })
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID == id })
}

type brokenQueue struct{}

func (brokenQueue) Push(context.Context, []byte) error { return errors.New("queue is down") }
func (brokenQueue) Pop(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type matchFixture struct {
	svc     *MatchService
	clock   *clockwork.FakeClock
	gen     *fakeGenerator
	archive *fakeProblemRepo
	tickets *queue.MemoryQueue
	store   *repository.MatchStore
}

func newMatchFixture(t *testing.T) *matchFixture {
	t.Helper()
	f := &matchFixture{
		clock:   clockwork.NewFakeClockAt(epoch),
		gen:     &fakeGenerator{},
		archive: &fakeProblemRepo{},
		tickets: queue.NewMemoryQueue(16),
		store:   repository.NewMatchStore(memstore.New(), "games/"),
	}
	f.svc = NewMatchService(f.store, NewProblemService(f.gen, f.archive), f.tickets, f.clock)
	return f
}

func (f *matchFixture) popTicket(t *testing.T) model.SubmissionTicket {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	payload, err := f.tickets.Pop(ctx)
	if err != nil {
		t.Fatalf("no ticket queued: %v", err)
	}
	var ticket model.SubmissionTicket
	if err := json.Unmarshal(payload, &ticket); err != nil {
		t.Fatal(err)
	}
	return ticket
}
