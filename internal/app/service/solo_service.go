package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"leetclash/internal/app/judge"
	"leetclash/internal/domain/game"
	"leetclash/internal/domain/model"
)

// finishedGrace is how long a finished solo game stays readable so the
// player can see the final screen.
const finishedGrace = 10 * time.Minute

// SoloService keeps solo games in process memory. Nobody else writes to a
// solo game, so a per-game mutex replaces the store transaction, and the clock
// is settled lazily whenever the game is read or changed.
type SoloService struct {
	problems *ProblemService
	judge    judge.Judge
	clock    clockwork.Clock
	ttl      time.Duration

	mu    sync.Mutex
	games map[string]*soloGame
}

type soloGame struct {
	mu    sync.Mutex
	match *model.Match
}

type SoloSubmitResult struct {
	Match   *model.Match      `json:"match"`
	Verdict model.JudgeResult `json:"verdict"`
}

func NewSoloService(problems *ProblemService, j judge.Judge, clock clockwork.Clock, ttl time.Duration) *SoloService {
	return &SoloService{
		problems: problems,
		judge:    j,
		clock:    clock,
		ttl:      ttl,
		games:    make(map[string]*soloGame),
	}
}

func (s *SoloService) Start(ctx context.Context, userID string, req ProblemSetRequest) (*model.Match, error) {
	problems, err := s.problems.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	m, err := game.NewSolo(uuid.NewString(), problems, req.Difficulty, userID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.games[m.ID] = &soloGame{match: m}
	s.mu.Unlock()

	log.Printf("INFO: Solo game %s started with %d %s problems", m.ID, len(problems), req.Difficulty)
	s.problems.Archive(context.WithoutCancel(ctx), m.ID, req.Difficulty, problems)
	return m, nil
}

func (s *SoloService) lookup(id, userID string) (*soloGame, error) {
	s.mu.Lock()
	g, ok := s.games[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrMatchNotFound
	}
	g.mu.Lock()
	owner := g.match.Player(model.PlayerA).UserID
	g.mu.Unlock()
	if owner != "" && owner != userID {
		return nil, ErrNotYourSeat
	}
	return g, nil
}

// Get advances the game's clock to now and returns it.
func (s *SoloService) Get(_ context.Context, id, userID string) (*model.Match, error) {
	g, err := s.lookup(id, userID)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.match = game.Tick(g.match, s.clock.Now())
	return g.match, nil
}

func (s *SoloService) UpdateCode(_ context.Context, id, userID, code string) (*model.Match, error) {
	g, err := s.lookup(id, userID)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.match = game.SetCode(game.Tick(g.match, s.clock.Now()), model.PlayerA, code)
	return g.match, nil
}

// Submit judges the current code and applies the verdict. The game lock is
// not held while the judge runs.
func (s *SoloService) Submit(ctx context.Context, id, userID string) (*SoloSubmitResult, error) {
	g, err := s.lookup(id, userID)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	current := game.Tick(g.match, s.clock.Now())
	g.match = current
	ticket, err := game.NewTicket(current, model.PlayerA, uuid.NewString(), s.clock.Now())
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}
	marked, err := game.MarkSubmitting(current, model.PlayerA)
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}
	g.match = marked
	g.mu.Unlock()

	verdict := s.judge.Check(ctx, ticket.Code, ticket.Problem)

	s.mu.Lock()
	_, alive := s.games[id]
	s.mu.Unlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	next, ok := game.ResolveSubmission(g.match, ticket, verdict, s.clock.Now())
	if !ok || !alive {
		return nil, ErrMatchNotFound
	}
	g.match = next
	return &SoloSubmitResult{Match: next, Verdict: verdict}, nil
}

// Dispose drops a game. An in-flight submission then resolves to nothing.
func (s *SoloService) Dispose(_ context.Context, id, userID string) error {
	if _, err := s.lookup(id, userID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.games, id)
	s.mu.Unlock()
	log.Printf("INFO: Solo game %s disposed", id)
	return nil
}

// Prune drops games that finished a while ago or outlived the retention
// period. It is run periodically by the scheduler.
func (s *SoloService) Prune() int {
	now := s.clock.Now()

	s.mu.Lock()
	games := make(map[string]*soloGame, len(s.games))
	for id, g := range s.games {
		games[id] = g
	}
	s.mu.Unlock()

	var stale []string
	for id, g := range games {
		g.mu.Lock()
		m := game.Tick(g.match, now)
		g.match = m
		expired := s.ttl > 0 && now.Sub(m.CreatedAt) > s.ttl
		finished := m.Status == model.StatusOver && m.LastTickTime != nil &&
			now.Sub(unixMilli(*m.LastTickTime)) > finishedGrace
		g.mu.Unlock()
		if expired || finished {
			stale = append(stale, id)
		}
	}

	if len(stale) == 0 {
		return 0
	}
	s.mu.Lock()
	for _, id := range stale {
		delete(s.games, id)
	}
	s.mu.Unlock()
	log.Printf("INFO: Pruned %d solo games", len(stale))
	return len(stale)
}
