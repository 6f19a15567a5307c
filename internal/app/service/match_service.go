package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"leetclash/internal/common"
	"leetclash/internal/domain/game"
	"leetclash/internal/domain/model"
	"leetclash/internal/domain/repository"
	"leetclash/internal/platform/queue"
	"leetclash/internal/platform/store"
)

const (
	matchIDLength   = 6
	matchIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	createAttempts  = 5
)

var (
	ErrMatchNotFound = common.WithCode("match_not_found", fmt.Errorf("game not found: %w", common.ErrNotFound))
	ErrMatchFull     = common.WithCode("match_full", fmt.Errorf("game is full: %w", common.ErrConflict))
	ErrJoinFailed    = common.WithCode("join_failed", fmt.Errorf("failed to join the game, please try again: %w", common.ErrTryAgain))
	ErrOwnMatch      = common.WithCode("own_match", fmt.Errorf("you cannot join your own game: %w", common.ErrConflict))
	ErrNotYourSeat   = common.WithCode("not_a_player", fmt.Errorf("you are not playing in this game: %w", common.ErrForbidden))
)

// MatchService runs duels. Every mutation is a transaction on the shared
// record; the judge call happens on a worker, outside any transaction.
type MatchService struct {
	matches  *repository.MatchStore
	problems *ProblemService
	tickets  queue.Queue
	clock    clockwork.Clock
	newID    func() string
}

func NewMatchService(matches *repository.MatchStore, problems *ProblemService, tickets queue.Queue, clock clockwork.Clock) *MatchService {
	return &MatchService{
		matches:  matches,
		problems: problems,
		tickets:  tickets,
		clock:    clock,
		newID:    NewMatchID,
	}
}

// NewMatchID returns a short upper-case base-36 id that players can type.
func NewMatchID() string {
	b := make([]byte, matchIDLength)
	for i := range b {
		b[i] = matchIDAlphabet[rand.IntN(len(matchIDAlphabet))]
	}
	return string(b)
}

// NormalizeMatchID upper-cases user-typed ids.
func NormalizeMatchID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Create generates the problem set and stores a waiting duel with the caller
// in seat A. Nothing is stored when generation fails.
func (s *MatchService) Create(ctx context.Context, userID string, req ProblemSetRequest) (*model.Match, error) {
	problems, err := s.problems.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		m, err := game.NewDuel(s.newID(), problems, req.Difficulty, userID, s.clock.Now())
		if err != nil {
			return nil, err
		}
		err = s.matches.Create(ctx, m)
		if errors.Is(err, repository.ErrMatchExists) {
			log.Printf("WARN: match id %s already taken, retrying", m.ID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to store match: %w", err)
		}
		log.Printf("INFO: Match %s created with %d %s problems", m.ID, len(problems), req.Difficulty)
		s.problems.Archive(context.WithoutCancel(ctx), m.ID, req.Difficulty, problems)
		return m, nil
	}
	return nil, fmt.Errorf("could not allocate a match id: %w", common.ErrTryAgain)
}

// Join takes seat B. Of two concurrent joins exactly one succeeds; the other
// is told the game is full.
func (s *MatchService) Join(ctx context.Context, id, userID string) (*model.Match, error) {
	id = NormalizeMatchID(id)

	existing, err := s.matches.Get(ctx, id)
	if err != nil {
		return nil, s.classify(err)
	}
	if userID != "" && existing.Player(model.PlayerA) != nil && existing.Player(model.PlayerA).UserID == userID {
		return nil, ErrOwnMatch
	}

	joined, err := s.matches.Update(ctx, id, func(current *model.Match) (*model.Match, error) {
		next, ok := game.Join(current, userID, s.clock.Now())
		if !ok {
			return nil, store.ErrAborted
		}
		return next, nil
	})
	if err == nil {
		log.Printf("INFO: Match %s started", id)
		return joined, nil
	}
	if !errors.Is(err, store.ErrAborted) {
		return nil, s.classify(err)
	}

	// The transaction declined to commit; a fresh read says why.
	after, readErr := s.matches.Get(ctx, id)
	switch {
	case errors.Is(readErr, store.ErrNotFound):
		return nil, ErrMatchNotFound
	case readErr == nil && after.Player(model.PlayerB) != nil:
		return nil, ErrMatchFull
	default:
		return nil, ErrJoinFailed
	}
}

// Get returns the record as of now, with elapsed drain applied to the view
// but not written back.
func (s *MatchService) Get(ctx context.Context, id string) (*model.Match, error) {
	m, err := s.matches.Get(ctx, NormalizeMatchID(id))
	if err != nil {
		return nil, s.classify(err)
	}
	return game.Tick(m, s.clock.Now()), nil
}

func (s *MatchService) Subscribe(ctx context.Context, id string, fn func(*model.Match)) (func(), error) {
	return s.matches.Subscribe(ctx, NormalizeMatchID(id), fn)
}

// Tick drains HP and settles the outcome in one transaction. It writes only
// when something changed and returns the latest record either way.
func (s *MatchService) Tick(ctx context.Context, id string) (*model.Match, error) {
	var latest *model.Match
	committed, err := s.matches.Update(ctx, id, func(current *model.Match) (*model.Match, error) {
		latest = current
		if current == nil {
			return nil, ErrMatchNotFound
		}
		next := game.Tick(current, s.clock.Now())
		if next == current {
			return nil, store.ErrAborted
		}
		return next, nil
	})
	switch {
	case err == nil:
		return committed, nil
	case errors.Is(err, store.ErrAborted):
		return latest, nil
	default:
		return nil, s.classify(err)
	}
}

// UpdateCode replaces the caller's editor contents. Last write wins.
func (s *MatchService) UpdateCode(ctx context.Context, id, userID, code string) error {
	_, err := s.matches.Update(ctx, NormalizeMatchID(id), func(current *model.Match) (*model.Match, error) {
		if current == nil {
			return nil, ErrMatchNotFound
		}
		seat, ok := current.SeatOf(userID)
		if !ok {
			return nil, ErrNotYourSeat
		}
		return game.SetCode(current, seat, code), nil
	})
	return s.classify(err)
}

// Submit raises the caller's submission gate and queues the snapshot for
// judging. The verdict is applied later by CompleteSubmission.
func (s *MatchService) Submit(ctx context.Context, id, userID string) (*model.SubmissionTicket, error) {
	id = NormalizeMatchID(id)

	snapshot, err := s.matches.Get(ctx, id)
	if err != nil {
		return nil, s.classify(err)
	}
	seat, ok := snapshot.SeatOf(userID)
	if !ok {
		return nil, ErrNotYourSeat
	}
	ticket, err := game.NewTicket(snapshot, seat, uuid.NewString(), s.clock.Now())
	if err != nil {
		return nil, err
	}

	_, err = s.matches.Update(ctx, id, func(current *model.Match) (*model.Match, error) {
		if current == nil {
			return nil, ErrMatchNotFound
		}
		return game.MarkSubmitting(current, seat)
	})
	if err != nil {
		return nil, s.classify(err)
	}

	payload, err := json.Marshal(ticket)
	if err == nil {
		err = s.tickets.Push(ctx, payload)
	}
	if err != nil {
		log.Printf("ERROR: Failed to queue ticket %s of match %s: %v", ticket.ID, id, err)
		if err := s.release(context.WithoutCancel(ctx), id, seat); err != nil {
			log.Printf("ERROR: %v", err)
		}
		return nil, fmt.Errorf("failed to queue submission: %w", common.ErrServiceUnavailable)
	}
	log.Printf("INFO: Ticket %s queued for %s in match %s (problem %d)", ticket.ID, seat, id, ticket.ProblemIndex)
	return &ticket, nil
}

// CompleteSubmission applies a verdict. A record or player that vanished
// while the judge ran makes it a no-op.
func (s *MatchService) CompleteSubmission(ctx context.Context, ticket model.SubmissionTicket, verdict model.JudgeResult) (*model.Match, error) {
	next, err := s.matches.Update(ctx, ticket.MatchID, func(current *model.Match) (*model.Match, error) {
		resolved, ok := game.ResolveSubmission(current, ticket, verdict, s.clock.Now())
		if !ok {
			return nil, store.ErrAborted
		}
		return resolved, nil
	})
	if errors.Is(err, store.ErrAborted) {
		log.Printf("INFO: Dropping verdict of ticket %s; match %s or its player is gone", ticket.ID, ticket.MatchID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply verdict of ticket %s: %w", ticket.ID, err)
	}
	return next, nil
}

// ReleaseSubmission lowers the ticket's submission gate without applying a
// verdict. Workers fall back to it when the verdict cannot be written.
func (s *MatchService) ReleaseSubmission(ctx context.Context, ticket model.SubmissionTicket) error {
	return s.release(ctx, ticket.MatchID, ticket.PlayerID)
}

func (s *MatchService) release(ctx context.Context, id string, seat model.PlayerID) error {
	_, err := s.matches.Update(ctx, id, func(current *model.Match) (*model.Match, error) {
		p := current.Player(seat)
		if p == nil || !p.IsSubmitting {
			return nil, store.ErrAborted
		}
		next := current.Clone()
		next.Players[seat].IsSubmitting = false
		return next, nil
	})
	if err != nil && !errors.Is(err, store.ErrAborted) {
		return fmt.Errorf("failed to release submission gate of %s in match %s: %w", seat, id, err)
	}
	return nil
}

// classify maps store errors onto the errors handlers report.
func (s *MatchService) classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repository.ErrMalformed):
		log.Printf("ERROR: %v", err)
		return fmt.Errorf("game record is unreadable: %w", common.ErrInternalServer)
	}
	return err
}

func unixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
