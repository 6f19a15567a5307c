// Package session hosts live duels on this node: it follows the record,
// runs the 120 ms tick job while the duel is being played, and archives the
// result once the duel is over.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"leetclash/internal/common"
	"leetclash/internal/domain/game"
	"leetclash/internal/domain/model"
	"leetclash/internal/platform/lease"
)

type Matches interface {
	Tick(ctx context.Context, id string) (*model.Match, error)
	Subscribe(ctx context.Context, id string, fn func(*model.Match)) (func(), error)
}

type ResultRecorder interface {
	Record(ctx context.Context, m *model.Match) error
}

// Host owns at most one session per match id. Every node may host the same
// duel; the tick lease makes sure only one of them ticks at a time.
type Host struct {
	scheduler gocron.Scheduler
	matches   Matches
	results   ResultRecorder
	locker    lease.Locker
	leaseTTL  time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id string

	mu          sync.Mutex
	unsubscribe func()
	job         gocron.Job
	leaseToken  string
	recorded    bool
	stopped     bool
}

func NewHost(scheduler gocron.Scheduler, matches Matches, results ResultRecorder, locker lease.Locker, leaseTTL time.Duration) *Host {
	return &Host{
		scheduler: scheduler,
		matches:   matches,
		results:   results,
		locker:    locker,
		leaseTTL:  leaseTTL,
		sessions:  make(map[string]*session),
	}
}

func leaseKey(id string) string {
	return "tick:" + id
}

// Ensure starts hosting id unless this node already does. It is called when a
// duel is created or joined and when a client starts watching it.
func (h *Host) Ensure(ctx context.Context, id string) error {
	h.mu.Lock()
	if _, ok := h.sessions[id]; ok {
		h.mu.Unlock()
		return nil
	}
	s := &session{id: id}
	h.sessions[id] = s
	h.mu.Unlock()

	unsubscribe, err := h.matches.Subscribe(ctx, id, func(m *model.Match) { h.onSnapshot(s, m) })
	if err != nil {
		h.mu.Lock()
		delete(h.sessions, id)
		h.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		unsubscribe()
		return nil
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	log.Printf("INFO: Hosting match %s", id)
	return nil
}

// Hosting reports whether this node has a live session for id.
func (h *Host) Hosting(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sessions[id]
	return ok
}

// Ticking reports whether the session for id currently has a tick job.
func (h *Host) Ticking(id string) bool {
	h.mu.Lock()
	s, ok := h.sessions[id]
	h.mu.Unlock()
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job != nil
}

func (h *Host) onSnapshot(s *session, m *model.Match) {
	switch {
	case m == nil:
		log.Printf("INFO: Match %s is gone, ending its session", s.id)
		h.stop(s)
	case m.Status == model.StatusPlaying:
		h.startTicking(s)
	case m.Status == model.StatusOver:
		h.record(s, m)
		h.stop(s)
	}
}

func (h *Host) startTicking(s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.job != nil {
		return
	}
	job, err := h.scheduler.NewJob(
		gocron.DurationJob(game.TickInterval),
		gocron.NewTask(func() { h.tick(s) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("tick "+s.id),
		gocron.WithTags(s.id),
	)
	if err != nil {
		log.Printf("ERROR: Failed to schedule ticks for match %s: %v", s.id, err)
		return
	}
	s.job = job
}

// tick runs on the scheduler. Only the lease holder writes; the others keep
// trying to take the lease over in case the holder went away.
func (h *Host) tick(s *session) {
	ctx, cancel := context.WithTimeout(context.Background(), h.leaseTTL)
	defer cancel()

	if !h.holdLease(ctx, s) {
		return
	}

	m, err := h.matches.Tick(ctx, s.id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		go h.stop(s)
	case err != nil:
		log.Printf("WARN: Tick of match %s failed: %v", s.id, err)
	case m != nil && m.Status != model.StatusPlaying:
		go h.onSnapshot(s, m)
	}
}

func (h *Host) holdLease(ctx context.Context, s *session) bool {
	s.mu.Lock()
	token, stopped := s.leaseToken, s.stopped
	s.mu.Unlock()
	if stopped {
		return false
	}

	if token != "" {
		ok, err := h.locker.Renew(ctx, leaseKey(s.id), token, h.leaseTTL)
		if err != nil {
			log.Printf("WARN: Renewing tick lease of match %s: %v", s.id, err)
			return false
		}
		if ok {
			return true
		}
		log.Printf("WARN: Lost tick lease of match %s", s.id)
		s.mu.Lock()
		s.leaseToken = ""
		s.mu.Unlock()
	}

	token, ok, err := h.locker.Acquire(ctx, leaseKey(s.id), h.leaseTTL)
	if err != nil {
		log.Printf("WARN: Acquiring tick lease of match %s: %v", s.id, err)
		return false
	}
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		go h.locker.Release(context.Background(), leaseKey(s.id), token)
		return false
	}
	s.leaseToken = token
	return true
}

func (h *Host) record(s *session, m *model.Match) {
	s.mu.Lock()
	if s.recorded {
		s.mu.Unlock()
		return
	}
	s.recorded = true
	s.mu.Unlock()

	if h.results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.results.Record(ctx, m); err != nil {
		log.Printf("ERROR: %v", err)
	}
}

// stop removes the tick job, releases the lease and ends the subscription.
// Safe to call more than once and from inside the subscription callback.
// Snapshots that arrive after it find the session stopped.
func (h *Host) stop(s *session) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	job, token, unsubscribe := s.job, s.leaseToken, s.unsubscribe
	s.job, s.leaseToken, s.unsubscribe = nil, "", nil
	s.mu.Unlock()

	h.mu.Lock()
	if h.sessions[s.id] == s {
		delete(h.sessions, s.id)
	}
	h.mu.Unlock()

	if job != nil {
		h.removeJob(s.id, job.ID())
	}
	if token != "" {
		if err := h.locker.Release(context.Background(), leaseKey(s.id), token); err != nil {
			log.Printf("WARN: %v", err)
		}
	}
	if unsubscribe != nil {
		// Unsubscribing waits for the callback, which may be our caller.
		go unsubscribe()
	}
	log.Printf("INFO: Stopped hosting match %s", s.id)
}

func (h *Host) removeJob(matchID string, jobID uuid.UUID) {
	if err := h.scheduler.RemoveJob(jobID); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		log.Printf("WARN: Removing tick job of match %s: %v", matchID, err)
	}
}

// Sweep ends sessions whose record expired without anyone noticing, such as
// a duel nobody ever joined. Run periodically by the scheduler.
func (h *Host) Sweep(ctx context.Context) {
	h.mu.Lock()
	idle := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		s.mu.Lock()
		if s.job == nil {
			idle = append(idle, s)
		}
		s.mu.Unlock()
	}
	h.mu.Unlock()

	for _, s := range idle {
		m, err := h.matches.Tick(ctx, s.id)
		if errors.Is(err, common.ErrNotFound) {
			h.stop(s)
			continue
		}
		if err == nil && m != nil {
			h.onSnapshot(s, m)
		}
	}
}

// Stop ends every session. The scheduler itself is shut down by its owner.
func (h *Host) Stop() {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		h.stop(s)
	}
}
