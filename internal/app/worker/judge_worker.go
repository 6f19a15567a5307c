package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"leetclash/internal/app/judge"
	"leetclash/internal/domain/model"
	"leetclash/internal/domain/repository"
	"leetclash/internal/platform/queue"
)

// VerdictApplier writes a verdict back to the match the ticket came from.
// ReleaseSubmission only lowers the player's submission gate.
type VerdictApplier interface {
	CompleteSubmission(ctx context.Context, ticket model.SubmissionTicket, verdict model.JudgeResult) (*model.Match, error)
	ReleaseSubmission(ctx context.Context, ticket model.SubmissionTicket) error
}

// JudgeWorker pops submission tickets, asks the judge, and applies the
// verdict. Several loops run side by side so one slow judgement does not
// hold up other players.
type JudgeWorker struct {
	tickets  queue.Queue
	judge    judge.Judge
	matches  VerdictApplier
	parallel int
	backoff  func() retry.Backoff
}

func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(5, retry.WithCappedDuration(2*time.Second, retry.NewExponential(100*time.Millisecond)))
}

func NewJudgeWorker(tickets queue.Queue, j judge.Judge, matches VerdictApplier, parallel int) *JudgeWorker {
	if parallel <= 0 {
		parallel = 1
	}
	return &JudgeWorker{tickets: tickets, judge: j, matches: matches, parallel: parallel, backoff: defaultBackoff}
}

// Start blocks until ctx is done and every loop has returned.
func (w *JudgeWorker) Start(ctx context.Context) {
	log.Printf("Judge worker started with %d loops", w.parallel)
	var wg sync.WaitGroup
	for i := 0; i < w.parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
	log.Println("Judge worker stopped.")
}

func (w *JudgeWorker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, err := w.tickets.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("ERROR: Failed to pop submission ticket: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second): // Wait before retrying on other errors
			}
			continue
		}

		var ticket model.SubmissionTicket
		if err := json.Unmarshal(payload, &ticket); err != nil {
			log.Printf("ERROR: Dropping unreadable submission ticket: %v", err)
			continue
		}
		// A ticket that was popped is always judged and applied, even during
		// shutdown, so the player's submission gate is lowered.
		w.Process(context.WithoutCancel(ctx), ticket)
	}
}

func (w *JudgeWorker) Process(ctx context.Context, ticket model.SubmissionTicket) {
	log.Printf("Worker picked up ticket %s (match %s, %s)", ticket.ID, ticket.MatchID, ticket.PlayerID)
	started := time.Now()

	verdict := w.judge.Check(ctx, ticket.Code, ticket.Problem)
	if verdict.Reason == model.ReasonAPIError {
		log.Printf("WARN: Judge unavailable for ticket %s: %s", ticket.ID, verdict.Detail)
	}

	// The judge has been asked exactly once; only the bookkeeping is retried.
	err := w.retry(ctx, func(ctx context.Context) error {
		_, err := w.matches.CompleteSubmission(ctx, ticket, verdict)
		return err
	})
	if err == nil {
		log.Printf("INFO: Ticket %s judged %s in %s", ticket.ID, verdict.Reason, time.Since(started).Round(time.Millisecond))
		return
	}

	log.Printf("ERROR: Verdict %s of ticket %s is lost: %v", verdict.Reason, ticket.ID, err)
	err = w.retry(ctx, func(ctx context.Context) error {
		return w.matches.ReleaseSubmission(ctx, ticket)
	})
	if err != nil {
		log.Printf("ERROR: Submission gate of %s in match %s stays raised: %v", ticket.PlayerID, ticket.MatchID, err)
	}
}

// retry runs op until it succeeds, the backoff gives up, or the record turns
// out to be unreadable.
func (w *JudgeWorker) retry(ctx context.Context, op func(context.Context) error) error {
	return retry.Do(ctx, w.backoff(), func(ctx context.Context) error {
		err := op(ctx)
		if err == nil || errors.Is(err, repository.ErrMalformed) {
			return err
		}
		log.Printf("WARN: %v; retrying", err)
		return retry.RetryableError(err)
	})
}
