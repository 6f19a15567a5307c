package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"leetclash/internal/domain/model"
)

type soloFixture struct {
	svc   *SoloService
	clock *clockwork.FakeClock
	judge *fakeJudge
}

func newSoloFixture(t *testing.T) *soloFixture {
	t.Helper()
	f := &soloFixture{
		clock: clockwork.NewFakeClockAt(epoch),
		judge: &fakeJudge{verdict: model.JudgeResult{Success: true, Reason: model.ReasonPassed}},
	}
	f.svc = NewSoloService(NewProblemService(&fakeGenerator{}, &fakeProblemRepo{}), f.judge, f.clock, 24*time.Hour)
	return f
}

func TestSoloStartAndDrain(t *testing.T) {
	ctx := context.Background()
	f := newSoloFixture(t)

	m, err := f.svc.Start(ctx, "alice", ProblemSetRequest{Count: 3, Difficulty: model.DifficultyEasy})
	if err != nil {
		t.Fatal(err)
	}
	if m.Mode != model.ModeSolo || m.Status != model.StatusPlaying || len(m.Problems) != 3 {
		t.Fatalf("started %+v", m)
	}

	f.clock.Advance(60 * time.Second)
	got, err := f.svc.Get(ctx, m.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(got.Player(model.PlayerA).HP, 95) {
		t.Errorf("hp after a minute = %v, want 95", got.Player(model.PlayerA).HP)
	}

	if _, err := f.svc.Get(ctx, m.ID, "mallory"); !errors.Is(err, ErrNotYourSeat) {
		t.Errorf("stranger err = %v", err)
	}
	if _, err := f.svc.Get(ctx, "missing", "alice"); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestSoloSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("passing every problem wins", func(t *testing.T) {
		f := newSoloFixture(t)
		m, err := f.svc.Start(ctx, "alice", ProblemSetRequest{Difficulty: model.DifficultyHard, Ideas: []string{"two sum"}})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.svc.UpdateCode(ctx, m.ID, "alice", "def problem_a(x):\n    return x + 1"); err != nil {
			t.Fatal(err)
		}

		res, err := f.svc.Submit(ctx, m.ID, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if res.Match.Status != model.StatusOver || res.Match.WinnerInfo == nil || !res.Match.WinnerInfo.Won {
			t.Fatalf("result = %+v", res.Match)
		}
		if !res.Verdict.Success {
			t.Error("verdict not passed through")
		}
		if f.judge.codes[0] != "def problem_a(x):\n    return x + 1" {
			t.Errorf("judged code = %q", f.judge.codes[0])
		}
	})

	t.Run("failed attempt stays on the problem", func(t *testing.T) {
		f := newSoloFixture(t)
		f.judge.verdict = model.JudgeResult{Reason: model.ReasonError, Detail: "SyntaxError on line 2."}
		m, _ := f.svc.Start(ctx, "alice", ProblemSetRequest{Count: 3, Difficulty: model.DifficultyEasy})

		res, err := f.svc.Submit(ctx, m.ID, "alice")
		if err != nil {
			t.Fatal(err)
		}
		p := res.Match.Player(model.PlayerA)
		if p.CurrentProblem != 0 || p.IsSubmitting {
			t.Errorf("player = %+v", p)
		}
		if res.Match.Logs[0] != "❌ Failed problem_a. SyntaxError on line 2." {
			t.Errorf("log = %q", res.Match.Logs[0])
		}
	})

	t.Run("disposed while judging", func(t *testing.T) {
		f := newSoloFixture(t)
		f.judge.gate = make(chan struct{})
		m, _ := f.svc.Start(ctx, "alice", ProblemSetRequest{Count: 3, Difficulty: model.DifficultyEasy})

		done := make(chan error, 1)
		go func() {
			_, err := f.svc.Submit(ctx, m.ID, "alice")
			done <- err
		}()

		deadline := time.Now().Add(time.Second)
		for {
			got, err := f.svc.Get(ctx, m.ID, "alice")
			if err != nil {
				t.Fatal(err)
			}
			if got.Player(model.PlayerA).IsSubmitting {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("submission never started")
			}
			time.Sleep(time.Millisecond)
		}

		if _, err := f.svc.Submit(ctx, m.ID, "alice"); err == nil {
			t.Error("second submission accepted while judging")
		}
		if err := f.svc.Dispose(ctx, m.ID, "alice"); err != nil {
			t.Fatal(err)
		}
		close(f.judge.gate)

		if err := <-done; !errors.Is(err, ErrMatchNotFound) {
			t.Fatalf("err = %v, want not found", err)
		}
	})
}

func TestSoloPrune(t *testing.T) {
	ctx := context.Background()
	f := newSoloFixture(t)

	lost, _ := f.svc.Start(ctx, "alice", ProblemSetRequest{Count: 3, Difficulty: model.DifficultyEasy})
	f.clock.Advance(21 * time.Minute)
	live, _ := f.svc.Start(ctx, "bob", ProblemSetRequest{Count: 3, Difficulty: model.DifficultyEasy})

	if n := f.svc.Prune(); n != 0 {
		t.Fatalf("pruned %d games right after the loss", n)
	}
	got, err := f.svc.Get(ctx, lost.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusOver || got.WinnerInfo.Won {
		t.Fatalf("lost game = %+v", got.WinnerInfo)
	}

	f.clock.Advance(finishedGrace + time.Second)
	if n := f.svc.Prune(); n != 1 {
		t.Fatalf("pruned %d games, want 1", n)
	}
	if _, err := f.svc.Get(ctx, lost.ID, "alice"); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("finished game still readable: %v", err)
	}
	if _, err := f.svc.Get(ctx, live.ID, "bob"); err != nil {
		t.Errorf("live game pruned: %v", err)
	}
}
