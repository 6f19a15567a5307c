package game

import (
	"math"
	"testing"
	"time"

	"leetclash/internal/domain/model"
)

var epoch = time.UnixMilli(1_700_000_000_000)

func testProblems(n int) []model.Problem {
	problems := make([]model.Problem, n)
	complexities := []string{"O(1)", "O(n)", "O(n log n)"}
	for i := range problems {
		problems[i] = model.Problem{
			ID:         "problem_" + string(rune('a'+i)),
			Complexity: complexities[i%len(complexities)],
			Template:   "def problem_" + string(rune('a'+i)) + "():\n    pass",
		}
	}
	return problems
}

func mustSolo(t *testing.T, n int) *model.Match {
	t.Helper()
	m, err := NewSolo("solo1", testProblems(n), model.DifficultyEasy, "", epoch)
	if err != nil {
		t.Fatalf("NewSolo: %v", err)
	}
	return m
}

func mustDuel(t *testing.T, n int) *model.Match {
	t.Helper()
	m, err := NewDuel("ABC123", testProblems(n), model.DifficultyMedium, "user-a", epoch)
	if err != nil {
		t.Fatalf("NewDuel: %v", err)
	}
	joined, ok := Join(m, "user-b", epoch)
	if !ok {
		t.Fatal("expected join to succeed")
	}
	return joined
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApplyDrain(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		wantHP   float64
		wantTick int64
	}{
		{name: "sub-tick leaves record untouched", elapsed: 119 * time.Millisecond, wantHP: 100, wantTick: 0},
		{name: "one tick", elapsed: 120 * time.Millisecond, wantHP: 99.99, wantTick: 120},
		{name: "remainder is carried", elapsed: 250 * time.Millisecond, wantHP: 99.98, wantTick: 240},
		{name: "one second", elapsed: time.Second, wantHP: 99.92, wantTick: 960},
		{name: "never below zero", elapsed: time.Hour, wantHP: 0, wantTick: 3_600_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustSolo(t, 1)
			next := ApplyDrain(m, epoch.Add(tt.elapsed))

			if got := next.Player(model.PlayerA).HP; !almostEqual(got, tt.wantHP) {
				t.Errorf("hp = %v, want %v", got, tt.wantHP)
			}
			if got := *next.LastTickTime - epoch.UnixMilli(); got != tt.wantTick {
				t.Errorf("lastTickTime advanced by %d ms, want %d", got, tt.wantTick)
			}
			if m.Player(model.PlayerA).HP != StartingHP {
				t.Error("input record was mutated")
			}
		})
	}
}

func TestApplyDrainIsIdempotentWithinATick(t *testing.T) {
	m := mustSolo(t, 1)
	now := epoch.Add(500 * time.Millisecond)

	once := ApplyDrain(m, now)
	twice := ApplyDrain(once, now)

	if twice != once {
		t.Fatal("second drain at the same instant should return the record unchanged")
	}
}

func TestApplyDrainSplitEqualsSingleStep(t *testing.T) {
	m := mustSolo(t, 1)
	end := epoch.Add(7 * time.Second)

	single := ApplyDrain(m, end)

	stepped := m
	for at := epoch; !at.After(end); at = at.Add(50 * time.Millisecond) {
		stepped = ApplyDrain(stepped, at)
	}
	stepped = ApplyDrain(stepped, end)

	if !almostEqual(single.Player(model.PlayerA).HP, stepped.Player(model.PlayerA).HP) {
		t.Fatalf("single step hp %v != stepped hp %v", single.Player(model.PlayerA).HP, stepped.Player(model.PlayerA).HP)
	}
	if *single.LastTickTime != *stepped.LastTickTime {
		t.Fatalf("single step tick %d != stepped tick %d", *single.LastTickTime, *stepped.LastTickTime)
	}
}

func TestApplyDrainSkipsIdleRecords(t *testing.T) {
	waiting, err := NewDuel("ABC123", testProblems(1), model.DifficultyEasy, "", epoch)
	if err != nil {
		t.Fatal(err)
	}
	if got := ApplyDrain(waiting, epoch.Add(time.Minute)); got != waiting {
		t.Error("waiting duel should not drain")
	}

	over := mustSolo(t, 1)
	over.Status = model.StatusOver
	if got := ApplyDrain(over, epoch.Add(time.Minute)); got != over {
		t.Error("finished match should not drain")
	}
}

func TestDuelDrainsBothPlayersEqually(t *testing.T) {
	m := mustDuel(t, 2)
	next := ApplyDrain(m, epoch.Add(12*time.Second))

	a, b := next.Player(model.PlayerA).HP, next.Player(model.PlayerB).HP
	if !almostEqual(a, 99) || !almostEqual(b, 99) {
		t.Fatalf("hp = (%v, %v), want (99, 99)", a, b)
	}
}

func TestTickEndsSoloGameOnDrain(t *testing.T) {
	m := mustSolo(t, 3)

	drained := ApplyDrain(m, epoch.Add(1_200_000*time.Millisecond))
	if drained.Player(model.PlayerA).HP != 0 {
		t.Fatalf("hp = %v, want 0", drained.Player(model.PlayerA).HP)
	}
	if drained.Status != model.StatusPlaying {
		t.Fatal("drain alone must not settle the outcome")
	}

	over := CheckGameOver(drained)
	if over.Status != model.StatusOver {
		t.Fatalf("status = %s, want over", over.Status)
	}
	if over.WinnerInfo == nil || over.WinnerInfo.Won {
		t.Fatalf("winnerInfo = %+v, want a loss", over.WinnerInfo)
	}

	if ticked := Tick(m, epoch.Add(1_200_000*time.Millisecond)); ticked.Status != model.StatusOver {
		t.Fatal("Tick should drain and settle in one step")
	}
}
