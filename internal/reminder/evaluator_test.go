package reminder

import (
	"testing"
	"time"

	"github.com/pathakanu/noteminder/internal/model"
)

func noteAt(id string, at *time.Time) model.Note {
	return model.Note{ID: id, NoteFields: model.NoteFields{Content: "note " + id, ReminderTime: at}}
}

func TestFormatRemaining(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{2 * time.Hour, "2h 0m"},
		{2*time.Hour + 59*time.Second, "2h 0m"},
		{90 * time.Minute, "1h 30m"},
		{59*time.Minute + 59*time.Second, "0h 59m"},
		{30 * time.Second, "0h 0m"},
		{49*time.Hour + 5*time.Minute, "49h 5m"},
		{-time.Minute, "0h 0m"},
	}
	for _, tc := range cases {
		if got := FormatRemaining(tc.in); got != tc.want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEvaluatorCountsDownUntilDue(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	at := start.Add(5 * time.Minute)
	e := NewEvaluator(noteAt("a", &at))

	var last time.Duration = 1<<63 - 1
	for now := start; now.Before(at); now = now.Add(CheckInterval) {
		st, entered := e.Check(now)
		if entered || st.State != Pending {
			t.Fatalf("fired early at %v", now)
		}
		if st.Remaining < 0 || st.Remaining >= last {
			t.Fatalf("remaining %v not strictly decreasing from %v", st.Remaining, last)
		}
		if st.Label != FormatRemaining(st.Remaining) {
			t.Fatalf("label %q does not match %v", st.Label, st.Remaining)
		}
		last = st.Remaining
	}

	st, entered := e.Check(at)
	if !entered || st.State != Triggered || st.Label != DueLabel || !st.Due {
		t.Fatalf("at reminder time: entered=%v status=%+v", entered, st)
	}
}

func TestEvaluatorFiresOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	e := NewEvaluator(noteAt("a", &past))

	transitions := 0
	for i := 0; i < 10; i++ {
		st, entered := e.Check(now.Add(time.Duration(i) * CheckInterval))
		if entered {
			transitions++
		}
		if st.Label != DueLabel {
			t.Fatalf("label = %q, want %q", st.Label, DueLabel)
		}
	}
	if transitions != 1 {
		t.Fatalf("transitions = %d, want 1", transitions)
	}
	if e.State() != Triggered {
		t.Fatalf("state = %v, want triggered", e.State())
	}
}

func TestEvaluatorDismissKeepsLatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	e := NewEvaluator(noteAt("a", &past))

	if _, entered := e.Check(now); !entered {
		t.Fatal("expected trigger")
	}
	if !e.Dismiss() || e.State() != Pending {
		t.Fatal("dismiss should return to pending")
	}
	if e.Dismiss() {
		t.Fatal("dismissing a pending note reports no change")
	}
	if _, entered := e.Check(now.Add(time.Minute)); entered {
		t.Fatal("fired again without reset")
	}
	if st := e.Status(now); st.Effect != "" {
		t.Fatalf("effect %q shown while pending", st.Effect)
	}

	e.Reset(e.Note())
	if _, entered := e.Check(now.Add(2 * time.Minute)); !entered {
		t.Fatal("expected trigger after reset")
	}
}

func TestEvaluatorWithoutReminderNeverChecks(t *testing.T) {
	e := NewEvaluator(noteAt("a", nil))
	now := time.Now()
	for i := 0; i < 5; i++ {
		st, entered := e.Check(now)
		if entered || st.HasReminder || st.Label != "" {
			t.Fatalf("unexpected status %+v", st)
		}
	}
	if e.Checks() != 0 {
		t.Fatalf("checks = %d, want 0", e.Checks())
	}
}

func TestEvaluatorEffectWhileTriggered(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	shake := model.EffectShake

	n := noteAt("a", &past)
	n.VisualEffect = &shake
	e := NewEvaluator(n)
	st, _ := e.Check(now)
	if st.Effect != model.EffectShake {
		t.Fatalf("effect = %q, want shake", st.Effect)
	}

	plain := NewEvaluator(noteAt("b", &past))
	st, _ = plain.Check(now)
	if st.Effect != model.EffectPulse {
		t.Fatalf("effect = %q, want default pulse", st.Effect)
	}
}
