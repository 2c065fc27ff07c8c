package campaign

import (
	"testing"

	"github.com/xraph/dunning/notify"
)

func TestEvaluateResponseResolvesImmediately(t *testing.T) {
	// A response at any step resolves recovered, regardless of elapsed time.
	for step := 0; step <= 4; step++ {
		d := Evaluate(step, 4, 0, true, 1)
		if d.Action != ActionResolve {
			t.Errorf("step %d with response: action = %s, want resolve", step, d.Action)
		}
	}
}

func TestEvaluateExhaustionAbandons(t *testing.T) {
	d := Evaluate(4, 4, 0, false, 0)
	if d.Action != ActionAbandon {
		t.Errorf("step 4/4 without response: action = %s, want abandon", d.Action)
	}
}

func TestEvaluateAdvanceAndWait(t *testing.T) {
	tests := []struct {
		name        string
		currentStep int
		daysElapsed int
		stepGap     int
		want        Action
		wantNext    int
	}{
		{"step 1 due after gap", 0, 1, 1, ActionAdvance, 1},
		{"step 1 not yet due", 0, 0, 1, ActionWait, 0},
		{"step 2 due", 1, 4, 4, ActionAdvance, 2},
		{"step 2 overdue", 1, 9, 4, ActionAdvance, 2},
		{"step 3 waiting", 2, 3, 5, ActionWait, 0},
		{"step 4 due", 3, 3, 3, ActionAdvance, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.currentStep, 4, tt.daysElapsed, false, tt.stepGap)
			if d.Action != tt.want {
				t.Errorf("action = %s, want %s", d.Action, tt.want)
			}
			if d.NextStep != tt.wantNext {
				t.Errorf("next step = %d, want %d", d.NextStep, tt.wantNext)
			}
		})
	}
}

func TestDefaultPlan(t *testing.T) {
	p := DefaultPlan()

	if p.TotalSteps() != 4 {
		t.Fatalf("total steps = %d, want 4", p.TotalSteps())
	}

	wantDays := []int{1, 5, 10, 13}
	for i, want := range wantDays {
		s := p.StepAt(i + 1)
		if s == nil {
			t.Fatalf("step %d missing", i+1)
		}
		if s.Day != want {
			t.Errorf("step %d day = %d, want %d", i+1, s.Day, want)
		}
	}

	// Email only for the first two steps, SMS added thereafter.
	for i := 1; i <= 4; i++ {
		s := p.StepAt(i)
		hasSMS := false
		for _, ch := range s.Channels {
			if ch == notify.ChannelSMS {
				hasSMS = true
			}
		}
		if i <= 2 && hasSMS {
			t.Errorf("step %d should be email only", i)
		}
		if i > 2 && !hasSMS {
			t.Errorf("step %d should include sms", i)
		}
	}

	if p.StepAt(0) != nil || p.StepAt(5) != nil {
		t.Error("out-of-range steps should be nil")
	}
}

func TestPlanGapBeforeStep(t *testing.T) {
	p := DefaultPlan()

	wantGaps := map[int]int{1: 1, 2: 4, 3: 5, 4: 3}
	for step, want := range wantGaps {
		if got := p.GapBeforeStep(step); got != want {
			t.Errorf("gap before step %d = %d, want %d", step, got, want)
		}
	}
}

func TestCampaignStepInvariant(t *testing.T) {
	// Advancing through every step never pushes current_step past total_steps
	// before abandonment fires.
	p := DefaultPlan()
	c := &Campaign{
		TotalSteps: p.TotalSteps(),
	}

	for i := 0; i < 10; i++ {
		d := EvaluateCampaign(c, p, 30) // far past every gap
		switch d.Action {
		case ActionAdvance:
			c.CurrentStep = d.NextStep
			if c.CurrentStep > c.TotalSteps {
				t.Fatalf("current_step %d exceeded total_steps %d", c.CurrentStep, c.TotalSteps)
			}
		case ActionAbandon:
			if c.CurrentStep != c.TotalSteps {
				t.Fatalf("abandoned at step %d, want %d", c.CurrentStep, c.TotalSteps)
			}
			return
		default:
			t.Fatalf("unexpected action %s", d.Action)
		}
	}
	t.Fatal("campaign never abandoned")
}
