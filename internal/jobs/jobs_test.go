package jobs

import (
	"context"
	"testing"
	"time"

	"knowledgebot/internal/models"
)

type countingWarmer struct {
	calls       int
	hit         bool
	hadDeadline bool
}

func (w *countingWarmer) Get(ctx context.Context) (*models.KnowledgeSnapshot, bool) {
	w.calls++
	_, w.hadDeadline = ctx.Deadline()
	return &models.KnowledgeSnapshot{
		Documents: []models.KnowledgeDocument{{ID: "a"}},
		Failed:    []models.DocumentFailure{{ID: "b", Error: "timeout"}},
	}, w.hit
}

func TestValidateCron(t *testing.T) {
	tests := []struct {
		expr  string
		valid bool
	}{
		{"*/15 * * * *", true},
		{"0 6 * * 1-5", true},
		{"@hourly", false},
		{"0 */5 * * * *", false}, // seconds field
		{"every hour", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCron(tt.expr)
			if tt.valid && err != nil {
				t.Errorf("Expected %q to be valid: %v", tt.expr, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected %q to be rejected", tt.expr)
			}
		})
	}
}

func TestKnowledgeRefreshJob_Run(t *testing.T) {
	for _, hit := range []bool{true, false} {
		warmer := &countingWarmer{hit: hit}
		job := NewKnowledgeRefreshJob(warmer, time.Minute)

		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if warmer.calls != 1 {
			t.Errorf("Expected 1 cache call, got %d", warmer.calls)
		}
		if !warmer.hadDeadline {
			t.Error("Expected the run to be bounded by the job timeout")
		}
	}
}

func TestJobScheduler_Register(t *testing.T) {
	scheduler, err := NewJobScheduler()
	if err != nil {
		t.Fatalf("NewJobScheduler: %v", err)
	}
	defer scheduler.Stop()

	job := NewKnowledgeRefreshJob(&countingWarmer{}, time.Minute)
	if err := scheduler.Register("bad", "not a cron", job); err == nil {
		t.Error("Expected invalid expression to be rejected")
	}
	if err := scheduler.Register(KnowledgeRefreshJobName, "*/10 * * * *", job); err != nil {
		t.Fatalf("Register: %v", err)
	}

	scheduler.Start()
	next, err := scheduler.NextRun(KnowledgeRefreshJobName)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	if next.IsZero() || next.Sub(time.Now()) > 10*time.Minute+time.Second {
		t.Errorf("Unexpected next run %v", next)
	}
	if next.Minute()%10 != 0 {
		t.Errorf("Expected next run on a 10 minute boundary, got %v", next)
	}
}
