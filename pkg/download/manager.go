package download

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bugmaschine/epfetch/pkg/progress"
)

// Task is a unit of work for the Scheduler.
type Task struct {
	Label string
	Run   func(ctx context.Context) (Outcome, error)
}

// Summary counts terminal outcomes of a batch.
type Summary struct {
	Completed int
	Skipped   int
	Failed    int
	Bytes     int64
}

func (s *Summary) add(o Outcome) {
	switch o.Status {
	case Completed:
		s.Completed++
	case Skipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Bytes += o.Bytes
}

func (s Summary) Total() int {
	return s.Completed + s.Skipped + s.Failed
}

// Scheduler runs tasks with a fixed concurrency cap. Failures are isolated
// per task and never stop the batch.
type Scheduler struct {
	maxConcurrent int

	// OnOutcome is called once per task after it reached a terminal state.
	// It may be called concurrently.
	OnOutcome func(Task, Outcome)
}

func NewScheduler(maxConcurrent int) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Scheduler{maxConcurrent: maxConcurrent}
}

// RunAll returns once every task has finished.
func (s *Scheduler) RunAll(ctx context.Context, tasks []Task) Summary {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		summary Summary
	)
	g.SetLimit(s.maxConcurrent)

	for _, task := range tasks {
		slog.Debug("Scheduling task", "task", task.Label)
		g.Go(func() error {
			outcome := s.run(ctx, task)

			mu.Lock()
			summary.add(outcome)
			mu.Unlock()

			switch outcome.Status {
			case Failed:
				slog.Warn("Failed download", "task", task.Label, "error", outcome.Err)
			case Skipped:
				slog.Info("Skipped download", "task", task.Label, "reason", outcome.Reason)
			default:
				slog.Debug("Download finished successfully", "task", task.Label)
			}

			if s.OnOutcome != nil {
				s.OnOutcome(task, outcome)
			}
			return nil
		})
	}

	_ = g.Wait()
	return summary
}

func (s *Scheduler) run(ctx context.Context, task Task) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("task %s panicked: %v", task.Label, r)
			outcome = Outcome{Status: Failed, Err: err}
		}
	}()

	outcome, err := task.Run(ctx)
	if err != nil && outcome.Status != Failed {
		outcome.Status = Failed
	}
	if outcome.Status == Failed && outcome.Err == nil {
		outcome.Err = err
	}
	return outcome
}

// Tasks turns jobs into scheduler tasks fetched by d.
func (d *Downloader) Tasks(jobs []Job, sink progress.Sink) []Task {
	tasks := make([]Task, 0, len(jobs))
	for _, job := range jobs {
		label := job.Label
		if label == "" {
			label = job.URL
		}
		tasks = append(tasks, Task{
			Label: label,
			Run: func(ctx context.Context) (Outcome, error) {
				return d.Fetch(ctx, job, sink)
			},
		})
	}
	return tasks
}
