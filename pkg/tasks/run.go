package tasks

import (
	"fmt"
	"time"

	backoffv4 "github.com/cenkalti/backoff/v4"
	"github.com/sriinnu/ledgerflow/pkg/metrics"
)

// RunResult is the outcome of one RunNextTask call.
type RunResult struct {
	Status string `json:"status"` // idle, done, retry_scheduled, failed
	Task   *Task  `json:"task,omitempty"`
	Error  string `json:"error,omitempty"`
}

// retryDelay mirrors the original's `2 ** max(0, attempts-1)` seconds, built
// from a zero-jitter exponential backoff so the curve is owned by the
// cenkalti/backoff policy rather than hand rolled arithmetic.
func retryDelay(attempts int) time.Duration {
	b := backoffv4.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 24 * time.Hour
	b.MaxElapsedTime = 0
	b.Reset()

	n := attempts
	if n < 1 {
		n = 1
	}
	var d time.Duration
	for i := 0; i < n; i++ {
		d = b.NextBackOff()
	}
	return d
}

// RunNextTask claims one task (if any is claimable) and executes it via the
// executor registered for its taskType, retrying with exponential backoff
// up to maxRetries before dead-lettering it.
func (e *Engine) RunNextTask(workerID string, leaseTTL time.Duration) (RunResult, error) {
	task, ok, err := e.ClaimNextTask(workerID, leaseTTL)
	if err != nil {
		return RunResult{}, err
	}
	if !ok {
		return RunResult{Status: "idle"}, nil
	}

	e.mu.Lock()
	fn, known := e.executors[task.TaskType]
	e.mu.Unlock()

	timer := metrics.NewTimer()
	var execErr error
	var result map[string]interface{}
	if !known {
		execErr = fmt.Errorf("unsupported taskType: %s", task.TaskType)
	} else {
		result, execErr = fn(task.Payload)
	}
	timer.ObserveDurationVec(metrics.TaskExecutionDuration, task.TaskType)

	if execErr == nil {
		done, _, err := e.FinishTask(task.TaskID, FinishOptions{Status: StatusDone, Result: result})
		if err != nil {
			return RunResult{}, err
		}
		metrics.TasksCompletedTotal.WithLabelValues(task.TaskType, "done").Inc()
		return RunResult{Status: "done", Task: &done}, nil
	}

	if task.Attempts <= task.MaxRetries {
		delay := retryDelay(task.Attempts)
		queued, _, err := e.FinishTask(task.TaskID, FinishOptions{
			Status: StatusQueued, Error: execErr.Error(), RetryDelay: delay,
		})
		if err != nil {
			return RunResult{}, err
		}
		metrics.TasksCompletedTotal.WithLabelValues(task.TaskType, "retry_scheduled").Inc()
		return RunResult{Status: "retry_scheduled", Task: &queued, Error: execErr.Error()}, nil
	}

	failed, _, err := e.FinishTask(task.TaskID, FinishOptions{Status: StatusFailed, Error: execErr.Error()})
	if err != nil {
		return RunResult{}, err
	}
	metrics.TasksCompletedTotal.WithLabelValues(task.TaskType, "failed").Inc()
	if dlErr := e.appendDeadLetter(failed); dlErr != nil {
		e.logger.Error().Err(dlErr).Str("task_id", failed.TaskID).Msg("failed to record dead letter")
	}
	return RunResult{Status: "failed", Task: &failed, Error: execErr.Error()}, nil
}

// WorkerResult tallies the outcome of a RunWorker batch.
type WorkerResult struct {
	Processed int `json:"processed"`
	Done      int `json:"done"`
	Failed    int `json:"failed"`
	Retried   int `json:"retried"`
}

// RunWorker drains up to maxTasks claimable tasks, sleeping pollInterval
// between each so a busy queue doesn't starve other processes touching the
// same data directory.
func (e *Engine) RunWorker(workerID string, maxTasks int, pollInterval time.Duration) (WorkerResult, error) {
	if maxTasks < 1 {
		maxTasks = 1
	}
	var out WorkerResult
	for i := 0; i < maxTasks; i++ {
		res, err := e.RunNextTask(workerID, 0)
		if err != nil {
			return out, err
		}
		if res.Status == "idle" {
			break
		}
		out.Processed++
		switch res.Status {
		case "done":
			out.Done++
		case "failed":
			out.Failed++
		case "retry_scheduled":
			out.Retried++
		}
		if pollInterval > 0 {
			time.Sleep(pollInterval)
		}
	}
	return out, nil
}
