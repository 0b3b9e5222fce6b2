package tasks

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/idgen"
	"github.com/sriinnu/ledgerflow/pkg/layout"
	"github.com/sriinnu/ledgerflow/pkg/log"
	"github.com/sriinnu/ledgerflow/pkg/metrics"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

// ExecutorFunc runs one task's payload to completion and returns a result
// document. Callers register the task types they support; an unregistered
// taskType fails the task rather than panicking the engine.
type ExecutorFunc func(payload map[string]interface{}) (map[string]interface{}, error)

// Engine owns the durable task queue document for one data directory. Every
// mutation is a read-modify-write of the whole file under a process-local
// mutex, matching the single-writer assumption of a local-first tool.
type Engine struct {
	layout    layout.Layout
	logger    zerolog.Logger
	mu        sync.Mutex
	executors map[string]ExecutorFunc
}

// New returns an Engine rooted at l with no executors registered.
func New(l layout.Layout) *Engine {
	return &Engine{
		layout:    l,
		logger:    log.WithComponent("tasks"),
		executors: make(map[string]ExecutorFunc),
	}
}

// RegisterExecutor binds taskType to fn. Registering the same taskType twice
// replaces the previous binding.
func (e *Engine) RegisterExecutor(taskType string, fn ExecutorFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executors[taskType] = fn
}

func (e *Engine) readQueue() (queueDoc, error) {
	doc := defaultQueueDoc()
	if err := atomicfile.ReadJSON(e.layout.AutomationQueuePath(), &doc); err != nil {
		return queueDoc{}, err
	}
	if doc.Tasks == nil {
		doc.Tasks = []Task{}
	}
	return doc, nil
}

func (e *Engine) writeQueue(doc queueDoc) error {
	return atomicfile.WriteJSON(e.layout.AutomationQueuePath(), doc)
}

// ListTasks returns tasks sorted by createdAt ascending, optionally filtered
// to a set of statuses and capped to the most recent limit
// entries (limit < 0 means unbounded).
func (e *Engine) ListTasks(statuses []Status, limit int) ([]Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc, err := e.readQueue()
	if err != nil {
		return nil, err
	}
	wanted := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	items := make([]Task, 0, len(doc.Tasks))
	for _, t := range doc.Tasks {
		if len(wanted) > 0 && !wanted[t.Status] {
			continue
		}
		items = append(items, t)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt < items[j].CreatedAt })
	if limit >= 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

// EnqueueOptions configures a new task at enqueue time.
type EnqueueOptions struct {
	Payload    map[string]interface{}
	RunAt      string
	MaxRetries int
	Source     string
}

// EnqueueTask appends a new queued task and returns it.
func (e *Engine) EnqueueTask(taskType string, opts EnqueueOptions) (Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.readQueue()
	if err != nil {
		return Task{}, err
	}

	available, err := timeutil.ParseISO(opts.RunAt)
	if err != nil {
		return Task{}, fmt.Errorf("enqueue task: %w", err)
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	source := opts.Source
	if source == "" {
		source = "manual"
	}
	payload := opts.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}

	now := timeutil.NowISO()
	task := Task{
		TaskID:      idgen.NewID(idgen.PrefixTask),
		TaskType:    taskType,
		Payload:     payload,
		Status:      StatusQueued,
		Attempts:    0,
		MaxRetries:  maxRetries,
		AvailableAt: timeutil.FormatISO(available),
		CreatedAt:   now,
		UpdatedAt:   now,
		Source:      source,
	}
	doc.Tasks = append(doc.Tasks, task)
	if err := e.writeQueue(doc); err != nil {
		return Task{}, err
	}
	e.logger.Info().Str("task_id", task.TaskID).Str("task_type", taskType).Str("source", source).Msg("task enqueued")
	return task, nil
}

// ClaimNextTask atomically picks the oldest-available queued task (or a
// running task whose lease has expired) and marks it running under
// workerID. It returns ok=false when there is nothing claimable.
func (e *Engine) ClaimNextTask(workerID string, leaseTTL time.Duration) (Task, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.readQueue()
	if err != nil {
		return Task{}, false, err
	}
	if leaseTTL <= 0 {
		leaseTTL = 300 * time.Second
	}
	now := time.Now().UTC()

	staleRunning := func(t Task) bool {
		if t.Status != StatusRunning {
			return false
		}
		lockedAt, err := timeutil.ParseISO(t.LockedAt)
		if err != nil {
			return true
		}
		return now.Sub(lockedAt) > leaseTTL
	}

	bestIdx := -1
	var bestAvailable time.Time
	for i, t := range doc.Tasks {
		if t.Status != StatusQueued && !(t.Status == StatusRunning && staleRunning(t)) {
			continue
		}
		availableAt, err := timeutil.ParseISO(t.AvailableAt)
		if err != nil || availableAt.After(now) {
			continue
		}
		if bestIdx == -1 || availableAt.Before(bestAvailable) {
			bestIdx = i
			bestAvailable = availableAt
		}
	}
	if bestIdx == -1 {
		return Task{}, false, nil
	}

	nowISO := timeutil.NowISO()
	doc.Tasks[bestIdx].Status = StatusRunning
	doc.Tasks[bestIdx].LockedAt = nowISO
	doc.Tasks[bestIdx].WorkerID = workerID
	doc.Tasks[bestIdx].UpdatedAt = nowISO
	doc.Tasks[bestIdx].Attempts++
	claimed := doc.Tasks[bestIdx]

	if err := e.writeQueue(doc); err != nil {
		return Task{}, false, err
	}
	return claimed, true, nil
}

// FinishOptions describes the outcome of executing a claimed task.
type FinishOptions struct {
	Status           Status
	Result           map[string]interface{}
	Error            string
	RetryDelay       time.Duration
	ClearErrorResult bool
}

// FinishTask records a task's outcome. Re-queuing (Status == StatusQueued)
// with a positive RetryDelay pushes availableAt forward and clears the
// lease; terminal statuses stamp finishedAt.
func (e *Engine) FinishTask(taskID string, opts FinishOptions) (Task, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.readQueue()
	if err != nil {
		return Task{}, false, err
	}
	idx := -1
	for i, t := range doc.Tasks {
		if t.TaskID == taskID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Task{}, false, nil
	}

	row := &doc.Tasks[idx]
	row.Status = opts.Status
	row.UpdatedAt = timeutil.NowISO()
	if opts.Result != nil {
		row.Result = opts.Result
	}
	if opts.Error != "" {
		row.Error = opts.Error
	}
	if opts.Status == StatusQueued && opts.RetryDelay > 0 {
		row.AvailableAt = timeutil.FormatISO(time.Now().UTC().Add(opts.RetryDelay))
		row.LockedAt = ""
		row.WorkerID = ""
	}
	if opts.Status == StatusDone || opts.Status == StatusFailed {
		row.FinishedAt = timeutil.NowISO()
	}
	found := *row

	if err := e.writeQueue(doc); err != nil {
		return Task{}, false, err
	}
	e.observeQueueDepth(doc)
	return found, true, nil
}

func (e *Engine) observeQueueDepth(doc queueDoc) {
	counts := map[Status]int{}
	for _, t := range doc.Tasks {
		counts[t.Status]++
	}
	for _, st := range []Status{StatusQueued, StatusRunning, StatusDone, StatusFailed} {
		metrics.TasksQueueDepth.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
}
