package tasks

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/metrics"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

// Schedule is a job's recurrence: daily/weekly at a fixed HH:MM, or every N
// hours on the hour.
type Schedule struct {
	Freq     string `json:"freq"` // daily, weekly, hourly
	At       string `json:"at,omitempty"`
	Day      string `json:"day,omitempty"`
	Interval int    `json:"interval,omitempty"`
}

// JobTask is the task template a due job enqueues.
type JobTask struct {
	Type       string                 `json:"type"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	MaxRetries int                    `json:"maxRetries,omitempty"`
}

// Job binds a Schedule to a JobTask template.
type Job struct {
	ID       string   `json:"id"`
	Enabled  *bool    `json:"enabled,omitempty"`
	Schedule Schedule `json:"schedule"`
	Task     JobTask  `json:"task"`
}

func (j Job) enabled() bool {
	return j.Enabled == nil || *j.Enabled
}

type jobsDoc struct {
	Version int   `json:"version"`
	Jobs    []Job `json:"jobs"`
}

type schedulerState struct {
	Version   int               `json:"version"`
	LastSlots map[string]string `json:"lastSlots"`
}

// ReadJobs returns the configured recurring jobs.
func (e *Engine) ReadJobs() (jobsDoc, error) {
	doc := jobsDoc{Version: 1, Jobs: []Job{}}
	if err := atomicfile.ReadJSON(e.layout.AutomationJobsPath(), &doc); err != nil {
		return jobsDoc{}, err
	}
	if doc.Jobs == nil {
		doc.Jobs = []Job{}
	}
	return doc, nil
}

// WriteJobs validates and persists the full job list.
func (e *Engine) WriteJobs(jobs []Job) (jobsDoc, error) {
	for _, j := range jobs {
		if strings.TrimSpace(j.ID) == "" {
			return jobsDoc{}, fmt.Errorf("each job requires id")
		}
		if strings.TrimSpace(j.Task.Type) == "" {
			return jobsDoc{}, fmt.Errorf("job %s requires task.type", j.ID)
		}
	}
	doc := jobsDoc{Version: 1, Jobs: jobs}
	if err := atomicfile.WriteJSON(e.layout.AutomationJobsPath(), doc); err != nil {
		return jobsDoc{}, err
	}
	return doc, nil
}

func (e *Engine) readState() (schedulerState, error) {
	st := schedulerState{Version: 1, LastSlots: map[string]string{}}
	if err := atomicfile.ReadJSON(e.layout.AutomationStatePath(), &st); err != nil {
		return schedulerState{}, err
	}
	if st.LastSlots == nil {
		st.LastSlots = map[string]string{}
	}
	return st, nil
}

func (e *Engine) writeState(st schedulerState) error {
	return atomicfile.WriteJSON(e.layout.AutomationStatePath(), st)
}

var weekdayNames = [...]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

func parseHHMM(hm string) (int, int, error) {
	parts := strings.SplitN(hm, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid HH:MM value %q", hm)
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid HH:MM value %q", hm)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid HH:MM value %q", hm)
	}
	return hh, mm, nil
}

// jobSlot computes the recurrence slot a job would occupy at "at", or ""
// when the job is not due. A slot key already seen for this job id means
// that occurrence has already been enqueued.
func jobSlot(job Job, at time.Time) string {
	freq := strings.ToLower(job.Schedule.Freq)
	if freq == "" {
		freq = "daily"
	}

	switch freq {
	case "daily":
		atHM := job.Schedule.At
		if atHM == "" {
			atHM = "00:00"
		}
		hh, mm, err := parseHHMM(atHM)
		if err != nil {
			return ""
		}
		runAt := time.Date(at.Year(), at.Month(), at.Day(), hh, mm, 0, 0, time.UTC)
		if !at.Before(runAt) {
			return fmt.Sprintf("daily:%s:%s", at.Format("2006-01-02"), atHM)
		}
		return ""

	case "weekly":
		day := strings.ToLower(job.Schedule.Day)
		if day == "" {
			day = "mon"
		}
		if weekdayNames[(int(at.Weekday())+6)%7] != day {
			return ""
		}
		atHM := job.Schedule.At
		if atHM == "" {
			atHM = "00:00"
		}
		hh, mm, err := parseHHMM(atHM)
		if err != nil {
			return ""
		}
		runAt := time.Date(at.Year(), at.Month(), at.Day(), hh, mm, 0, 0, time.UTC)
		if !at.Before(runAt) {
			return fmt.Sprintf("weekly:%s:%s:%s", at.Format("2006-01-02"), atHM, day)
		}
		return ""

	case "hourly":
		interval := job.Schedule.Interval
		if interval < 1 {
			interval = 1
		}
		slotHour := time.Date(at.Year(), at.Month(), at.Day(), at.Hour(), 0, 0, 0, time.UTC)
		if slotHour.Hour()%interval == 0 {
			return fmt.Sprintf("hourly:%s:i%d", timeutil.FormatISO(slotHour), interval)
		}
		return ""

	default:
		return ""
	}
}

// EnqueueResult summarizes one EnqueueDueJobs pass.
type EnqueueResult struct {
	Created       int      `json:"created"`
	CreatedJobIDs []string `json:"createdJobIds"`
	SkippedJobIDs []string `json:"skippedJobIds"`
}

// EnqueueDueJobs evaluates every configured job's schedule against "at"
// (now when empty) and enqueues a task for each job whose recurrence slot
// has not already been dispatched, deduping via the persisted last-slot
// cursor so a re-run at the same moment is a no-op.
func (e *Engine) EnqueueDueJobs(at string) (EnqueueResult, error) {
	jobs, err := e.ReadJobs()
	if err != nil {
		return EnqueueResult{}, err
	}
	state, err := e.readState()
	if err != nil {
		return EnqueueResult{}, err
	}
	now, err := timeutil.ParseISO(at)
	if err != nil {
		return EnqueueResult{}, err
	}

	result := EnqueueResult{CreatedJobIDs: []string{}, SkippedJobIDs: []string{}}
	metrics.SchedulerTicksTotal.Inc()

	for _, job := range jobs.Jobs {
		if !job.enabled() || strings.TrimSpace(job.ID) == "" {
			continue
		}
		slot := jobSlot(job, now)
		if slot == "" {
			continue
		}
		if state.LastSlots[job.ID] == slot {
			result.SkippedJobIDs = append(result.SkippedJobIDs, job.ID)
			continue
		}
		if strings.TrimSpace(job.Task.Type) == "" {
			continue
		}
		maxRetries := job.Task.MaxRetries
		if maxRetries == 0 {
			maxRetries = 2
		}
		if _, err := e.EnqueueTask(job.Task.Type, EnqueueOptions{
			Payload:    job.Task.Payload,
			RunAt:      timeutil.FormatISO(now),
			MaxRetries: maxRetries,
			Source:     "job:" + job.ID,
		}); err != nil {
			return result, err
		}
		state.LastSlots[job.ID] = slot
		result.Created++
		result.CreatedJobIDs = append(result.CreatedJobIDs, job.ID)
		metrics.SchedulerJobsEnqueuedTotal.WithLabelValues(job.ID).Inc()
	}

	if err := e.writeState(state); err != nil {
		return result, err
	}
	return result, nil
}

// DispatchDueAndWork enqueues any due recurring jobs and then drains up to
// maxTasks claimable tasks with the given worker identity — the single
// entry point a cron tick or CLI invocation needs.
func (e *Engine) DispatchDueAndWork(workerID string, maxTasks int, pollInterval time.Duration) (EnqueueResult, WorkerResult, error) {
	enqueued, err := e.EnqueueDueJobs("")
	if err != nil {
		return EnqueueResult{}, WorkerResult{}, err
	}
	worked, err := e.RunWorker(workerID, maxTasks, pollInterval)
	if err != nil {
		return enqueued, WorkerResult{}, err
	}
	return enqueued, worked, nil
}
