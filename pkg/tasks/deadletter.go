package tasks

import (
	"sort"

	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/layout"
)

func deadLettersPath(l layout.Layout) string {
	return l.AutomationDir() + "/dead_letters.jsonl"
}

// appendDeadLetter records a permanently failed task to an append-only log,
// separate from the queue document so a dead task can still be inspected
// after CompactFinished removes it from queue.json.
func (e *Engine) appendDeadLetter(t Task) error {
	return atomicfile.AppendJSONL(deadLettersPath(e.layout), t, nil)
}

// ListDeadLetters returns dead-lettered tasks newest-first, optionally
// paginated by a createdAt cursor: only tasks with CreatedAt < before are
// returned (before == "" disables the cursor).
func (e *Engine) ListDeadLetters(limit int, before string) ([]Task, error) {
	rows, err := atomicfile.IterJSONL(deadLettersPath(e.layout))
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(rows))
	for _, r := range rows {
		t := taskFromMap(r)
		if before != "" && t.CreatedAt >= before {
			continue
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt > tasks[j].CreatedAt })
	if limit >= 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func taskFromMap(m map[string]interface{}) Task {
	t := Task{}
	if v, ok := m["taskId"].(string); ok {
		t.TaskID = v
	}
	if v, ok := m["taskType"].(string); ok {
		t.TaskType = v
	}
	if v, ok := m["payload"].(map[string]interface{}); ok {
		t.Payload = v
	}
	if v, ok := m["status"].(string); ok {
		t.Status = Status(v)
	}
	if v, ok := m["attempts"].(float64); ok {
		t.Attempts = int(v)
	}
	if v, ok := m["maxRetries"].(float64); ok {
		t.MaxRetries = int(v)
	}
	if v, ok := m["availableAt"].(string); ok {
		t.AvailableAt = v
	}
	if v, ok := m["createdAt"].(string); ok {
		t.CreatedAt = v
	}
	if v, ok := m["updatedAt"].(string); ok {
		t.UpdatedAt = v
	}
	if v, ok := m["finishedAt"].(string); ok {
		t.FinishedAt = v
	}
	if v, ok := m["result"].(map[string]interface{}); ok {
		t.Result = v
	}
	if v, ok := m["error"].(string); ok {
		t.Error = v
	}
	if v, ok := m["source"].(string); ok {
		t.Source = v
	}
	return t
}
