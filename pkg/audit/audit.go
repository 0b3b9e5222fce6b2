// Package audit appends one record per mutating API call, recording
// enough fields for an operator to reconstruct who changed what.
package audit

import (
	"github.com/rs/zerolog"
	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/layout"
	"github.com/sriinnu/ledgerflow/pkg/log"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

// Record is one mutating-call audit entry.
type Record struct {
	At                 string   `json:"at"`
	Method             string   `json:"method"`
	Path               string   `json:"path"`
	Query              string   `json:"query,omitempty"`
	Status             int      `json:"status"`
	Client             string   `json:"client,omitempty"`
	UserAgent          string   `json:"userAgent,omitempty"`
	AuthRequired       bool     `json:"authRequired"`
	AuthScopesRequired []string `json:"authScopesRequired,omitempty"`
	AuthKeyID          string   `json:"authKeyId,omitempty"`
	WorkspaceID        string   `json:"workspaceId,omitempty"`
	AuthMode           string   `json:"authMode,omitempty"`
	AuthDenied         bool     `json:"authDenied"`
	AuthDenyReason     string   `json:"authDenyReason,omitempty"`
}

// Logger appends audit records for one data directory. A failure to
// append is logged but never returned: auditing must never break request
// handling.
type Logger struct {
	layout layout.Layout
	logger zerolog.Logger
}

// New returns a Logger rooted at l.
func New(l layout.Layout) *Logger {
	return &Logger{layout: l, logger: log.WithComponent("audit")}
}

// Append records evt, stamping At if the caller left it empty. Errors are
// swallowed after being logged.
func (a *Logger) Append(evt Record) {
	if evt.At == "" {
		evt.At = timeutil.NowISO()
	}
	if err := atomicfile.AppendJSONL(a.layout.AuditLogPath(), evt, nil); err != nil {
		a.logger.Error().Err(err).Str("workspace_id", evt.WorkspaceID).Msg("failed to append audit record")
	}
}

// IsMutating reports whether method is one the audit log must capture.
func IsMutating(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	default:
		return false
	}
}

// List returns audit records, optionally filtered to workspaceID (empty
// returns records regardless of workspace). When limit >= 0 only the last
// limit matching records are returned.
func (a *Logger) List(workspaceID string, limit int) ([]Record, error) {
	rows, err := atomicfile.IterJSONL(a.layout.AuditLogPath())
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		rec := recordFromMap(r)
		if workspaceID != "" && rec.WorkspaceID != workspaceID {
			continue
		}
		out = append(out, rec)
	}
	if limit >= 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func recordFromMap(m map[string]interface{}) Record {
	r := Record{}
	if v, ok := m["at"].(string); ok {
		r.At = v
	}
	if v, ok := m["method"].(string); ok {
		r.Method = v
	}
	if v, ok := m["path"].(string); ok {
		r.Path = v
	}
	if v, ok := m["query"].(string); ok {
		r.Query = v
	}
	if v, ok := m["status"].(float64); ok {
		r.Status = int(v)
	}
	if v, ok := m["client"].(string); ok {
		r.Client = v
	}
	if v, ok := m["userAgent"].(string); ok {
		r.UserAgent = v
	}
	if v, ok := m["authRequired"].(bool); ok {
		r.AuthRequired = v
	}
	if v, ok := m["authScopesRequired"].([]interface{}); ok {
		for _, s := range v {
			if str, ok := s.(string); ok {
				r.AuthScopesRequired = append(r.AuthScopesRequired, str)
			}
		}
	}
	if v, ok := m["authKeyId"].(string); ok {
		r.AuthKeyID = v
	}
	if v, ok := m["workspaceId"].(string); ok {
		r.WorkspaceID = v
	}
	if v, ok := m["authMode"].(string); ok {
		r.AuthMode = v
	}
	if v, ok := m["authDenied"].(bool); ok {
		r.AuthDenied = v
	}
	if v, ok := m["authDenyReason"].(string); ok {
		r.AuthDenyReason = v
	}
	return r
}
