// Package delivery drives the per-channel alert delivery pipeline: each
// channel advances its own cursor over the alert event log, stopping at
// the first failed delivery so nothing is skipped.
package delivery

// Channel is one configured delivery destination.
type Channel struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"` // outbox, stdout, webhook
	Enabled        bool              `json:"enabled"`
	URL            string            `json:"url,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	TimeoutSeconds float64           `json:"timeoutSeconds,omitempty"`
}

// RulesConfig is the on-disk alert_delivery_rules.json document.
type RulesConfig struct {
	Version  int       `json:"version"`
	Channels []Channel `json:"channels"`
}

func defaultRules() RulesConfig {
	return RulesConfig{Version: 1, Channels: []Channel{{ID: "local_outbox", Type: "outbox", Enabled: true}}}
}

// ChannelState is the per-channel delivery cursor and last-run bookkeeping.
type ChannelState struct {
	Cursor             int    `json:"cursor"`
	UpdatedAt          string `json:"updatedAt,omitempty"`
	LastDeliveredEvent string `json:"lastDeliveredEventId,omitempty"`
	LastDeliveredAt    string `json:"lastDeliveredAt,omitempty"`
	LastError          string `json:"lastError,omitempty"`
	LastFailedAt       string `json:"lastFailedAt,omitempty"`
}

// State is the on-disk alert_delivery_state.json document.
type State struct {
	Version  int                     `json:"version"`
	LastRun  string                  `json:"lastRun,omitempty"`
	Channels map[string]ChannelState `json:"channels"`
}

func defaultState() State {
	return State{Version: 1, Channels: map[string]ChannelState{}}
}

// ChannelResult reports one channel's outcome for a single Deliver call.
type ChannelResult struct {
	ChannelID    string `json:"channelId"`
	ChannelType  string `json:"channelType"`
	CursorBefore int    `json:"cursorBefore"`
	CursorAfter  int    `json:"cursorAfter"`
	Pending      int    `json:"pending"`
	Delivered    int    `json:"delivered"`
	Failed       int    `json:"failed"`
	Error        string `json:"error,omitempty"`
}

// RunResult is the outcome of one Deliver call.
type RunResult struct {
	DryRun       bool            `json:"dryRun"`
	EventCount   int             `json:"eventCount"`
	ChannelCount int             `json:"channelCount"`
	Channels     []ChannelResult `json:"channels"`
	Delivered    int             `json:"delivered"`
	Failed       int             `json:"failed"`
}
