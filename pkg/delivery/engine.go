package delivery

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/sriinnu/ledgerflow/pkg/alerts"
	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/layout"
	"github.com/sriinnu/ledgerflow/pkg/log"
	"github.com/sriinnu/ledgerflow/pkg/metrics"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

// Engine drives the alert delivery pipeline for one data directory.
type Engine struct {
	layout layout.Layout
	logger zerolog.Logger
	alerts *alerts.Engine
}

// New returns an Engine rooted at l.
func New(l layout.Layout) *Engine {
	return &Engine{layout: l, logger: log.WithComponent("delivery"), alerts: alerts.New(l)}
}

func (e *Engine) loadRules() (RulesConfig, error) {
	cfg := defaultRules()
	if err := atomicfile.ReadJSON(e.layout.AlertDeliveryRulesPath(), &cfg); err != nil {
		return RulesConfig{}, err
	}
	if cfg.Channels == nil {
		cfg.Channels = []Channel{}
	}
	return cfg, nil
}

func (e *Engine) loadState() (State, error) {
	st := defaultState()
	if err := atomicfile.ReadJSON(e.layout.AlertDeliveryStatePath(), &st); err != nil {
		return State{}, err
	}
	if st.Channels == nil {
		st.Channels = map[string]ChannelState{}
	}
	return st, nil
}

func (e *Engine) saveState(st State) error {
	return atomicfile.WriteJSON(e.layout.AlertDeliveryStatePath(), st)
}

func clampCursor(v, max int) int {
	if v < 0 || v > max {
		return 0
	}
	return v
}

// Deliver walks every enabled channel (optionally restricted to
// channelIDs) over the alert event log starting at its persisted cursor,
// delivering up to limit pending events (limit <= 0 means unbounded) and
// stopping at the first failure within a channel so nothing is skipped.
// dryRun computes what would be delivered without touching the outbox,
// webhook endpoints, or delivery state.
func (e *Engine) Deliver(limit int, channelIDs []string, dryRun bool) (RunResult, error) {
	cfg, err := e.loadRules()
	if err != nil {
		return RunResult{}, err
	}
	state, err := e.loadState()
	if err != nil {
		return RunResult{}, err
	}
	events, err := e.alerts.AllEvents()
	if err != nil {
		return RunResult{}, err
	}

	wanted := map[string]bool{}
	for _, id := range channelIDs {
		if id = strings.TrimSpace(id); id != "" {
			wanted[id] = true
		}
	}

	channels := make([]Channel, 0, len(cfg.Channels))
	for _, c := range cfg.Channels {
		if !c.Enabled {
			continue
		}
		if len(wanted) > 0 && !wanted[c.ID] {
			continue
		}
		channels = append(channels, c)
	}

	result := RunResult{DryRun: dryRun, EventCount: len(events), ChannelCount: len(channels), Channels: []ChannelResult{}}
	now := timeutil.NowISO()

	for _, channel := range channels {
		timer := metrics.NewTimer()
		cursorBefore := clampCursor(state.Channels[channel.ID].Cursor, len(events))
		pendingAll := events[cursorBefore:]
		pending := pendingAll
		if limit > 0 && len(pending) > limit {
			pending = pending[:limit]
		}

		delivered := 0
		failed := 0
		var deliverErr string
		for _, event := range pending {
			if !dryRun {
				if err := deliverToChannel(e.layout, channel, event); err != nil {
					failed = 1
					deliverErr = err.Error()
					break
				}
			}
			delivered++
		}
		cursorAfter := cursorBefore + delivered

		result.Delivered += delivered
		result.Failed += failed
		result.Channels = append(result.Channels, ChannelResult{
			ChannelID: channel.ID, ChannelType: channel.Type,
			CursorBefore: cursorBefore, CursorAfter: cursorAfter,
			Pending: len(pending), Delivered: delivered, Failed: failed, Error: deliverErr,
		})

		if failed > 0 {
			metrics.DeliveryFailuresTotal.WithLabelValues(channel.ID).Inc()
		}
		metrics.DeliveryCursor.WithLabelValues(channel.ID).Set(float64(cursorAfter))
		timer.ObserveDurationVec(metrics.DeliveryRunDuration, channel.ID)

		if !dryRun {
			row := state.Channels[channel.ID]
			row.Cursor = cursorAfter
			row.UpdatedAt = now
			if delivered > 0 && delivered <= len(pending) {
				row.LastDeliveredEvent = pending[delivered-1].EventID
				row.LastDeliveredAt = now
			}
			if deliverErr != "" {
				row.LastError = deliverErr
				row.LastFailedAt = now
			} else {
				row.LastError = ""
			}
			state.Channels[channel.ID] = row
		}
	}

	if !dryRun {
		state.LastRun = now
		if err := e.saveState(state); err != nil {
			return result, err
		}
	}

	return result, nil
}
