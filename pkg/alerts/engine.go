package alerts

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/layout"
	"github.com/sriinnu/ledgerflow/pkg/ledger"
	"github.com/sriinnu/ledgerflow/pkg/log"
	"github.com/sriinnu/ledgerflow/pkg/metrics"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

// Engine evaluates the configured alert rules against one data directory's
// ledger view.
type Engine struct {
	layout layout.Layout
	logger zerolog.Logger
	store  *ledger.Store
}

// New returns an Engine rooted at l.
func New(l layout.Layout) *Engine {
	return &Engine{layout: l, logger: log.WithComponent("alerts"), store: ledger.New(l, nil)}
}

func (e *Engine) loadRules() (RulesConfig, error) {
	cfg := RulesConfig{Currency: "USD", Rules: []map[string]interface{}{}}
	if err := atomicfile.ReadJSON(e.layout.AlertRulesPath(), &cfg); err != nil {
		return RulesConfig{}, err
	}
	if cfg.Rules == nil {
		cfg.Rules = []map[string]interface{}{}
	}
	return cfg, nil
}

func (e *Engine) loadState() (State, error) {
	st := defaultState()
	if err := atomicfile.ReadJSON(e.layout.AlertStatePath(), &st); err != nil {
		return State{}, err
	}
	if st.Rules == nil {
		st.Rules = map[string]map[string]interface{}{}
	}
	return st, nil
}

func (e *Engine) saveState(st State) error {
	return atomicfile.WriteJSON(e.layout.AlertStatePath(), st)
}

var evaluators = map[string]func(map[string]interface{}, evalContext) (*outcome, error){
	"category_budget":    evalCategoryBudget,
	"recurring_new":      evalRecurringNew,
	"recurring_changed":  evalRecurringChanged,
	"merchant_spike":     evalMerchantSpike,
	"cash_heavy_day":     evalCashHeavyDay,
	"unclassified_spend": evalUnclassifiedSpend,
}

// Run evaluates every configured rule for atDate (YYYY-MM-DD) and, when
// commit is true, appends fired events to alerts/events.jsonl and persists
// updated per-rule state. commit=false computes and returns the same
// events without touching disk state.
func (e *Engine) Run(atDate string, commit bool) (RunResult, error) {
	at, err := timeutil.ParseYMD(atDate)
	if err != nil {
		return RunResult{}, err
	}

	rulesCfg, err := e.loadRules()
	if err != nil {
		return RunResult{}, err
	}
	state, err := e.loadState()
	if err != nil {
		return RunResult{}, err
	}

	view, err := e.store.Load(false)
	if err != nil {
		return RunResult{}, err
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.AlertsEvaluationDuration)

	events := make([]Event, 0)
	for _, rule := range rulesCfg.Rules {
		ruleID := ruleString(rule, "id", "")
		ruleType := ruleString(rule, "type", "")
		if ruleID == "" || ruleType == "" {
			continue
		}
		evaluator, known := evaluators[ruleType]
		if !known {
			continue
		}

		ctx := evalContext{
			txs:       view.Transactions,
			at:        at,
			scopeDate: atDate,
			ruleID:    ruleID,
			ruleType:  ruleType,
			state:     state.Rules[ruleID],
		}
		out, err := evaluator(rule, ctx)
		if err != nil {
			return RunResult{}, fmt.Errorf("rule %s: %w", ruleID, err)
		}
		if out == nil || out.event == nil {
			continue
		}
		events = append(events, *out.event)
		metrics.AlertsFiredTotal.WithLabelValues(ruleType).Inc()

		if commit {
			if err := atomicfile.AppendJSONL(e.layout.AlertEventsPath(), out.event, nil); err != nil {
				return RunResult{}, err
			}
			if state.Rules[ruleID] == nil {
				state.Rules[ruleID] = map[string]interface{}{}
			}
			for k, v := range out.newState {
				state.Rules[ruleID][k] = v
			}
		}
	}

	state.LastRun = timeutil.NowISO()
	if commit {
		if err := e.saveState(state); err != nil {
			return RunResult{}, err
		}
	}

	return RunResult{At: atDate, Events: events, EventCount: len(events), Commit: commit}, nil
}

// EventsForDate returns every persisted event whose "at" timestamp falls on
// ymd (UTC).
func (e *Engine) EventsForDate(ymd string) ([]Event, error) {
	rows, err := atomicfile.IterJSONL(e.layout.AlertEventsPath())
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0)
	for _, r := range rows {
		at, _ := r["at"].(string)
		if len(at) >= len(ymd) && at[:len(ymd)] == ymd {
			out = append(out, eventFromMap(r))
		}
	}
	return out, nil
}

// AllEvents returns every persisted event in file order, used by the
// delivery pipeline as its indexable event sequence.
func (e *Engine) AllEvents() ([]Event, error) {
	rows, err := atomicfile.IterJSONL(e.layout.AlertEventsPath())
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, eventFromMap(r))
	}
	return out, nil
}

func eventFromMap(m map[string]interface{}) Event {
	evt := Event{}
	if v, ok := m["eventId"].(string); ok {
		evt.EventID = v
	}
	if v, ok := m["ruleId"].(string); ok {
		evt.RuleID = v
	}
	if v, ok := m["type"].(string); ok {
		evt.Type = v
	}
	if v, ok := m["period"].(string); ok {
		evt.Period = v
	}
	if v, ok := m["periodKey"].(string); ok {
		evt.PeriodKey = v
	}
	if v, ok := m["scopeDate"].(string); ok {
		evt.ScopeDate = v
	}
	if v, ok := m["at"].(string); ok {
		evt.At = v
	}
	if v, ok := m["data"].(map[string]interface{}); ok {
		evt.Data = v
	}
	if v, ok := m["message"].(string); ok {
		evt.Message = v
	}
	return evt
}
