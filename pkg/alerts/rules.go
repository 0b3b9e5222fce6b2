package alerts

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sriinnu/ledgerflow/pkg/idgen"
	"github.com/sriinnu/ledgerflow/pkg/ledger"
	"github.com/sriinnu/ledgerflow/pkg/money"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

// evalContext carries everything a rule evaluator needs besides the rule's
// own configuration.
type evalContext struct {
	txs       []map[string]interface{}
	at        time.Time
	scopeDate string
	ruleID    string
	ruleType  string
	state     map[string]interface{} // this rule's persisted state, may be nil
}

// outcome is what a rule evaluator hands back to the orchestrator: an
// event to emit (nil if the rule did not fire) and the new per-rule state
// to persist when committing.
type outcome struct {
	event    *Event
	newState map[string]interface{}
}

func newEvent(ctx evalContext, period, periodKey, message string, data map[string]interface{}) *Event {
	return &Event{
		EventID:   idgen.NewID(idgen.PrefixAlert),
		RuleID:    ctx.ruleID,
		Type:      ctx.ruleType,
		Period:    period,
		PeriodKey: periodKey,
		ScopeDate: ctx.scopeDate,
		At:        timeutil.NowISO(),
		Data:      data,
		Message:   message,
	}
}

func sumCategorySpend(txs []map[string]interface{}, categoryID string) (decimal.Decimal, []string) {
	total := decimal.Zero
	var ids []string
	for _, tx := range txs {
		if ledger.TxCategoryID(tx) != categoryID {
			continue
		}
		amt := ledger.TxAmountDecimal(tx)
		if amt.Sign() >= 0 {
			continue
		}
		total = total.Add(amt.Neg())
		if id := ledger.TxID(tx); id != "" {
			ids = append(ids, id)
		}
	}
	return total, ids
}

func capIDs(ids []string, n int) []string {
	if len(ids) > n {
		return ids[:n]
	}
	return ids
}

// evalCategoryBudget implements the category_budget rule.
func evalCategoryBudget(rule map[string]interface{}, ctx evalContext) (*outcome, error) {
	categoryID := ruleString(rule, "categoryId", "")
	period := ruleString(rule, "period", "")
	limit, err := money.DecimalFromAny(rule["limit"])
	if err != nil {
		limit = decimal.Zero
	}
	if categoryID == "" || period == "" {
		return nil, nil
	}

	key, err := PeriodKey(period, ctx.at)
	if err != nil {
		return nil, err
	}
	if lastKey, _ := ctx.state["lastTriggeredPeriodKey"].(string); lastKey == key {
		return nil, nil
	}

	start, end, err := PeriodBounds(period, ctx.at)
	if err != nil {
		return nil, err
	}
	scoped := ledger.FilterByDateRange(ctx.txs, timeutil.FormatYMD(start), timeutil.FormatYMD(end))
	spend, ids := sumCategorySpend(scoped, categoryID)
	if spend.Cmp(limit) <= 0 {
		return nil, nil
	}

	msg := fmt.Sprintf("%s spend %s exceeded limit %s for %s %s",
		categoryID, money.FormatDecimal(spend), money.FormatDecimal(limit), period, key)
	event := newEvent(ctx, period, key, msg, map[string]interface{}{
		"categoryId": categoryID,
		"limit":      limit.String(),
		"value":      spend.String(),
		"txIds":      capIDs(ids, 500),
	})
	return &outcome{event: event, newState: map[string]interface{}{
		"lastTriggeredPeriodKey": key,
		"lastValue":              spend.String(),
	}}, nil
}

type merchantOccurrence struct {
	merchant string
	amount   string
	currency string
	dates    []string
}

// evalRecurringNew implements the recurring_new rule.
func evalRecurringNew(rule map[string]interface{}, ctx evalContext) (*outcome, error) {
	minOcc := ruleInt(rule, "minOccurrences", 3)
	if minOcc < 3 {
		minOcc = 3
	}
	spacingMin, spacingMax := ruleIntPair(rule, "spacingDays", 25, 35)

	key, err := PeriodKey("month", ctx.at)
	if err != nil {
		return nil, err
	}
	if lastKey, _ := ctx.state["lastTriggeredPeriodKey"].(string); lastKey == key {
		return nil, nil
	}

	start := ctx.at.AddDate(0, 0, -180)
	scoped := ledger.FilterByDateRange(ctx.txs, timeutil.FormatYMD(start), timeutil.FormatYMD(ctx.at))

	groups := map[[3]string][]string{}
	for _, tx := range scoped {
		amt := ledger.TxAmountDecimal(tx)
		if amt.Sign() >= 0 {
			continue
		}
		merchant := ledger.TxMerchant(tx)
		if merchant == "" {
			continue
		}
		k := [3]string{strings.ToLower(merchant), amt.Neg().String(), ledger.TxCurrency(tx)}
		groups[k] = append(groups[k], ledger.TxDate(tx))
	}

	var newFound []merchantOccurrence
	for k, dates := range groups {
		distinct := distinctSortedNonEmpty(dates)
		if len(distinct) < minOcc {
			continue
		}
		tail := distinct[len(distinct)-minOcc:]
		if !spacingValid(tail, spacingMin, spacingMax) {
			continue
		}
		firstTail, err := timeutil.ParseYMD(tail[0])
		if err != nil {
			continue
		}
		hasPrior := false
		for _, d := range distinct {
			dt, err := timeutil.ParseYMD(d)
			if err == nil && dt.Before(firstTail) {
				hasPrior = true
				break
			}
		}
		if hasPrior {
			continue
		}
		newFound = append(newFound, merchantOccurrence{merchant: k[0], amount: k[1], currency: k[2], dates: tail})
	}
	if len(newFound) == 0 {
		return nil, nil
	}
	sort.Slice(newFound, func(i, j int) bool { return newFound[i].merchant < newFound[j].merchant })
	if len(newFound) > 50 {
		newFound = newFound[:50]
	}

	items := make([]map[string]interface{}, 0, len(newFound))
	for _, f := range newFound {
		items = append(items, map[string]interface{}{
			"merchant": f.merchant, "amount": f.amount, "currency": f.currency, "dates": f.dates,
		})
	}
	msg := fmt.Sprintf("New recurring charges detected: %d", len(newFound))
	event := newEvent(ctx, "month", key, msg, map[string]interface{}{"items": items})
	return &outcome{event: event, newState: map[string]interface{}{"lastTriggeredPeriodKey": key}}, nil
}

// evalRecurringChanged implements the recurring_changed rule: debits are
// grouped by merchant and currency (unlike recurring_new, the amount is not
// part of the group key) and amount drift within a merchant's cadence is
// tracked instead of newly appearing merchants.
func evalRecurringChanged(rule map[string]interface{}, ctx evalContext) (*outcome, error) {
	minOcc := ruleInt(rule, "minOccurrences", 3)
	if minOcc < 2 {
		minOcc = 2
	}
	spacingMin, spacingMax := ruleIntPair(rule, "spacingDays", 25, 35)
	minDelta, err := money.DecimalFromAny(rule["minDelta"])
	if err != nil {
		minDelta = decimal.Zero
	}
	minDeltaPct := ruleFloat(rule, "minDeltaPct", 0)

	key, err := PeriodKey("month", ctx.at)
	if err != nil {
		return nil, err
	}
	if lastKey, _ := ctx.state["lastTriggeredPeriodKey"].(string); lastKey == key {
		return nil, nil
	}

	start := ctx.at.AddDate(0, 0, -240)
	scoped := ledger.FilterByDateRange(ctx.txs, timeutil.FormatYMD(start), timeutil.FormatYMD(ctx.at))

	type point struct {
		date   string
		amount decimal.Decimal
	}
	groups := map[[2]string][]point{}
	for _, tx := range scoped {
		amt := ledger.TxAmountDecimal(tx)
		if amt.Sign() >= 0 {
			continue
		}
		merchant := ledger.TxMerchant(tx)
		if merchant == "" {
			continue
		}
		date := ledger.TxDate(tx)
		if date == "" {
			continue
		}
		k := [2]string{strings.ToLower(merchant), ledger.TxCurrency(tx)}
		groups[k] = append(groups[k], point{date: date, amount: amt.Neg()})
	}

	for _, pts := range groups {
		byDate := map[string]decimal.Decimal{}
		for _, p := range pts {
			byDate[p.date] = byDate[p.date].Add(p.amount)
		}
		dates := make([]string, 0, len(byDate))
		for d := range byDate {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		if len(dates) < minOcc {
			continue
		}
		tail := dates[len(dates)-minOcc:]
		if !spacingValid(tail, spacingMin, spacingMax) {
			continue
		}
		prev := byDate[tail[len(tail)-2]]
		curr := byDate[tail[len(tail)-1]]
		delta := curr.Sub(prev)
		deltaAbs := delta.Abs()
		var deltaPct float64
		if !prev.IsZero() {
			f, _ := delta.Div(prev).Float64()
			deltaPct = math.Abs(f) * 100
		}
		if deltaAbs.Cmp(minDelta) < 0 && deltaPct < minDeltaPct {
			continue
		}

		msg := fmt.Sprintf("recurring charge changed from %s to %s", money.FormatDecimal(prev), money.FormatDecimal(curr))
		event := newEvent(ctx, "month", key, msg, map[string]interface{}{
			"previousAmount": prev.String(),
			"currentAmount":  curr.String(),
			"delta":          delta.String(),
			"deltaPct":       fmt.Sprintf("%.2f", deltaPct),
			"dates":          tail,
		})
		return &outcome{event: event, newState: map[string]interface{}{"lastTriggeredPeriodKey": key}}, nil
	}
	return nil, nil
}

// evalMerchantSpike implements the merchant_spike rule.
func evalMerchantSpike(rule map[string]interface{}, ctx evalContext) (*outcome, error) {
	period := ruleString(rule, "period", "month")
	lookback := ruleInt(rule, "lookbackPeriods", 3)
	if lookback < 1 {
		lookback = 1
	}
	multiplier := ruleFloat(rule, "multiplier", 2.0)
	minDelta, err := money.DecimalFromAny(rule["minDelta"])
	if err != nil {
		minDelta = decimal.Zero
	}
	wantMerchant := strings.ToLower(ruleString(rule, "merchant", ""))

	key, err := PeriodKey(period, ctx.at)
	if err != nil {
		return nil, err
	}
	if lastKey, _ := ctx.state["lastTriggeredPeriodKey"].(string); lastKey == key {
		return nil, nil
	}

	curStart, curEnd, err := PeriodBounds(period, ctx.at)
	if err != nil {
		return nil, err
	}
	curSpend := spendByMerchant(ledger.FilterByDateRange(ctx.txs, timeutil.FormatYMD(curStart), timeutil.FormatYMD(curEnd)))

	priorSums := map[string]decimal.Decimal{}
	priorCounts := map[string]int{}
	cursor := curStart
	for i := 0; i < lookback; i++ {
		var priorAt time.Time
		switch period {
		case "day":
			priorAt = cursor.AddDate(0, 0, -1)
		case "week":
			priorAt = cursor.AddDate(0, 0, -7)
		default:
			priorAt = cursor.AddDate(0, -1, 0)
		}
		pStart, pEnd, err := PeriodBounds(period, priorAt)
		if err != nil {
			return nil, err
		}
		spend := spendByMerchant(ledger.FilterByDateRange(ctx.txs, timeutil.FormatYMD(pStart), timeutil.FormatYMD(pEnd)))
		for m, v := range spend {
			priorSums[m] = priorSums[m].Add(v)
			priorCounts[m]++
		}
		cursor = pStart
	}

	merchants := make([]string, 0, len(curSpend))
	for m := range curSpend {
		merchants = append(merchants, m)
	}
	sort.Strings(merchants)

	for _, merchant := range merchants {
		if wantMerchant != "" && merchant != wantMerchant {
			continue
		}
		current := curSpend[merchant]
		count := priorCounts[merchant]
		if count == 0 {
			continue
		}
		avg := priorSums[merchant].Div(decimal.NewFromInt(int64(count)))
		currentF, _ := current.Float64()
		avgF, _ := avg.Float64()
		if avgF <= 0 {
			continue
		}
		if currentF > multiplier*avgF && current.Sub(avg).Cmp(minDelta) > 0 {
			msg := fmt.Sprintf("%s spend %s is a spike over average %s", merchant, money.FormatDecimal(current), money.FormatDecimal(avg))
			event := newEvent(ctx, period, key, msg, map[string]interface{}{
				"merchant": merchant, "current": current.String(), "average": avg.String(),
			})
			return &outcome{event: event, newState: map[string]interface{}{"lastTriggeredPeriodKey": key}}, nil
		}
	}
	return nil, nil
}

func spendByMerchant(txs []map[string]interface{}) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, tx := range txs {
		amt := ledger.TxAmountDecimal(tx)
		if amt.Sign() >= 0 {
			continue
		}
		merchant := strings.ToLower(ledger.TxMerchant(tx))
		if merchant == "" {
			continue
		}
		out[merchant] = out[merchant].Add(amt.Neg())
	}
	return out
}

// evalCashHeavyDay implements the cash_heavy_day rule.
func evalCashHeavyDay(rule map[string]interface{}, ctx evalContext) (*outcome, error) {
	limit, err := money.DecimalFromAny(rule["limit"])
	if err != nil {
		limit = decimal.Zero
	}
	key, err := PeriodKey("day", ctx.at)
	if err != nil {
		return nil, err
	}
	if lastKey, _ := ctx.state["lastTriggeredPeriodKey"].(string); lastKey == key {
		return nil, nil
	}

	scoped := ledger.FilterByDateRange(ctx.txs, ctx.scopeDate, ctx.scopeDate)
	total := decimal.Zero
	var ids []string
	for _, tx := range scoped {
		amt := ledger.TxAmountDecimal(tx)
		if amt.Sign() >= 0 {
			continue
		}
		if ledger.TxSourceType(tx) != "manual" && !ledger.HasTag(tx, "cash") {
			continue
		}
		total = total.Add(amt.Neg())
		if id := ledger.TxID(tx); id != "" {
			ids = append(ids, id)
		}
	}
	if total.Cmp(limit) <= 0 {
		return nil, nil
	}
	msg := fmt.Sprintf("cash-heavy day: %s spent in cash on %s", money.FormatDecimal(total), ctx.scopeDate)
	event := newEvent(ctx, "day", key, msg, map[string]interface{}{
		"limit": limit.String(), "value": total.String(), "txIds": capIDs(ids, 500),
	})
	return &outcome{event: event, newState: map[string]interface{}{"lastTriggeredPeriodKey": key, "lastValue": total.String()}}, nil
}

// evalUnclassifiedSpend implements the unclassified_spend rule.
func evalUnclassifiedSpend(rule map[string]interface{}, ctx evalContext) (*outcome, error) {
	period := ruleString(rule, "period", "month")
	confidenceBelow := ruleFloat(rule, "categoryConfidenceBelow", 0.5)
	limit, err := money.DecimalFromAny(rule["limit"])
	if err != nil {
		limit = decimal.Zero
	}

	key, err := PeriodKey(period, ctx.at)
	if err != nil {
		return nil, err
	}
	if lastKey, _ := ctx.state["lastTriggeredPeriodKey"].(string); lastKey == key {
		return nil, nil
	}

	start, end, err := PeriodBounds(period, ctx.at)
	if err != nil {
		return nil, err
	}
	scoped := ledger.FilterByDateRange(ctx.txs, timeutil.FormatYMD(start), timeutil.FormatYMD(end))

	total := decimal.Zero
	var ids []string
	for _, tx := range scoped {
		amt := ledger.TxAmountDecimal(tx)
		if amt.Sign() >= 0 {
			continue
		}
		catID := ledger.TxCategoryID(tx)
		unclassified := catID == "" || catID == "uncategorized" || ledger.TxCategoryConfidence(tx) < confidenceBelow
		if !unclassified {
			continue
		}
		total = total.Add(amt.Neg())
		if id := ledger.TxID(tx); id != "" {
			ids = append(ids, id)
		}
	}
	if total.Cmp(limit) <= 0 {
		return nil, nil
	}
	msg := fmt.Sprintf("unclassified spend %s exceeded limit %s for %s %s", money.FormatDecimal(total), money.FormatDecimal(limit), period, key)
	event := newEvent(ctx, period, key, msg, map[string]interface{}{
		"limit": limit.String(), "value": total.String(), "txIds": capIDs(ids, 500),
	})
	return &outcome{event: event, newState: map[string]interface{}{"lastTriggeredPeriodKey": key, "lastValue": total.String()}}, nil
}

func distinctSortedNonEmpty(values []string) []string {
	set := map[string]bool{}
	for _, v := range values {
		if v != "" {
			set[v] = true
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func spacingValid(tail []string, spacingMin, spacingMax int) bool {
	for i := 1; i < len(tail); i++ {
		a, errA := timeutil.ParseYMD(tail[i-1])
		b, errB := timeutil.ParseYMD(tail[i])
		if errA != nil || errB != nil {
			return false
		}
		delta := int(b.Sub(a).Hours() / 24)
		if delta < spacingMin || delta > spacingMax {
			return false
		}
	}
	return true
}

func ruleFloat(rule map[string]interface{}, key string, def float64) float64 {
	switch v := rule[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}
