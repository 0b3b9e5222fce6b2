package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/layout"
)

func seedEvent(t *testing.T, l layout.Layout, eventID string) {
	t.Helper()
	require.NoError(t, atomicfile.EnsureDir(l.AlertsDir()))
	evt := map[string]interface{}{
		"eventId": eventID, "ruleId": "r1", "type": "category_budget",
		"period": "month", "periodKey": "2026-07", "scopeDate": "2026-07-31",
		"at": "2026-07-31T00:00:00Z", "data": map[string]interface{}{}, "message": "test event",
	}
	require.NoError(t, atomicfile.AppendJSONL(l.AlertEventsPath(), evt, nil))
}

func TestDeliverToOutboxAdvancesCursor(t *testing.T) {
	l := layout.For(t.TempDir())
	seedEvent(t, l, "alrt_1")
	seedEvent(t, l, "alrt_2")
	require.NoError(t, atomicfile.WriteJSON(l.AlertDeliveryRulesPath(), RulesConfig{
		Version: 1, Channels: []Channel{{ID: "local_outbox", Type: "outbox", Enabled: true}},
	}))

	e := New(l)
	res, err := e.Deliver(-1, nil, false)
	require.NoError(t, err)
	require.Len(t, res.Channels, 1)
	assert.Equal(t, 2, res.Channels[0].Delivered)
	assert.Equal(t, 2, res.Channels[0].CursorAfter)

	rows, err := atomicfile.IterJSONL(l.AlertOutboxPath())
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	res2, err := e.Deliver(-1, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res2.Channels[0].Delivered, "cursor must not redeliver already-sent events")
}

func TestDeliverDryRunDoesNotAdvanceCursorOrWrite(t *testing.T) {
	l := layout.For(t.TempDir())
	seedEvent(t, l, "alrt_1")
	require.NoError(t, atomicfile.WriteJSON(l.AlertDeliveryRulesPath(), RulesConfig{
		Version: 1, Channels: []Channel{{ID: "local_outbox", Type: "outbox", Enabled: true}},
	}))

	e := New(l)
	res, err := e.Deliver(-1, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Channels[0].Delivered)

	rows, err := atomicfile.IterJSONL(l.AlertOutboxPath())
	require.NoError(t, err)
	assert.Empty(t, rows, "dry run must not append to the outbox")

	res2, err := e.Deliver(-1, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res2.Channels[0].Delivered, "dry run must not advance the persisted cursor")
}

func TestDeliverWebhookMissingURLFailsWithoutAdvancingPastIt(t *testing.T) {
	l := layout.For(t.TempDir())
	seedEvent(t, l, "alrt_1")
	seedEvent(t, l, "alrt_2")
	require.NoError(t, atomicfile.WriteJSON(l.AlertDeliveryRulesPath(), RulesConfig{
		Version: 1, Channels: []Channel{{ID: "hook", Type: "webhook", Enabled: true}},
	}))

	e := New(l)
	res, err := e.Deliver(-1, nil, false)
	require.NoError(t, err)
	require.Len(t, res.Channels, 1)
	assert.Equal(t, 0, res.Channels[0].Delivered)
	assert.Equal(t, 1, res.Channels[0].Failed)
	assert.NotEmpty(t, res.Channels[0].Error)
	assert.Equal(t, 0, res.Channels[0].CursorAfter)
}

func TestDeliverFiltersByChannelIDs(t *testing.T) {
	l := layout.For(t.TempDir())
	seedEvent(t, l, "alrt_1")
	require.NoError(t, atomicfile.WriteJSON(l.AlertDeliveryRulesPath(), RulesConfig{
		Version: 1, Channels: []Channel{
			{ID: "a", Type: "outbox", Enabled: true},
			{ID: "b", Type: "outbox", Enabled: true},
		},
	}))

	e := New(l)
	res, err := e.Deliver(-1, []string{"a"}, false)
	require.NoError(t, err)
	require.Len(t, res.Channels, 1)
	assert.Equal(t, "a", res.Channels[0].ChannelID)
}
