package delivery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sriinnu/ledgerflow/pkg/alerts"
	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/idgen"
	"github.com/sriinnu/ledgerflow/pkg/layout"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

// Delivery is the envelope appended to the outbox or posted to a webhook.
type Delivery struct {
	DeliveryID  string       `json:"deliveryId"`
	ChannelID   string       `json:"channelId"`
	ChannelType string       `json:"channelType"`
	EventID     string       `json:"eventId"`
	DeliveredAt string       `json:"deliveredAt"`
	Event       alerts.Event `json:"event"`
}

func newDelivery(channel Channel, event alerts.Event) Delivery {
	return Delivery{
		DeliveryID:  idgen.NewID(idgen.PrefixDelivery),
		ChannelID:   channel.ID,
		ChannelType: channel.Type,
		EventID:     event.EventID,
		DeliveredAt: timeutil.NowISO(),
		Event:       event,
	}
}

// stdoutWriter lets tests capture what stdout delivery would print.
var stdoutWriter io.Writer = os.Stdout

func deliverToChannel(l layout.Layout, channel Channel, event alerts.Event) error {
	payload := newDelivery(channel, event)

	switch channel.Type {
	case "outbox":
		return atomicfile.AppendJSONL(l.AlertOutboxPath(), payload, nil)

	case "stdout":
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		_, err = stdoutWriter.Write(append(encoded, '\n'))
		return err

	case "webhook":
		return deliverWebhook(channel, payload)

	default:
		return fmt.Errorf("unsupported delivery channel type: %s", channel.Type)
	}
}

func deliverWebhook(channel Channel, payload Delivery) error {
	url := strings.TrimSpace(channel.URL)
	if url == "" {
		return fmt.Errorf("webhook channel requires url")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	timeout := channel.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}
	client := &http.Client{Timeout: time.Duration(timeout * float64(time.Second))}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range channel.Headers {
		if strings.TrimSpace(k) == "" {
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
