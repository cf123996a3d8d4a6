// Package discord implements a notifier.Notifier for Discord webhooks.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Strob0t/tasktimer/internal/domain/task"
	"github.com/Strob0t/tasktimer/internal/port/notifier"
)

const (
	providerName      = "discord"
	sendTimeout       = 10 * time.Second
	overEstimateColor = 0xF39C12 // orange
)

// Notifier posts task alerts to a Discord channel webhook.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewNotifier creates a Discord notifier with the given webhook URL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: sendTimeout},
	}
}

func (n *Notifier) Name() string { return providerName }

// discordWebhook is the Discord webhook payload with embeds.
type discordWebhook struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp"`
	Fields      []discordField `json:"fields"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func newWebhook(a *notifier.Alert) discordWebhook {
	return discordWebhook{Embeds: []discordEmbed{{
		Title:       a.Title(),
		Description: a.Summary(),
		Color:       overEstimateColor,
		Timestamp:   a.At.UTC().Format(time.RFC3339),
		Fields: []discordField{
			{Name: "Tracked", Value: task.FormatClock(a.TrackedSeconds), Inline: true},
			{Name: "Estimate", Value: strconv.Itoa(a.EstimatedMinutes) + " min", Inline: true},
		},
		Footer: &discordFooter{Text: "task #" + strconv.FormatInt(a.TaskID, 10)},
	}}}
}

func (n *Notifier) Notify(ctx context.Context, alert notifier.Alert) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}

	body, err := json.Marshal(newWebhook(&alert))
	if err != nil {
		return fmt.Errorf("discord marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Discord answers 204 on success.
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("discord API %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
