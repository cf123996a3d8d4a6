package main

import (
	"testing"

	"github.com/Strob0t/tasktimer/internal/config"
)

func TestBuildNotifiers(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Notify
		want []string
	}{
		{"none", config.Notify{}, nil},
		{"slack", config.Notify{SlackWebhookURL: "https://hooks.slack.test/x"}, []string{"slack"}},
		{"both", config.Notify{
			SlackWebhookURL:   "https://hooks.slack.test/x",
			DiscordWebhookURL: "https://discord.test/api/webhooks/1",
		}, []string{"slack", "discord"}},
		{"smtp without recipient", config.Notify{SMTP: config.SMTP{Host: "smtp.example.com", Port: 25}}, nil},
		{"smtp", config.Notify{SMTP: config.SMTP{Host: "smtp.example.com", Port: 25, To: "me@example.com"}}, []string{"email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns := buildNotifiers(tt.cfg)
			if len(ns) != len(tt.want) {
				t.Fatalf("expected %d notifiers, got %d", len(tt.want), len(ns))
			}
			for i, n := range ns {
				if n.Name() != tt.want[i] {
					t.Errorf("notifier %d: expected %s, got %s", i, tt.want[i], n.Name())
				}
			}
		})
	}
}
