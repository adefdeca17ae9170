package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Discord posts messages to a channel webhook.
type Discord struct {
	session *discordgo.Session
	id      string
	token   string
}

// NewDiscord parses a webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscord(webhookURL string) (*Discord, error) {
	id, token, err := parseWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	// webhooks authenticate with their token, the session needs none
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Discord{session: session, id: id, token: token}, nil
}

func (d *Discord) Send(ctx context.Context, msg Message) error {
	params := &discordgo.WebhookParams{
		Content:  msg.String(),
		Username: "FairGame",
	}
	if len(msg.Screenshot) > 0 {
		params.Files = []*discordgo.File{{
			Name:        msg.Tag + ".png",
			ContentType: "image/png",
			Reader:      bytes.NewReader(msg.Screenshot),
		}}
	}
	if _, err := d.session.WebhookExecute(d.id, d.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	return nil
}

func parseWebhook(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("invalid discord webhook url: %q", raw)
}
