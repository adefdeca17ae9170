// Package notify delivers operator notifications: log lines, a terminal
// bell, Discord webhooks and email. Senders are combined with Multi and
// usually wrapped in a Dispatcher so the hunt loop never blocks on delivery.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
)

// Message is one notification.
type Message struct {
	Title      string
	Body       string
	Tag        string // short page or event name, e.g. "purchase"
	Screenshot []byte // optional PNG
	Alarm      bool   // needs the operator's attention now
}

func (m Message) String() string {
	if m.Title == "" {
		return m.Body
	}
	return fmt.Sprintf("%s: %s", m.Title, m.Body)
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Discard drops every message.
type Discard struct{}

func (Discard) Send(context.Context, Message) error { return nil }

// BestEffort sends msg and logs a failure at debug level instead of
// returning it.
func BestEffort(ctx context.Context, s Sender, msg Message) {
	if s == nil {
		return
	}
	if err := s.Send(ctx, msg); err != nil {
		log.Debug().Err(err).Str("tag", msg.Tag).Msg("Notification not delivered")
	}
}

// Log writes messages to the global logger.
type Log struct{}

func (Log) Send(_ context.Context, msg Message) error {
	ev := log.Info()
	if msg.Alarm {
		ev = log.Warn()
	}
	ev.Str("tag", msg.Tag).Bool("screenshot", len(msg.Screenshot) > 0).Msg(msg.String())
	return nil
}

// Bell rings the terminal bell for purchases and alarms.
type Bell struct {
	Out io.Writer
}

func (b Bell) Send(_ context.Context, msg Message) error {
	if !msg.Alarm && msg.Tag != "purchase" {
		return nil
	}
	out := b.Out
	if out == nil {
		out = os.Stdout
	}
	_, err := io.WriteString(out, "\a")
	return err
}

// Multi fans a message out to every sender and joins their errors.
type Multi []Sender

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
