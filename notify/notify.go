// Package notify delivers password reset notifications out of band.
//
// The engine only enqueues; a Worker drains the queue and sends mail through
// a Mailer. Enqueue failures never surface to the account holder.
package notify

import (
	"context"
	"errors"

	"github.com/MrEthical07/marketauth/account"
)

var (
	ErrQueueFull   = errors.New("notify: queue full")
	ErrQueueClosed = errors.New("notify: queue closed")
)

// PasswordResetNotice is the payload handed to the delivery channel.
type PasswordResetNotice struct {
	Address       string       `json:"address"`
	DisplayName   string       `json:"display_name"`
	Link          string       `json:"link"`
	ExpiryMinutes int          `json:"expiry_minutes"`
	Origin        string       `json:"origin"`
	Kind          account.Kind `json:"kind"`
	Template      string       `json:"template"`
}

type Enqueuer interface {
	Enqueue(ctx context.Context, n PasswordResetNotice) error
}

// Source is the consuming side of a queue.
type Source interface {
	Dequeue(ctx context.Context) (PasswordResetNotice, error)
}

// Message is a rendered mail ready for a Mailer.
type Message struct {
	To      string
	Name    string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Enqueue(context.Context, PasswordResetNotice) error { return nil }
