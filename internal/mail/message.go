// Package mail renders and delivers transactional email. Delivery is
// asynchronous: handlers enqueue a Message and answer without waiting.
package mail

import (
	"context"
	"errors"
)

var (
	ErrNoRecipients = errors.New("mail: no recipients")
	ErrQueueFull    = errors.New("mail: queue is full")
	ErrClosed       = errors.New("mail: dispatcher is closed")
)

type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers a single message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Queue accepts messages for later delivery.
type Queue interface {
	Enqueue(msg Message) error
}
