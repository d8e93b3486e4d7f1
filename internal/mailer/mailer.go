// Package mailer delivers submission emails. Each recipient gets an
// independent message; a failure for one recipient never affects the others.
package mailer

import (
	"context"
	"sync"
)

// Message is a single plain-text email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Mailer defines behaviour required to deliver a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Recorder is a Mailer that records messages instead of sending them.
// Used in tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

// NewRecorder returns a Recorder. If err is non-nil every Send fails with it.
func NewRecorder(err error) *Recorder {
	return &Recorder{err: err}
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}
