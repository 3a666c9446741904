package mail

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSender struct {
	mu    sync.Mutex
	msgs  []Message
	delay time.Duration
	err   error
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("send without deadline")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func TestVerificationTemplate(t *testing.T) {
	msg, err := Verification("user@example.com", "https://example.com/verify/abc?x=<1>", 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, []string{"user@example.com"}, msg.To)
	require.Equal(t, VerificationSubject, msg.Subject)
	require.Contains(t, msg.HTML, "https://example.com/verify/abc?x=%3c1%3e")
	require.Contains(t, msg.HTML, "15 мин")

	_, err = Verification(" ", "https://example.com", time.Minute)
	require.ErrorIs(t, err, ErrNoRecipients)
}

func TestDispatcher_DrainsOnClose(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sender := &recordingSender{delay: 5 * time.Millisecond}
	d := NewDispatcher(DispatcherConfig{Workers: 1, BufferSize: 10}, sender, zap.New(core))

	for range 5 {
		require.NoError(t, d.Enqueue(Message{To: []string{"a@example.com"}, Subject: "s"}))
	}
	d.Close()

	require.Equal(t, 5, sender.count())
	sent, failed := d.stats()
	require.EqualValues(t, 5, sent)
	require.Zero(t, failed)

	require.ErrorIs(t, d.Enqueue(Message{To: []string{"a@example.com"}}), ErrClosed)
	d.Close()

	stopped := logs.FilterMessage("mail_dispatcher_stopped").All()
	require.Len(t, stopped, 1)
	require.EqualValues(t, 5, stopped[0].ContextMap()["sent"])
	require.EqualValues(t, 0, stopped[0].ContextMap()["failed"])
}

func TestDispatcher_QueueFull(t *testing.T) {
	block := make(chan struct{})
	sender := senderFunc(func(ctx context.Context, msg Message) error {
		<-block
		return nil
	})
	d := NewDispatcher(DispatcherConfig{Workers: 1, BufferSize: 1}, sender, zap.NewNop())

	msg := Message{To: []string{"a@example.com"}}
	require.NoError(t, d.Enqueue(msg))
	require.Eventually(t, func() bool { return len(d.ch) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Enqueue(msg))
	require.ErrorIs(t, d.Enqueue(msg), ErrQueueFull)

	close(block)
	d.Close()
}

func TestDispatcher_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sender := &recordingSender{err: errors.New("smtp down")}
	d := NewDispatcher(DispatcherConfig{Workers: 1}, sender, zap.New(core))

	require.NoError(t, d.Enqueue(Message{To: []string{"a@example.com"}}))
	require.ErrorIs(t, d.Enqueue(Message{}), ErrNoRecipients)
	d.Close()

	_, failed := d.stats()
	require.EqualValues(t, 1, failed)
	require.Equal(t, 1, logs.FilterMessage("send_mail_failed").Len())
}

func TestSMTPSender_Message(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 465, From: "noreply@example.com", FromName: "pawmate.ru"})

	m, err := s.message(Message{To: []string{"a@example.com", "b@example.com"}, Subject: VerificationSubject, HTML: "<p>hi</p>"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	head, body, ok := strings.Cut(buf.String(), "\r\n\r\n")
	require.True(t, ok)
	require.Contains(t, head, `From: "pawmate.ru" <noreply@example.com>`)
	require.Contains(t, head, "<a@example.com>")
	require.Contains(t, head, "<b@example.com>")
	require.Contains(t, strings.ToLower(head), "subject: =?utf-8?")
	require.Contains(t, head, "Message-ID: <")
	require.Contains(t, strings.ToLower(head), "text/html")
	require.Contains(t, body, "<p>hi</p>")

	_, err = s.message(Message{To: []string{"not an address"}})
	require.Error(t, err)

	require.ErrorIs(t, s.Send(context.Background(), Message{}), ErrNoRecipients)
	require.Error(t, s.Send(context.Background(), Message{To: []string{"not an address"}}))
}

type senderFunc func(ctx context.Context, msg Message) error

func (f senderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
