package mail

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type DispatcherConfig struct {
	Workers     int
	BufferSize  int
	SendTimeout time.Duration
}

// Dispatcher forwards messages to a Sender from a bounded queue. Sends run
// with their own deadline, detached from the request that queued them.
type Dispatcher struct {
	cfg       DispatcherConfig
	sender    Sender
	logger    *zap.Logger
	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	sent      atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	mu        sync.RWMutex
	closeOnce sync.Once
}

func NewDispatcher(cfg DispatcherConfig, sender Sender, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:    cfg,
		sender: sender,
		logger: logger,
		ch:     make(chan Message, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.run()
	}

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.failed.Add(1)
		d.logger.Error("send_mail_failed", zap.Strings("to", msg.To), zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	d.sent.Add(1)
	d.logger.Info("mail_sent", zap.Strings("to", msg.To))
}

// Enqueue never blocks. It fails when the queue is full or closed.
func (d *Dispatcher) Enqueue(msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed.Load() {
		return ErrClosed
	}

	select {
	case d.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed.Store(true)
		d.mu.Unlock()

		close(d.done)
		d.wg.Wait()

		sent, failed := d.stats()
		d.logger.Info("mail_dispatcher_stopped", zap.Uint64("sent", sent), zap.Uint64("failed", failed))
	})
}

func (d *Dispatcher) stats() (sent, failed uint64) {
	return d.sent.Load(), d.failed.Load()
}

// LogSender stands in for SMTP when no mail host is configured.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Warn("mail_not_configured", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
