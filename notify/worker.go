package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrEthical07/marketauth/logging"
)

type WorkerConfig struct {
	// PerSecond caps outbound mail; zero means unlimited.
	PerSecond float64       `yaml:"per_second"`
	Burst     int           `yaml:"burst"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Worker drains a Source and delivers each notice through a Mailer.
type Worker struct {
	src     Source
	mailer  Mailer
	limiter *rate.Limiter
	timeout time.Duration
	log     logging.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

func NewWorker(src Source, mailer Mailer, cfg WorkerConfig, log logging.Logger) *Worker {
	if log == nil {
		log = logging.Nop()
	}
	limit := rate.Inf
	if cfg.PerSecond > 0 {
		limit = rate.Limit(cfg.PerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Worker{
		src:     src,
		mailer:  mailer,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		log:     log.With("component", "notify.worker"),
	}
}

// Run blocks until ctx is done or the source is closed.
func (w *Worker) Run(ctx context.Context) error {
	for {
		n, err := w.src.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				return nil
			}
			w.log.Error(ctx, "dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return nil
		}
		w.deliver(ctx, n)
	}
}

func (w *Worker) deliver(ctx context.Context, n PasswordResetNotice) {
	msg, err := Render(n)
	if err != nil {
		w.failed.Add(1)
		w.log.Error(ctx, "render failed", "template", n.Template, "kind", string(n.Kind), "error", err)
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.mailer.Send(sendCtx, msg); err != nil {
		w.failed.Add(1)
		w.log.Warn(ctx, "delivery failed", "kind", string(n.Kind), "error", err)
		return
	}
	w.sent.Add(1)
	w.log.Debug(ctx, "reset notice delivered", "kind", string(n.Kind))
}

func (w *Worker) Sent() uint64   { return w.sent.Load() }
func (w *Worker) Failed() uint64 { return w.failed.Load() }
