package bot

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/voicebot/clients"
	"github.com/maastricht-university/voicebot/metrics"
)

// UpdateSource long-polls the chat service.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]clients.TgUpdate, error)
}

// Poller feeds updates to a Handler, one goroutine per update, at most
// maxConcurrent at a time.
type Poller struct {
	src     UpdateSource
	h       *Handler
	timeout time.Duration
	pause   time.Duration
	sem     chan struct{}
	log     *logrus.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func NewPoller(src UpdateSource, h *Handler, timeout time.Duration, maxConcurrent int, log *logrus.Logger, m *metrics.Metrics) *Poller {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Poller{
		src:     src,
		h:       h,
		timeout: timeout,
		pause:   3 * time.Second,
		sem:     make(chan struct{}, maxConcurrent),
		log:     log,
		metrics: m,
	}
}

// Run polls until ctx is cancelled, then waits for in-flight updates.
// Updates already accepted finish even after cancellation.
func (p *Poller) Run(ctx context.Context) error {
	defer p.wg.Wait()

	work := context.WithoutCancel(ctx)
	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}
		ups, err := p.src.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.WithError(err).Warn("getUpdates failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.pause):
			}
			continue
		}

		for _, u := range ups {
			offset = u.UpdateID + 1
			p.metrics.Update()

			select {
			case p.sem <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
			p.wg.Add(1)
			go p.dispatch(work, u)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, u clients.TgUpdate) {
	defer p.wg.Done()
	defer func() { <-p.sem }()
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{"update_id": u.UpdateID, "panic": r}).Error("handler panicked")
		}
	}()
	p.h.Handle(ctx, u)
}
