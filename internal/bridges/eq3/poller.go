package eq3

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// Poller runs a job on a cron schedule. A run that is still going when
// the next one is due is skipped.
type Poller struct {
	cron   *cron.Cron
	spec   string
	job    func(ctx context.Context)
	logger Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPoller parses spec (five-field cron or a descriptor such as
// "@every 5m") and prepares job. Nothing runs until Start.
func NewPoller(spec string, job func(ctx context.Context), logger Logger) (*Poller, error) {
	if logger == nil {
		logger = nopLogger{}
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("poll schedule %q: %w", spec, err)
	}

	cl := cronLogger{logger}
	p := &Poller{
		cron:   cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		spec:   spec,
		job:    job,
		logger: logger,
	}
	p.cron.Schedule(schedule, cron.FuncJob(p.run))
	return p, nil
}

// Start begins scheduling. ctx bounds every run.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.cron.Start()
	p.logger.Info("poller started", "schedule", p.spec)
}

// Stop cancels a running job and waits for it to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-p.cron.Stop().Done()
}

// RunNow runs the job once on the calling goroutine.
func (p *Poller) RunNow(ctx context.Context) {
	p.job(ctx)
}

func (p *Poller) run() {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	p.job(ctx)
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	logger Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
