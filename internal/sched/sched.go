// Package sched is an in-process job runner: named one-shot timers plus cron
// entries, executed on a small worker pool.
//
// Names are stable and human readable ("reminder:<session>:<kind>") so whole
// families of jobs can be cancelled by prefix and re-installed atomically.
// Timers are versioned: a timer replaced or removed before firing never runs
// its stale callback.
package sched

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

type Config struct {
	Workers        int
	DefaultTimeout time.Duration
}

// JobInfo describes one armed one-shot timer.
type JobInfo struct {
	Name string
	At   time.Time
}

type task struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context) error
}

type timerEntry struct {
	at      time.Time
	timeout time.Duration
	job     func(ctx context.Context) error
	ver     uint64
	stop    stopper
}

// clock abstracts time for deterministic tests.
type clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) stopper
}

type stopper interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
func (realClock) AfterFunc(d time.Duration, fn func()) stopper {
	return time.AfterFunc(d, fn)
}

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	loc *time.Location
	clk clock

	c      *cron.Cron
	queue  chan task
	stopCh chan struct{}
	wg     sync.WaitGroup

	tmu    sync.Mutex
	timers map[string]*timerEntry
}

func New(cfg Config, loc *time.Location, log logx.Logger) *Service {
	return newWithClock(cfg, loc, log, realClock{})
}

func newWithClock(cfg Config, loc *time.Location, log logx.Logger, clk clock) *Service {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		loc:    loc,
		clk:    clk,
		c:      cron.New(cron.WithLocation(loc)),
		timers: map[string]*timerEntry{},
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.queue = make(chan task, 256)

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 2
	}

	// Local captures prevent races if fields are swapped during Stop().
	stopCh := s.stopCh
	queue := s.queue

	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in sched worker",
						logx.Int("worker", idx),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			s.worker(ctx, stopCh, queue)
		}()
	}
	s.c.Start()
	s.log.Info("sched started", logx.Int("workers", workers), logx.String("tz", s.loc.String()))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()

	close(stopCh)
	<-s.c.Stop().Done()

	s.tmu.Lock()
	for _, e := range s.timers {
		if e.stop != nil {
			_ = e.stop.Stop()
		}
	}
	s.timers = map[string]*timerEntry{}
	s.tmu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("sched stopped")
	case <-ctx.Done():
		// workers drain in background
	}
}

// AddOnce installs (or replaces) a named one-shot job firing at the given
// instant. An instant at or before now fires immediately; the job never runs
// before its instant.
func (s *Service) AddOnce(name string, at time.Time, timeout time.Duration, job func(ctx context.Context) error) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("sched: job name required")
	}
	if at.IsZero() {
		return fmt.Errorf("sched: fire instant required for %q", name)
	}

	s.tmu.Lock()
	defer s.tmu.Unlock()

	var ver uint64 = 1
	if prev, ok := s.timers[name]; ok {
		ver = prev.ver + 1
		if prev.stop != nil {
			_ = prev.stop.Stop()
		}
	}

	delay := at.Sub(s.clk.Now())
	if delay < 0 {
		delay = 0
	}

	entry := &timerEntry{at: at, timeout: s.resolveTimeout(timeout), job: job, ver: ver}
	localVer := ver
	entry.stop = s.clk.AfterFunc(delay, func() {
		s.tmu.Lock()
		cur, ok := s.timers[name]
		if !ok || cur.ver != localVer {
			// replaced or cancelled while the timer was in flight
			s.tmu.Unlock()
			return
		}
		delete(s.timers, name)
		s.tmu.Unlock()
		s.enqueue(task{name: name, timeout: cur.timeout, run: cur.job})
	})
	s.timers[name] = entry
	return nil
}

// RemoveMatching cancels every one-shot job whose name starts with prefix and
// returns how many were removed.
func (s *Service) RemoveMatching(prefix string) int {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	removed := 0
	for name, e := range s.timers {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if e.stop != nil {
			_ = e.stop.Stop()
		}
		delete(s.timers, name)
		removed++
	}
	return removed
}

// Armed snapshots the installed one-shot jobs, soonest first.
func (s *Service) Armed() []JobInfo {
	s.tmu.Lock()
	out := make([]JobInfo, 0, len(s.timers))
	for name, e := range s.timers {
		out = append(out, JobInfo{Name: name, At: e.at})
	}
	s.tmu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].Name < out[j].Name
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

// AddDaily registers a cron entry firing every day at HH:MM in the service
// timezone.
func (s *Service) AddDaily(name, atHHMM string, timeout time.Duration, job func(ctx context.Context) error) error {
	h, m, err := parseHHMM(atHHMM)
	if err != nil {
		return err
	}
	spec := fmt.Sprintf("%d %d * * *", m, h)
	resolved := s.resolveTimeout(timeout)
	_, err = s.c.AddFunc(spec, func() {
		s.enqueue(task{name: name, timeout: resolved, run: job})
	})
	if err != nil {
		return fmt.Errorf("sched: register %q: %w", name, err)
	}
	s.log.Debug("daily job registered", logx.String("name", name), logx.String("at", atHHMM))
	return nil
}

func (s *Service) enqueue(t task) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		s.log.Debug("sched not running; dropping job", logx.String("job", t.name))
		return
	}
	select {
	case q <- t:
	default:
		s.log.Warn("sched queue full; dropping job", logx.String("job", t.name))
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.execOne(ctx, t)
		}
	}
}

func (s *Service) execOne(ctx context.Context, t task) {
	start := time.Now()
	runCtx := ctx
	var cancel context.CancelFunc
	if t.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	err := t.run(runCtx)
	dur := time.Since(start)
	if err != nil {
		s.log.Warn("job failed", logx.String("job", t.name), logx.Err(err), logx.Duration("dur", dur))
		return
	}
	s.log.Debug("job completed", logx.String("job", t.name), logx.Duration("dur", dur))
}

func (s *Service) resolveTimeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return s.cfg.DefaultTimeout
}

func parseHHMM(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
