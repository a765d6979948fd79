// Package bot wires the course data, subscriber registry, scheduler and
// transport adapter into the running Telegram bot and owns the update loop.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/zey-2/tg-prog-foundation-bot/internal/course"
	"github.com/zey-2/tg-prog-foundation-bot/internal/reminder"
	"github.com/zey-2/tg-prog-foundation-bot/internal/render"
	"github.com/zey-2/tg-prog-foundation-bot/internal/store"
	"github.com/zey-2/tg-prog-foundation-bot/internal/transport"
	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

const updateChanCap = 64

// Options carries everything App needs; all fields except Markup and
// OwnerUserIDs are required.
type Options struct {
	Course       *course.Course
	Registry     store.Registry
	Reminders    *reminder.Service
	Adapter      transport.Adapter
	Markup       func(actions []render.LinkAction) any
	OwnerUserIDs []int64
	Location     *time.Location
	SendTimeout  time.Duration
	Log          logx.Logger
}

type App struct {
	course  *course.Course
	reg     store.Registry
	rem     *reminder.Service
	adapter transport.Adapter
	markup  func(actions []render.LinkAction) any
	states  *stateManager
	owners  map[int64]bool
	loc     *time.Location
	log     logx.Logger

	sendTimeout time.Duration

	updates chan transport.Update
	wg      sync.WaitGroup
}

func New(opt Options) *App {
	if opt.SendTimeout <= 0 {
		opt.SendTimeout = 10 * time.Second
	}
	if opt.Markup == nil {
		opt.Markup = func([]render.LinkAction) any { return nil }
	}
	log := opt.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	owners := make(map[int64]bool, len(opt.OwnerUserIDs))
	for _, id := range opt.OwnerUserIDs {
		owners[id] = true
	}
	return &App{
		course:      opt.Course,
		reg:         opt.Registry,
		rem:         opt.Reminders,
		adapter:     opt.Adapter,
		markup:      opt.Markup,
		states:      newStateManager(),
		owners:      owners,
		loc:         opt.Location,
		log:         log,
		sendTimeout: opt.SendTimeout,
		updates:     make(chan transport.Update, updateChanCap),
	}
}

// Start begins polling and processing updates. It returns once the adapter
// is polling; the update loop runs until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	if err := a.adapter.Start(ctx, a.updates); err != nil {
		return err
	}

	if mu, ok := a.adapter.(transport.CommandMenuUpdater); ok {
		if err := mu.UpdateMenuCommands(ctx, menuCommands); err != nil {
			a.log.Warn("command menu update failed", logx.Err(err))
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.loop(ctx)
	}()
	return nil
}

func (a *App) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-a.updates:
			// Updates are handled sequentially; conversation state assumes
			// no two messages from the same chat race each other.
			a.handleUpdate(ctx, up)
		}
	}
}

// Stop shuts the adapter down and waits for the update loop to drain.
func (a *App) Stop(ctx context.Context) error {
	err := a.adapter.Stop(ctx)
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (a *App) find(query string) []course.Session {
	return course.FindByQuery(a.course, query)
}
