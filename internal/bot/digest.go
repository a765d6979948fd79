package bot

import (
	"context"
	"strings"
	"time"

	"github.com/zey-2/tg-prog-foundation-bot/internal/render"
	"github.com/zey-2/tg-prog-foundation-bot/internal/sched"
	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

// RegisterDigest installs the optional morning digest: every day at the
// configured HH:MM the day's sessions are broadcast to all subscribers.
// Days with no sessions stay silent.
func (a *App) RegisterDigest(s *sched.Service, at string) error {
	return s.AddDaily("digest:daily", at, time.Minute, func(ctx context.Context) error {
		return a.sendDigest(ctx)
	})
}

func (a *App) sendDigest(ctx context.Context) error {
	now := time.Now().In(a.loc)
	today := now.Format("2006-01-02")

	lines := []string{"Today's sessions:"}
	n := 0
	for _, s := range a.course.Sessions {
		if s.Start.In(a.loc).Format("2006-01-02") != today {
			continue
		}
		lines = append(lines, render.ListLine(s, a.loc))
		n++
	}
	if n == 0 {
		a.log.Debug("digest skipped, no sessions today", logx.String("date", today))
		return nil
	}

	rep, err := a.rem.Broadcast(ctx, strings.Join(lines, "\n"), nil)
	if err != nil {
		return err
	}
	a.log.Info("digest sent", logx.String("date", today), logx.Int("sent", rep.Sent), logx.Int("failed", rep.Failed))
	return nil
}
