// Package reminder computes and fires per-session notification jobs: one
// 30 minutes before each session starts and one when it ends.
//
// Arming is all-or-nothing per course load: every previously armed job under
// the shared name tag is cancelled before new jobs are installed, so no stale
// job can fire after a re-arm completes. Sessions already in the past produce
// no jobs; there is no catch-up after a restart.
package reminder

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/zey-2/tg-prog-foundation-bot/internal/course"
	"github.com/zey-2/tg-prog-foundation-bot/internal/render"
	"github.com/zey-2/tg-prog-foundation-bot/internal/store"
	"github.com/zey-2/tg-prog-foundation-bot/internal/transport"
	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

// Kind selects which of a session's two reminders a job delivers.
type Kind string

const (
	KindBefore Kind = "before"
	KindEnd    Kind = "end"
)

// Tag prefixes every reminder job name so the whole family can be bulk
// cancelled without touching unrelated timers.
const Tag = "reminder:"

const beforeLead = 30 * time.Minute

// Sender is the slice of the transport adapter the fan-out needs.
type Sender interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
}

// Timers is the scheduling primitive: named one-shot jobs with prefix
// cancellation. Implemented by the sched service.
type Timers interface {
	AddOnce(name string, at time.Time, timeout time.Duration, job func(ctx context.Context) error) error
	RemoveMatching(prefix string) int
}

// MarkupFunc turns link actions into adapter-specific reply markup.
// May return nil when there are no actions.
type MarkupFunc func(actions []render.LinkAction) any

type Config struct {
	SendTimeout time.Duration // per-recipient delivery bound
	RatePerSec  int
	DryRun      bool
}

// Report summarizes one firing's fan-out.
type Report struct {
	Sent   int
	Failed int
}

type Service struct {
	cfg    Config
	course *course.Course
	index  map[string]course.Session
	reg    store.Registry
	sender Sender
	timers Timers
	markup MarkupFunc
	loc    *time.Location
	log    logx.Logger

	limiter *rate.Limiter
	dryRun  atomic.Bool
}

func New(cfg Config, c *course.Course, idx map[string]course.Session, reg store.Registry,
	sender Sender, timers Timers, markup MarkupFunc, loc *time.Location, log logx.Logger) *Service {

	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if markup == nil {
		markup = func([]render.LinkAction) any { return nil }
	}
	s := &Service{
		cfg:     cfg,
		course:  c,
		index:   idx,
		reg:     reg,
		sender:  sender,
		timers:  timers,
		markup:  markup,
		loc:     loc,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
	s.dryRun.Store(cfg.DryRun)
	return s
}

// SetDryRun toggles delivery suppression at runtime (config hot reload).
func (s *Service) SetDryRun(v bool) { s.dryRun.Store(v) }

func jobName(sessionID string, kind Kind) string {
	return Tag + sessionID + ":" + string(kind)
}

// Arm cancels every armed reminder job and installs the full job set for the
// course relative to now. It returns the number of jobs installed. Arming is
// atomic with respect to stale jobs: cancellation happens before any install.
func (s *Service) Arm(now time.Time) (int, error) {
	cancelled := s.timers.RemoveMatching(Tag)

	installed := 0
	for _, sess := range s.course.Sessions {
		sess := sess
		if before := sess.Start.Add(-beforeLead); before.After(now) {
			err := s.timers.AddOnce(jobName(sess.ID, KindBefore), before, 0, func(ctx context.Context) error {
				_, err := s.Fire(ctx, sess.ID, KindBefore)
				return err
			})
			if err != nil {
				return installed, err
			}
			installed++
		}
		if sess.End.After(now) {
			err := s.timers.AddOnce(jobName(sess.ID, KindEnd), sess.End, 0, func(ctx context.Context) error {
				_, err := s.Fire(ctx, sess.ID, KindEnd)
				return err
			})
			if err != nil {
				return installed, err
			}
			installed++
		}
	}

	s.log.Info("reminders armed",
		logx.Int("sessions", len(s.course.Sessions)),
		logx.Int("jobs", installed),
		logx.Int("cancelled", cancelled),
	)
	return installed, nil
}

// Fire delivers one reminder to every currently active subscriber. A missing
// session id is logged and ignored. Per-recipient failures are isolated: one
// failed or hung delivery never aborts the rest of the fan-out.
func (s *Service) Fire(ctx context.Context, sessionID string, kind Kind) (Report, error) {
	sess, ok := s.index[sessionID]
	if !ok {
		s.log.Warn("session not found for reminder", logx.String("session", sessionID))
		return Report{}, nil
	}

	var heading string
	switch kind {
	case KindEnd:
		heading = sess.Lecture + " has ended"
	default:
		heading = sess.Lecture + " starts in 30 minutes"
	}
	text := heading + "\n\n" + render.Detail(sess, s.loc)
	actions := render.LinkActions(sess, s.course, render.LinkOptions{Attendance: true})

	return s.Broadcast(ctx, text, actions)
}

// Broadcast fans text out to every active subscriber, reading the live
// chat-id set at call time.
func (s *Service) Broadcast(ctx context.Context, text string, actions []render.LinkAction) (Report, error) {
	chatIDs, err := s.reg.ActiveChatIDs(ctx)
	if err != nil {
		s.log.Error("reading active subscribers failed", logx.Err(err))
		return Report{}, err
	}
	if len(chatIDs) == 0 {
		s.log.Info("no subscribers to notify")
		return Report{}, nil
	}

	runID := uuid.NewString()
	dryRun := s.dryRun.Load()
	opt := &transport.SendOptions{
		DisablePreview:     true,
		ReplyMarkupAdapter: s.markup(actions),
	}

	var rep Report
	for _, chatID := range chatIDs {
		if err := s.limiter.Wait(ctx); err != nil {
			s.log.Warn("fan-out aborted", logx.String("run", runID), logx.Err(err))
			break
		}
		if dryRun {
			s.log.Info("dry-run: would send reminder",
				logx.String("run", runID), logx.Int64("chat_id", chatID))
			rep.Sent++
			continue
		}
		if err := s.sendOne(ctx, chatID, text, opt); err != nil {
			s.log.Warn("reminder delivery failed",
				logx.String("run", runID), logx.Int64("chat_id", chatID), logx.Err(err))
			rep.Failed++
			continue
		}
		rep.Sent++
	}

	fields := []logx.Field{
		logx.String("run", runID),
		logx.Int("total", len(chatIDs)),
		logx.Int("sent", rep.Sent),
		logx.Int("failed", rep.Failed),
		logx.Bool("dry_run", dryRun),
	}
	if rep.Failed > 0 {
		s.log.Warn("fan-out finished with failures", fields...)
	} else {
		s.log.Info("fan-out finished", fields...)
	}
	return rep, nil
}

// sendOne bounds each delivery attempt so a hang cannot indefinitely delay
// the remaining recipients.
func (s *Service) sendOne(ctx context.Context, chatID int64, text string, opt *transport.SendOptions) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	_, err := s.sender.SendText(sendCtx, transport.ChatTarget{ChatID: chatID}, text, opt)
	return err
}
