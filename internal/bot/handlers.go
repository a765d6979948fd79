package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zey-2/tg-prog-foundation-bot/internal/render"
	"github.com/zey-2/tg-prog-foundation-bot/internal/transport"
	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

// menuCommands is the set surfaced in Telegram's command menu.
var menuCommands = []transport.BotCommand{
	{Command: "/start", Description: "subscribe to reminders"},
	{Command: "/stop", Description: "unsubscribe"},
	{Command: "/next", Description: "show the next upcoming session"},
	{Command: "/schedule", Description: "list all sessions"},
	{Command: "/materials", Description: "get course materials link"},
	{Command: "/info", Description: "look up a lecture or date"},
	{Command: "/cancel", Description: "stop the current lookup"},
	{Command: "/help", Description: "show help"},
}

func (a *App) handleUpdate(ctx context.Context, up transport.Update) {
	m := up.Message
	if m == nil {
		return
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		// Group chats address commands as /cmd@botname.
		if i := strings.IndexByte(cmd, '@'); i > 0 {
			cmd = cmd[:i]
		}
		a.dispatchCommand(ctx, cmd, m)
		return
	}

	// Plain text only matters inside the /info conversation.
	if a.states.get(m.ChatID) == stateAwaitingQuery {
		a.handleInfoQuery(ctx, m, text)
	}
}

func (a *App) dispatchCommand(ctx context.Context, cmd string, m *transport.Message) {
	// Any command other than /cancel leaves the /info conversation.
	if cmd != "/cancel" && cmd != "/info" {
		a.states.clear(m.ChatID)
	}

	switch cmd {
	case "/start":
		a.handleStart(ctx, m)
	case "/stop":
		a.handleStop(ctx, m)
	case "/help":
		a.handleHelp(ctx, m)
	case "/next":
		a.handleNext(ctx, m)
	case "/schedule":
		a.handleSchedule(ctx, m)
	case "/materials":
		a.handleMaterials(ctx, m)
	case "/info":
		a.handleInfoStart(ctx, m)
	case "/cancel":
		a.handleCancel(ctx, m)
	case "/rearm":
		a.handleRearm(ctx, m)
	default:
		// Unknown commands are ignored, same as unsolicited text.
	}
}

func (a *App) handleStart(ctx context.Context, m *transport.Message) {
	if err := a.reg.Subscribe(ctx, m.FromID, m.ChatID); err != nil {
		a.log.Error("subscribe failed", logx.Int64("user_id", m.FromID), logx.Err(err))
		a.reply(ctx, m.ChatID, "Something went wrong, please try again.", nil)
		return
	}
	name := m.FirstName
	if name == "" {
		name = "there"
	}
	lines := []string{
		fmt.Sprintf("Hi %s! You are subscribed to %s.", name, a.course.Title),
		"You'll get reminders 30 minutes before each session and when it ends.",
		"Commands: /next, /schedule, /info <lecture|date>, /stop to unsubscribe.",
		fmt.Sprintf("All times are shown in %s.", a.loc.String()),
	}
	a.reply(ctx, m.ChatID, strings.Join(lines, "\n"), nil)
}

func (a *App) handleStop(ctx context.Context, m *transport.Message) {
	if err := a.reg.Unsubscribe(ctx, m.FromID); err != nil {
		a.log.Error("unsubscribe failed", logx.Int64("user_id", m.FromID), logx.Err(err))
		a.reply(ctx, m.ChatID, "Something went wrong, please try again.", nil)
		return
	}
	a.reply(ctx, m.ChatID, "You have been unsubscribed from reminders.", nil)
}

func (a *App) handleHelp(ctx context.Context, m *transport.Message) {
	lines := []string{
		fmt.Sprintf("This bot shares reminders for %s.", a.course.Title),
		"Commands:",
		"/start - subscribe to reminders",
		"/stop - unsubscribe",
		"/next - show the next upcoming session",
		"/schedule - list all sessions",
		"/materials - get course materials link",
		"/info - then enter a lecture or date (e.g., 'Lecture 3' or '2025-12-13')",
		fmt.Sprintf("Times are shown in %s.", a.loc.String()),
	}
	a.reply(ctx, m.ChatID, strings.Join(lines, "\n"), nil)
}

func (a *App) handleNext(ctx context.Context, m *transport.Message) {
	s, ok := a.course.Upcoming(time.Now().In(a.loc))
	if !ok {
		a.reply(ctx, m.ChatID, "No upcoming sessions found.", nil)
		return
	}
	actions := render.LinkActions(s, a.course, render.LinkOptions{Attendance: true})
	a.reply(ctx, m.ChatID, render.Detail(s, a.loc), a.markup(actions))
}

func (a *App) handleSchedule(ctx context.Context, m *transport.Message) {
	a.reply(ctx, m.ChatID, render.ScheduleList(a.course, a.loc), nil)
}

func (a *App) handleMaterials(ctx context.Context, m *transport.Message) {
	if a.course.MaterialsURL == "" {
		a.reply(ctx, m.ChatID, "No materials link is configured.", nil)
		return
	}
	a.reply(ctx, m.ChatID, "Course materials: "+a.course.MaterialsURL, nil)
}

func (a *App) handleInfoStart(ctx context.Context, m *transport.Message) {
	a.states.set(m.ChatID, stateAwaitingQuery)
	a.reply(ctx, m.ChatID,
		"Which lecture or date do you want details for?\n"+
			"Example: Lecture 3 or 2025-12-13\n"+
			"Send /cancel to stop.", nil)
}

func (a *App) handleInfoQuery(ctx context.Context, m *transport.Message, query string) {
	matches := a.find(query)
	if len(matches) == 0 {
		// Stay in the conversation so the user can retry.
		a.reply(ctx, m.ChatID, "No matching sessions found. Try another lecture/date or send /cancel.", nil)
		return
	}
	a.states.clear(m.ChatID)

	parts := make([]string, 0, len(matches))
	for _, s := range matches {
		parts = append(parts, render.Detail(s, a.loc))
	}
	actions := render.LinkActions(matches[0], a.course, render.LinkOptions{Attendance: true})
	a.reply(ctx, m.ChatID, strings.Join(parts, "\n\n"), a.markup(actions))
}

func (a *App) handleCancel(ctx context.Context, m *transport.Message) {
	a.states.clear(m.ChatID)
	a.reply(ctx, m.ChatID, "Cancelled. Send /info to search again.", nil)
}

// handleRearm is owner-only: it drops and reinstalls the reminder timer set.
func (a *App) handleRearm(ctx context.Context, m *transport.Message) {
	if !a.owners[m.FromID] {
		a.log.Warn("rearm denied", logx.Int64("user_id", m.FromID))
		return
	}
	n, err := a.rem.Arm(time.Now().In(a.loc))
	if err != nil {
		a.reply(ctx, m.ChatID, "Re-arm failed: "+err.Error(), nil)
		return
	}
	a.reply(ctx, m.ChatID, fmt.Sprintf("Re-armed %d reminder jobs.", n), nil)
}

func (a *App) reply(ctx context.Context, chatID int64, text string, markup any) {
	sctx, cancel := context.WithTimeout(ctx, a.sendTimeout)
	defer cancel()
	opt := &transport.SendOptions{DisablePreview: true, ReplyMarkupAdapter: markup}
	if _, err := a.adapter.SendText(sctx, transport.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		a.log.Warn("reply failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}
