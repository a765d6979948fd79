package telegram

import (
	tele "gopkg.in/telebot.v4"

	"github.com/zey-2/tg-prog-foundation-bot/internal/render"
	"github.com/zey-2/tg-prog-foundation-bot/pkg/tgui"
)

// LinkMarkup builds an inline keyboard from link actions, two buttons per
// row. Returns nil when there is nothing to attach so callers can pass the
// result straight into SendOptions.
func LinkMarkup(actions []render.LinkAction) any {
	if len(actions) == 0 {
		return nil
	}
	btns := make([]tele.Btn, 0, len(actions))
	for _, a := range actions {
		btns = append(btns, tgui.URLBtn(a.Label, a.URL))
	}
	return tgui.Grid2(btns)
}
