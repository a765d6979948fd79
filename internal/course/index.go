package course

import (
	"strings"

	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

// BuildIndex maps session id -> Session for reminder resolution. Duplicate
// derived ids keep the later entry; a warning is logged so bad course data is
// visible at load time instead of silently dropping a session.
func BuildIndex(sessions []Session, log logx.Logger) map[string]Session {
	idx := make(map[string]Session, len(sessions))
	for _, s := range sessions {
		if prev, dup := idx[s.ID]; dup {
			log.Warn("duplicate session id, keeping the later entry",
				logx.String("id", s.ID),
				logx.String("dropped", prev.Lecture+" "+prev.Label),
			)
		}
		idx[s.ID] = s
	}
	return idx
}

// FindByQuery returns the sessions whose lecture, label or display date
// matches the query as a substring. Text matching is case-insensitive; the
// date string is matched verbatim. Results keep the course's session order.
func FindByQuery(c *Course, query string) []Session {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var matches []Session
	for _, s := range c.Sessions {
		if strings.Contains(strings.ToLower(s.Lecture), q) ||
			strings.Contains(strings.ToLower(s.Label), q) ||
			strings.Contains(s.DisplayDate(), q) {
			matches = append(matches, s)
		}
	}
	return matches
}
