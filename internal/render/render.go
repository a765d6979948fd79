// Package render turns sessions into display text and link actions.
// Everything here is pure; transport concerns (keyboards, parse modes) are
// layered on by the callers.
package render

import (
	"strings"
	"time"

	"github.com/zey-2/tg-prog-foundation-bot/internal/course"
)

// ListLine is the one-line session summary used by schedule listings. The end
// time is rendered time-of-day only; the start carries the full date.
func ListLine(s course.Session, loc *time.Location) string {
	start := s.Start.In(loc).Format("2006-01-02 15:04")
	end := s.End.In(loc).Format("15:04")
	location := s.Venue
	if location == "" {
		location = s.ModeLocation
	}
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(s.Lecture)
	b.WriteString(" [")
	b.WriteString(s.Label)
	b.WriteString("] | ")
	b.WriteString(start)
	b.WriteString(" to ")
	b.WriteString(end)
	b.WriteString(" (")
	b.WriteString(loc.String())
	b.WriteString(") | ")
	b.WriteString(location)
	return b.String()
}

// Detail is the multi-line session block. Optional fields are only included
// when set, in a fixed order.
func Detail(s course.Session, loc *time.Location) string {
	lines := []string{
		s.Lecture + " - " + s.Label,
		"Date & time: " + s.Start.In(loc).Format("Monday, 2006-01-02 15:04") +
			" to " + s.End.In(loc).Format("15:04") + " (" + loc.String() + ")",
		"Mode/Location: " + s.ModeLocation,
	}
	if s.Venue != "" {
		lines = append(lines, "Venue: "+s.Venue)
	}
	if s.ZoomURL != "" {
		lines = append(lines, "Zoom: "+s.ZoomURL)
	}
	if s.MeetingID != "" {
		lines = append(lines, "Meeting ID: "+s.MeetingID)
	}
	if s.Passcode != "" {
		lines = append(lines, "Passcode: "+s.Passcode)
	}
	if s.GoogleMapURL != "" {
		lines = append(lines, "Map: "+s.GoogleMapURL)
	}
	return strings.Join(lines, "\n")
}

// ScheduleList renders the whole session list grouped under date headers.
func ScheduleList(c *course.Course, loc *time.Location) string {
	lines := []string{"Upcoming sessions:"}
	currentDate := ""
	for _, s := range c.Sessions {
		date := s.Start.In(loc).Format("2006-01-02 (Monday)")
		if date != currentDate {
			if currentDate != "" {
				lines = append(lines, "")
			}
			lines = append(lines, date)
			currentDate = date
		}
		lines = append(lines, ListLine(s, loc))
	}
	return strings.Join(lines, "\n")
}

// LinkAction is one (label, url) pair attached to a message. Callers pair
// actions two per row when building keyboards.
type LinkAction struct {
	Label string
	URL   string
}

// LinkOptions selects which optional actions to offer.
type LinkOptions struct {
	Zoom       bool
	Materials  bool
	Attendance bool
}

// LinkActions assembles the ordered action list for a session. Actions whose
// URL is not configured are omitted, never rendered disabled. Carpark info is
// only offered for sessions that are not inferred to be online.
func LinkActions(s course.Session, c *course.Course, opt LinkOptions) []LinkAction {
	var actions []LinkAction
	add := func(label, url string) {
		if url == "" {
			return
		}
		actions = append(actions, LinkAction{Label: label, URL: url})
	}

	if opt.Zoom {
		add("Join Zoom", s.ZoomURL)
	}
	add("Map", s.GoogleMapURL)
	if opt.Materials {
		add("Materials", c.MaterialsURL)
	}
	if !s.IsOnline() {
		add("Carpark Info", c.CarparkInfoURL)
	}
	if opt.Attendance {
		add("Attendance QR", c.AttendanceQRURL)
		add("Attendance Check", c.AttendanceCheckURL)
	}
	return actions
}
