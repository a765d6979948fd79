// Package course holds the canonical schedule model and the two source-format
// parsers that produce it. A Course is loaded once at startup and is immutable
// afterwards; its session list is always sorted ascending by start time.
package course

import (
	"strings"
	"time"
)

// Session is one scheduled meeting of the course.
type Session struct {
	ID           string
	Lecture      string
	Label        string
	Start        time.Time
	End          time.Time
	ModeLocation string
	Venue        string
	GoogleMapURL string
	ZoomURL      string
	MeetingID    string
	Passcode     string
}

// DisplayDate is the session's calendar date as rendered to users and matched
// by date queries.
func (s Session) DisplayDate() string {
	return s.Start.Format("2006-01-02")
}

// IsOnline reports whether the session is held online. An explicit zoom link
// wins; otherwise the free-text mode/location is inspected.
func (s Session) IsOnline() bool {
	if s.ZoomURL != "" {
		return true
	}
	mode := strings.ToLower(s.ModeLocation)
	return strings.Contains(mode, "zoom") || strings.Contains(mode, "online")
}

// Course is the single active schedule.
type Course struct {
	Title    string
	Sessions []Session

	AttendanceQRURL    string
	AttendanceCheckURL string
	CarparkInfoURL     string
	MaterialsURL       string
}

// Upcoming returns the first session starting at or after now.
func (c *Course) Upcoming(now time.Time) (Session, bool) {
	for _, s := range c.Sessions {
		if !s.Start.Before(now) {
			return s, true
		}
	}
	return Session{}, false
}
