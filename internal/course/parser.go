package course

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SourceHint selects the parse path for raw schedule content.
type SourceHint string

const (
	HintJSON   SourceHint = "json"
	HintLegacy SourceHint = "legacy-text"
)

var ErrNoSessions = errors.New("course data must include a non-empty sessions list")

// DetectHint picks the parse path: an explicit .json extension or content
// starting with "{" means structured JSON, anything else is legacy text.
func DetectHint(name string, content []byte) SourceHint {
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return HintJSON
	}
	if bytes.HasPrefix(bytes.TrimLeft(content, " \t\r\n"), []byte("{")) {
		return HintJSON
	}
	return HintLegacy
}

// Load reads and parses the course file at path. Any parse failure is fatal to
// startup; no partial course is ever returned.
func Load(path string, loc *time.Location) (*Course, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read course file: %w", err)
	}
	return Parse(content, DetectHint(path, content), loc)
}

// Parse normalizes raw schedule content into a Course. The returned session
// list is sorted ascending by start time.
func Parse(content []byte, hint SourceHint, loc *time.Location) (*Course, error) {
	if hint == HintJSON {
		return parseJSON(content, loc)
	}
	return parseLegacy(content, loc)
}

type jsonCourse struct {
	Title              string       `json:"title"`
	Sessions           []rawSession `json:"sessions"`
	AttendanceQRURL    string       `json:"attendance_qr_url"`
	AttendanceCheckURL string       `json:"attendance_check_url"`
	CarparkInfoURL     string       `json:"carpark_info_url"`
	MaterialsURL       string       `json:"materials_url"`
}

func parseJSON(content []byte, loc *time.Location) (*Course, error) {
	var data jsonCourse
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("parse course json: %w", err)
	}
	if len(data.Sessions) == 0 {
		return nil, ErrNoSessions
	}
	sessions, err := parseSessions(data.Sessions, loc)
	if err != nil {
		return nil, err
	}
	title := data.Title
	if title == "" {
		title = "Course"
	}
	return &Course{
		Title:              title,
		Sessions:           sessions,
		AttendanceQRURL:    data.AttendanceQRURL,
		AttendanceCheckURL: data.AttendanceCheckURL,
		CarparkInfoURL:     data.CarparkInfoURL,
		MaterialsURL:       data.MaterialsURL,
	}, nil
}

// rawSession is one session entry as found in either source format.
// Field names follow the upstream schedule data, not Go conventions.
type rawSession struct {
	ID           flexString `json:"id"`
	Lecture      string     `json:"lecture"`
	Session      string     `json:"session"`
	Date         string     `json:"date"`
	Time         string     `json:"time"`
	StartTime    string     `json:"start_time"`
	EndTime      string     `json:"end_time"`
	ModeLocation string     `json:"mode_location"`
	Venue        string     `json:"venue"`
	GoogleMap    string     `json:"google_map"`
	ZoomLink     string     `json:"zoom_link"`
	MeetingID    string     `json:"meeting_id"`
	Passcode     string     `json:"passcode"`
}

// flexString accepts JSON strings, numbers and null for the id field.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

func parseSessions(raw []rawSession, loc *time.Location) ([]Session, error) {
	sessions := make([]Session, 0, len(raw))
	for _, r := range raw {
		s, err := normalizeSession(r, loc)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Start.Before(sessions[j].Start)
	})
	return sessions, nil
}

func normalizeSession(r rawSession, loc *time.Location) (Session, error) {
	startStr, endStr, err := extractTimes(r)
	if err != nil {
		return Session{}, err
	}

	if r.Date == "" {
		return Session{}, fmt.Errorf("missing date in session entry %q", describeEntry(r))
	}
	date, err := time.ParseInLocation("2006-01-02", r.Date, loc)
	if err != nil {
		return Session{}, fmt.Errorf("invalid date %q in session entry %q", r.Date, describeEntry(r))
	}

	start, err := combineDateTime(date, startStr, loc)
	if err != nil {
		return Session{}, fmt.Errorf("invalid start time %q in session entry %q", startStr, describeEntry(r))
	}
	end, err := combineDateTime(date, endStr, loc)
	if err != nil {
		return Session{}, fmt.Errorf("invalid end time %q in session entry %q", endStr, describeEntry(r))
	}

	lecture := r.Lecture
	if lecture == "" {
		lecture = "Lecture"
	}
	label := r.Session
	if label == "" {
		label = "Session"
	}

	return Session{
		ID:           buildSessionID(r),
		Lecture:      lecture,
		Label:        label,
		Start:        start,
		End:          end,
		ModeLocation: r.ModeLocation,
		Venue:        r.Venue,
		GoogleMapURL: r.GoogleMap,
		ZoomURL:      r.ZoomLink,
		MeetingID:    r.MeetingID,
		Passcode:     r.Passcode,
	}, nil
}

// extractTimes prefers an explicit start_time/end_time pair and falls back to
// splitting a combined "HH:MM - HH:MM" range.
func extractTimes(r rawSession) (string, string, error) {
	if r.StartTime != "" && r.EndTime != "" {
		return r.StartTime, r.EndTime, nil
	}
	if r.Time != "" {
		parts := strings.Split(r.Time, "-")
		if len(parts) != 2 {
			return "", "", fmt.Errorf("invalid time range %q", r.Time)
		}
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
	}
	return "", "", fmt.Errorf("missing time fields in session entry %q", describeEntry(r))
}

func combineDateTime(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

// buildSessionID derives a stable identifier: an explicit id wins, otherwise a
// lecture-session-date slug with spaces replaced by underscores.
func buildSessionID(r rawSession) string {
	if r.ID != "" {
		return string(r.ID)
	}
	pieces := make([]string, 0, 3)
	for _, p := range []string{r.Lecture, r.Session, r.Date} {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		pieces = append(pieces, strings.ReplaceAll(p, " ", "_"))
	}
	return strings.Join(pieces, "-")
}

func describeEntry(r rawSession) string {
	return strings.TrimSpace(r.Lecture + " " + r.Session + " " + r.Date)
}
