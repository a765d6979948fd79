package course

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// sessionBlockRe locates a JSON array of session objects embedded anywhere in
// a legacy text document. Greedy on purpose: the block spans from the first
// "[{" to the last "}]", newlines included.
var sessionBlockRe = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)

var ErrNoSessionBlock = errors.New("unable to locate sessions JSON block in course text")

// The legacy format carries its resource URLs as bare links on the line after
// a fixed keyword phrase. The phrases are load-bearing: changing them breaks
// parsing of existing course files.
const (
	keywordAttendanceQR    = "QR code for marking attendance"
	keywordAttendanceCheck = "checking attendance"
	keywordCarpark         = "Carpark Charges"
	keywordMaterials       = "Course Materials"
)

func parseLegacy(content []byte, loc *time.Location) (*Course, error) {
	text := string(content)
	lines := nonBlankLines(text)

	title := "Course"
	if len(lines) > 0 {
		title = lines[0]
	}

	block := sessionBlockRe.FindString(text)
	if block == "" {
		return nil, ErrNoSessionBlock
	}
	var raw []rawSession
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return nil, fmt.Errorf("parse embedded sessions block: %w", err)
	}
	sessions, err := parseSessions(raw, loc)
	if err != nil {
		return nil, err
	}

	return &Course{
		Title:              title,
		Sessions:           sessions,
		AttendanceQRURL:    urlAfterKeyword(lines, keywordAttendanceQR),
		AttendanceCheckURL: urlAfterKeyword(lines, keywordAttendanceCheck),
		CarparkInfoURL:     urlAfterKeyword(lines, keywordCarpark),
		MaterialsURL:       urlAfterKeyword(lines, keywordMaterials),
	}, nil
}

func nonBlankLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// urlAfterKeyword scans for a line containing keyword (case-insensitively) and
// returns the next non-blank line, but only when that line starts with "http".
// Intentionally strict keyword-then-next-line semantics; do not loosen this
// into "any URL near the keyword".
func urlAfterKeyword(lines []string, keyword string) string {
	kw := strings.ToLower(keyword)
	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), kw) {
			continue
		}
		if i+1 < len(lines) {
			candidate := lines[i+1]
			if strings.HasPrefix(candidate, "http") {
				return candidate
			}
		}
	}
	return ""
}
