package course

import (
	"testing"
	"time"

	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

func testCourse() *Course {
	mk := func(id, lecture, label string, day int) Session {
		return Session{
			ID:      id,
			Lecture: lecture,
			Label:   label,
			Start:   time.Date(2025, 12, day, 9, 0, 0, 0, testLoc),
			End:     time.Date(2025, 12, day, 12, 0, 0, 0, testLoc),
		}
	}
	return &Course{
		Title: "Programming Foundations",
		Sessions: []Session{
			mk("s1", "Lecture 1", "Morning", 13),
			mk("s2", "Lecture 2", "Evening", 14),
			mk("s3", "Lecture 10", "Morning", 20),
		},
	}
}

func TestBuildIndexLastWins(t *testing.T) {
	t.Parallel()
	sessions := []Session{
		{ID: "dup", Lecture: "First"},
		{ID: "dup", Lecture: "Second"},
	}
	idx := BuildIndex(sessions, logx.Nop())
	if len(idx) != 1 {
		t.Fatalf("len(idx) = %d, want 1", len(idx))
	}
	if idx["dup"].Lecture != "Second" {
		t.Fatalf("kept %q, want the later entry", idx["dup"].Lecture)
	}
}

func TestFindByQuery(t *testing.T) {
	t.Parallel()
	c := testCourse()
	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{name: "empty", query: "   ", wantIDs: nil},
		{name: "lecture ci", query: "lecture 2", wantIDs: []string{"s2"}},
		{name: "label ci", query: "MORNING", wantIDs: []string{"s1", "s3"}},
		{name: "date substring", query: "2025-12-14", wantIDs: []string{"s2"}},
		{name: "substring hits both", query: "Lecture 1", wantIDs: []string{"s1", "s3"}},
		{name: "no match", query: "Lab", wantIDs: nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := FindByQuery(c, tt.query)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d matches, want %d", len(got), len(tt.wantIDs))
			}
			for i, s := range got {
				if s.ID != tt.wantIDs[i] {
					t.Fatalf("match[%d] = %q, want %q", i, s.ID, tt.wantIDs[i])
				}
			}
		})
	}
}
