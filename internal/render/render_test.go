package render

import (
	"strings"
	"testing"
	"time"

	"github.com/zey-2/tg-prog-foundation-bot/internal/course"
)

var testLoc = time.FixedZone("SGT", 8*3600)

func physicalSession() course.Session {
	return course.Session{
		ID:           "s1",
		Lecture:      "Lecture 1",
		Label:        "Morning",
		Start:        time.Date(2025, 12, 13, 9, 0, 0, 0, testLoc),
		End:          time.Date(2025, 12, 13, 12, 0, 0, 0, testLoc),
		ModeLocation: "In person",
		Venue:        "Block A",
		GoogleMapURL: "https://maps.example.com/a",
	}
}

func onlineSession() course.Session {
	return course.Session{
		ID:           "s2",
		Lecture:      "Lecture 2",
		Label:        "Evening",
		Start:        time.Date(2025, 12, 20, 18, 30, 0, 0, testLoc),
		End:          time.Date(2025, 12, 20, 21, 30, 0, 0, testLoc),
		ModeLocation: "Zoom",
		ZoomURL:      "https://zoom.example.com/j/2",
		MeetingID:    "123 456",
		Passcode:     "abc",
	}
}

func TestListLine(t *testing.T) {
	t.Parallel()
	got := ListLine(physicalSession(), testLoc)
	want := "- Lecture 1 [Morning] | 2025-12-13 09:00 to 12:00 (SGT) | Block A"
	if got != want {
		t.Fatalf("ListLine:\n got %q\nwant %q", got, want)
	}

	// Without a venue the mode/location string stands in.
	got = ListLine(onlineSession(), testLoc)
	if !strings.HasSuffix(got, "| Zoom") {
		t.Fatalf("online line = %q", got)
	}
}

func TestDetailPhysical(t *testing.T) {
	t.Parallel()
	got := Detail(physicalSession(), testLoc)
	want := strings.Join([]string{
		"Lecture 1 - Morning",
		"Date & time: Saturday, 2025-12-13 09:00 to 12:00 (SGT)",
		"Mode/Location: In person",
		"Venue: Block A",
		"Map: https://maps.example.com/a",
	}, "\n")
	if got != want {
		t.Fatalf("Detail:\n got %q\nwant %q", got, want)
	}
}

func TestDetailOmitsUnsetFields(t *testing.T) {
	t.Parallel()
	got := Detail(onlineSession(), testLoc)
	if strings.Contains(got, "Venue:") || strings.Contains(got, "Map:") {
		t.Fatalf("unset fields rendered: %q", got)
	}
	for _, want := range []string{"Zoom: https://zoom.example.com/j/2", "Meeting ID: 123 456", "Passcode: abc"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}

func TestScheduleListGroupsByDate(t *testing.T) {
	t.Parallel()
	a := physicalSession()
	b := physicalSession()
	b.ID, b.Lecture = "s1b", "Lecture 1b"
	b.Start = time.Date(2025, 12, 13, 14, 0, 0, 0, testLoc)
	b.End = time.Date(2025, 12, 13, 17, 0, 0, 0, testLoc)
	c := &course.Course{Sessions: []course.Session{a, b, onlineSession()}}

	got := ScheduleList(c, testLoc)
	lines := strings.Split(got, "\n")
	if lines[0] != "Upcoming sessions:" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "2025-12-13 (Saturday)" {
		t.Fatalf("first date header = %q", lines[1])
	}
	// Two sessions share the first date, then a blank separator before the
	// next header.
	if lines[4] != "" {
		t.Fatalf("expected blank separator, got %q", lines[4])
	}
	if lines[5] != "2025-12-20 (Saturday)" {
		t.Fatalf("second date header = %q", lines[5])
	}
}

func TestLinkActionsOrderAndCarpark(t *testing.T) {
	t.Parallel()
	c := &course.Course{
		AttendanceQRURL:    "https://example.com/qr",
		AttendanceCheckURL: "https://example.com/check",
		CarparkInfoURL:     "https://example.com/carpark",
		MaterialsURL:       "https://example.com/materials",
	}

	labels := func(actions []LinkAction) []string {
		out := make([]string, 0, len(actions))
		for _, a := range actions {
			out = append(out, a.Label)
		}
		return out
	}

	got := labels(LinkActions(physicalSession(), c, LinkOptions{Zoom: true, Materials: true, Attendance: true}))
	want := []string{"Map", "Materials", "Carpark Info", "Attendance QR", "Attendance Check"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("physical actions = %v, want %v", got, want)
	}

	// Online sessions never offer carpark info, and get the zoom action
	// first when requested.
	got = labels(LinkActions(onlineSession(), c, LinkOptions{Zoom: true, Attendance: true}))
	want = []string{"Join Zoom", "Attendance QR", "Attendance Check"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("online actions = %v, want %v", got, want)
	}
}

func TestLinkActionsEmpty(t *testing.T) {
	t.Parallel()
	c := &course.Course{}
	s := course.Session{ModeLocation: "Online"}
	if got := LinkActions(s, c, LinkOptions{Zoom: true, Materials: true, Attendance: true}); got != nil {
		t.Fatalf("expected nil actions, got %v", got)
	}
}
