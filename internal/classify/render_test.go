package classify

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/amishk599/shiftalert/internal/model"
)

func rec(jobType, title, city string) model.JobRecord {
	return model.JobRecord{JobType: jobType, Title: title, City: city}
}

func TestRender_PartTimeWins(t *testing.T) {
	r := NewRenderer("", nil)
	got := r.Render([]model.JobRecord{
		rec("Part-Time", "Picker", "London"),
		rec("Full-Time", "Driver", "Leeds"),
	})

	if !strings.HasPrefix(got, "✅ Part-time jobs found:\n") {
		t.Errorf("unexpected header in %q", got)
	}
	if !strings.Contains(got, "• Picker (London)") {
		t.Errorf("expected part-time listing in %q", got)
	}
	if strings.Contains(got, "Driver (Leeds)") {
		t.Errorf("full-time listing leaked into %q", got)
	}
}

func TestRender_PartTimeRegardlessOfOrder(t *testing.T) {
	r := NewRenderer("", nil)
	got := r.Render([]model.JobRecord{
		rec("Seasonal", "Elf", "York"),
		rec("Full-Time", "Driver", "Leeds"),
		rec("PART-TIME", "Sorter", "Bristol"),
	})
	want := "✅ Part-time jobs found:\n• Sorter (Bristol)"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_FullTimeOnly(t *testing.T) {
	r := NewRenderer("", nil)
	got := r.Render([]model.JobRecord{
		rec("Full-Time", "Driver", "Leeds"),
		rec("Seasonal", "Elf", "York"),
		rec("full-time", "Loader", "Hull"),
	})
	want := "❗ Only full-time jobs available:\n• Driver (Leeds)\n• Loader (Hull)"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_Other(t *testing.T) {
	r := NewRenderer("", nil)
	got := r.Render([]model.JobRecord{rec("Seasonal", "Elf", "York")})
	want := "📌 Other job(s) available [Seasonal]:\n• Elf (York)"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_OtherLabelsDistinctInOrder(t *testing.T) {
	r := NewRenderer("", nil)
	got := r.Render([]model.JobRecord{
		rec("Seasonal", "Elf", "York"),
		rec("Flex", "Runner", "Derby"),
		rec("Seasonal", "Reindeer", "Leeds"),
	})
	if !strings.HasPrefix(got, "📌 Other job(s) available [Seasonal, Flex]:\n") {
		t.Errorf("unexpected header in %q", got)
	}
	if !strings.Contains(got, "• Reindeer (Leeds)") {
		t.Errorf("expected all other listings in %q", got)
	}
}

func TestRender_EmptyIsFixed(t *testing.T) {
	r := NewRenderer("", nil)
	first := r.Render(nil)
	second := r.Render([]model.JobRecord{})
	if first != NoJobsMessage {
		t.Errorf("Render(nil) = %q, want %q", first, NoJobsMessage)
	}
	if first != second {
		t.Errorf("empty render not stable: %q vs %q", first, second)
	}
}

func TestRender_Footer(t *testing.T) {
	r := NewRenderer("Powered by shiftalert", nil)

	for name, got := range map[string]string{
		"part-time": r.Render([]model.JobRecord{rec("Part-Time", "Picker", "London")}),
		"full-time": r.Render([]model.JobRecord{rec("Full-Time", "Driver", "Leeds")}),
		"other":     r.Render([]model.JobRecord{rec("Seasonal", "Elf", "York")}),
		"empty":     r.Render(nil),
		"error":     r.RenderError(errors.New("boom")),
	} {
		if !strings.HasSuffix(got, "\n\nPowered by shiftalert") {
			t.Errorf("%s: footer missing in %q", name, got)
		}
	}
}

func TestRender_CapsListings(t *testing.T) {
	r := NewRenderer("", nil)
	r.MaxListings = 3

	var records []model.JobRecord
	for i := 0; i < 5; i++ {
		records = append(records, rec("Part-Time", fmt.Sprintf("Job %d", i), "London"))
	}
	got := r.Render(records)

	if strings.Count(got, "• ") != 3 {
		t.Errorf("expected 3 listings, got %q", got)
	}
	if !strings.HasSuffix(got, "\n… and 2 more") {
		t.Errorf("expected overflow line, got %q", got)
	}
}

func TestRender_Escape(t *testing.T) {
	r := NewRenderer("", func(s string) string { return strings.ReplaceAll(s, "_", `\_`) })
	got := r.Render([]model.JobRecord{rec("Part-Time", "night_shift", "St_Albans")})
	want := "✅ Part-time jobs found:\n• night\\_shift (St\\_Albans)"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderError_FetchError(t *testing.T) {
	r := NewRenderer("", nil)
	err := &model.FetchError{Message: "Request failed with status code 500"}
	got := r.RenderError(fmt.Errorf("cycle: %w", err))
	want := "❌ Error fetching job data: Request failed with status code 500"
	if got != want {
		t.Errorf("RenderError() = %q, want %q", got, want)
	}
}

func TestRenderError_PlainError(t *testing.T) {
	r := NewRenderer("", nil)
	got := r.RenderError(errors.New("dial tcp: timeout"))
	if got != "❌ Error fetching job data: dial tcp: timeout" {
		t.Errorf("RenderError() = %q", got)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]model.JobRecord{
		rec("Part-Time", "a", "x"),
		rec("Full-Time", "b", "x"),
		rec("Full-Time", "c", "x"),
		rec("Flex", "d", "x"),
	})
	if s != (Summary{PartTime: 1, FullTime: 2, Other: 1}) {
		t.Errorf("Summarize() = %+v", s)
	}
	if b, ok := s.Winning(); !ok || b != model.BucketPartTime {
		t.Errorf("Winning() = %v, %v", b, ok)
	}
	if _, ok := (Summary{}).Winning(); ok {
		t.Error("empty summary should have no winner")
	}
}
