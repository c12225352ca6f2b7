package classify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amishk599/shiftalert/internal/model"
)

// Headers and fixed messages. They are part of the rendered output and so
// part of change detection: editing one triggers a resend.
const (
	PartTimeHeader = "✅ Part-time jobs found:"
	FullTimeHeader = "❗ Only full-time jobs available:"
	OtherHeader    = "📌 Other job(s) available"
	NoJobsMessage  = "❌ No jobs found."
	ErrorPrefix    = "❌ Error fetching job data: "
)

// DefaultMaxListings keeps a rendered board well under Telegram's message cap.
const DefaultMaxListings = 40

// Renderer turns a fetch result into the message users receive.
type Renderer struct {
	// Footer is appended after a blank line in every branch. Empty disables it.
	Footer string
	// MaxListings caps the bulleted list; 0 means unlimited.
	MaxListings int
	// Escape neutralizes markup in upstream text. Nil leaves text as is.
	Escape func(string) string
}

// NewRenderer returns a renderer with the default listing cap.
func NewRenderer(footer string, escape func(string) string) *Renderer {
	return &Renderer{
		Footer:      footer,
		MaxListings: DefaultMaxListings,
		Escape:      escape,
	}
}

// Render classifies records and renders the board. Part-time listings win
// over full-time, which win over everything else; only the winning bucket
// is listed.
func (r *Renderer) Render(records []model.JobRecord) string {
	part, full, other := Partition(records)

	var b strings.Builder
	switch {
	case len(part) > 0:
		b.WriteString(PartTimeHeader)
		b.WriteByte('\n')
		r.writeList(&b, part)
	case len(full) > 0:
		b.WriteString(FullTimeHeader)
		b.WriteByte('\n')
		r.writeList(&b, full)
	case len(other) > 0:
		labels := OtherLabels(other)
		for i := range labels {
			labels[i] = r.escape(labels[i])
		}
		fmt.Fprintf(&b, "%s %s%s]:\n", OtherHeader, r.escape("["), strings.Join(labels, ", "))
		r.writeList(&b, other)
	default:
		b.WriteString(NoJobsMessage)
	}

	r.writeFooter(&b)
	return b.String()
}

// RenderError renders a failed fetch. For a *model.FetchError only its
// user-facing message is shown.
func (r *Renderer) RenderError(err error) string {
	msg := err.Error()
	var fe *model.FetchError
	if errors.As(err, &fe) {
		msg = fe.Message
	}

	var b strings.Builder
	b.WriteString(ErrorPrefix)
	b.WriteString(r.escape(msg))
	r.writeFooter(&b)
	return b.String()
}

func (r *Renderer) writeList(b *strings.Builder, records []model.JobRecord) {
	shown := records
	if r.MaxListings > 0 && len(records) > r.MaxListings {
		shown = records[:r.MaxListings]
	}
	for i, rec := range shown {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(b, "• %s (%s)", r.escape(rec.Title), r.escape(rec.City))
	}
	if hidden := len(records) - len(shown); hidden > 0 {
		fmt.Fprintf(b, "\n… and %d more", hidden)
	}
}

func (r *Renderer) writeFooter(b *strings.Builder) {
	if r.Footer == "" {
		return
	}
	b.WriteString("\n\n")
	b.WriteString(r.Footer)
}

func (r *Renderer) escape(s string) string {
	if r.Escape == nil {
		return s
	}
	return r.Escape(s)
}
