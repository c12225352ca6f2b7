package command

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/amishk599/shiftalert/internal/model"
	"github.com/amishk599/shiftalert/internal/scheduler"
)

// Canned replies. The *bold* markers assume legacy Markdown parse mode.
const (
	StartReply    = "👋 Hi! Send *job* to get the latest job listings. You can also send */help*."
	HelpReply     = "🧭 Commands:\n• *job* – fetch latest jobs\n• */help* – show this help\n• */status* – show scheduler status"
	FallbackReply = "🤖 I didn’t catch that. Type *job* to get the latest listings."
	ErrorReply    = "❌ Something went wrong while processing your request. Please try again."
)

var (
	startRe  = regexp.MustCompile(`(?i)^/?start$`)
	helpRe   = regexp.MustCompile(`(?i)^/?help$`)
	statusRe = regexp.MustCompile(`(?i)^/?status$`)
	jobRe    = regexp.MustCompile(`(?i)job`)
)

// JobRequester serves on-demand board requests.
type JobRequester interface {
	OnDemand(ctx context.Context, chatID int64) error
	LastSent() model.NotificationState
}

// ChatSender delivers a reply to one chat.
type ChatSender interface {
	SendTo(ctx context.Context, chatID int64, text string) error
}

// StatusReporter exposes the scheduler's current mode.
type StatusReporter interface {
	Status() scheduler.Status
}

// Responder maps an incoming chat message to a reply.
type Responder struct {
	jobs     JobRequester
	out      ChatSender
	status   StatusReporter
	location *time.Location
	logger   *slog.Logger
}

// NewResponder creates a responder. status may be nil, in which case /status
// only reports the last message sent. Times are shown in loc.
func NewResponder(jobs JobRequester, out ChatSender, status StatusReporter, loc *time.Location, logger *slog.Logger) *Responder {
	if loc == nil {
		loc = time.UTC
	}
	return &Responder{
		jobs:     jobs,
		out:      out,
		status:   status,
		location: loc,
		logger:   logger,
	}
}

// Handle answers one message. When the matched handler fails the chat gets
// ErrorReply; a failure to send that is only logged. The handler's error is
// returned.
func (r *Responder) Handle(ctx context.Context, chatID int64, text string) error {
	text = strings.TrimSpace(text)

	var err error
	switch {
	case startRe.MatchString(text):
		err = r.out.SendTo(ctx, chatID, StartReply)
	case helpRe.MatchString(text):
		err = r.out.SendTo(ctx, chatID, HelpReply)
	case statusRe.MatchString(text):
		err = r.out.SendTo(ctx, chatID, r.statusText())
	case jobRe.MatchString(text):
		err = r.jobs.OnDemand(ctx, chatID)
	default:
		err = r.out.SendTo(ctx, chatID, FallbackReply)
	}
	if err == nil {
		return nil
	}

	r.logger.Error("command failed", "chat_id", chatID, "error", err)
	if sendErr := r.out.SendTo(ctx, chatID, ErrorReply); sendErr != nil {
		r.logger.Warn("error reply not delivered", "chat_id", chatID, "error", sendErr)
	}
	return err
}

func (r *Responder) statusText() string {
	var b strings.Builder
	if r.status != nil {
		st := r.status.Status()
		fmt.Fprintf(&b, "📡 Scheduler: %s\n", st.State)
		if st.Burst.Active {
			fmt.Fprintf(&b, "⚡ Burst %s: %d/%d checks every %s\n",
				st.Burst.Label, st.Burst.CyclesRun, st.Burst.TotalCycles, st.Burst.Interval)
		}
	}

	last := r.jobs.LastSent()
	if last.UpdatedAt.IsZero() {
		b.WriteString("📨 Last update sent: never")
	} else {
		fmt.Fprintf(&b, "📨 Last update sent: %s", last.UpdatedAt.In(r.location).Format("02 Jan 15:04 MST"))
	}
	return b.String()
}
