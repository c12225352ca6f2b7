package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/shiftalert/internal/model"
	"github.com/amishk599/shiftalert/internal/scheduler"
)

type fakeJobs struct {
	mu    sync.Mutex
	calls []int64
	err   error
	last  model.NotificationState
}

func (f *fakeJobs) OnDemand(_ context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, chatID)
	return f.err
}

func (f *fakeJobs) LastSent() model.NotificationState { return f.last }

type recordingChat struct {
	mu    sync.Mutex
	sent  map[int64][]string
	err   error
	fails int // number of sends to fail before succeeding
}

func newRecordingChat() *recordingChat {
	return &recordingChat{sent: make(map[int64][]string)}
}

func (c *recordingChat) SendTo(_ context.Context, chatID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fails > 0 {
		c.fails--
		return errors.New("telegram down")
	}
	c.sent[chatID] = append(c.sent[chatID], text)
	return c.err
}

func (c *recordingChat) messages(chatID int64) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent[chatID]...)
}

type fixedStatus scheduler.Status

func (s fixedStatus) Status() scheduler.Status { return scheduler.Status(s) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandle_CannedReplies(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"/start", StartReply},
		{"start", StartReply},
		{"  START  ", StartReply},
		{"/help", HelpReply},
		{"Help", HelpReply},
		{"hello", FallbackReply},
		{"/starting", FallbackReply},
		{"", FallbackReply},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			jobs := &fakeJobs{}
			chat := newRecordingChat()
			r := NewResponder(jobs, chat, nil, nil, discardLogger())

			require.NoError(t, r.Handle(context.Background(), 42, tc.text))
			assert.Equal(t, []string{tc.want}, chat.messages(42))
			assert.Empty(t, jobs.calls)
		})
	}
}

func TestHandle_JobTriggersOnDemand(t *testing.T) {
	for _, text := range []string{"job", "JOB", "any jobs today?", "/job"} {
		jobs := &fakeJobs{}
		chat := newRecordingChat()
		r := NewResponder(jobs, chat, nil, nil, discardLogger())

		require.NoError(t, r.Handle(context.Background(), 7, text))
		assert.Equal(t, []int64{7}, jobs.calls, "text %q", text)
		assert.Empty(t, chat.messages(7), "on-demand replies come from the pipeline")
	}
}

func TestHandle_HandlerErrorSendsErrorReply(t *testing.T) {
	jobs := &fakeJobs{err: errors.New("upstream exploded")}
	chat := newRecordingChat()
	r := NewResponder(jobs, chat, nil, nil, discardLogger())

	err := r.Handle(context.Background(), 9, "job")
	require.Error(t, err)
	assert.Equal(t, []string{ErrorReply}, chat.messages(9))
}

func TestHandle_ErrorReplyFailureIgnored(t *testing.T) {
	chat := newRecordingChat()
	chat.fails = 2
	r := NewResponder(&fakeJobs{}, chat, nil, nil, discardLogger())

	err := r.Handle(context.Background(), 9, "/help")
	require.Error(t, err)
	assert.Empty(t, chat.messages(9))
}

func TestHandle_Status(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	jobs := &fakeJobs{last: model.NotificationState{
		LastMessage: "✅ Part-time jobs found:",
		UpdatedAt:   time.Date(2026, 1, 10, 23, 5, 0, 0, time.UTC),
	}}
	status := fixedStatus{
		State: scheduler.Bursting,
		Burst: model.BurstSchedule{Label: "night", Interval: time.Second, TotalCycles: 1200, CyclesRun: 12, Active: true},
	}
	chat := newRecordingChat()
	r := NewResponder(jobs, chat, status, london, discardLogger())

	require.NoError(t, r.Handle(context.Background(), 1, "/status"))
	msgs := chat.messages(1)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Scheduler: bursting")
	assert.Contains(t, msgs[0], "Burst night: 12/1200 checks every 1s")
	assert.Contains(t, msgs[0], "10 Jan 23:05 GMT")
}

func TestHandle_StatusNeverSent(t *testing.T) {
	chat := newRecordingChat()
	r := NewResponder(&fakeJobs{}, chat, fixedStatus{State: scheduler.BaselinePolling}, nil, discardLogger())

	require.NoError(t, r.Handle(context.Background(), 1, "status"))
	msgs := chat.messages(1)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Scheduler: baseline")
	assert.NotContains(t, msgs[0], "Burst")
	assert.Contains(t, msgs[0], "never")
}
