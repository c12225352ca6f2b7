package model

import (
	"context"
	"strings"
	"time"
)

// JobRecord is one upstream listing, normalized at the API boundary so every
// field carries an explicit value.
type JobRecord struct {
	ID             string
	Title          string
	JobType        string // free-text category label, e.g. "Part-Time"
	EmploymentType string
	City           string
	State          string
	PayRateMin     float64
	PayRateMax     float64
}

// Bucket is the classification derived from a record's JobType.
type Bucket int

const (
	BucketOther Bucket = iota
	BucketPartTime
	BucketFullTime
)

func (b Bucket) String() string {
	switch b {
	case BucketPartTime:
		return "part-time"
	case BucketFullTime:
		return "full-time"
	default:
		return "other"
	}
}

// BucketOf maps a raw job type label onto its bucket, case-insensitively.
func BucketOf(jobType string) Bucket {
	switch strings.ToLower(strings.TrimSpace(jobType)) {
	case "part-time":
		return BucketPartTime
	case "full-time":
		return BucketFullTime
	default:
		return BucketOther
	}
}

// Bucket returns the record's classification.
func (r JobRecord) Bucket() Bucket { return BucketOf(r.JobType) }

// NotificationState is the last message delivered to the broadcast list.
type NotificationState struct {
	LastMessage string
	UpdatedAt   time.Time
}

// BurstSchedule is a snapshot of a high-frequency polling window.
type BurstSchedule struct {
	Label       string
	Interval    time.Duration
	TotalCycles int
	CyclesRun   int
	Active      bool
}

// DeliveryOutcome records what happened for one recipient during a broadcast.
type DeliveryOutcome struct {
	Recipient int64
	Chunks    int // chunks delivered
	Err       error
}

// HistoryStatus marks whether a tracked listing is still being served upstream.
type HistoryStatus string

const (
	StatusActive   HistoryStatus = "active"
	StatusInactive HistoryStatus = "inactive"
)

// HistoryEntry is one row of the part-time job ledger.
type HistoryEntry struct {
	JobID       string
	City        string
	Title       string
	JobType     string
	FirstSeen   time.Time
	LastUpdated time.Time
	Status      HistoryStatus
}

// HistoryDelta summarizes what a history sync changed.
type HistoryDelta struct {
	New         int
	Reactivated int
	Deactivated int
}

// JobFetcher fetches the current upstream listings.
type JobFetcher interface {
	FetchJobs(ctx context.Context) ([]JobRecord, error)
}

// Sender delivers a single text message to a single chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Broadcaster delivers a message to every configured recipient.
// It never fails as a whole; per-recipient errors are reported in the outcomes.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) []DeliveryOutcome
	SendTo(ctx context.Context, chatID int64, text string) error
}

// StateStore persists NotificationState between process runs.
type StateStore interface {
	Load(ctx context.Context) (NotificationState, error)
	Save(ctx context.Context, st NotificationState) error
}

// HistoryStore keeps the part-time job ledger.
type HistoryStore interface {
	Sync(ctx context.Context, partTime []JobRecord, now time.Time) (HistoryDelta, error)
	List(ctx context.Context, status HistoryStatus) ([]HistoryEntry, error)
}
