package tasks

import "time"

const (
	// TypeSweepPending reconciles or reaps stale pending uploads.
	TypeSweepPending = "sweep_pending"
)

// Task is a maintenance message carried on the redis stream. Stream values
// are strings, so every field is encoded as one.
type Task struct {
	Type       string `json:"type"`
	EnqueuedAt string `json:"enqueuedAt,omitempty"`
	OlderThan  string `json:"olderThan,omitempty"`
	Limit      string `json:"limit,omitempty"`
}

func NewSweepPending(now time.Time) Task {
	return Task{
		Type:       TypeSweepPending,
		EnqueuedAt: now.UTC().Format(time.RFC3339),
	}
}

// Values renders the task as XADD field/value pairs, omitting empty fields.
func (t Task) Values() map[string]any {
	values := map[string]any{"type": t.Type}
	if t.EnqueuedAt != "" {
		values["enqueuedAt"] = t.EnqueuedAt
	}
	if t.OlderThan != "" {
		values["olderThan"] = t.OlderThan
	}
	if t.Limit != "" {
		values["limit"] = t.Limit
	}
	return values
}
