package models

import "time"

// NoticeStage is the monotonic notification-progress marker on a window.
// It only ever moves forward, at most one step per sweep.
type NoticeStage int

const (
	StageNotSent NoticeStage = iota
	StageDayBefore
	StageDayOf
)

func (s NoticeStage) String() string {
	switch s {
	case StageNotSent:
		return "not sent"
	case StageDayBefore:
		return "day-before sent"
	case StageDayOf:
		return "day-of sent"
	}
	return "unknown"
}

// Window is one scheduled maintenance interval. End must be strictly after
// Start, re-checked on creation and on partial edits of either bound.
type Window struct {
	ID        int64       `json:"id"`
	Date      time.Time   `json:"date"`
	Start     string      `json:"start"` // HH:MM
	End       string      `json:"end"`   // HH:MM
	Reason    string      `json:"reason"`
	CreatedBy int64       `json:"created_by"`
	CreatedOn time.Time   `json:"created_on"`
	Stage     NoticeStage `json:"stage"`
}

// Update carries a partial edit. Nil fields keep their stored value.
// Reason uses a dedicated flag so that clearing it is distinct from
// leaving it unset.
type Update struct {
	Date        *time.Time
	Start       *string
	End         *string
	Reason      *string
	ClearReason bool
}

// Empty reports whether the update would change nothing.
func (u Update) Empty() bool {
	return u.Date == nil && u.Start == nil && u.End == nil && u.Reason == nil && !u.ClearReason
}
