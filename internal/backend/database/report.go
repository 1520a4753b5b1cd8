package database

import "time"

// DateLayout is the calendar-date format used for all stored dates.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

type Report struct {
	ReportID            int64  `db:"report_id" json:"report_id"`
	Name                string `db:"name" json:"name"`
	ContactDetails      string `db:"contact_details" json:"contact_details,omitempty"`
	IssueCategory       string `db:"issue_category" json:"issue_category,omitempty"`
	Description         string `db:"description" json:"description,omitempty"`
	ManualLocationInput string `db:"manual_location_input" json:"manual_location_input,omitempty"`
	Status              Status `db:"status" json:"status"`
	SubmittedAt         string `db:"submitted_at" json:"submitted_at"` // YYYY-MM-DD, UTC
	UpdatedAt           string `db:"updated_at" json:"updated_at"`
}

// FormatDate renders t as a UTC calendar date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
