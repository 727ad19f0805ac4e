package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// ReportStatus is the lifecycle state of a community report.
type ReportStatus string

const (
	ReportOpen     ReportStatus = "open"
	ReportResolved ReportStatus = "resolved"
)

// MinReportReasonLength rejects trivially short reports instead of silently
// accepting them.
const MinReportReasonLength = 5

// Report is a community-filed complaint against a curated source. Reporting
// is anonymous; the contact email is optional.
type Report struct {
	ID           string       `json:"id"`
	SourceID     string       `json:"sourceId"`
	Reason       string       `json:"reason"`
	ContactEmail string       `json:"email,omitempty"`
	Status       ReportStatus `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
}

func (r Report) Validate() error {
	if strings.TrimSpace(r.SourceID) == "" {
		return fmt.Errorf("%w: sourceId is required", ErrValidation)
	}
	if len(strings.TrimSpace(r.Reason)) < MinReportReasonLength {
		return fmt.Errorf("%w: reason must be at least %d characters", ErrValidation, MinReportReasonLength)
	}
	if r.ContactEmail != "" {
		if _, err := mail.ParseAddress(r.ContactEmail); err != nil {
			return fmt.Errorf("%w: email is malformed", ErrValidation)
		}
	}
	return nil
}

// FlaggedReport pairs an open report with the source it targets, for the
// operator review surface.
type FlaggedReport struct {
	Report Report              `json:"report"`
	Source CuratedSourceRecord `json:"source"`
}
