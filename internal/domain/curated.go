package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SourceStatus is the lifecycle state of a curated source. Embed and torrent
// sources are synthesized per request and carry no persisted status.
type SourceStatus string

const (
	StatusActive  SourceStatus = "active"
	StatusFlagged SourceStatus = "flagged"
	StatusRemoved SourceStatus = "removed"
)

func ValidSourceStatus(s SourceStatus) bool {
	switch s {
	case StatusActive, StatusFlagged, StatusRemoved:
		return true
	default:
		return false
	}
}

// CanTransitionTo encodes the curated-source state machine: one automatic
// edge (active→flagged, on first report) and two operator edges
// (flagged→active, any-non-removed→removed). Removed is terminal.
func (s SourceStatus) CanTransitionTo(next SourceStatus) bool {
	if s == next {
		return false
	}
	switch s {
	case StatusActive:
		return next == StatusFlagged || next == StatusRemoved
	case StatusFlagged:
		return next == StatusActive || next == StatusRemoved
	case StatusRemoved:
		return false
	default:
		return false
	}
}

// LicenseType classifies the distribution rights of a curated source.
// Mandatory on creation; a source without a license classification is never
// accepted.
type LicenseType string

const (
	LicensePublicDomain   LicenseType = "public-domain"
	LicenseCreativeCommon LicenseType = "creative-commons"
	LicenseCommercial     LicenseType = "commercial"
	LicenseOther          LicenseType = "other"
)

func ValidLicenseType(t LicenseType) bool {
	switch t {
	case LicensePublicDomain, LicenseCreativeCommon, LicenseCommercial, LicenseOther:
		return true
	default:
		return false
	}
}

// CuratedSourceRecord is the persisted form of an operator-entered source.
type CuratedSourceRecord struct {
	ID              string       `json:"id"`
	MediaID         string       `json:"mediaId"`
	MediaType       MediaType    `json:"mediaType"`
	Provider        string       `json:"provider"`
	Title           string       `json:"title"`
	Quality         string       `json:"quality,omitempty"`
	PlaybackType    PlaybackType `json:"playbackType"`
	URL             string       `json:"url"`
	RegionAllowlist []string     `json:"regionAllowlist,omitempty"`
	Status          SourceStatus `json:"status"`
	LicenseType     LicenseType  `json:"licenseType"`
	LicenseProofURL string       `json:"licenseProofUrl,omitempty"`
	CreatedBy       string       `json:"createdBy"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Validate checks creation invariants. It fails closed: a record missing a
// license classification or carrying a malformed URL is rejected.
func (r CuratedSourceRecord) Validate() error {
	if strings.TrimSpace(r.MediaID) == "" {
		return fmt.Errorf("%w: mediaId is required", ErrValidation)
	}
	if _, err := ParseMediaType(string(r.MediaType)); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !ValidPlaybackType(r.PlaybackType) {
		return fmt.Errorf("%w: invalid playbackType %q", ErrValidation, r.PlaybackType)
	}
	if err := validateHTTPURL(r.URL); err != nil {
		return fmt.Errorf("%w: url %s", ErrValidation, err.Error())
	}
	if r.LicenseType == "" {
		return fmt.Errorf("%w: licenseType is required", ErrValidation)
	}
	if !ValidLicenseType(r.LicenseType) {
		return fmt.Errorf("%w: invalid licenseType %q", ErrValidation, r.LicenseType)
	}
	if r.LicenseProofURL != "" {
		if err := validateHTTPURL(r.LicenseProofURL); err != nil {
			return fmt.Errorf("%w: licenseProofUrl %s", ErrValidation, err.Error())
		}
	}
	if r.Status != "" && !ValidSourceStatus(r.Status) {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, r.Status)
	}
	return nil
}

// Unified converts the persisted record into the aggregator's Source shape.
func (r CuratedSourceRecord) Unified() Source {
	return Source{
		ID:           r.ID,
		OriginKind:   OriginCurated,
		Provider:     r.Provider,
		Title:        r.Title,
		Quality:      r.Quality,
		PlaybackType: r.PlaybackType,
		Locator:      r.URL,
		Region:       r.RegionAllowlist,
		Status:       r.Status,
	}
}

// CuratedSourceUpdate carries the mutable subset of a curated record. Nil
// fields are left untouched.
type CuratedSourceUpdate struct {
	Title           *string
	Provider        *string
	Quality         *string
	PlaybackType    *PlaybackType
	URL             *string
	RegionAllowlist *[]string
	LicenseType     *LicenseType
	LicenseProofURL *string
	Status          *SourceStatus
}

// Validate checks each provided field. Status changes are additionally
// guarded against the current status at the persistence boundary.
func (u CuratedSourceUpdate) Validate() error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrValidation)
	}
	if u.PlaybackType != nil && !ValidPlaybackType(*u.PlaybackType) {
		return fmt.Errorf("%w: invalid playbackType %q", ErrValidation, *u.PlaybackType)
	}
	if u.URL != nil {
		if err := validateHTTPURL(*u.URL); err != nil {
			return fmt.Errorf("%w: url %s", ErrValidation, err.Error())
		}
	}
	if u.LicenseType != nil && !ValidLicenseType(*u.LicenseType) {
		return fmt.Errorf("%w: invalid licenseType %q", ErrValidation, *u.LicenseType)
	}
	if u.Status != nil && !ValidSourceStatus(*u.Status) {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, *u.Status)
	}
	return nil
}

// Empty reports whether the update would change nothing.
func (u CuratedSourceUpdate) Empty() bool {
	return u.Title == nil && u.Provider == nil && u.Quality == nil &&
		u.PlaybackType == nil && u.URL == nil && u.RegionAllowlist == nil &&
		u.LicenseType == nil && u.LicenseProofURL == nil && u.Status == nil
}

func validateHTTPURL(raw string) error {
	value := strings.TrimSpace(raw)
	if value == "" {
		return errors.New("is required")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return errors.New("is malformed")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}
