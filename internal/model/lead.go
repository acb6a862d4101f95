package model

import (
	"strings"
	"time"
)

// QualityTier grades how likely a search result is a genuine buyer.
type QualityTier string

const (
	QualityExcellent QualityTier = "EXCELLENT"
	QualityGood      QualityTier = "GOOD"
	QualityTrash     QualityTier = "TRASH"
)

// ParseQuality converts s to a QualityTier, case-insensitively.
func ParseQuality(s string) (QualityTier, bool) {
	switch q := QualityTier(strings.ToUpper(strings.TrimSpace(s))); q {
	case QualityExcellent, QualityGood, QualityTrash:
		return q, true
	}
	return "", false
}

// SegmentLevel is the market segment a lead appears to belong to.
type SegmentLevel string

const (
	SegmentLuxury     SegmentLevel = "LUXURY"
	SegmentSocial     SegmentLevel = "SOCIAL"
	SegmentCommercial SegmentLevel = "COMMERCIAL"
	SegmentNormal     SegmentLevel = "NORMAL"
)

// Segments lists every segment level.
var Segments = []SegmentLevel{SegmentLuxury, SegmentSocial, SegmentCommercial, SegmentNormal}

// Priority maps a segment to the follow-up priority sales uses.
func (s SegmentLevel) Priority() string {
	switch s {
	case SegmentLuxury:
		return "hot"
	case SegmentCommercial:
		return "high"
	default:
		return "normal"
	}
}

// LeadStatus is the sales lifecycle label of a lead.
type LeadStatus string

const (
	LeadStatusNew           LeadStatus = "NEW"
	LeadStatusContacted     LeadStatus = "CONTACTED"
	LeadStatusInterested    LeadStatus = "INTERESTED"
	LeadStatusNotInterested LeadStatus = "NOT_INTERESTED"
	LeadStatusConverted     LeadStatus = "CONVERTED"
)

// Lead is a prospective buyer keyed by phone number.
type Lead struct {
	Phone     string       `json:"phone_number"`
	Source    string       `json:"source"`
	Quality   QualityTier  `json:"quality"`
	Segment   SegmentLevel `json:"segment"`
	Notes     string       `json:"notes"`
	Actor     string       `json:"user_id"`
	Status    LeadStatus   `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Audit event types.
const (
	EventLeadCreated = "lead.created"
	EventHuntAborted = "hunt.aborted"
)

// AuditEvent is an append-only record of a state change.
type AuditEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Actor     string    `json:"actor"`
	Subject   string    `json:"subject"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
