package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of a support request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved, StatusClosed}

// ParseStatus normalises user input such as "In Progress" or "in-progress".
func ParseStatus(s string) (Status, error) {
	normalised := strings.ToLower(strings.TrimSpace(s))
	normalised = strings.NewReplacer(" ", "_", "-", "_").Replace(normalised)

	status := Status(normalised)
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q (expected one of pending, in_progress, resolved, closed)", s)
	}
	return status, nil
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusClosed:
		return true
	default:
		return false
	}
}

// Label returns the status with underscores replaced, e.g. "in progress".
func (s Status) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// Color returns the badge color used when listing requests.
func (s Status) Color() string {
	switch s {
	case StatusPending:
		return "yellow"
	case StatusInProgress:
		return "blue"
	case StatusResolved:
		return "green"
	case StatusClosed:
		return "gray"
	default:
		return ""
	}
}

// Severity is the user declared urgency of a request.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity level.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// PriorityIcon describes the icon shown next to a severity level.
type PriorityIcon struct {
	Name  string
	Color string
}

// Icon returns the priority icon for the severity, matched case-insensitively.
func (s Severity) Icon() PriorityIcon {
	switch Severity(strings.ToLower(string(s))) {
	case SeverityHigh:
		return PriorityIcon{Name: "alert", Color: "red"}
	case SeverityMedium:
		return PriorityIcon{Name: "clock", Color: "yellow"}
	case SeverityLow:
		return PriorityIcon{Name: "check", Color: "green"}
	case SeverityCritical:
		return PriorityIcon{Name: "alert", Color: "purple"}
	default:
		return PriorityIcon{}
	}
}

// HarassmentType is the category of a report.
type HarassmentType string

const (
	HarassmentCyber     HarassmentType = "cyber_harassment"
	HarassmentWorkplace HarassmentType = "workplace_harassment"
	HarassmentStalking  HarassmentType = "stalking"
	HarassmentVerbal    HarassmentType = "verbal_abuse"
	HarassmentPhysical  HarassmentType = "physical_threat"
	HarassmentOther     HarassmentType = "other"
)

// HarassmentTypes lists the categories offered when filing a request.
var HarassmentTypes = []HarassmentType{
	HarassmentCyber,
	HarassmentWorkplace,
	HarassmentStalking,
	HarassmentVerbal,
	HarassmentPhysical,
	HarassmentOther,
}

// Valid reports whether h is a known category.
func (h HarassmentType) Valid() bool {
	for _, t := range HarassmentTypes {
		if t == h {
			return true
		}
	}
	return false
}

// Label replaces the first underscore, matching how the dashboard renders it.
func (h HarassmentType) Label() string {
	return strings.Replace(string(h), "_", " ", 1)
}

// EvidenceType distinguishes screenshot links from video links.
type EvidenceType string

const (
	EvidenceScreenshot EvidenceType = "screenshot"
	EvidenceVideo      EvidenceType = "video"
)

// Evidence is a pointer to externally hosted content.
type Evidence struct {
	Type EvidenceType `json:"type"`
	URL  string       `json:"url"`
}

// Sender identifies who wrote a comment.
type Sender string

const (
	SenderAdmin Sender = "admin"
	SenderUser  Sender = "user"
)

// CommentID accepts both numeric and string identifiers from the backend.
type CommentID string

func (c *CommentID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = CommentID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid comment id: %w", err)
	}
	*c = CommentID(n.String())
	return nil
}

// Comment is an append-only note on a request.
type Comment struct {
	ID        CommentID `json:"id,omitempty"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SupportRequest is a harassment report tracked through its status lifecycle.
type SupportRequest struct {
	ID             string         `json:"_id"`
	AltID          string         `json:"id,omitempty"`
	UserID         string         `json:"userId"`
	Title          string         `json:"title,omitempty"`
	Phone          string         `json:"phone"`
	UserAddress    string         `json:"userAddress"`
	AccusedName    string         `json:"accusedName"`
	AccusedAddress string         `json:"accusedAddress"`
	AccusedPhone   string         `json:"accusedPhone"`
	HarassmentType HarassmentType `json:"harassmentType"`
	SeverityLevel  Severity       `json:"severityLevel"`
	Description    string         `json:"description"`
	Status         Status         `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	Evidence       []Evidence     `json:"evidence"`
	Comments       []Comment      `json:"comments"`
}

// Identifier returns the backend document id, falling back to "id".
func (r *SupportRequest) Identifier() string {
	if r.ID != "" {
		return r.ID
	}
	return r.AltID
}

// NoUpdates is the summary shown when a request has no comments.
const NoUpdates = "No updates"

// LastUpdate returns the content of the most recent comment.
func (r *SupportRequest) LastUpdate() string {
	if len(r.Comments) == 0 {
		return NoUpdates
	}
	return r.Comments[len(r.Comments)-1].Content
}

// MessageSummary returns "N new messages", or "" when there are no comments.
func (r *SupportRequest) MessageSummary() string {
	if len(r.Comments) == 0 {
		return ""
	}
	return strconv.Itoa(len(r.Comments)) + " new messages"
}

// EvidenceLabels returns "Screenshot Evidence #1" style labels in order.
func (r *SupportRequest) EvidenceLabels() []string {
	labels := make([]string, 0, len(r.Evidence))
	for i, e := range r.Evidence {
		kind := "Video Evidence"
		if e.Type == EvidenceScreenshot {
			kind = "Screenshot Evidence"
		}
		labels = append(labels, fmt.Sprintf("%s #%d", kind, i+1))
	}
	return labels
}
