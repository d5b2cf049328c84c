package domain

import (
	"encoding/json"
	"time"
)

type JobRef struct {
	Title      string `json:"jobTitle" yaml:"jobTitle"`
	Type       string `json:"jobType,omitempty" yaml:"jobType"`
	Department string `json:"department" yaml:"department"`
}

type Candidate struct {
	ApplicantID string      `json:"applicant_id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Gender      string      `json:"gender,omitempty"`
	Mobile      string      `json:"mobile,omitempty"`
	JobTitle    string      `json:"job_title"`
	JobType     string      `json:"job_type,omitempty"`
	Department  string      `json:"department"`
	Stage       Stage       `json:"stage"`
	RoundStatus RoundStatus `json:"round_status"`
	AppliedAt   time.Time   `json:"applied_at"`
}

// Application is the server-side record behind a Candidate.
type Application struct {
	Candidate
	Fields       json.RawMessage `json:"fields"`
	ResumeKey    string          `json:"resume_key"`
	AcademicsKey string          `json:"academics_key,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
	Total      int `json:"total"`
}

type CandidatePage struct {
	Items      []Candidate `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

type StageCount struct {
	Stage    Stage `json:"stage"`
	Active   int   `json:"active"`
	Rejected int   `json:"rejected"`
	Accepted int   `json:"accepted"`
}

type MoveRequest struct {
	ApplicantID string  `json:"applicant_id"`
	TargetStage *Stage  `json:"target_stage,omitempty"`
	Outcome     Outcome `json:"outcome"`
}

type Notification struct {
	ApplicantID string  `json:"applicant_id,omitempty"`
	Email       string  `json:"email"`
	Message     string  `json:"message"`
	Link        string  `json:"link,omitempty"`
	Outcome     Outcome `json:"outcome"`
}

// Submission is the wire bundle for one application: JSON fields plus attachments.
type Submission struct {
	Fields    json.RawMessage
	Resume    *Attachment
	Academics *Attachment
}

type Confirmation struct {
	ApplicantID string    `json:"applicant_id"`
	Stage       Stage     `json:"stage"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// DecisionRecord is one ledger entry for a reviewer's decide-and-send action.
type DecisionRecord struct {
	ID          string    `json:"id"`
	ApplicantID string    `json:"applicant_id"`
	Department  string    `json:"department"`
	Email       string    `json:"email"`
	FromStage   Stage     `json:"from_stage"`
	TargetStage *Stage    `json:"target_stage,omitempty"`
	Outcome     Outcome   `json:"outcome"`
	Moved       bool      `json:"moved"`
	Notified    bool      `json:"notified"`
	MoveError   string    `json:"move_error,omitempty"`
	NotifyError string    `json:"notify_error,omitempty"`
	Actor       string    `json:"actor,omitempty"`
	At          time.Time `json:"at"`
}

// Partial reports a send where exactly one of the two calls went through.
func (d DecisionRecord) Partial() bool {
	return d.Moved != d.Notified
}

func (d DecisionRecord) Committed() bool {
	return d.Moved && d.Notified
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	Department string `json:"department,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// StoredNotification is an outbox row written by the portal server.
type StoredNotification struct {
	Notification
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
