package server

import (
	"encoding/json"
	"time"

	"talentline/internal/domain"
	"talentline/internal/repo"
)

// Request payloads

type MoveCandidateRequest struct {
	Outcome     string `json:"outcome" enum:"cleared,rejected"`
	TargetStage string `json:"target_stage,omitempty" doc:"Stage name or slug; required when outcome is cleared"`
}

type NotificationRequest struct {
	ApplicantID string `json:"applicant_id,omitempty"`
	Email       string `json:"email"`
	Message     string `json:"message"`
	Link        string `json:"link,omitempty"`
	Outcome     string `json:"outcome" enum:"cleared,rejected"`
}

type DevLoginRequest struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles,omitempty"`
}

// Responses

type CandidateResponse struct {
	ApplicantID string    `json:"applicant_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Gender      string    `json:"gender,omitempty"`
	Mobile      string    `json:"mobile,omitempty"`
	JobTitle    string    `json:"job_title"`
	JobType     string    `json:"job_type,omitempty"`
	Department  string    `json:"department"`
	Stage       string    `json:"stage"`
	RoundStatus string    `json:"round_status" enum:"in_progress,cleared,rejected"`
	AppliedAt   time.Time `json:"applied_at"`
	NextStages  []string  `json:"next_stages"`
}

type ApplicationResponse struct {
	CandidateResponse
	Fields       map[string]any `json:"fields,omitempty"`
	HasAcademics bool           `json:"has_academics"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type PaginationResponse struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
	Total      int `json:"total"`
}

type CandidatePageResponse struct {
	Items      []CandidateResponse `json:"items"`
	Pagination PaginationResponse  `json:"pagination"`
}

type StageCountResponse struct {
	Stage    string `json:"stage"`
	Active   int    `json:"active"`
	Rejected int    `json:"rejected"`
	Accepted int    `json:"accepted"`
}

type StageCountsResponse struct {
	Department string               `json:"department"`
	Items      []StageCountResponse `json:"items"`
}

type HistoryEntryResponse struct {
	Stage       string    `json:"stage"`
	Outcome     string    `json:"outcome"`
	TargetStage string    `json:"target_stage,omitempty"`
	ActorID     string    `json:"actor_id"`
	At          time.Time `json:"at"`
}

type HistoryResponse struct {
	Items []HistoryEntryResponse `json:"items"`
}

type NotificationResponse struct {
	ID          string    `json:"id"`
	ApplicantID string    `json:"applicant_id,omitempty"`
	Email       string    `json:"email"`
	Outcome     string    `json:"outcome"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type ConfirmationResponse struct {
	ApplicantID string    `json:"applicant_id"`
	Stage       string    `json:"stage"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	Department string         `json:"department,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type EventsResponse struct {
	Items []EventResponse `json:"items"`
}

type WhoAmIResponse struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles"`
}

type DevLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

type DepartmentsResponse struct {
	Items []string `json:"items"`
}

// Mappers

func stageNames(stages []domain.Stage) []string {
	out := make([]string, 0, len(stages))
	for _, s := range stages {
		out = append(out, s.String())
	}
	return out
}

func candidateResponse(c domain.Candidate, next []domain.Stage) CandidateResponse {
	return CandidateResponse{
		ApplicantID: c.ApplicantID,
		Name:        c.Name,
		Email:       c.Email,
		Gender:      c.Gender,
		Mobile:      c.Mobile,
		JobTitle:    c.JobTitle,
		JobType:     c.JobType,
		Department:  c.Department,
		Stage:       c.Stage.String(),
		RoundStatus: string(c.RoundStatus),
		AppliedAt:   c.AppliedAt,
		NextStages:  stageNames(next),
	}
}

func applicationResponse(a domain.Application, next []domain.Stage) ApplicationResponse {
	return ApplicationResponse{
		CandidateResponse: candidateResponse(a.Candidate, next),
		Fields:            decodeJSONMap(string(a.Fields)),
		HasAcademics:      a.AcademicsKey != "",
		UpdatedAt:         a.UpdatedAt,
	}
}

func pageResponse(p domain.CandidatePage, next func(domain.Candidate) []domain.Stage) CandidatePageResponse {
	res := CandidatePageResponse{
		Items: make([]CandidateResponse, 0, len(p.Items)),
		Pagination: PaginationResponse{
			Page:       p.Pagination.Page,
			PageSize:   p.Pagination.PageSize,
			TotalPages: p.Pagination.TotalPages,
			Total:      p.Pagination.Total,
		},
	}
	for _, c := range p.Items {
		res.Items = append(res.Items, candidateResponse(c, next(c)))
	}
	return res
}

func countsResponse(dept string, counts []domain.StageCount) StageCountsResponse {
	res := StageCountsResponse{Department: dept, Items: make([]StageCountResponse, 0, len(counts))}
	for _, c := range counts {
		res.Items = append(res.Items, StageCountResponse{
			Stage:    c.Stage.String(),
			Active:   c.Active,
			Rejected: c.Rejected,
			Accepted: c.Accepted,
		})
	}
	return res
}

func historyResponse(moves []repo.StageMove) HistoryResponse {
	res := HistoryResponse{Items: make([]HistoryEntryResponse, 0, len(moves))}
	for _, m := range moves {
		entry := HistoryEntryResponse{
			Stage:   m.Stage.String(),
			Outcome: string(m.Outcome),
			ActorID: m.ActorID,
			At:      m.At,
		}
		if m.Target != nil {
			entry.TargetStage = m.Target.String()
		}
		res.Items = append(res.Items, entry)
	}
	return res
}

func notificationResponse(n domain.StoredNotification) NotificationResponse {
	return NotificationResponse{
		ID:          n.ID,
		ApplicantID: n.ApplicantID,
		Email:       n.Email,
		Outcome:     string(n.Outcome),
		Status:      n.Status,
		CreatedAt:   n.CreatedAt,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		Department: e.Department,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
