package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"talentline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const applicationColumns = `id,name,email,COALESCE(gender,''),COALESCE(mobile,''),job_title,COALESCE(job_type,''),department,stage,round_status,fields_json,resume_key,COALESCE(academics_key,''),applied_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (domain.Application, error) {
	var a domain.Application
	var stage, status, fields, applied, updated string
	err := row.Scan(&a.ApplicantID, &a.Name, &a.Email, &a.Gender, &a.Mobile, &a.JobTitle, &a.JobType, &a.Department,
		&stage, &status, &fields, &a.ResumeKey, &a.AcademicsKey, &applied, &updated)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if a.Stage, err = domain.ParseStage(stage); err != nil {
		return a, fmt.Errorf("application %s: %w", a.ApplicantID, err)
	}
	a.RoundStatus = domain.RoundStatus(status)
	a.Fields = []byte(fields)
	a.AppliedAt = parseTime(applied)
	a.UpdatedAt = parseTime(updated)
	return a, nil
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r Repo) InsertApplicationTx(ctx context.Context, tx *sql.Tx, a domain.Application) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO applications(id,name,email,gender,mobile,job_title,job_type,department,stage,round_status,fields_json,resume_key,academics_key,applied_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ApplicantID, a.Name, strings.ToLower(a.Email), nullable(a.Gender), nullable(a.Mobile), a.JobTitle, nullable(a.JobType), a.Department,
		a.Stage.Slug(), string(a.RoundStatus), string(a.Fields), a.ResumeKey, nullable(a.AcademicsKey), formatTime(a.AppliedAt), formatTime(a.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s already applied for %s", ErrDuplicate, a.Email, a.JobTitle)
	}
	return err
}

// ApplicationExists reports whether email already applied for jobTitle.
func (r Repo) ApplicationExists(ctx context.Context, email, jobTitle string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM applications WHERE email=? AND job_title=?`, strings.ToLower(email), jobTitle).Scan(&n)
	return n > 0, err
}

func (r Repo) GetApplication(ctx context.Context, id string) (domain.Application, error) {
	return getApplication(ctx, r.DB, id)
}

func (r Repo) GetApplicationTx(ctx context.Context, tx *sql.Tx, id string) (domain.Application, error) {
	return getApplication(ctx, tx, id)
}

func getApplication(ctx context.Context, q queryer, id string) (domain.Application, error) {
	return scanApplication(q.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id=?`, id))
}

// ListCandidates pages through one department's candidates at stage, oldest
// application first.
func (r Repo) ListCandidates(ctx context.Context, department string, stage domain.Stage, page, pageSize int) (domain.CandidatePage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	res := domain.CandidatePage{Items: []domain.Candidate{}, Pagination: domain.Pagination{Page: page, PageSize: pageSize}}
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM applications WHERE department=? AND stage=?`, department, stage.Slug()).
		Scan(&res.Pagination.Total); err != nil {
		return res, err
	}
	res.Pagination.TotalPages = (res.Pagination.Total + pageSize - 1) / pageSize
	rows, err := r.DB.QueryContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE department=? AND stage=? ORDER BY applied_at ASC, id ASC LIMIT ? OFFSET ?`,
		department, stage.Slug(), pageSize, (page-1)*pageSize)
	if err != nil {
		return res, err
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return res, err
		}
		res.Items = append(res.Items, a.Candidate)
	}
	return res, rows.Err()
}

func (r Repo) UpdateStageTx(ctx context.Context, tx *sql.Tx, id string, stage domain.Stage, status domain.RoundStatus, at time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE applications SET stage=?, round_status=?, updated_at=? WHERE id=?`,
		stage.Slug(), string(status), formatTime(at), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// StageMove is one stage_history row.
type StageMove struct {
	ApplicantID string
	Department  string
	Stage       domain.Stage
	Outcome     domain.Outcome
	Target      *domain.Stage
	ActorID     string
	At          time.Time
}

func (r Repo) InsertStageMoveTx(ctx context.Context, tx *sql.Tx, m StageMove) error {
	var target any
	if m.Target != nil {
		target = m.Target.Slug()
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO stage_history(applicant_id,department,stage,outcome,target_stage,actor_id,ts) VALUES (?,?,?,?,?,?,?)`,
		m.ApplicantID, m.Department, m.Stage.Slug(), string(m.Outcome), target, m.ActorID, formatTime(m.At))
	return err
}

func (r Repo) ListStageMoves(ctx context.Context, applicantID string) ([]StageMove, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT applicant_id,department,stage,outcome,COALESCE(target_stage,''),actor_id,ts FROM stage_history WHERE applicant_id=? ORDER BY id ASC`, applicantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StageMove
	for rows.Next() {
		var m StageMove
		var stage, outcome, target, ts string
		if err := rows.Scan(&m.ApplicantID, &m.Department, &stage, &outcome, &target, &m.ActorID, &ts); err != nil {
			return nil, err
		}
		if m.Stage, err = domain.ParseStage(stage); err != nil {
			return nil, err
		}
		if target != "" {
			t, err := domain.ParseStage(target)
			if err != nil {
				return nil, err
			}
			m.Target = &t
		}
		m.Outcome = domain.Outcome(outcome)
		m.At = parseTime(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

// StageCounts reports, for every stage, candidates still in progress there,
// candidates rejected there and candidates cleared out of it.
func (r Repo) StageCounts(ctx context.Context, department string) ([]domain.StageCount, error) {
	counts := map[domain.Stage]*domain.StageCount{}
	out := make([]domain.StageCount, 0, len(domain.Stages()))
	for _, s := range domain.Stages() {
		out = append(out, domain.StageCount{Stage: s})
	}
	for i := range out {
		counts[out[i].Stage] = &out[i]
	}

	rows, err := r.DB.QueryContext(ctx, `SELECT stage, round_status, COUNT(1) FROM applications WHERE department=? GROUP BY stage, round_status`, department)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var stage, status string
		var n int
		if err := rows.Scan(&stage, &status, &n); err != nil {
			rows.Close()
			return nil, err
		}
		s, err := domain.ParseStage(stage)
		if err != nil {
			rows.Close()
			return nil, err
		}
		switch domain.RoundStatus(status) {
		case domain.RoundRejected:
			counts[s].Rejected += n
		case domain.RoundInProgress:
			counts[s].Active += n
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hist, err := r.DB.QueryContext(ctx, `SELECT stage, COUNT(1) FROM stage_history WHERE department=? AND outcome=? GROUP BY stage`, department, string(domain.OutcomeCleared))
	if err != nil {
		return nil, err
	}
	defer hist.Close()
	for hist.Next() {
		var stage string
		var n int
		if err := hist.Scan(&stage, &n); err != nil {
			return nil, err
		}
		s, err := domain.ParseStage(stage)
		if err != nil {
			return nil, err
		}
		counts[s].Accepted += n
	}
	return out, hist.Err()
}

func (r Repo) InsertNotificationTx(ctx context.Context, tx *sql.Tx, n domain.StoredNotification) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notifications(id,applicant_id,email,message,link,outcome,actor_id,status,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		n.ID, nullable(n.ApplicantID), n.Email, n.Message, nullable(n.Link), string(n.Outcome), n.ActorID, n.Status, formatTime(n.CreatedAt))
	return err
}

// ListNotifications returns outbox rows, newest first. An empty applicantID lists all.
func (r Repo) ListNotifications(ctx context.Context, applicantID string, limit int) ([]domain.StoredNotification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id,COALESCE(applicant_id,''),email,message,COALESCE(link,''),outcome,actor_id,status,created_at FROM notifications`
	var args []any
	if applicantID != "" {
		query += ` WHERE applicant_id=?`
		args = append(args, applicantID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.StoredNotification
	for rows.Next() {
		var n domain.StoredNotification
		var outcome, created string
		if err := rows.Scan(&n.ID, &n.ApplicantID, &n.Email, &n.Message, &n.Link, &outcome, &n.ActorID, &n.Status, &created); err != nil {
			return nil, err
		}
		n.Outcome = domain.Outcome(outcome)
		n.CreatedAt = parseTime(created)
		out = append(out, n)
	}
	return out, rows.Err()
}

// LatestEvents returns events newest first, narrowed by any non-empty filter.
func (r Repo) LatestEvents(ctx context.Context, limit int, department, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if department != "" {
		clauses = append(clauses, "department=?")
		args = append(args, department)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(department,''),entity_kind,COALESCE(entity_id,''),actor_id,COALESCE(payload_json,'') FROM events WHERE %s ORDER BY id DESC LIMIT ?`,
		strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.Department, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
