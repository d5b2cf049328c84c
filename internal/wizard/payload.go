package wizard

import (
	"encoding/json"
	"fmt"

	"talentline/internal/domain"
)

// EncodeFields builds the JSON field bundle for a submission. Dependent
// fields are left out while their controlling field does not qualify; the
// record itself keeps them.
func EncodeFields(job domain.JobRef, r domain.ApplicationRecord) (json.RawMessage, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if !OtherSkillsSelected(&r) {
		delete(fields, domain.FieldOtherTechSkills)
	}
	if !InternshipDeclared(&r) {
		delete(fields, domain.FieldProjectDesc)
	}
	fields["jobTitle"] = job.Title
	fields["department"] = job.Department
	if job.Type != "" {
		fields["jobType"] = job.Type
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return out, nil
}

// BuildSubmission packages the record for a single multipart submit.
func BuildSubmission(job domain.JobRef, r domain.ApplicationRecord) (domain.Submission, error) {
	fields, err := EncodeFields(job, r)
	if err != nil {
		return domain.Submission{}, err
	}
	sub := domain.Submission{Fields: fields, Resume: r.Resume}
	if r.Academics.Present() {
		sub.Academics = r.Academics
	}
	return sub, nil
}

// DecodeFields reads a field bundle back into a record and its job reference.
func DecodeFields(raw []byte) (domain.JobRef, domain.ApplicationRecord, error) {
	var job domain.JobRef
	var rec domain.ApplicationRecord
	if err := json.Unmarshal(raw, &job); err != nil {
		return job, rec, fmt.Errorf("decode job: %w", err)
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return job, rec, fmt.Errorf("decode fields: %w", err)
	}
	return job, rec, nil
}
