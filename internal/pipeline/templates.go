package pipeline

import (
	"strings"

	"talentline/internal/domain"
)

// Templates are default notification bodies per outcome. Placeholders:
// {{name}}, {{stage}}, {{job}}.
type Templates map[domain.Outcome]string

func DefaultTemplates() Templates {
	return Templates{
		domain.OutcomeCleared:  "Hi {{name}}, congratulations! You have been moved to {{stage}} for the {{job}} role.",
		domain.OutcomeRejected: "Hi {{name}}, thank you for your time. We will not be moving forward with your {{job}} application after {{stage}}.",
	}
}

// Render fills the template for outcome. Cleared decisions name the target
// stage; rejections name the stage the candidate was at.
func (t Templates) Render(outcome domain.Outcome, c domain.Candidate, target *domain.Stage) string {
	tpl, ok := t[outcome]
	if !ok {
		tpl = DefaultTemplates()[outcome]
	}
	stage := c.Stage
	if outcome == domain.OutcomeCleared && target != nil {
		stage = *target
	}
	return strings.NewReplacer(
		"{{name}}", c.Name,
		"{{stage}}", stage.String(),
		"{{job}}", c.JobTitle,
	).Replace(tpl)
}
