package daemon

import "github.com/oss-dev/supervisor/internal/state"

var severityRank = map[state.Severity]int{
	state.SeverityError:   0,
	state.SeverityWarning: 1,
	state.SeverityInfo:    2,
}

// PrioritizeIssues selects the single issue to publish to the state
// document: highest severity first (error > warning > info); within a tier,
// the first produced wins (§4.3, property 6).
func PrioritizeIssues(issues []state.Issue) *state.Issue {
	if len(issues) == 0 {
		return nil
	}

	best := issues[0]
	bestRank := severityRank[best.Severity]

	for _, issue := range issues[1:] {
		rank := severityRank[issue.Severity]
		if rank < bestRank {
			best = issue
			bestRank = rank
		}
	}

	return &best
}
