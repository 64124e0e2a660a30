package analyzer

// ResponseKind classifies how an intervention should be carried out.
type ResponseKind string

const (
	ResponseAutoRemediate ResponseKind = "auto_remediate"
	ResponseNotifySuggest ResponseKind = "notify_suggest"
	ResponseNotifyOnly    ResponseKind = "notify_only"
)

// WorkflowIssue is the Intervention Generator's input: a detected anomaly
// plus the analyzer's confidence that it is real and actionable.
type WorkflowIssue struct {
	Type           string
	Confidence     float64
	Title          string
	Message        string
	SuggestedAgent string
}

// Response is the Intervention Generator's output (§4.5).
type Response struct {
	Kind           ResponseKind
	Title          string
	Message        string
	QueueTask      bool
	TaskPriority   string // only meaningful when QueueTask is true
	AutoExecute    bool
	Notify         bool
	SuggestedAgent string
}

// GenerateResponse maps a WorkflowIssue to a Response using the confidence
// buckets from §4.5:
//
//	confidence > 0.9        -> auto_remediate  (high-priority, auto-executing task)
//	0.7 <= confidence <= 0.9 -> notify_suggest   (medium-priority task + notification)
//	confidence < 0.7        -> notify_only       (notification, no task)
func GenerateResponse(issue WorkflowIssue) Response {
	base := Response{
		Title:          issue.Title,
		Message:        issue.Message,
		SuggestedAgent: issue.SuggestedAgent,
	}

	switch {
	case issue.Confidence > 0.9:
		base.Kind = ResponseAutoRemediate
		base.QueueTask = true
		base.TaskPriority = "high"
		base.AutoExecute = true
	case issue.Confidence >= 0.7:
		base.Kind = ResponseNotifySuggest
		base.QueueTask = true
		base.TaskPriority = "medium"
		base.Notify = true
	default:
		base.Kind = ResponseNotifyOnly
		base.Notify = true
	}

	return base
}
