package judge

// Result kind tags. Every tool response carries exactly one of these
// so the assistant can dispatch on shape without sniffing fields.
const (
	KindTask          = "task"
	KindVerdict       = "verdict"
	KindObstacle      = "obstacle"
	KindClarification = "clarification_needed"
	KindStatus        = "task_status"
)

// ObstacleResult asks the user to pick between options when an
// external blocker stops progress. No LLM is involved: the decision
// belongs to the user.
type ObstacleResult struct {
	Kind     string   `json:"kind"`
	Problem  string   `json:"problem"`
	Research string   `json:"research"`
	Options  []string `json:"options"`
	Message  string   `json:"message"`
}

// ClarificationResult asks the user to resolve ambiguous or
// contradictory requirements before work continues.
type ClarificationResult struct {
	Kind           string   `json:"kind"`
	CurrentRequest string   `json:"current_request"`
	IdentifiedGaps []string `json:"identified_gaps"`
	Questions      []string `json:"specific_questions"`
	Message        string   `json:"message"`
}
