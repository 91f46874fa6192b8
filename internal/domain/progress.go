package domain

type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepComplete   StepStatus = "complete"
	StepError      StepStatus = "error"
)

func (s StepStatus) Valid() bool {
	switch s {
	case StepPending, StepProcessing, StepComplete, StepError:
		return true
	}
	return false
}

// Terminal reports whether a step in this status can no longer change.
func (s StepStatus) Terminal() bool { return s == StepComplete || s == StepError }

type StageID string

// The fixed analysis pipeline, in order.
const (
	StageInitializing    StageID = "initializing"
	StageProfile         StageID = "processing-profile"
	StageRequirements    StageID = "retrieving-requirements"
	StageAnalyzing       StageID = "analyzing"
	StageScoring         StageID = "scoring"
	StageRecommendations StageID = "generating-recommendations"
	StageFinalizing      StageID = "finalizing"
)

// StageDefinition names one pipeline stage.
type StageDefinition struct {
	ID    StageID
	Label string
}

// AnalysisStages is the default pipeline shown while a run executes.
var AnalysisStages = []StageDefinition{
	{ID: StageInitializing, Label: "Initializing analysis"},
	{ID: StageProfile, Label: "Processing company profile"},
	{ID: StageRequirements, Label: "Retrieving regulatory requirements"},
	{ID: StageAnalyzing, Label: "Analyzing compliance"},
	{ID: StageScoring, Label: "Calculating compliance scores"},
	{ID: StageRecommendations, Label: "Generating recommendations"},
	{ID: StageFinalizing, Label: "Finalizing results"},
}

type ProgressStep struct {
	ID          StageID    `json:"id"`
	Label       string     `json:"label"`
	Status      StepStatus `json:"status"`
	Description string     `json:"description,omitempty"`
}

// ProgressState is a point-in-time copy of a tracker.
type ProgressState struct {
	Steps       []ProgressStep `json:"steps"`
	ActiveIndex int            `json:"activeIndex"`
	Percent     int            `json:"percent"`
}
