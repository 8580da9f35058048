package domain

// QueryContext is what the traveller asked for on one request. It is never
// persisted; budget and group size live only for the duration of a call.
type QueryContext struct {
	Query       string   `json:"query"`
	Environment string   `json:"environment"`
	BudgetMin   float64  `json:"budget_min"`
	BudgetMax   float64  `json:"budget_max"`
	GroupSize   int      `json:"group_size"`
	Locations   []string `json:"locations,omitempty"`
}

// Hints are optional LLM-derived signals. The zero value means "no hints".
type Hints struct {
	Tags         []string `json:"tags"`
	Features     []string `json:"features"`
	Locations    []string `json:"locations"`
	Environments []string `json:"environments"`
	PropertyIDs  []string `json:"property_ids"`
}

func (h Hints) Empty() bool {
	return len(h.Tags) == 0 && len(h.Features) == 0 && len(h.Locations) == 0 &&
		len(h.Environments) == 0 && len(h.PropertyIDs) == 0
}

// Candidate is a SmartSearch hit.
type Candidate struct {
	Property      Property `json:"property"`
	SemanticScore float64  `json:"semantic_score"`
}

// Scores is the per-property breakdown of one ranking call.
type Scores struct {
	Env           float64 `json:"env_score"`
	Budget        float64 `json:"budget_score"`
	Group         float64 `json:"group_score"`
	TagFeature    float64 `json:"tag_feature_score"`
	Location      float64 `json:"location_score"`
	LLMSimilarity float64 `json:"llm_similarity_score"`
	LLMIDHit      float64 `json:"llm_id_hit"`
	Value         float64 `json:"value_score"`
}

type Recommendation struct {
	Property Property `json:"property"`
	FitScore float64  `json:"fit_score"`
	Scores   Scores   `json:"scores"`
}
