package domain

// Narrative sources
const (
	NarrativeSourceLocal    = "local"
	NarrativeSourceProvider = "provider"
)

// Narrative is the human-readable explanation attached to a result
type Narrative struct {
	Summary  string `json:"summary"` // deterministic, always present
	Text     string `json:"text"`    // provider prose, or Summary on fallback
	Source   string `json:"source"`
	Degraded bool   `json:"degraded"`
}

// Analysis is the target-customer profile for a category at a location
type Analysis struct {
	Category         Category       `json:"category"`
	Location         Location       `json:"location"`
	DominantSegments []SegmentShare `json:"dominantSegments"`
	Segments         []SegmentShare `json:"segments"`
	Confidence       float64        `json:"confidence"` // 0-1, grows with mix concentration
	Narrative        Narrative      `json:"narrative"`
}

// ScoreTerm is one weighted component of a location score
type ScoreTerm struct {
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// ScoreBreakdown explains how a location score was produced
type ScoreBreakdown struct {
	Demand        ScoreTerm `json:"demand"`
	Affordability ScoreTerm `json:"affordability"`
	Demographic   ScoreTerm `json:"demographic"`
	TargetSegment string    `json:"targetSegment"`
	EstimatedCost float64   `json:"estimatedCost"`
	Feasible      bool      `json:"feasible"`
}

// ScoredLocation is a location together with its score and explanation
type ScoredLocation struct {
	Location    Location       `json:"location"`
	Score       float64        `json:"score"`
	Explanation ScoreBreakdown `json:"explanation"`
}

// RecommendationRequest holds the inputs of an optimal-location query
type RecommendationRequest struct {
	Category    Category `json:"category"`
	Budget      float64  `json:"budget"`
	Demographic string   `json:"demographic,omitempty"`
	Area        string   `json:"area,omitempty"` // empty = every area
	TopK        int      `json:"topK"`
}

// RecommendationItem is a ranked entry of a recommendation
type RecommendationItem struct {
	Rank int `json:"rank"`
	ScoredLocation
}

// Recommendation is the ranked result of an optimal-location query
type Recommendation struct {
	Category        Category             `json:"category"`
	Area            string               `json:"area,omitempty"`
	Budget          float64              `json:"budget"`
	TargetSegment   string               `json:"targetSegment,omitempty"`
	TopK            int                  `json:"topK"`
	TotalCandidates int                  `json:"totalCandidates"`
	Items           []RecommendationItem `json:"items"`
	Narrative       Narrative            `json:"narrative"`
}
