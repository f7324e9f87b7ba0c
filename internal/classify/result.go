package classify

// PhishingLabel is the class name whose probability becomes the score.
const PhishingLabel = "phishing"

// Prediction is the outcome of scoring one URL. It is built once per call
// and not modified afterwards.
type Prediction struct {
	URL           string             `json:"url"`
	Normalized    string             `json:"normalized"`
	Label         string             `json:"prediction"`
	IsPhishing    bool               `json:"is_phishing"`
	Score         int                `json:"score"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	Features      Features           `json:"features"`
	Risk          RiskAssessment     `json:"risk_assessment"`
}
