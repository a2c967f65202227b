package models

// PredictionClass is the tumor classification returned by the inference endpoint.
type PredictionClass string

const (
	ClassMSIMUT PredictionClass = "MSIMUT"
	ClassMSS    PredictionClass = "MSS"
)

// Valid reports whether c is a known class.
func (c PredictionClass) Valid() bool {
	return c == ClassMSIMUT || c == ClassMSS
}

// Label returns the human-readable classification.
func (c PredictionClass) Label() string {
	if c == ClassMSIMUT {
		return "Microsatellite Instability (MSIMUT)"
	}
	return "Microsatellite Stable (MSS)"
}

// PredictionResult is a single classification with its confidence.
type PredictionResult struct {
	Class         PredictionClass    `json:"class"`
	Probability   float64            `json:"probability"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
}
