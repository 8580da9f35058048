package ranking

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Signal identifies one blended sub-score.
type Signal int

const (
	SignalEnv Signal = iota
	SignalBudget
	SignalGroup
	SignalTagFeature
	SignalLocation
	SignalLLMSimilarity
	numSignals
)

var signalNames = [numSignals]string{"env", "budget", "group", "tag_feature", "location", "llm_sim"}

func (s Signal) String() string {
	if s < 0 || s >= numSignals {
		return fmt.Sprintf("signal(%d)", int(s))
	}
	return signalNames[s]
}

// Weights are the base coefficients of the blend plus the additive boosts.
// Base weights are renormalized per call over the active signals only; the
// boosts are added on top and never renormalized.
type Weights struct {
	Env           float64 `yaml:"env" json:"env"`
	Budget        float64 `yaml:"budget" json:"budget"`
	Group         float64 `yaml:"group" json:"group"`
	TagFeature    float64 `yaml:"tag_feature" json:"tag_feature"`
	Location      float64 `yaml:"location" json:"location"`
	LLMSimilarity float64 `yaml:"llm_sim" json:"llm_sim"`

	IDBoost    float64 `yaml:"id_boost" json:"id_boost"`
	ValueBoost float64 `yaml:"value_boost" json:"value_boost"`
}

func DefaultWeights() Weights {
	return Weights{
		Env:           0.22,
		Budget:        0.22,
		Group:         0.18,
		TagFeature:    0.18,
		Location:      0.10,
		LLMSimilarity: 0.10,
		IDBoost:       0.20,
		ValueBoost:    0.05,
	}
}

// LoadWeights reads a YAML weights file on top of the defaults. On error the
// defaults are returned together with the error.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	b, err := os.ReadFile(path)
	if err != nil {
		return w, fmt.Errorf("read weights file: %w", err)
	}
	if err := yaml.Unmarshal(b, &w); err != nil {
		return DefaultWeights(), fmt.Errorf("unmarshal weights: %w", err)
	}
	for i, v := range w.base() {
		if v < 0 {
			return DefaultWeights(), fmt.Errorf("weight %s is negative", Signal(i))
		}
	}
	if w.IDBoost < 0 || w.ValueBoost < 0 {
		return DefaultWeights(), fmt.Errorf("boost weights must be non-negative")
	}
	return w, nil
}

func (w Weights) base() [numSignals]float64 {
	return [numSignals]float64{w.Env, w.Budget, w.Group, w.TagFeature, w.Location, w.LLMSimilarity}
}

// ActiveSet marks which signals the caller actually supplied.
type ActiveSet [numSignals]bool

func (a ActiveSet) Any() bool {
	for _, on := range a {
		if on {
			return true
		}
	}
	return false
}

// Blend holds effective per-signal weights for one ranking call.
type Blend [numSignals]float64

// Map is the JSON-friendly view used in API responses.
func (b Blend) Map() map[string]float64 {
	out := make(map[string]float64, numSignals)
	for i, v := range b {
		out[signalNames[i]] = v
	}
	return out
}

// Normalize spreads a total weight of 1 over the active signals in
// proportion to their base weights. Inactive signals get 0. Active signals
// whose base weights are all zero share equally. With nothing active every
// signal gets an equal share, so ranking stays defined (neutral sub-scores
// then tie and catalog order decides).
func (w Weights) Normalize(active ActiveSet) Blend {
	var out Blend
	if !active.Any() {
		for i := range out {
			out[i] = 1 / float64(numSignals)
		}
		return out
	}

	base := w.base()
	var sum float64
	n := 0
	for i, on := range active {
		if on {
			sum += base[i]
			n++
		}
	}
	for i, on := range active {
		switch {
		case !on:
			out[i] = 0
		case sum > 0:
			out[i] = base[i] / sum
		default:
			out[i] = 1 / float64(n)
		}
	}
	return out
}
