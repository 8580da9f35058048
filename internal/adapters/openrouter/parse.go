package openrouter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"stayfinder/internal/domain"
)

// promptProperty is the compact shape embedded into the hints prompt.
type promptProperty struct {
	ID          string  `json:"property_id"`
	Location    string  `json:"location,omitempty"`
	Environment string  `json:"environment,omitempty"`
	Type        string  `json:"property_type,omitempty"`
	Price       float64 `json:"nightly_price,omitempty"`
	Features    string  `json:"features,omitempty"`
	Tags        string  `json:"tags,omitempty"`
	MinGuests   int     `json:"min_guests,omitempty"`
	MaxGuests   int     `json:"max_guests,omitempty"`
}

func (c *Client) hintsPrompt(text string) (string, error) {
	var b strings.Builder
	if c.catalog != nil {
		props := c.catalog()
		if len(props) > c.maxCatalog {
			props = props[:c.maxCatalog]
		}
		compact := make([]promptProperty, len(props))
		for i, p := range props {
			compact[i] = promptProperty{
				ID: p.ID, Location: p.Location, Environment: p.Environment, Type: p.PropertyType,
				Price: p.NightlyPrice, Features: p.Features, Tags: p.Tags,
				MinGuests: p.MinGuests, MaxGuests: p.MaxGuests,
			}
		}
		raw, err := json.Marshal(compact)
		if err != nil {
			return "", fmt.Errorf("encode catalog: %w", err)
		}
		b.WriteString("PROPERTIES:\n")
		b.Write(raw)
		b.WriteString("\n\n")
	}
	b.WriteString("USER REQUEST:\n")
	b.WriteString(text)
	b.WriteString("\n\nRespond with JSON: {\"tags\": [...], \"features\": [...], \"locations\": [...], " +
		"\"environments\": [...], \"property_ids\": [...]} (all keys optional)")
	return b.String(), nil
}

// flexList accepts a JSON list of strings or numbers, a single string, or a
// single number.
type flexList []string

func (l *flexList) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*l = appendFlex(nil, raw)
	return nil
}

func appendFlex(out []string, v any) []string {
	switch x := v.(type) {
	case string:
		for _, part := range strings.Split(x, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	case float64:
		out = append(out, strconv.FormatFloat(x, 'f', -1, 64))
	case []any:
		for _, e := range x {
			out = appendFlex(out, e)
		}
	}
	return out
}

type hintsPayload struct {
	Tags         flexList `json:"tags"`
	Features     flexList `json:"features"`
	Locations    flexList `json:"locations"`
	Environments flexList `json:"environments"`
	PropertyIDs  flexList `json:"property_ids"`
}

// ParseHints decodes a model answer: strict JSON first, then the outermost
// {...} slice (models like to wrap JSON in prose or code fences).
func ParseHints(msg string) (domain.Hints, error) {
	var p hintsPayload
	err := json.Unmarshal([]byte(msg), &p)
	if err != nil {
		start, end := strings.Index(msg, "{"), strings.LastIndex(msg, "}")
		if start < 0 || end <= start {
			return domain.Hints{}, fmt.Errorf("model returned non-JSON content: %w", domain.ErrLLMUnavailable)
		}
		p = hintsPayload{}
		if err := json.Unmarshal([]byte(msg[start:end+1]), &p); err != nil {
			return domain.Hints{}, fmt.Errorf("model returned non-JSON content: %w", domain.ErrLLMUnavailable)
		}
	}
	return domain.Hints{
		Tags:         p.Tags,
		Features:     p.Features,
		Locations:    p.Locations,
		Environments: p.Environments,
		PropertyIDs:  p.PropertyIDs,
	}, nil
}
