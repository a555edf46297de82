package brain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voxa-labs/voxad/pkg/store"
)

// parseFacts decodes the extraction output into facts.
// The backend sometimes wraps JSON in markdown fences; those are stripped
// before parsing. A non-list top level is an error, never a partial result.
func parseFacts(text string) ([]store.Fact, error) {
	cleaned := stripFences(text)

	var raw []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("brain: parse facts: %w", err)
	}

	facts := make([]store.Fact, 0, len(raw))
	for _, f := range raw {
		if f.Key == "" {
			continue
		}
		facts = append(facts, store.Fact{Key: f.Key, Value: f.Value})
	}
	return facts, nil
}

// stripFences removes markdown code fences around a JSON payload.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
