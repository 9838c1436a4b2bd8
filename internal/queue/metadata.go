package queue

import (
	"encoding/json"
	"strings"
)

// Metadata carries descriptive fields for UI display and logging. It is never
// required for processing; dispatch reads the payload, not the metadata.
type Metadata struct {
	Model      string
	Prompt     string
	ImageCount int
	Extra      map[string]any
}

// MarshalJSON flattens known fields and extras into a single object, matching
// the wire shape the backend expects for queue metadata.
func (m Metadata) MarshalJSON() ([]byte, error) {
	merged := make(map[string]any, len(m.Extra)+3)
	if m.Model != "" {
		merged["model"] = m.Model
	}
	if m.Prompt != "" {
		merged["prompt"] = m.Prompt
	}
	if m.ImageCount > 0 {
		merged["imageCount"] = m.ImageCount
	}
	for key, value := range m.Extra {
		merged[key] = value
	}
	return json.Marshal(merged)
}

// UnmarshalJSON pulls the known fields out of the object and keeps everything
// else in Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	for key, value := range raw {
		switch key {
		case "model":
			if s, ok := value.(string); ok {
				m.Model = s
				continue
			}
		case "prompt":
			if s, ok := value.(string); ok {
				m.Prompt = s
				continue
			}
		case "imageCount":
			if f, ok := value.(float64); ok {
				m.ImageCount = int(f)
				continue
			}
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[key] = value
	}
	return nil
}

// Merge overlays other on top of m: any field other sets wins, any extra key
// other carries wins. Caller-supplied metadata therefore overrides derived
// defaults.
func (m Metadata) Merge(other Metadata) Metadata {
	merged := m
	if other.Model != "" {
		merged.Model = other.Model
	}
	if other.Prompt != "" {
		merged.Prompt = other.Prompt
	}
	if other.ImageCount > 0 {
		merged.ImageCount = other.ImageCount
	}
	if len(other.Extra) > 0 {
		extras := make(map[string]any, len(m.Extra)+len(other.Extra))
		for key, value := range m.Extra {
			extras[key] = value
		}
		for key, value := range other.Extra {
			extras[key] = value
		}
		merged.Extra = extras
	}
	return merged
}

// DeriveMetadata extracts display defaults from a generation payload: the
// model name, the prompt (prompt, userPrompt, promptText, text, or lyrics,
// first match wins), and the requested output count (num_images or n).
func DeriveMetadata(payload json.RawMessage) Metadata {
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Metadata{ImageCount: 1}
	}

	meta := Metadata{ImageCount: 1}
	if model, ok := decoded["model"].(string); ok {
		meta.Model = model
	}
	for _, key := range []string{"prompt", "userPrompt", "promptText", "text", "lyrics", "lyrics_prompt"} {
		if prompt, ok := decoded[key].(string); ok && strings.TrimSpace(prompt) != "" {
			meta.Prompt = prompt
			break
		}
	}
	for _, key := range []string{"num_images", "n"} {
		if count, ok := decoded[key].(float64); ok && count >= 1 {
			meta.ImageCount = int(count)
			break
		}
	}
	return meta
}
