package providers

import "encoding/json"

// Image is one generated output reference.
type Image struct {
	URL string `json:"url"`
}

// Result is the normalized success payload returned by every adapter. Raw
// preserves the full response body so the queue can store the result
// unchanged.
type Result struct {
	Images     []Image `json:"images,omitempty"`
	ImageCount int     `json:"imageCount,omitempty"`
	HistoryID  string  `json:"historyId,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// OutputCount resolves how many outputs the generation produced: the images
// list when present, then the reported count, then fallback (at least 1).
func (r *Result) OutputCount(fallback int) int {
	if r != nil {
		if len(r.Images) > 0 {
			return len(r.Images)
		}
		if r.ImageCount > 0 {
			return r.ImageCount
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 1
}
