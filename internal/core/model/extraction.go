package model

// ExtractedMemory is one item of the LLM's extraction output before
// validation. Confidence is a pointer so an absent field can be told apart
// from an explicit zero and defaulted.
type ExtractedMemory struct {
	Type       string   `json:"type"`
	Content    string   `json:"content"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ExtractedMemories matches the JSON object the extraction prompt asks for.
type ExtractedMemories struct {
	Memories []ExtractedMemory `json:"memories"`
}
