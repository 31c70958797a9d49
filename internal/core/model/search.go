package model

// ScoredChunk is a similarity-search hit. Distance is cosine distance,
// smaller is closer.
type ScoredChunk struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
}

// ScoredMemory is a memory-recall hit. Similarity is cosine similarity,
// larger is closer.
type ScoredMemory struct {
	Memory     MemoryItem `json:"memory"`
	Similarity float64    `json:"similarity"`
}
