package models

// Chunk is one ordered slice of a source document handed to the refine loop.
type Chunk struct {
	Index   int    `json:"index"`
	Offset  int    `json:"offset"` // byte offset in the source text, -1 when unknown
	Content string `json:"content"`
}

// RefineParams tunes how a long text is split before refine extraction.
type RefineParams struct {
	ChunkSize int `json:"chunkSize"`
	Overlap   int `json:"overlap"`
}
