package domain

// Chunk is one passage of a source document as written by the extraction step.
// ChunkID is the ordinal of the chunk within its document.
type Chunk struct {
	DocumentName string `json:"doc_name"`
	ChunkID      int    `json:"chunk_id"`
	Text         string `json:"text"`
}

// Page is the extracted text of a single PDF page, numbered from 1.
type Page struct {
	Number int
	Text   string
}

// DocumentIndex holds the embedded chunks of one document.
// Vectors[i] is the embedding of Chunks[i].
type DocumentIndex struct {
	DocumentName string
	Chunks       []Chunk
	Vectors      [][]float32
}

func (d DocumentIndex) Dimension() int {
	if len(d.Vectors) == 0 {
		return 0
	}
	return len(d.Vectors[0])
}

// Neighbor is a nearest-neighbour hit: the chunk ordinal and its squared L2 distance.
// Backends may return Ordinal -1 when fewer than k vectors exist.
type Neighbor struct {
	Ordinal  int
	Distance float32
}

type DocumentSummary struct {
	DocumentName string `json:"doc_name"`
	ChunkCount   int    `json:"chunk_count"`
	Dimension    int    `json:"dimension"`
}

type IndexFailure struct {
	DocumentName string `json:"doc_name"`
	Error        string `json:"error"`
}
