package domain

// PageRecord is the text and image side channel of one PDF page.
type PageRecord struct {
	PageNumber int      `json:"page"`
	Text       string   `json:"text"`
	ImagePaths []string `json:"images,omitempty"`
	// LowSignal marks pages whose extracted text is empty or whitespace,
	// typically scans without OCR.
	LowSignal bool `json:"low_signal,omitempty"`
}

// TableRef points at a table persisted as CSV outside the index.
type TableRef struct {
	PageNumber int    `json:"page"`
	CSVPath    string `json:"csv"`
}

// Document is the result of extracting a single file.
// FullText carries inline "[PAGE n]" markers for paginated formats.
type Document struct {
	ID       string       `json:"id"`
	Path     string       `json:"path"`
	Title    string       `json:"title"`
	Format   string       `json:"format"`
	Pages    []PageRecord `json:"pages"`
	FullText string       `json:"full_text"`
	Tables   []TableRef   `json:"tables"`
}

// ChunkMeta is the provenance of a chunk. Offsets are character offsets
// into the owning document's FullText, end exclusive.
type ChunkMeta struct {
	StartOffset    int    `json:"start"`
	EndOffset      int    `json:"end"`
	SourceDocument string `json:"source_doc"`
	SourceFileName string `json:"source_name"`
	DocumentName   string `json:"document_name"`
	DocumentTitle  string `json:"title"`
	SourcePath     string `json:"source_path"`
	Page           *int   `json:"page"`
}

// Chunk is the unit of retrieval.
type Chunk struct {
	ID   string    `json:"id"`
	Text string    `json:"text"`
	Meta ChunkMeta `json:"meta"`
}

// RetrievalResult is a scored hit returned by a similarity search.
type RetrievalResult struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Chunk Chunk   `json:"metadata"`
}

// ConfidenceLabel is a coarse grounding classification.
type ConfidenceLabel string

const (
	ConfidenceHigh   ConfidenceLabel = "high"
	ConfidenceMedium ConfidenceLabel = "medium"
	ConfidenceLow    ConfidenceLabel = "low"
)

// Confidence summarises how well the retrieved evidence supports an answer.
type Confidence struct {
	Label       ConfidenceLabel `json:"label"`
	MaxScore    float64         `json:"max_score"`
	AvgScore    float64         `json:"avg_score"`
	Explanation string          `json:"explanation"`
}

// Mode is the answering strategy chosen for a query.
type Mode string

const (
	ModeNone        Mode = "none"
	ModeCombined    Mode = "combined"
	ModePerDocument Mode = "per_document"
)

// Source is the document-level attribution for an answer.
type Source struct {
	DocumentName   string `json:"document_name"`
	SourceFileName string `json:"source_name"`
	SourcePath     string `json:"source_path"`
	Pages          []int  `json:"pages"`
}

// Answer is the structured payload returned for a question.
// Answer is set for combined and none modes, Answers for per-document mode.
type Answer struct {
	Mode       Mode              `json:"mode"`
	Answer     string            `json:"answer,omitempty"`
	Answers    map[string]string `json:"answers,omitempty"`
	Sources    []Source          `json:"sources"`
	Confidence Confidence        `json:"confidence"`
}

// AskRequest carries a question and per-request options. Model selects the
// generation provider; empty means the configured default.
type AskRequest struct {
	Query string `json:"query" form:"query"`
	TopK  int    `json:"top_k" form:"top_k"`
	Model string `json:"model" form:"model"`
}

// FileReport describes the outcome of ingesting one file.
type FileReport struct {
	Path       string `json:"path"`
	DocumentID string `json:"document_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Pages      int    `json:"pages"`
	Tables     int    `json:"tables"`
	Chunks     int    `json:"chunks"`
	Summary    string `json:"summary,omitempty"`
	Error      string `json:"error,omitempty"`
}

// IngestReport aggregates a batch ingestion.
type IngestReport struct {
	Files       []FileReport `json:"files"`
	ChunksAdded int          `json:"chunks_added"`
}
