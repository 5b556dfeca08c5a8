package models

import "time"

// Paper lifecycle statuses. A paper starts pending, moves to processing when an
// ingestion attempt claims it, and ends in completed or failed. Terminal states
// never transition back to processing under the same document id.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Paper is the structured record for one uploaded or imported research paper.
type Paper struct {
	ID            string
	OwnerID       string
	ObjectKey     string
	Title         string
	Authors       string
	Abstract      string
	Status        string
	PageCount     int
	Year          int
	Venue         string
	DOI           string
	CitationCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PaperUpdate enumerates every metadata field an ingestion run may set.
// Nil fields leave the stored value untouched.
type PaperUpdate struct {
	Title         *string
	Authors       *string
	Abstract      *string
	PageCount     *int
	Year          *int
	Venue         *string
	DOI           *string
	CitationCount *int
}

// Chunk is one segment of a paper's cleaned text. Start and End are offsets
// into the cleaned text; Text is the trimmed substring.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// ExtractedMeta is the best-effort metadata pulled out of a PDF. Empty strings
// mean "unknown", never an error.
type ExtractedMeta struct {
	Title     string
	Authors   string
	PageCount int
}

// IndexEntry binds a chunk's vector and text excerpt inside a per-owner
// namespace of the vector index.
type IndexEntry struct {
	ID         string
	OwnerID    string
	DocumentID string
	ChunkIndex int
	Text       string
	Title      string
	Authors    string
	Vector     []float32
}

// RetrievalResult is one similarity match, produced per query and never persisted.
type RetrievalResult struct {
	ChunkID    string
	DocumentID string
	ChunkIndex int
	Text       string
	Score      float32
	Title      string
	Authors    string
}

// Citation points an answer back at one paper. Score is the similarity of the
// paper's highest-ranked chunk, rounded to 4 decimal places.
type Citation struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Authors    string  `json:"authors"`
	Score      float64 `json:"score"`
}

// Answer is the generated response plus its deduplicated source list.
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

// ChatMessage is one prior conversation turn. Role is "user" or "assistant".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Enrichment is external metadata looked up by paper title.
type Enrichment struct {
	Title         string
	Authors       string
	Abstract      string
	Year          int
	CitationCount int
	Venue         string
	DOI           string
	ArxivID       string
}

// IngestRequest describes one ingestion job. When MetadataOnly is set the
// paper has no PDF and Abstract is embedded as a single chunk.
type IngestRequest struct {
	OwnerID      string `json:"owner_id"`
	DocumentID   string `json:"document_id"`
	ObjectKey    string `json:"object_key,omitempty"`
	Title        string `json:"title,omitempty"`
	Authors      string `json:"authors,omitempty"`
	MetadataOnly bool   `json:"metadata_only,omitempty"`
	Abstract     string `json:"abstract,omitempty"`
}

// QuestionRequest describes one chat question scoped to an owner and,
// optionally, to a set of their papers. A non-nil empty AllowedDocumentIDs
// means "no papers selected" and must produce no retrieval at all.
type QuestionRequest struct {
	OwnerID            string
	Question           string
	AllowedDocumentIDs []string
	History            []ChatMessage
}
