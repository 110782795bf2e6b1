package domain

// Scope narrows a search to a collection and optionally one document.
// Empty fields match everything.
type Scope struct {
	CollectionID string
	DocumentID   string
}

// IsZero returns true if the scope matches every segment.
func (s Scope) IsZero() bool {
	return s.CollectionID == "" && s.DocumentID == ""
}

// Matches reports whether a segment falls inside the scope.
func (s Scope) Matches(seg *Segment) bool {
	if s.CollectionID != "" && seg.CollectionID != s.CollectionID {
		return false
	}
	if s.DocumentID != "" && seg.DocumentID != s.DocumentID {
		return false
	}
	return true
}

// SearchQuery is a similarity search against the vector index.
type SearchQuery struct {
	Vector   []float32
	Scope    Scope
	TopK     int
	MinScore float64
}

// SearchHit is a segment with its cosine similarity to the query.
type SearchHit struct {
	Segment Segment
	Score   float64
}

// RetrievalQuery is a natural-language question with retrieval options.
type RetrievalQuery struct {
	Text  string
	Scope Scope

	// TopK limits results. Zero uses the configured default.
	TopK int

	// MinScore drops results scoring below it. Nil uses the configured default.
	MinScore *float64

	// Subject and Topic enrich the query the same way segments are enriched.
	Subject string
	Topic   string
}

// RetrievedSegment is an attributed search result.
type RetrievedSegment struct {
	SegmentID     string  `json:"segment_id"`
	DocumentID    string  `json:"document_id"`
	CollectionID  string  `json:"collection_id"`
	SourceName    string  `json:"source_name"`
	PageNumber    int     `json:"page_number,omitempty"`
	SequenceIndex int     `json:"sequence_index"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
}

// ChatMessage is one turn of a conversation with the tutor.
type ChatMessage struct {
	Role    string
	Content string
}

// Answer is a generated response with the context it was built from.
type Answer struct {
	Text    string
	Sources []RetrievedSegment
}
