package domain

import (
	"strconv"
	"strings"
	"time"
)

// Segment is a bounded span of document text with its embedding.
// Segments are never mutated; re-indexing replaces them.
type Segment struct {
	ID            string
	DocumentID    string
	CollectionID  string
	SourceName    string
	Text          string
	SequenceIndex int
	TotalSegments int

	// PageNumber is the page containing the segment start, 0 if unknown.
	PageNumber int

	Embedding []float32
	CreatedAt time.Time
}

// EmbedMeta is the structured metadata prepended to embedded text.
type EmbedMeta struct {
	Subject string
	Topic   string
	Page    int
}

// EnrichText builds the text sent to the embedding provider.
// Index time and query time must use this same function so that
// their vectors are comparable. Empty fields are omitted.
func EnrichText(text string, meta EmbedMeta) string {
	var b strings.Builder
	if meta.Subject != "" {
		b.WriteString("Subject: ")
		b.WriteString(meta.Subject)
		b.WriteByte('\n')
	}
	if meta.Topic != "" {
		b.WriteString("Topic: ")
		b.WriteString(meta.Topic)
		b.WriteByte('\n')
	}
	if meta.Page > 0 {
		b.WriteString("Page: ")
		b.WriteString(strconv.Itoa(meta.Page))
		b.WriteByte('\n')
	}
	b.WriteString("Content: ")
	b.WriteString(text)
	return b.String()
}
