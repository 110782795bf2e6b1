package domain

import (
	"path"
	"strings"
	"time"
)

// Collection is a named group of documents indexed and queried together.
type Collection struct {
	ID        string
	Name      string
	Subject   string
	CreatedAt time.Time
}

// SourceDocument is a catalogued document that should be indexed.
type SourceDocument struct {
	// ID uniquely identifies the document.
	ID string

	// CollectionID is the owning collection.
	CollectionID string

	// Name is the file name, used for attribution.
	Name string

	// Title is an optional display title.
	Title string

	// SourceURL is where the raw bytes live (path, file:// or http(s)://).
	SourceURL string

	// Subject overrides the collection subject in the embedding prefix.
	Subject string

	// Topic overrides the topic derived from Name.
	Topic string

	// Version fingerprints the raw content. A completed job with a
	// different SourceVersion is stale.
	Version string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveTopic returns Topic, or a topic derived from the file name:
// extension dropped and underscores or hyphens turned into spaces.
func (d SourceDocument) EffectiveTopic() string {
	if d.Topic != "" {
		return d.Topic
	}
	name := d.Name
	if name == "" {
		name = path.Base(d.SourceURL)
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.TrimSpace(name)
}

// DisplayName returns the best human-readable name.
func (d SourceDocument) DisplayName() string {
	switch {
	case d.Title != "":
		return d.Title
	case d.Name != "":
		return d.Name
	default:
		return d.ID
	}
}

// RawDocument holds the bytes fetched from object storage.
type RawDocument struct {
	SourceURL string
	MIMEType  string
	Content   []byte
}

// PageOffset marks the rune offset at which a page starts.
type PageOffset struct {
	Offset int
	Page   int
}

// ParsedDocument is the output of a parser.
type ParsedDocument struct {
	// Text is the full extracted text.
	Text string

	// Pages maps rune offsets to page numbers, sorted by Offset.
	// Empty when the format has no pages.
	Pages []PageOffset
}

// PageAt returns the page containing offset, or 0 when unknown.
func PageAt(pages []PageOffset, offset int) int {
	page := 0
	for _, p := range pages {
		if p.Offset > offset {
			break
		}
		page = p.Page
	}
	return page
}
