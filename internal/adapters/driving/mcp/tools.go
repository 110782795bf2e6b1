package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query        string   `json:"query" jsonschema:"the question to find course material for"`
	CollectionID string   `json:"collection_id,omitempty" jsonschema:"restrict results to one course collection"`
	DocumentID   string   `json:"document_id,omitempty" jsonschema:"restrict results to one document"`
	TopK         int      `json:"top_k,omitempty" jsonschema:"maximum number of segments to return"`
	MinScore     *float64 `json:"min_score,omitempty" jsonschema:"drop segments scoring below this cosine similarity"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Segments []domain.RetrievedSegment `json:"segments"`
	Count    int                       `json:"count"`
}

// IndexStatusInput is the input schema for the index_status tool.
type IndexStatusInput struct {
	CollectionID string `json:"collection_id,omitempty" jsonschema:"the collection to report on"`
	DocumentID   string `json:"document_id,omitempty" jsonschema:"the document to report on"`
}

// IndexStatusOutput is the output schema for the index_status tool.
type IndexStatusOutput struct {
	Collection *CollectionStatusOutput `json:"collection,omitempty"`
	Documents  []DocumentStatusOutput  `json:"documents,omitempty"`
}

// CollectionStatusOutput is the aggregate state of a collection.
type CollectionStatusOutput struct {
	CollectionID  string `json:"collection_id"`
	Status        string `json:"status"`
	DocumentCount int    `json:"document_count"`
	SegmentCount  int    `json:"segment_count"`
	LastIndexedAt string `json:"last_indexed_at,omitempty"`
	Error         string `json:"error,omitempty"`
}

// DocumentStatusOutput is the state of one document job.
type DocumentStatusOutput struct {
	DocumentID   string `json:"document_id"`
	Status       string `json:"status"`
	SegmentCount int    `json:"segment_count"`
	Attempts     int    `json:"attempts"`
	Error        string `json:"error,omitempty"`
}

// errMissingIndexingService is returned by index_status without an indexing port.
var errMissingIndexingService = errors.New("index status is not available")

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find the course material segments most relevant to a question, with source file and page",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_status",
		Description: "Report indexing progress of a course collection or a single document",
	}, s.handleIndexStatus)
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	q := domain.RetrievalQuery{
		Text: input.Query,
		Scope: domain.Scope{
			CollectionID: input.CollectionID,
			DocumentID:   input.DocumentID,
		},
		TopK:     input.TopK,
		MinScore: input.MinScore,
	}

	segments, err := s.ports.Retrieval.Retrieve(ctx, q)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	return nil, RetrieveOutput{Segments: segments, Count: len(segments)}, nil
}

// handleIndexStatus handles the index_status tool invocation.
func (s *Server) handleIndexStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexStatusInput,
) (*mcp.CallToolResult, IndexStatusOutput, error) {
	if s.ports.Indexing == nil {
		return nil, IndexStatusOutput{}, errMissingIndexingService
	}

	switch {
	case input.DocumentID != "":
		job, err := s.ports.Indexing.DocumentStatus(ctx, input.DocumentID)
		if err != nil {
			return nil, IndexStatusOutput{}, err
		}
		return nil, IndexStatusOutput{Documents: []DocumentStatusOutput{documentStatus(job)}}, nil

	case input.CollectionID != "":
		status, jobs, err := s.ports.Indexing.CollectionStatus(ctx, input.CollectionID)
		if err != nil {
			return nil, IndexStatusOutput{}, err
		}
		output := IndexStatusOutput{
			Collection: collectionStatus(status),
			Documents:  make([]DocumentStatusOutput, len(jobs)),
		}
		for i := range jobs {
			output.Documents[i] = documentStatus(&jobs[i])
		}
		return nil, output, nil

	default:
		return nil, IndexStatusOutput{}, fmt.Errorf("collection_id or document_id is required: %w", domain.ErrInvalidInput)
	}
}

func collectionStatus(st *domain.CollectionIndexStatus) *CollectionStatusOutput {
	out := &CollectionStatusOutput{
		CollectionID:  st.CollectionID,
		Status:        st.Status.String(),
		DocumentCount: st.DocumentCount,
		SegmentCount:  st.SegmentCount,
		Error:         st.ErrorMessage,
	}
	if !st.LastIndexedAt.IsZero() {
		out.LastIndexedAt = st.LastIndexedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return out
}

func documentStatus(job *domain.DocumentJob) DocumentStatusOutput {
	return DocumentStatusOutput{
		DocumentID:   job.DocumentID,
		Status:       job.Status.String(),
		SegmentCount: job.SegmentCount,
		Attempts:     job.Attempts,
		Error:        job.ErrorMessage,
	}
}
