package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns attributed segments", func(t *testing.T) {
		mockRetrieval := &mockRetrievalService{
			segments: []domain.RetrievedSegment{
				{
					SegmentID:    "seg-1",
					DocumentID:   "doc-1",
					CollectionID: "calc-101",
					SourceName:   "week_2-derivatives.pdf",
					PageNumber:   3,
					Text:         "The derivative measures the rate of change.",
					Score:        0.82,
				},
			},
		}

		server, err := NewServer(&Ports{Retrieval: mockRetrieval})
		require.NoError(t, err)

		minScore := 0.5
		input := RetrieveInput{
			Query:        "what is a derivative",
			CollectionID: "calc-101",
			DocumentID:   "doc-1",
			TopK:         3,
			MinScore:     &minScore,
		}
		_, output, err := server.handleRetrieve(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Segments, 1)
		assert.Equal(t, "week_2-derivatives.pdf", output.Segments[0].SourceName)
		assert.Equal(t, 3, output.Segments[0].PageNumber)

		q := mockRetrieval.lastQ
		assert.Equal(t, "what is a derivative", q.Text)
		assert.Equal(t, domain.Scope{CollectionID: "calc-101", DocumentID: "doc-1"}, q.Scope)
		assert.Equal(t, 3, q.TopK)
		require.NotNil(t, q.MinScore)
		assert.Equal(t, 0.5, *q.MinScore)
	})

	t.Run("defaults are left to the service", func(t *testing.T) {
		mockRetrieval := &mockRetrievalService{segments: []domain.RetrievedSegment{}}
		server, err := NewServer(&Ports{Retrieval: mockRetrieval})
		require.NoError(t, err)

		_, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "limits"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Zero(t, mockRetrieval.lastQ.TopK)
		assert.Nil(t, mockRetrieval.lastQ.MinScore)
	})

	t.Run("returns error on retrieval outage", func(t *testing.T) {
		mockRetrieval := &mockRetrievalService{
			err: errors.Join(domain.ErrRetrievalUnavailable, errors.New("connection refused")),
		}
		server, err := NewServer(&Ports{Retrieval: mockRetrieval})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "limits"})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
	})
}

func TestServer_handleIndexStatus(t *testing.T) {
	ctx := context.Background()
	indexedAt := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

	t.Run("collection status with jobs", func(t *testing.T) {
		mockIndexing := &mockIndexingService{
			status: &domain.CollectionIndexStatus{
				CollectionID:  "calc-101",
				Status:        domain.JobFailed,
				DocumentCount: 2,
				SegmentCount:  14,
				LastIndexedAt: indexedAt,
				ErrorMessage:  "1 document failed",
			},
			jobs: []domain.DocumentJob{
				{DocumentID: "doc-a", Status: domain.JobCompleted, SegmentCount: 14, Attempts: 1},
				{DocumentID: "doc-b", Status: domain.JobFailed, Attempts: 1, ErrorMessage: "parse: corrupt xref table"},
			},
		}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Indexing: mockIndexing})
		require.NoError(t, err)

		_, output, err := server.handleIndexStatus(ctx, nil, IndexStatusInput{CollectionID: "calc-101"})

		require.NoError(t, err)
		require.NotNil(t, output.Collection)
		assert.Equal(t, "failed", output.Collection.Status)
		assert.Equal(t, 14, output.Collection.SegmentCount)
		assert.Equal(t, "2026-03-02T10:30:00Z", output.Collection.LastIndexedAt)
		require.Len(t, output.Documents, 2)
		assert.Equal(t, "completed", output.Documents[0].Status)
		assert.Equal(t, "parse: corrupt xref table", output.Documents[1].Error)
	})

	t.Run("never indexed collection has no timestamp", func(t *testing.T) {
		mockIndexing := &mockIndexingService{
			status: &domain.CollectionIndexStatus{CollectionID: "calc-101", Status: domain.JobPending},
		}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Indexing: mockIndexing})
		require.NoError(t, err)

		_, output, err := server.handleIndexStatus(ctx, nil, IndexStatusInput{CollectionID: "calc-101"})

		require.NoError(t, err)
		assert.Empty(t, output.Collection.LastIndexedAt)
		assert.Empty(t, output.Documents)
	})

	t.Run("document status", func(t *testing.T) {
		mockIndexing := &mockIndexingService{
			job: &domain.DocumentJob{DocumentID: "doc-a", Status: domain.JobProcessing, Attempts: 2},
		}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Indexing: mockIndexing})
		require.NoError(t, err)

		_, output, err := server.handleIndexStatus(ctx, nil, IndexStatusInput{DocumentID: "doc-a"})

		require.NoError(t, err)
		assert.Nil(t, output.Collection)
		require.Len(t, output.Documents, 1)
		assert.Equal(t, "processing", output.Documents[0].Status)
		assert.Equal(t, 2, output.Documents[0].Attempts)
	})

	t.Run("requires a target", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Indexing: &mockIndexingService{}})
		require.NoError(t, err)

		_, _, err = server.handleIndexStatus(ctx, nil, IndexStatusInput{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("unknown document", func(t *testing.T) {
		mockIndexing := &mockIndexingService{err: domain.ErrNotFound}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Indexing: mockIndexing})
		require.NoError(t, err)

		_, _, err = server.handleIndexStatus(ctx, nil, IndexStatusInput{DocumentID: "nope"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("without indexing service", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}})
		require.NoError(t, err)

		_, _, err = server.handleIndexStatus(ctx, nil, IndexStatusInput{CollectionID: "calc-101"})
		assert.ErrorIs(t, err, errMissingIndexingService)
	})
}
