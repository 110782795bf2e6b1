package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
	"github.com/custodia-labs/coursemind/internal/similarity"
)

// vectorIndex implements driven.VectorIndex with an exact scan over the
// segments inside the scope. The scope is part of the SQL query so
// out-of-scope segments are never scored.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Upsert replaces the segments of every document in the batch.
func (v *vectorIndex) Upsert(ctx context.Context, segments []domain.Segment) error {
	if len(segments) == 0 {
		return nil
	}

	dim := len(segments[0].Embedding)
	for _, seg := range segments {
		if len(seg.Embedding) == 0 {
			return fmt.Errorf("%w: segment %s has no embedding", domain.ErrInvalidInput, seg.ID)
		}
		if err := similarity.CheckDimension(dim, len(seg.Embedding)); err != nil {
			return err
		}
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stored, err := storedDimension(ctx, tx)
	if err != nil {
		return err
	}
	if err := similarity.CheckDimension(stored, dim); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, seg := range segments {
		if seen[seg.DocumentID] {
			continue
		}
		seen[seg.DocumentID] = true
		if _, err := tx.ExecContext(ctx, "DELETE FROM segments WHERE document_id = ?", seg.DocumentID); err != nil {
			return fmt.Errorf("replacing segments: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segments (id, document_id, collection_id, source_name, text, sequence_index,
			total_segments, page_number, embedding, dimension, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, seg := range segments {
		createdAt := seg.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx, seg.ID, seg.DocumentID, seg.CollectionID, seg.SourceName,
			seg.Text, seg.SequenceIndex, seg.TotalSegments, seg.PageNumber,
			similarity.Encode(seg.Embedding), len(seg.Embedding), formatTime(createdAt)); err != nil {
			if isConstraint(err, "UNIQUE") {
				return fmt.Errorf("segment %s: %w", seg.ID, domain.ErrAlreadyExists)
			}
			return fmt.Errorf("saving segment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Search scores every segment inside the scope and ranks them.
func (v *vectorIndex) Search(ctx context.Context, q domain.SearchQuery) ([]domain.SearchHit, error) {
	stored, err := storedDimension(ctx, v.store.db)
	if err != nil {
		return nil, err
	}
	if stored == 0 {
		return []domain.SearchHit{}, nil
	}
	if err := similarity.CheckDimension(stored, len(q.Vector)); err != nil {
		return nil, err
	}

	where, args := scopeClause(q.Scope)
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT id, document_id, collection_id, source_name, text, sequence_index,
			total_segments, page_number, embedding, created_at
		FROM segments`+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying segments: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Segment
	for rows.Next() {
		var seg domain.Segment
		var blob []byte
		var createdAt string
		if err := rows.Scan(&seg.ID, &seg.DocumentID, &seg.CollectionID, &seg.SourceName, &seg.Text,
			&seg.SequenceIndex, &seg.TotalSegments, &seg.PageNumber, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning segment: %w", err)
		}
		seg.Embedding = similarity.Decode(blob)
		seg.CreatedAt = parseTime(createdAt)
		candidates = append(candidates, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating segments: %w", err)
	}

	return similarity.Rank(q.Vector, candidates, q.TopK, q.MinScore), nil
}

// DeleteDocument removes every segment of a document.
func (v *vectorIndex) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := v.store.db.ExecContext(ctx, "DELETE FROM segments WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting segments: %w", err)
	}
	return nil
}

// CountSegments returns how many segments fall inside scope.
func (v *vectorIndex) CountSegments(ctx context.Context, scope domain.Scope) (int, error) {
	where, args := scopeClause(scope)
	var n int
	if err := v.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM segments"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting segments: %w", err)
	}
	return n, nil
}

// Dimension returns the stored vector dimension, or 0 when empty.
func (v *vectorIndex) Dimension(ctx context.Context) (int, error) {
	return storedDimension(ctx, v.store.db)
}

// Close is a no-op; the Store owns the connection.
func (v *vectorIndex) Close() error {
	return nil
}

func storedDimension(ctx context.Context, q querier) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, "SELECT dimension FROM segments LIMIT 1").Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading vector dimension: %w", err)
	}
	return dim, nil
}

func scopeClause(scope domain.Scope) (string, []any) {
	switch {
	case scope.CollectionID != "" && scope.DocumentID != "":
		return " WHERE collection_id = ? AND document_id = ?", []any{scope.CollectionID, scope.DocumentID}
	case scope.CollectionID != "":
		return " WHERE collection_id = ?", []any{scope.CollectionID}
	case scope.DocumentID != "":
		return " WHERE document_id = ?", []any{scope.DocumentID}
	default:
		return "", nil
	}
}
