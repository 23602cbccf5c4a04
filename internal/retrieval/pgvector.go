package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfman30/cosmetology-assistant/internal/apperr"
	"github.com/wolfman30/cosmetology-assistant/internal/llm"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const searchSQL = `
	SELECT id::text, title, content, 1 - (embedding <=> $1::vector) AS score
	FROM knowledge_documents
	WHERE ($2::text[] IS NULL OR skin_types && $2::text[])
	  AND ($3::text[] IS NULL OR age_groups && $3::text[])
	ORDER BY embedding <=> $1::vector
	LIMIT $4`

// PGVectorSearcher runs cosine-distance search over knowledge_documents.
type PGVectorSearcher struct {
	db       DB
	embedder llm.Embedder
	minScore float64
}

func NewPGVectorSearcher(db DB, embedder llm.Embedder, minScore float64) *PGVectorSearcher {
	if db == nil || embedder == nil {
		panic("retrieval: db and embedder are required")
	}
	return &PGVectorSearcher{db: db, embedder: embedder, minScore: minScore}
}

func (s *PGVectorSearcher) Search(ctx context.Context, query string, filters *Filters, topK int) ([]Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 3
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, apperr.Transient("retrieval: embed query", err)
	}
	if len(vectors) == 0 {
		return nil, apperr.Transient("retrieval: embed query", errors.New("no embedding returned"))
	}

	var skinTypes, ageGroups []string
	if filters != nil {
		skinTypes, ageGroups = filters.SkinTypes, filters.AgeGroups
	}
	rows, err := s.db.Query(ctx, searchSQL, VectorLiteral(vectors[0]), skinTypes, ageGroups, topK)
	if err != nil {
		return nil, apperr.Transient("retrieval: search", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.Score); err != nil {
			return nil, fmt.Errorf("retrieval: scan document: %w", err)
		}
		if d.Score >= s.minScore {
			docs = append(docs, d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("retrieval: search rows", err)
	}
	return docs, nil
}

// VectorLiteral renders v in pgvector's text input format.
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
