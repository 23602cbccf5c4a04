package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/cosmetology-assistant/internal/apperr"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return [][]float32{s.vec}, nil
}

type countingSearcher struct {
	calls int
	docs  []Document
	err   error
}

func (c *countingSearcher) Search(context.Context, string, *Filters, int) ([]Document, error) {
	c.calls++
	return c.docs, c.err
}

func TestBuildFilters(t *testing.T) {
	assert.Nil(t, BuildFilters("как ухаживать", Profile{}))

	f := BuildFilters("у меня СУХАЯ кожа", Profile{SkinType: "oily", AgeGroup: "25-35"})
	require.NotNil(t, f)
	assert.Equal(t, []string{"dry", "all"}, f.SkinTypes)
	assert.Equal(t, []string{"25-35"}, f.AgeGroups)

	f = BuildFilters("что посоветуете", Profile{SkinType: "sensitive"})
	assert.Equal(t, []string{"sensitive", "all"}, f.SkinTypes)
	assert.Nil(t, f.AgeGroups)
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[0.5,-0.25,1]", VectorLiteral([]float32{0.5, -0.25, 1}))
	assert.Equal(t, "[]", VectorLiteral(nil))
}

func TestPGVectorSearcherFiltersByScore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "title", "content", "score"}).
		AddRow("1", "Чистка лица", "Ультразвуковая чистка", 0.82).
		AddRow("2", "Пилинг", "Поверхностный пилинг", 0.41)
	mock.ExpectQuery("FROM knowledge_documents").
		WithArgs("[0.5,0.25]", []string{"dry", "all"}, pgxmock.AnyArg(), 3).
		WillReturnRows(rows)

	searcher := NewPGVectorSearcher(mock, stubEmbedder{vec: []float32{0.5, 0.25}}, 0.5)
	docs, err := searcher.Search(context.Background(), "чистка", &Filters{SkinTypes: []string{"dry", "all"}}, 3)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Чистка лица", docs[0].Title)
	assert.InDelta(t, 0.82, docs[0].Score, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorSearcherTranslatesErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPGVectorSearcher(mock, stubEmbedder{err: errors.New("throttled")}, 0.5).
		Search(context.Background(), "чистка", nil, 3)
	assert.ErrorIs(t, err, apperr.ErrTransient)

	mock.ExpectQuery("FROM knowledge_documents").WillReturnError(errors.New("conn refused"))
	_, err = NewPGVectorSearcher(mock, stubEmbedder{vec: []float32{1}}, 0.5).
		Search(context.Background(), "чистка", nil, 3)
	assert.ErrorIs(t, err, apperr.ErrTransient)
}

func TestCachedSearcherMemoizes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingSearcher{docs: []Document{{ID: "1", Title: "Массаж", Score: 0.9}}}
	cached := NewCachedSearcher(inner, client, 10*time.Minute, nil)
	ctx := context.Background()

	first, err := cached.Search(ctx, "массаж", nil, 3)
	require.NoError(t, err)
	second, err := cached.Search(ctx, "массаж", nil, 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	_, err = cached.Search(ctx, "массаж", &Filters{SkinTypes: []string{"dry"}}, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "filters are part of the key")

	mr.FastForward(11 * time.Minute)
	_, err = cached.Search(ctx, "массаж", nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestCachedSearcherFallsThroughWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	inner := &countingSearcher{docs: []Document{{ID: "1"}}}
	docs, err := NewCachedSearcher(inner, client, time.Minute, nil).Search(context.Background(), "q", nil, 3)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
