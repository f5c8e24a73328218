package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laserostop/cm-backend/internal/vector"
)

type stubBulkEmbedder struct {
	calls  int
	failOn int
}

func (s *stubBulkEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.failOn > 0 && s.calls == s.failOn {
		return nil, errors.New("embedding batch failed")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type stubUpserter struct {
	items     map[string]vector.Item
	resets    int
	upsertErr error
}

func newStubUpserter() *stubUpserter {
	return &stubUpserter{items: make(map[string]vector.Item)}
}

func (s *stubUpserter) Upsert(_ context.Context, _ string, items []vector.Item) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return nil
}

func (s *stubUpserter) Reset(string) error {
	s.resets++
	s.items = make(map[string]vector.Item)
	return nil
}

func (s *stubUpserter) Count(string) (int, error) {
	return len(s.items), nil
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildFromCSV(t *testing.T) {
	t.Parallel()

	t.Run("indexes valid rows", func(t *testing.T) {
		t.Parallel()

		path := writeCSV(t, "id,text,source,lang_script\n"+
			"m1,séance 500 DT,faq,latin\n"+
			"m2,حجز موعد,social,arabic\n"+
			"m3,   ,faq,latin\n")

		index := newStubUpserter()
		builder := NewBuilder(&stubBulkEmbedder{}, index)

		stats, err := builder.BuildFromCSV(context.Background(), path, "col", 10, false)
		require.NoError(t, err)

		// The whitespace-only row is dropped before embedding.
		assert.Equal(t, 2, stats.RowsRead)
		assert.Equal(t, 2, stats.RowsIndexed)
		assert.Equal(t, 2, stats.CollectionTotal)
		assert.Equal(t, "faq", index.items["m1"].Metadata["source"])
		assert.Equal(t, "arabic", index.items["m2"].Metadata["lang_script"])
	})

	t.Run("column order does not matter", func(t *testing.T) {
		t.Parallel()

		path := writeCSV(t, "text,lang_script,id,source\n"+
			"garantie 12 mois,latin,m1,faq\n")

		index := newStubUpserter()
		builder := NewBuilder(&stubBulkEmbedder{}, index)

		stats, err := builder.BuildFromCSV(context.Background(), path, "col", 10, false)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.RowsIndexed)
		assert.Equal(t, "garantie 12 mois", index.items["m1"].Text)
	})

	t.Run("missing columns abort with schema error", func(t *testing.T) {
		t.Parallel()

		path := writeCSV(t, "id,text\nm1,bonjour\n")
		builder := NewBuilder(&stubBulkEmbedder{}, newStubUpserter())

		_, err := builder.BuildFromCSV(context.Background(), path, "col", 10, false)
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		t.Parallel()

		builder := NewBuilder(&stubBulkEmbedder{}, newStubUpserter())
		_, err := builder.BuildFromCSV(context.Background(), "/nonexistent/input.csv", "col", 10, false)
		assert.Error(t, err)
	})

	t.Run("failed batch is skipped not fatal", func(t *testing.T) {
		t.Parallel()

		path := writeCSV(t, "id,text,source,lang_script\n"+
			"m1,un,faq,latin\n"+
			"m2,deux,faq,latin\n"+
			"m3,trois,faq,latin\n"+
			"m4,quatre,faq,latin\n")

		index := newStubUpserter()
		builder := NewBuilder(&stubBulkEmbedder{failOn: 1}, index)

		// Batch size 2: the first batch fails to embed, the second lands.
		stats, err := builder.BuildFromCSV(context.Background(), path, "col", 2, false)
		require.NoError(t, err)
		assert.Equal(t, 4, stats.RowsRead)
		assert.Equal(t, 2, stats.RowsIndexed)
		assert.Equal(t, 2, stats.CollectionTotal)
	})

	t.Run("reset clears the collection first", func(t *testing.T) {
		t.Parallel()

		path := writeCSV(t, "id,text,source,lang_script\nm1,un,faq,latin\n")
		index := newStubUpserter()
		index.items["stale"] = vector.Item{ID: "stale"}

		builder := NewBuilder(&stubBulkEmbedder{}, index)
		stats, err := builder.BuildFromCSV(context.Background(), path, "col", 10, true)
		require.NoError(t, err)

		assert.Equal(t, 1, index.resets)
		assert.Equal(t, 1, stats.CollectionTotal)
		assert.NotContains(t, index.items, "stale")
	})
}

func TestRebuildIsIdempotent(t *testing.T) {
	t.Parallel()

	store := vector.NewEphemeralStore(func(context.Context, string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	})
	builder := NewBuilder(&stubBulkEmbedder{}, store)
	texts := []string{"séance 500 DT", "garantie 12 mois", "حجز موعد"}

	first, err := builder.BuildFromTexts(context.Background(), texts, nil, "col", true)
	require.NoError(t, err)

	second, err := builder.BuildFromTexts(context.Background(), texts, nil, "col", true)
	require.NoError(t, err)

	assert.Equal(t, first.CollectionTotal, second.CollectionTotal)
	assert.Equal(t, 3, second.CollectionTotal)
}

func TestBuildFromTexts(t *testing.T) {
	t.Parallel()

	index := newStubUpserter()
	builder := NewBuilder(&stubBulkEmbedder{}, index)

	stats, err := builder.BuildFromTexts(context.Background(),
		[]string{"un", "deux"},
		[]map[string]string{
			{"source": "faq", "lang_script": "latin"},
			{"source": "social", "lang_script": "arabizi"},
		},
		"col", false)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.RowsIndexed)
	assert.Equal(t, "faq", index.items["doc_0"].Metadata["source"])
	assert.Equal(t, "arabizi", index.items["doc_1"].Metadata["lang_script"])
}
