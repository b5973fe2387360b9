package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddings returns a fixed vector per known input so similarity
// ordering is deterministic.
type fakeEmbeddings struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbeddings) CreateEmbeddings(_ context.Context, request openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	f.calls++
	if f.err != nil {
		return openai.EmbeddingResponse{}, f.err
	}
	req, ok := request.(*openai.EmbeddingRequest)
	if !ok {
		return openai.EmbeddingResponse{}, errors.New("unexpected request type")
	}
	inputs, ok := req.Input.([]string)
	if !ok {
		return openai.EmbeddingResponse{}, errors.New("unexpected input type")
	}
	resp := openai.EmbeddingResponse{}
	for _, in := range inputs {
		vec, ok := f.vectors[in]
		if !ok {
			vec = []float32{0, 0, 1}
		}
		resp.Data = append(resp.Data, openai.Embedding{Embedding: vec})
	}
	return resp, nil
}

func TestMemoryStoreRetrieveRanksBySimilarity(t *testing.T) {
	fake := &fakeEmbeddings{vectors: map[string][]float32{
		"Clinic hours are 9am to 5pm.":  {1, 0, 0},
		"Dr. Smith specializes in ENT.": {0, 1, 0},
		"Parking is available on site.": {0.1, 0.1, 0.9},
		"what are your opening hours?":  {0.95, 0.05, 0},
	}}
	store := NewMemoryStore(fake, "", nil)

	err := store.AddDocuments(context.Background(), []string{
		"Clinic hours are 9am to 5pm.",
		"Dr. Smith specializes in ENT.",
		"Parking is available on site.",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())

	results, err := store.Retrieve(context.Background(), "what are your opening hours?", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Clinic hours are 9am to 5pm.", results[0])
}

func TestMemoryStoreEmptyQuery(t *testing.T) {
	fake := &fakeEmbeddings{vectors: map[string][]float32{}}
	store := NewMemoryStore(fake, "", nil)

	results, err := store.Retrieve(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, fake.calls, "empty query should not hit the embedding API")
}

func TestMemoryStoreEmptyCorpus(t *testing.T) {
	fake := &fakeEmbeddings{vectors: map[string][]float32{}}
	store := NewMemoryStore(fake, "", nil)

	results, err := store.Retrieve(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, fake.calls, "empty corpus should not hit the embedding API")
}

func TestMemoryStoreSkipsBlankDocuments(t *testing.T) {
	fake := &fakeEmbeddings{vectors: map[string][]float32{}}
	store := NewMemoryStore(fake, "", nil)

	require.NoError(t, store.AddDocuments(context.Background(), []string{"", "  ", "\n"}))
	assert.Zero(t, store.Len())
	assert.Zero(t, fake.calls)
}

func TestMemoryStoreEmbeddingError(t *testing.T) {
	boom := errors.New("embedding down")
	store := NewMemoryStore(&fakeEmbeddings{err: boom}, "", nil)

	err := store.AddDocuments(context.Background(), []string{"doc"})
	assert.ErrorIs(t, err, boom)
}

func TestChunk(t *testing.T) {
	t.Run("short text is a single chunk", func(t *testing.T) {
		chunks := Chunk("short", 1000, 200)
		assert.Equal(t, []string{"short"}, chunks)
	})

	t.Run("long text overlaps", func(t *testing.T) {
		text := strings.Repeat("a", 250)
		chunks := Chunk(text, 100, 20)
		require.True(t, len(chunks) >= 3)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), 100)
		}
	})
}

func TestLoaderLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hours.txt"), []byte("Clinic hours are 9am to 5pm."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doctors.md"), []byte("Dr. Smith specializes in ENT."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.json"), []byte(`{"skip": true}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), nil, 0o644))

	fake := &fakeEmbeddings{vectors: map[string][]float32{}}
	store := NewMemoryStore(fake, "", nil)
	loader := NewLoader(store, 1000, 200, nil)

	require.NoError(t, loader.LoadDirectory(context.Background(), dir))
	assert.Equal(t, 2, store.Len())
}

func TestLoaderMissingDirectory(t *testing.T) {
	fake := &fakeEmbeddings{vectors: map[string][]float32{}}
	store := NewMemoryStore(fake, "", nil)
	loader := NewLoader(store, 1000, 200, nil)

	require.NoError(t, loader.LoadDirectory(context.Background(), filepath.Join(t.TempDir(), "missing")))
	assert.Zero(t, store.Len())
}
