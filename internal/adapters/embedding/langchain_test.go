package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	err   error
	short bool
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.short {
		return [][]float32{{1}}, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 0}, nil
}

func TestLangchainAdapter_Embed(t *testing.T) {
	a := NewLangchainAdapter(&fakeEmbedder{}, "text-embedding-3-small")

	v, err := a.Embed(context.Background(), "abcd")

	require.NoError(t, err)
	assert.Equal(t, []float32{4, 0}, v)
	assert.Equal(t, "text-embedding-3-small", a.Model())
}

func TestLangchainAdapter_EmbedBatch(t *testing.T) {
	a := NewLangchainAdapter(&fakeEmbedder{}, "m")

	vs, err := a.EmbedBatch(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Len(t, vs, 2)

	empty, err := a.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLangchainAdapter_Errors(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewLangchainAdapter(&fakeEmbedder{err: boom}, "m").Embed(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	_, err = NewLangchainAdapter(&fakeEmbedder{short: true}, "m").EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrMalformedEmbedding)
}

func TestNewOpenAIAdapter_RequiresKey(t *testing.T) {
	_, err := NewOpenAIAdapter("", "text-embedding-3-small", "")
	assert.Error(t, err)
}
