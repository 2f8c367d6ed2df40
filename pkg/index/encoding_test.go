package index

import (
	"database/sql/driver"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEmbedding_RoundTrip(t *testing.T) {
	orig := []float32{0.0, 1.5, -2.25, 3.75}

	decoded, err := DecodeEmbedding(EncodeEmbedding(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, decoded)
}

func TestEncodeDecodeEmbedding_Empty(t *testing.T) {
	assert.Empty(t, EncodeEmbedding(nil))

	vec, err := DecodeEmbedding(nil)
	require.NoError(t, err)
	assert.Empty(t, vec)
}

func TestDecodeEmbedding_InvalidLength(t *testing.T) {
	_, err := DecodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.Equal(t, float32(0), CosineSimilarity([]float32{1, 0}, []float32{0, 1}))
	assert.Equal(t, float32(1), CosineSimilarity([]float32{1, 0}, []float32{1, 0}))
	assert.Equal(t, float32(0), CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, float32(0), CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestVecCosine(t *testing.T) {
	a := EncodeEmbedding([]float32{1, 0})
	b := EncodeEmbedding([]float32{0, 1})

	v, err := vecCosine(nil, []driver.Value{a, a})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)

	v, err = vecCosine(nil, []driver.Value{a, b})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v, 1e-9)

	v, err = vecCosine(nil, []driver.Value{a, EncodeEmbedding([]float32{0, 0})})
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = vecCosine(nil, []driver.Value{a, EncodeEmbedding([]float32{1, 0, 0})})
	assert.Error(t, err)

	_, err = vecCosine(nil, []driver.Value{a, "text"})
	assert.Error(t, err)
}
