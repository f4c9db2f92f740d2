package cache

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressPayloadRoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("biome:savanna;"), 512)

	rng := rand.New(rand.NewSource(1))
	incompressible := make([]byte, 4096)
	rng.Read(incompressible)

	cases := []struct {
		name string
		data []byte
	}{
		{name: "compressible", data: compressible},
		{name: "incompressible", data: incompressible},
		{name: "tiny", data: []byte("x")},
		{name: "empty", data: nil},
	}

	for _, compression := range []CompressionType{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(compression.String(), func(t *testing.T) {
			for _, tc := range cases {
				stored, err := compressPayload(tc.data, compression)
				require.NoError(t, err, tc.name)

				restored, err := decompressPayload(stored, compression)
				require.NoError(t, err, tc.name)

				assert.Equal(t, len(tc.data), len(restored), tc.name)
				assert.True(t, bytes.Equal(tc.data, restored), tc.name)
			}
		})
	}
}

func TestCompressPayloadShrinksCompressibleData(t *testing.T) {
	data := bytes.Repeat([]byte("biome:savanna;"), 512)

	for _, compression := range []CompressionType{CompressionLZ4, CompressionZSTD} {
		stored, err := compressPayload(data, compression)
		require.NoError(t, err)
		assert.Less(t, len(stored), len(data), compression.String())
	}
}

func TestCompressPayloadIncompressibleFallback(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	data := make([]byte, 4096)
	rng.Read(data)

	stored, err := compressPayload(data, CompressionLZ4)
	require.NoError(t, err)

	// Random bytes do not shrink; the payload is stored uncompressed
	// behind the header.
	assert.Equal(t, len(data)+payloadHeaderSize, len(stored))
}

func TestCompressPayloadNoneIsIdentity(t *testing.T) {
	data := []byte("untouched")

	stored, err := compressPayload(data, CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	restored, err := decompressPayload(stored, CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, data, restored)
}

func TestDecompressPayloadRejectsTruncatedInput(t *testing.T) {
	_, err := decompressPayload([]byte{1, 2, 3}, CompressionLZ4)
	assert.Error(t, err)
}
