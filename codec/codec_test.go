package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	type payload struct {
		Name   string    `json:"name"`
		Coords []float64 `json:"coords"`
	}

	codecs := []Codec{JSON{}, GoJSON{}}

	for _, c := range codecs {
		t.Run(c.Name(), func(t *testing.T) {
			in := payload{Name: "desert", Coords: []float64{16, -32}}

			data, err := c.Marshal(in)
			require.NoError(t, err)

			var out payload
			require.NoError(t, c.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestCodecDeterministic(t *testing.T) {
	// Range-cache keys hash the encoded form, so identical inputs must
	// produce identical bytes.
	type sig struct {
		MinX float64 `json:"minX"`
		MaxX float64 `json:"maxX"`
	}

	for _, c := range []Codec{JSON{}, GoJSON{}} {
		a, err := c.Marshal(sig{MinX: 1, MaxX: 2})
		require.NoError(t, err)
		b, err := c.Marshal(sig{MinX: 1, MaxX: 2})
		require.NoError(t, err)
		assert.Equal(t, a, b, c.Name())
	}
}

func TestDefaultCodec(t *testing.T) {
	assert.Equal(t, "go-json", Default.Name())
}
