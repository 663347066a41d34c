package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashBytes(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		algo    HashAlgo
		wantErr bool
	}{
		{
			name: "sha256 of empty input",
			data: []byte{},
			algo: HashAlgoSHA256,
		},
		{
			name: "sha256 of content",
			data: []byte("# Heading\n\nBody text."),
			algo: HashAlgoSHA256,
		},
		{
			name: "blake3 of empty input",
			data: []byte{},
			algo: HashAlgoBLAKE3,
		},
		{
			name: "blake3 of content",
			data: []byte("# Heading\n\nBody text."),
			algo: HashAlgoBLAKE3,
		},
		{
			name:    "unsupported algorithm",
			data:    []byte("x"),
			algo:    HashAlgo("md5"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HashBytes(tt.data, tt.algo)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			// hex-encoded 256-bit digest
			assert.Len(t, got, 64)
		})
	}
}

func TestHashBytes_Deterministic(t *testing.T) {
	data := []byte("same input")

	for _, algo := range []HashAlgo{HashAlgoSHA256, HashAlgoBLAKE3} {
		first, err := HashBytes(data, algo)
		assert.NoError(t, err)
		second, err := HashBytes(data, algo)
		assert.NoError(t, err)
		assert.Equal(t, first, second, "algo %s must be deterministic", algo)
	}
}

func TestHashBytes_DifferentInputsDiffer(t *testing.T) {
	a, _ := HashBytes([]byte("a"), HashAlgoBLAKE3)
	b, _ := HashBytes([]byte("b"), HashAlgoBLAKE3)
	assert.NotEqual(t, a, b)
}

func TestContentHash_MatchesBlake3(t *testing.T) {
	data := []byte("page markdown")
	expected, err := HashBytes(data, HashAlgoBLAKE3)
	assert.NoError(t, err)
	assert.Equal(t, expected, ContentHash(data))
}
