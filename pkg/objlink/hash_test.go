package objlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildHash_ChainZeroIsAlwaysUndef(t *testing.T) {
	h := BuildHash([]string{"", "foo", "bar", "baz"})
	assert.Equal(t, uint32(0), h.Chain[0])
	assert.EqualValues(t, 4, h.Nchain)
}

func TestBuildHash_NbucketIsOddAndAtLeastThree(t *testing.T) {
	h := BuildHash([]string{""})
	assert.GreaterOrEqual(t, h.Nbucket, uint32(3))
	assert.Equal(t, uint32(1), h.Nbucket%2)
}

func TestBuildHash_EveryNamedSymbolIsReachableFromItsBucket(t *testing.T) {
	names := []string{"", "alpha", "beta", "gamma", "delta", "epsilon"}
	h := BuildHash(names)

	for i := 1; i < len(names); i++ {
		bucket := sysvHash(names[i]) % h.Nbucket
		found := false
		for idx := h.Bucket[bucket]; idx != 0; idx = h.Chain[idx] {
			if idx == uint32(i) {
				found = true
				break
			}
		}
		assert.Truef(t, found, "symbol %d (%q) unreachable from its bucket", i, names[i])
	}
}
