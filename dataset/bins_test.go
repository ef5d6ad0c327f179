package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPayloadBinsShapeAndSentinel(t *testing.T) {
	bins := DefaultPayloadBins()
	require := assert.New(t)
	require.Equal(29, len(bins))
	require.Equal(10, bins[0])
	require.Equal(100, bins[9])
	require.Equal(200, bins[10])
	require.Equal(1000, bins[18])
	require.Equal(2000, bins[19])
	require.Equal(10000, bins[27])
	require.Equal(65536, bins[28])
	for i := 1; i < len(bins); i++ {
		require.Less(bins[i-1], bins[i])
	}
}

func TestDefaultIATBinsShapeAndSentinel(t *testing.T) {
	bins := DefaultIATBins()
	require := assert.New(t)
	require.Equal(29, len(bins))
	require.Equal(msNS, bins[0])
	require.Equal(10*msNS, bins[9])
	require.Equal(20*msNS, bins[10])
	require.Equal(1000*msNS, bins[27])
	require.Equal(10000*msNS, bins[28])
	for i := 1; i < len(bins); i++ {
		require.Less(bins[i-1], bins[i])
	}
}
