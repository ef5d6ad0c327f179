package features

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/starfys/pcapfeatures/netdecode"
	"github.com/starfys/pcapfeatures/sets"
)

func TestInferDirectionServerPort(t *testing.T) {
	strategies := []Strategy{ServerPort(443)}
	assert.Equal(t, FromClient, InferDirection(51000, 443, strategies))
	assert.Equal(t, ToClient, InferDirection(443, 51000, strategies))
	assert.Equal(t, Unknown, InferDirection(8080, 9090, strategies))
}

func TestInferDirectionServerPorts(t *testing.T) {
	strategies := []Strategy{ServerPorts(sets.NewSet[uint16](443, 80))}
	assert.Equal(t, FromClient, InferDirection(51000, 80, strategies))
	assert.Equal(t, ToClient, InferDirection(443, 51000, strategies))
}

func TestInferDirectionEphemeral(t *testing.T) {
	strategies := []Strategy{Ephemeral{}}
	assert.Equal(t, FromClient, InferDirection(50000, 22, strategies))
	assert.Equal(t, ToClient, InferDirection(22, 50000, strategies))
	assert.Equal(t, Unknown, InferDirection(22, 23, strategies))
}

func TestInferDirectionMemoizesRepeatedEphemeral(t *testing.T) {
	// Two Ephemeral entries back to back; the second must reuse the
	// first's decision rather than recomputing (same result either way
	// here, but exercises the memoization path).
	strategies := []Strategy{Ephemeral{}, Ephemeral{}}
	assert.Equal(t, FromClient, InferDirection(50000, 22, strategies))
}

func TestInferDirectionFallsThroughStrategies(t *testing.T) {
	strategies := []Strategy{ServerPort(443), ServerPort(80)}
	assert.Equal(t, FromClient, InferDirection(51000, 80, strategies))
}

func TestFromStrippedPacketsInterarrival(t *testing.T) {
	packets := []netdecode.StrippedPacket{
		{SrcPort: 51000, DstPort: 443, TimestampNS: 1000, PayloadLength: 10},
		{SrcPort: 443, DstPort: 51000, TimestampNS: 1500, PayloadLength: 20},
		{SrcPort: 51000, DstPort: 443, TimestampNS: 2200, PayloadLength: 30},
		{SrcPort: 443, DstPort: 51000, TimestampNS: 2800, PayloadLength: 40},
	}
	pf := FromStrippedPackets(packets, []Strategy{ServerPort(443)})

	assert.Equal(t, FromClient, pf[0].Direction)
	assert.Equal(t, uint64(0), pf[0].InterarrivalTimeNS)

	assert.Equal(t, ToClient, pf[1].Direction)
	assert.Equal(t, uint64(0), pf[1].InterarrivalTimeNS)

	assert.Equal(t, FromClient, pf[2].Direction)
	assert.Equal(t, uint64(1200), pf[2].InterarrivalTimeNS)

	assert.Equal(t, ToClient, pf[3].Direction)
	assert.Equal(t, uint64(1300), pf[3].InterarrivalTimeNS)
}

func TestEmptyIsAddIdentity(t *testing.T) {
	x := FlowFeatures{
		PayloadLengthFreqBins:          []uint64{1, 2, 3},
		InterarrivalFreqFromClientBins: []uint64{4, 5},
		InterarrivalFreqToClientBins:   []uint64{6},
	}
	empty := Empty(3, 2, 1)
	assert.Equal(t, x, empty.Add(x))
	assert.Equal(t, x, x.Add(empty))
}

func TestGenerateStrictLessThanBinEdge(t *testing.T) {
	pf := []PacketFeatures{
		{PayloadLength: 100, Direction: Unknown},
	}
	ff := Generate(pf, []int{100, 200}, nil, nil)
	// 100 is not < 100, so it falls into the second bin (index 1).
	assert.Equal(t, []uint64{0, 1}, ff.PayloadLengthFreqBins)
}

func TestGenerateDirectionGatesIATBins(t *testing.T) {
	pf := []PacketFeatures{
		{PayloadLength: 10, Direction: FromClient, InterarrivalTimeNS: 50},
		{PayloadLength: 10, Direction: ToClient, InterarrivalTimeNS: 150},
		{PayloadLength: 10, Direction: Unknown, InterarrivalTimeNS: 50},
	}
	ff := Generate(pf, []int{1000}, []uint64{100, 1000}, []uint64{100, 1000})
	assert.Equal(t, []uint64{1, 0}, ff.InterarrivalFreqFromClientBins)
	assert.Equal(t, []uint64{0, 1}, ff.InterarrivalFreqToClientBins)
}

func TestNormalizeSumsToOne(t *testing.T) {
	ff := FlowFeatures{
		PayloadLengthFreqBins:          []uint64{1, 2, 3},
		InterarrivalFreqFromClientBins: []uint64{0, 0},
		InterarrivalFreqToClientBins:   []uint64{5},
	}
	n := ff.Normalize()

	var sum float64
	for _, v := range n.PayloadLengthFreqBins {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	assert.Equal(t, []float64{0, 0}, n.InterarrivalFreqFromClientBins)

	assert.Equal(t, []float64{1.0}, n.InterarrivalFreqToClientBins)
}

func TestNormalizeAllZeroStaysZero(t *testing.T) {
	ff := Empty(3, 2, 1)
	n := ff.Normalize()
	assert.Equal(t, []float64{0, 0, 0}, n.PayloadLengthFreqBins)
	assert.Equal(t, []float64{0, 0}, n.InterarrivalFreqFromClientBins)
	assert.Equal(t, []float64{0}, n.InterarrivalFreqToClientBins)
}

// TestNormalizeMatchesExpectedHistogramWithinTolerance exercises
// go-cmp's float tolerance comparison across all three histograms at
// once, since the repeating-fraction masses involved (1/3, 2/7, ...)
// never land on an exact float64 value.
func TestNormalizeMatchesExpectedHistogramWithinTolerance(t *testing.T) {
	ff := FlowFeatures{
		PayloadLengthFreqBins:          []uint64{1, 2, 0},
		InterarrivalFreqFromClientBins: []uint64{2, 5},
		InterarrivalFreqToClientBins:   []uint64{0, 0, 7},
	}
	got := ff.Normalize()
	want := NormalizedFlowFeatures{
		PayloadLengthFreqBins:          []float64{1.0 / 3, 2.0 / 3, 0},
		InterarrivalFreqFromClientBins: []float64{2.0 / 7, 5.0 / 7},
		InterarrivalFreqToClientBins:   []float64{0, 0, 1},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}
