package dataset

// msNS is one millisecond expressed in nanoseconds, used to build the
// canonical IAT bin edges below.
const msNS uint64 = 1_000_000

// DefaultPayloadBins returns the canonical payload-size bin edges, in
// bytes: 10..100 step 10, 200..1000 step 100, 2000..10000 step 1000, plus
// a 65536 sentinel to catch anything larger (no IP packet's payload
// exceeds it).
func DefaultPayloadBins() []int {
	bins := make([]int, 0, 10+9+9+1)
	for v := 10; v <= 100; v += 10 {
		bins = append(bins, v)
	}
	for v := 200; v <= 1000; v += 100 {
		bins = append(bins, v)
	}
	for v := 2000; v <= 10000; v += 1000 {
		bins = append(bins, v)
	}
	return append(bins, 65536)
}

// DefaultIATBins returns the canonical inter-arrival-time bin edges, in
// nanoseconds, shared by both the from-client and to-client histograms:
// 1..10ms step 1ms, 20..100ms step 10ms, 200..1000ms step 100ms, plus a
// 10s sentinel.
func DefaultIATBins() []uint64 {
	bins := make([]uint64, 0, 10+9+9+1)
	for v := uint64(1); v <= 10; v++ {
		bins = append(bins, v*msNS)
	}
	for v := uint64(20); v <= 100; v += 10 {
		bins = append(bins, v*msNS)
	}
	for v := uint64(200); v <= 1000; v += 100 {
		bins = append(bins, v*msNS)
	}
	return append(bins, 10000*msNS)
}
