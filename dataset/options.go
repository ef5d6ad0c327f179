package dataset

import (
	"runtime"

	"github.com/starfys/pcapfeatures/features"
	"github.com/starfys/pcapfeatures/flowagg"
)

// DefaultFilterPort is the port the dataset driver restricts both
// connections and packets to: TLS traffic only.
const DefaultFilterPort uint16 = 443

// Options configures a Driver, following the functional-options shape
// used by every other tunable component in this repo
// (flowagg.Option, captured.Option).
type Options struct {
	Analyzer            Analyzer
	Concurrency         int
	FilterPort          uint16
	GraceBeforeNS       uint64
	GraceAfterNS        uint64
	DirectionStrategies []features.Strategy
	PayloadBins         []int
	IATFromClientBins   []uint64
	IATToClientBins     []uint64
}

// NewOptions returns the canonical defaults: bro analyzer, one worker
// per CPU, port-443 filtering, and the default bin edges.
func NewOptions() Options {
	iat := DefaultIATBins()
	return Options{
		Analyzer:            NewBroAnalyzer(),
		Concurrency:         runtime.NumCPU(),
		FilterPort:          DefaultFilterPort,
		GraceBeforeNS:       flowagg.DefaultGraceBeforeNS,
		GraceAfterNS:        flowagg.DefaultGraceAfterNS,
		DirectionStrategies: []features.Strategy{features.ServerPort(DefaultFilterPort)},
		PayloadBins:         DefaultPayloadBins(),
		IATFromClientBins:   iat,
		IATToClientBins:     append([]uint64(nil), iat...),
	}
}

type Option func(*Options)

// WithAnalyzer overrides the external connection-log analyzer invocation,
// primarily so tests don't shell out to a real "bro"/zeek binary.
func WithAnalyzer(a Analyzer) Option {
	return func(o *Options) { o.Analyzer = a }
}

// WithConcurrency bounds how many manifest entries are processed at once.
func WithConcurrency(n int) Option {
	return func(o *Options) { o.Concurrency = n }
}

// WithFilterPort overrides the port packets and connections are filtered
// to.
func WithFilterPort(port uint16) Option {
	return func(o *Options) { o.FilterPort = port }
}

// WithGracePeriods overrides the flow-association grace periods.
func WithGracePeriods(before, after uint64) Option {
	return func(o *Options) { o.GraceBeforeNS, o.GraceAfterNS = before, after }
}

// WithDirectionStrategies overrides the direction-inference strategy list.
func WithDirectionStrategies(strategies ...features.Strategy) Option {
	return func(o *Options) { o.DirectionStrategies = strategies }
}

// WithBins overrides the histogram bin-edge vectors.
func WithBins(payload []int, iatFromClient, iatToClient []uint64) Option {
	return func(o *Options) {
		o.PayloadBins = payload
		o.IATFromClientBins = iatFromClient
		o.IATToClientBins = iatToClient
	}
}
