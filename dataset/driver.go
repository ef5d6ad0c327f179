// Package dataset implements the top-level dataset driver: it walks a
// report manifest, runs each capture through the PCAP reader, packet
// parser, connection-log loader, flow aggregator, and feature generator
// in parallel, then groups the results by class and writes one
// gzip-compressed newline-JSON file per class.
package dataset

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/starfys/pcapfeatures/capwork"
	"github.com/starfys/pcapfeatures/connlog"
	"github.com/starfys/pcapfeatures/features"
	"github.com/starfys/pcapfeatures/flowagg"
	"github.com/starfys/pcapfeatures/netdecode"
	"github.com/starfys/pcapfeatures/pcap"
)

// Driver is the top-level dataset driver.
type Driver struct {
	opts Options
}

// NewDriver builds a Driver, applying opts over NewOptions' defaults.
func NewDriver(opts ...Option) *Driver {
	o := NewOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Driver{opts: o}
}

// Run loads dataDir/report.json, processes every successful entry in
// parallel, groups the results by class, and writes
// outputDir/<class>.json.gz for each distinct class observed.
// A missing or unparseable manifest is fatal; a failure on any
// single entry is logged and that entry is dropped, not the batch.
func (d *Driver) Run(ctx context.Context, dataDir, outputDir string) error {
	reportPath := filepath.Join(dataDir, "report.json")
	f, err := os.Open(reportPath)
	if err != nil {
		return errors.Wrap(err, "opening report manifest")
	}
	entries, err := LoadManifest(f)
	closeErr := f.Close()
	if err != nil {
		return errors.Wrap(err, "loading report manifest")
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "closing report manifest")
	}

	// Each goroutine writes to its own slot, indexed by the entry's
	// position in the sorted manifest, so the final per-class ordering
	// falls out of the indexing without a post-hoc sort.
	results := make([]*FlowData, len(entries))

	concurrency := d.opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			fd, err := d.processEntry(gctx, dataDir, entry)
			if err != nil {
				log.Error().
					Err(err).
					Str("filename", entry.Work.Filename).
					Str("work_type", entry.WorkType.String()).
					Msg("dataset: abandoning manifest entry")
				return nil
			}
			results[i] = fd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "processing manifest entries")
	}

	byClass := make(map[capwork.WorkType][]FlowData)
	for _, fd := range results {
		if fd == nil {
			continue
		}
		byClass[fd.Class] = append(byClass[fd.Class], *fd)
	}

	for class, flows := range byClass {
		if err := writeClassFile(outputDir, class, flows); err != nil {
			return errors.Wrapf(err, "writing class file for %q", class)
		}
	}
	return nil
}

// processEntry runs one manifest entry through the whole pipeline: invoke
// the external analyzer in a fresh scratch directory, load and filter
// connections, parse and filter packets, aggregate into flows, generate
// and sum per-flow features, and normalize. The scratch directory is
// removed on every exit path.
func (d *Driver) processEntry(ctx context.Context, dataDir string, entry capwork.WorkReportRequest) (*FlowData, error) {
	pcapPath := filepath.Join(dataDir, entry.Work.Filename)

	scratchDir, err := os.MkdirTemp("", "pcapfeatures-"+uuid.NewString())
	if err != nil {
		return nil, errors.Wrap(err, "creating scratch directory")
	}
	defer func() {
		if rmErr := os.RemoveAll(scratchDir); rmErr != nil {
			log.Warn().Err(rmErr).Str("dir", scratchDir).Msg("dataset: failed to remove scratch directory")
		}
	}()

	if err := d.opts.Analyzer.Analyze(ctx, pcapPath, scratchDir); err != nil {
		return nil, errors.Wrap(err, "running connection analyzer")
	}

	conns, err := d.loadConnections(scratchDir)
	if err != nil {
		return nil, err
	}

	packets, err := d.loadPackets(pcapPath)
	if err != nil {
		return nil, err
	}

	agg := flowagg.NewAggregator(conns,
		flowagg.WithGraceBeforeNS(d.opts.GraceBeforeNS),
		flowagg.WithGraceAfterNS(d.opts.GraceAfterNS))
	agg.LoadPackets(packets)
	flows := agg.Flows()

	acc := features.Empty(len(d.opts.PayloadBins), len(d.opts.IATFromClientBins), len(d.opts.IATToClientBins))
	for _, uid := range agg.FlowUIDs() {
		pf := features.FromStrippedPackets(flows[uid], d.opts.DirectionStrategies)
		ff := features.Generate(pf, d.opts.PayloadBins, d.opts.IATFromClientBins, d.opts.IATToClientBins)
		acc = acc.Add(ff)
	}

	return &FlowData{
		Class:          entry.WorkType,
		URL:            entry.Work.URL,
		IsFirstOfClass: entry.TypeIndex == 1,
		Features:       acc.Normalize(),
	}, nil
}

func (d *Driver) loadConnections(scratchDir string) ([]connlog.Connection, error) {
	f, err := os.Open(filepath.Join(scratchDir, "conn.log"))
	if err != nil {
		return nil, errors.Wrap(err, "opening connection log")
	}
	defer f.Close()

	conns, err := connlog.LoadConnections(f)
	if err != nil {
		return nil, errors.Wrap(err, "loading connection log")
	}

	filtered := conns[:0]
	for _, c := range conns {
		if c.OrigPort == d.opts.FilterPort || c.RespPort == d.opts.FilterPort {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func (d *Driver) loadPackets(pcapPath string) ([]netdecode.Packet, error) {
	f, err := os.Open(pcapPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening pcap file")
	}
	defer f.Close()

	reader, err := pcap.Open(f)
	if err != nil {
		return nil, errors.Wrap(err, "reading pcap header")
	}

	var packets []netdecode.Packet
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading pcap record")
		}

		pkt, err := netdecode.FromRecordBytes(rec.Data, rec.TimestampNS)
		if err != nil {
			log.Warn().Err(err).Msg("dataset: dropping unparseable packet record")
			continue
		}
		if pkt.SrcPort != d.opts.FilterPort && pkt.DstPort != d.opts.FilterPort {
			continue
		}
		packets = append(packets, pkt)
	}
	return packets, nil
}

// writeClassFile writes one gzip-compressed newline-JSON file for class,
// in the order flows is given (callers must already have sorted it by
// the manifest's (work_type, index) order).
func writeClassFile(outputDir string, class capwork.WorkType, flows []FlowData) error {
	path := filepath.Join(outputDir, class.String()+".json.gz")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bufw := bufio.NewWriter(f)
	gz := gzip.NewWriter(bufw)

	enc := json.NewEncoder(gz)
	for _, fd := range flows {
		if err := enc.Encode(fd.toTensor()); err != nil {
			return err
		}
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return bufw.Flush()
}
