// Command lbnlreport builds a synthetic report.json from a directory of
// LBNL-style `.anon`/`.anon-scanners` files, for feeding the extraction
// pipeline without the online work-queue/browser-worker system.
package main

import (
	"bufio"
	"flag"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/starfys/pcapfeatures/dataset"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func main() {
	includeScanners := flag.Bool("include-scanners", false, "include .anon-scanners files")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		log.Fatal().Msg("usage: lbnlreport [--include-scanners] <DATASET_PATH>")
	}
	datasetPath := args[0]

	out, err := os.Create(filepath.Join(datasetPath, "report.json"))
	if err != nil {
		log.Fatal().Err(err).Msg("creating report.json")
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	if err := dataset.GenerateLBNLReport(datasetPath, *includeScanners, w); err != nil {
		log.Fatal().Err(err).Msg("lbnlreport: generation failed")
	}
	if err := w.Flush(); err != nil {
		log.Fatal().Err(err).Msg("flushing report.json")
	}
}
