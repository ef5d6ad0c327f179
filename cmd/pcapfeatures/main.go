// Command pcapfeatures extracts normalized flow feature vectors from a
// directory of capture work reports and PCAP files, writing one
// gzip-compressed newline-JSON dataset file per class.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/starfys/pcapfeatures/dataset"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 2 {
		log.Fatal().Msg("usage: pcapfeatures <DATA_DIR> <OUTPUT_DIR>")
	}
	dataDir, outputDir := args[0], args[1]

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("creating output directory")
	}

	driver := dataset.NewDriver()
	if err := driver.Run(context.Background(), dataDir, outputDir); err != nil {
		log.Fatal().Err(err).Msg("pcapfeatures: extraction failed")
	}
}
