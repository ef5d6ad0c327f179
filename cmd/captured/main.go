// Command captured runs the capture-control daemon: a Unix-socket
// start/stop interface over an external packet-capture subprocess.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/starfys/pcapfeatures/captured"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func main() {
	socketPath := flag.String("socket", "/tmp/tcpdump.socket", "control socket path")
	captureCommand := flag.String("command", "tcpdump", "capture subprocess to invoke")
	flag.Parse()

	d := captured.NewDaemon(
		captured.WithSocketPath(*socketPath),
		captured.WithCommand(*captureCommand, "-K"),
	)

	if err := d.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("captured: daemon exited")
	}
}
