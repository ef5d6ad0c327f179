package dataset

import (
	"context"
	"os/exec"

	"github.com/pkg/errors"
)

// Analyzer runs the external connection-log analyzer over one pcap file
// inside a scratch directory, leaving a conn.log the caller reads back.
// Analyzer is an interface so tests can inject a fake rather than
// shelling out to a real bro/zeek binary.
type Analyzer interface {
	Analyze(ctx context.Context, pcapPath, scratchDir string) error
}

// BroAnalyzer shells out to a bro/zeek-compatible binary with
// "-b -e 'redef LogAscii::use_json=T' -C -r <pcap>
// base/protocols/conn", run with the scratch directory as the working
// directory so conn.log lands there.
type BroAnalyzer struct {
	// Command is the executable name or path looked up in PATH. Defaults
	// to "bro" when empty.
	Command string
}

// NewBroAnalyzer returns a BroAnalyzer configured to invoke "bro".
func NewBroAnalyzer() BroAnalyzer {
	return BroAnalyzer{Command: "bro"}
}

func (b BroAnalyzer) Analyze(ctx context.Context, pcapPath, scratchDir string) error {
	exe := b.Command
	if exe == "" {
		exe = "bro"
	}
	resolved, err := exec.LookPath(exe)
	if err != nil {
		return errors.Wrapf(err, "locating %s in PATH", exe)
	}

	cmd := exec.CommandContext(ctx, resolved,
		"-b", "-e", "redef LogAscii::use_json=T", "-C", "-r", pcapPath, "base/protocols/conn")
	cmd.Dir = scratchDir

	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s exited with failure analyzing %s", exe, pcapPath)
	}
	return nil
}
