package dataset

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/starfys/pcapfeatures/capwork"
)

// GenerateLBNLReport walks datasetDir and writes one newline-JSON
// capwork.WorkReportRequest per `<name>.anon` file (and, when
// includeScanners is set, per `<name>.anon-scanners` file) to w. Since no
// real URL exists for this synthetic source, work.url is the literal
// "unknown" and work.filename is the directory entry's name, and both
// Work.Index and TypeIndex carry the entry's 0-origin position in the
// raw directory listing (including entries skipped for their extension)
// rather than a per-class counter.
func GenerateLBNLReport(datasetDir string, includeScanners bool, w io.Writer) error {
	entries, err := os.ReadDir(datasetDir)
	if err != nil {
		return errors.Wrap(err, "reading LBNL dataset directory")
	}

	enc := json.NewEncoder(w)
	for idx, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		isScanner := strings.HasSuffix(name, ".anon-scanners")
		isNormal := !isScanner && strings.HasSuffix(name, ".anon")
		if !isNormal && !(isScanner && includeScanners) {
			continue
		}

		report := capwork.WorkReportRequest{
			Success:  true,
			WorkType: capwork.Normal,
			Work: capwork.CaptureWork{
				Index:    uint64(idx),
				URL:      "unknown",
				Filename: name,
			},
			TypeIndex:  uint64(idx),
			StartTime:  0,
			FinishTime: 0,
		}
		if err := enc.Encode(report); err != nil {
			return errors.Wrap(err, "writing LBNL report entry")
		}
	}
	return nil
}
