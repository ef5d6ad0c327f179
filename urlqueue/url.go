package urlqueue

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// URLEntry is one row of the Alexa-top-1M-shaped input file: a rank/index
// and the bare URL (no protocol).
type URLEntry struct {
	Index uint64
	URL   string
}

// LoadURLEntries reads index,url rows (no header) from path, stopping
// after limit rows if limit is non-nil.
func LoadURLEntries(path string, limit *int) ([]URLEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening urls file")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2

	var entries []URLEntry
	for {
		if limit != nil && len(entries) >= *limit {
			break
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading urls file")
		}
		index, err := strconv.ParseUint(record[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing index %q", record[0])
		}
		entries = append(entries, URLEntry{Index: index, URL: record[1]})
	}
	return entries, nil
}
