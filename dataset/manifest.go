package dataset

import (
	"bufio"
	"encoding/json"
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/starfys/pcapfeatures/capwork"
)

// LoadManifest reads newline-JSON capwork.WorkReportRequest records from
// r, sorts them ascending by (work_type, work.index), and drops entries
// with success == false. A manifest that fails to parse is fatal to the
// batch, unlike the per-line tolerance connlog and the report writer
// itself use.
func LoadManifest(r io.Reader) ([]capwork.WorkReportRequest, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var entries []capwork.WorkReportRequest
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e capwork.WorkReportRequest
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, errors.Wrap(err, "parsing report manifest entry")
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading report manifest")
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].WorkType != entries[j].WorkType {
			return entries[i].WorkType < entries[j].WorkType
		}
		return entries[i].Work.Index < entries[j].Work.Index
	})

	successful := entries[:0]
	for _, e := range entries {
		if e.Success {
			successful = append(successful, e)
		}
	}
	return successful, nil
}
