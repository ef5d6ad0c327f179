// Package capwork defines the wire types shared between the capture
// work-queue service and the dataset driver that consumes its output.
package capwork

import "fmt"

// WorkType identifies a class of capture work.
type WorkType string

const (
	Normal WorkType = "normal"
	Tor    WorkType = "tor"
)

func (t WorkType) String() string {
	return string(t)
}

// CaptureWork is one unit of capture work: a URL to visit and the pcap
// filename its capture will be written under.
type CaptureWork struct {
	Index    uint64 `json:"index"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Less reports whether w has strictly higher priority than other. Lower
// index means higher priority.
func (w CaptureWork) Less(other CaptureWork) bool {
	return w.Index < other.Index
}

// WorkRequest is the body of POST /work/get.
type WorkRequest struct {
	ClientID uint64 `json:"client_id"`
}

// WorkResponse is the body returned by POST /work/get.
type WorkResponse struct {
	Success  bool        `json:"success"`
	WorkType WorkType    `json:"work_type"`
	Work     CaptureWork `json:"work"`
	Error    *string     `json:"error,omitempty"`
}

// WorkReportRequest is the body of POST /work/report, and is also the
// on-disk record format of report.json consumed by the dataset driver.
type WorkReportRequest struct {
	Success    bool        `json:"success"`
	WorkType   WorkType    `json:"work_type"`
	Work       CaptureWork `json:"work"`
	TypeIndex  uint64      `json:"type_index"`
	StartTime  uint64      `json:"start_time"`
	FinishTime uint64      `json:"finish_time"`
}

// WorkReportResponse is the body returned by POST /work/report.
type WorkReportResponse struct {
	Success bool    `json:"success"`
	Error   *string `json:"error,omitempty"`
}

// AddClientRequest is the body of POST /client/add.
type AddClientRequest struct {
	WorkTypes []WorkType `json:"work_types"`
}

// AddClientResponse is the body returned by POST /client/add.
type AddClientResponse struct {
	Success  bool    `json:"success"`
	ClientID uint64  `json:"client_id"`
	Error    *string `json:"error,omitempty"`
}

// RemoveClientRequest is the body of POST /client/remove.
type RemoveClientRequest struct {
	ClientID uint64 `json:"client_id"`
}

// RemoveClientResponse is the body returned by POST /client/remove.
type RemoveClientResponse struct {
	Success bool    `json:"success"`
	Error   *string `json:"error,omitempty"`
}

func errPtr(format string, args ...interface{}) *string {
	s := fmt.Sprintf(format, args...)
	return &s
}

// ErrorString builds the *string error field the wire types use, nil when
// msg is empty.
func ErrorString(msg string) *string {
	if msg == "" {
		return nil
	}
	return errPtr("%s", msg)
}
