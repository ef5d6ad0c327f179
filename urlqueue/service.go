package urlqueue

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/starfys/pcapfeatures/capwork"
)

// Service exposes a WorkQueue[capwork.WorkType, capwork.CaptureWork] over
// HTTP, and appends every successful report to a newline-JSON report file
// the dataset driver later reads.
type Service struct {
	mu         sync.Mutex
	queue      *WorkQueue[capwork.WorkType, capwork.CaptureWork]
	reportFile *os.File
	reportBuf  *bufio.Writer
	typeIndex  map[capwork.WorkType]uint64
}

// NewService builds a Service seeded with work generated from entries: each
// URL produces both a Normal and a Tor CaptureWork, with a randomly
// generated pcap filename.
func NewService(entries []URLEntry, reportPath string) (*Service, error) {
	var items []WorkItem[capwork.WorkType, capwork.CaptureWork]
	for _, entry := range entries {
		for _, wt := range []capwork.WorkType{capwork.Normal, capwork.Tor} {
			filename, err := randomPcapFilename()
			if err != nil {
				return nil, err
			}
			items = append(items, WorkItem[capwork.WorkType, capwork.CaptureWork]{
				Type: wt,
				Work: capwork.CaptureWork{Index: entry.Index, URL: entry.URL, Filename: filename},
			})
		}
	}

	f, err := os.OpenFile(reportPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	return &Service{
		queue:      NewWorkQueue(items...),
		reportFile: f,
		reportBuf:  bufio.NewWriter(f),
		typeIndex:  make(map[capwork.WorkType]uint64),
	}, nil
}

func randomPcapFilename() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf) + ".pcap", nil
}

// Close flushes and closes the report file.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reportBuf.Flush(); err != nil {
		return err
	}
	return s.reportFile.Close()
}

// Register installs the service's routes on a gin engine.
func (s *Service) Register(r *gin.Engine) {
	r.POST("/client/add", s.handleClientAdd)
	r.POST("/client/remove", s.handleClientRemove)
	r.POST("/work/get", s.handleWorkGet)
	r.POST("/work/report", s.handleWorkReport)
}

func (s *Service) handleClientAdd(c *gin.Context) {
	var req capwork.AddClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, capwork.AddClientResponse{Success: false, Error: capwork.ErrorString(err.Error())})
		return
	}

	s.mu.Lock()
	clientID := s.queue.AddClient(req.WorkTypes)
	s.mu.Unlock()

	c.JSON(http.StatusOK, capwork.AddClientResponse{Success: true, ClientID: clientID})
}

func (s *Service) handleClientRemove(c *gin.Context) {
	var req capwork.RemoveClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, capwork.RemoveClientResponse{Success: false, Error: capwork.ErrorString(err.Error())})
		return
	}

	s.mu.Lock()
	s.queue.RemoveClient(req.ClientID)
	s.mu.Unlock()

	c.JSON(http.StatusOK, capwork.RemoveClientResponse{Success: true})
}

func (s *Service) handleWorkGet(c *gin.Context) {
	var req capwork.WorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, capwork.WorkResponse{Success: false, Error: capwork.ErrorString(err.Error())})
		return
	}

	s.mu.Lock()
	workType, work, ok := s.queue.RequestWork(req.ClientID)
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusOK, capwork.WorkResponse{Success: false, Error: capwork.ErrorString("no work available")})
		return
	}

	c.JSON(http.StatusOK, capwork.WorkResponse{Success: true, WorkType: workType, Work: work})
}

func (s *Service) handleWorkReport(c *gin.Context) {
	var req capwork.WorkReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, capwork.WorkReportResponse{Success: false, Error: capwork.ErrorString(err.Error())})
		return
	}

	s.mu.Lock()
	if req.Success {
		req.TypeIndex = s.nextTypeIndexLocked(req.WorkType)
		if err := s.writeReportLocked(req); err != nil {
			s.mu.Unlock()
			log.Error().Err(err).Msg("urlqueue: failed to persist work report")
			c.JSON(http.StatusInternalServerError, capwork.WorkReportResponse{Success: false, Error: capwork.ErrorString(err.Error())})
			return
		}
	} else {
		s.queue.AddWork(req.WorkType, req.Work)
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, capwork.WorkReportResponse{Success: true})
}

// nextTypeIndexLocked returns the 1-origin, per-work-type counter recorded
// in each successful report. Callers must hold s.mu.
func (s *Service) nextTypeIndexLocked(workType capwork.WorkType) uint64 {
	s.typeIndex[workType]++
	return s.typeIndex[workType]
}

func (s *Service) writeReportLocked(req capwork.WorkReportRequest) error {
	if err := json.NewEncoder(s.reportBuf).Encode(req); err != nil {
		return err
	}
	return s.reportBuf.Flush()
}
