// Package captured implements a local capture-control daemon: it listens
// on a Unix domain socket for start/stop commands and manages the
// lifecycle of an external packet-capture subprocess (tcpdump by
// default). It does not capture packets itself; it only manages the
// subprocess's lifecycle, one capture at a time, over a small binary
// wire protocol.
package captured

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Command codes read as the first byte of every client request.
const (
	CommandStart byte = 0x00
	CommandStop  byte = 0x01
)

// Status codes written back after each command.
const (
	statusOK  byte = 0x00
	statusErr byte = 0x01
)

// maxFilenameLength bounds the length-prefixed filename a start command
// may carry, guarding against a runaway allocation from a malformed
// client.
const maxFilenameLength = 1024 * 1024

var (
	ErrAlreadyRunning = errors.New("captured: capture already running")
	ErrNotRunning     = errors.New("captured: no capture running")
)

// Options configures a Daemon, following the functional-options shape
// used throughout this repo.
type Options struct {
	SocketPath string
	Command    string
	Args       []string
}

// NewOptions returns the defaults: a socket at /tmp/tcpdump.socket and a
// "tcpdump -K" invocation.
func NewOptions() Options {
	return Options{
		SocketPath: "/tmp/tcpdump.socket",
		Command:    "tcpdump",
		Args:       []string{"-K"},
	}
}

type Option func(*Options)

func WithSocketPath(path string) Option {
	return func(o *Options) { o.SocketPath = path }
}

func WithCommand(command string, args ...string) Option {
	return func(o *Options) { o.Command, o.Args = command, args }
}

// Daemon manages a single capture subprocess's lifecycle behind a Unix
// domain socket. Only one capture may run at a time.
type Daemon struct {
	opts Options

	mu   sync.Mutex
	proc *os.Process
}

// NewDaemon builds a Daemon, applying opts over NewOptions' defaults.
func NewDaemon(opts ...Option) *Daemon {
	o := NewOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Daemon{opts: o}
}

// ListenAndServe binds the control socket (removing any stale socket file
// left by a previous run), then serves connections until Accept fails
// (e.g. the listener is closed).
func (d *Daemon) ListenAndServe() error {
	if err := os.RemoveAll(d.opts.SocketPath); err != nil {
		return errors.Wrap(err, "removing stale socket file")
	}

	listener, err := net.Listen("unix", d.opts.SocketPath)
	if err != nil {
		return errors.Wrap(err, "binding control socket")
	}
	defer listener.Close()

	if err := os.Chmod(d.opts.SocketPath, 0o662); err != nil {
		return errors.Wrap(err, "setting socket permissions")
	}

	log.Info().Str("socket", d.opts.SocketPath).Msg("captured: listening")
	for {
		conn, err := listener.Accept()
		if err != nil {
			return errors.Wrap(err, "accepting connection")
		}
		d.handleConn(conn)
	}
}

// handleConn serves one client connection: a stream of 1-byte commands
// (start commands carry a length-prefixed filename), each answered with
// a 1-byte status.
func (d *Daemon) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	for {
		command, err := r.ReadByte()
		if err != nil {
			if err != io.EOF {
				log.Warn().Err(err).Msg("captured: connection read error")
			}
			return
		}

		var filename string
		if command == CommandStart {
			filename, err = readFilename(r)
			if err != nil {
				log.Warn().Err(err).Msg("captured: malformed start command")
				_ = writeStatus(conn, statusErr)
				return
			}
		}

		cmdErr := d.handleCommand(command, filename)
		status := statusOK
		if cmdErr != nil {
			status = statusErr
			log.Warn().Err(cmdErr).Msg("captured: command failed")
		}
		if err := writeStatus(conn, status); err != nil {
			log.Warn().Err(err).Msg("captured: failed to write status")
			return
		}
	}
}

func readFilename(r *bufio.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length > maxFilenameLength {
		return "", errors.New("captured: filename length exceeds limit")
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeStatus(conn net.Conn, status byte) error {
	_, err := conn.Write([]byte{status})
	return err
}

func (d *Daemon) handleCommand(command byte, filename string) error {
	switch command {
	case CommandStart:
		return d.Start(filename)
	case CommandStop:
		return d.Stop()
	default:
		log.Warn().Uint8("command", command).Msg("captured: ignoring unknown command")
		return nil
	}
}

// Start spawns the capture subprocess writing to filename. Returns
// ErrAlreadyRunning if a capture is already in progress.
func (d *Daemon) Start(filename string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc != nil {
		return ErrAlreadyRunning
	}

	args := append(append([]string{}, d.opts.Args...), "-w", filename)
	cmd := exec.Command(d.opts.Command, args...)
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "spawning capture subprocess")
	}
	d.proc = cmd.Process
	return nil
}

// Stop signals the running capture subprocess to terminate. Returns
// ErrNotRunning if no capture is in progress.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil {
		return ErrNotRunning
	}
	err := d.proc.Signal(syscall.SIGTERM)
	d.proc = nil
	if err != nil {
		return errors.Wrap(err, "signaling capture subprocess")
	}
	return nil
}
