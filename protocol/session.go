package protocol

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// outputSink hands out the storage for each new receiver session.
type outputSink interface {
	Open(sessionNumber int) (io.WriteCloser, string, error)
}

type fileSink struct {
	outputPath string
	scratchDir string
	prefix     string
	now        func() time.Time
}

func newFileSink(config ReceiverConfig, prefix string) *fileSink {
	return &fileSink{
		outputPath: config.OutputPath,
		scratchDir: config.ScratchDir,
		prefix:     prefix,
		now:        time.Now,
	}
}

func (sink *fileSink) sessionPath(sessionNumber int) string {
	if sink.scratchDir == "" {
		return sink.outputPath
	}
	name := fmt.Sprintf("session_%s_%d_%s.bin", sink.prefix, sessionNumber, sink.now().Format("20060102_150405"))
	return filepath.Join(sink.scratchDir, name)
}

// Open truncates the target; os.File writes are unbuffered so every accepted
// segment reaches the file before it is acknowledged.
func (sink *fileSink) Open(sessionNumber int) (io.WriteCloser, string, error) {
	path := sink.sessionPath(sessionNumber)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, path, fmt.Errorf("creating directory for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, path, fmt.Errorf("opening session output: %w", err)
	}
	return file, path, nil
}

type session struct {
	number        int
	clientAddress net.Addr
	expectedBase  uint32
	reorderBuffer map[uint32][]byte
	lastActivity  time.Time
	output        io.WriteCloser
	path          string
}

func (s *session) hasDelivered() bool {
	return s.expectedBase > 0
}

func (s *session) deliver(data []byte) error {
	if _, err := s.output.Write(data); err != nil {
		return fmt.Errorf("writing segment %d to %s: %w", s.expectedBase, s.path, err)
	}
	s.expectedBase++
	return nil
}

// isNewSession reports whether a DATA segment from addr starts a new
// transfer: either a different sender, or the bound sender starting over at
// sequence 0 after staying silent for longer than the idle threshold.
func isNewSession(current *session, addr net.Addr, sequenceNumber uint32, now time.Time) bool {
	if current == nil || !addressesEqual(current.clientAddress, addr) {
		return true
	}
	return sequenceNumber == 0 &&
		current.expectedBase != 0 &&
		now.Sub(current.lastActivity) > sessionIdleThreshold
}

type sessionManager struct {
	sink    outputSink
	current *session
	counter int
	logger  *logrus.Entry
}

func newSessionManager(sink outputSink, logger *logrus.Entry) *sessionManager {
	return &sessionManager{sink: sink, logger: logger}
}

// bind returns the session that owns a DATA segment, replacing the current
// one (and everything it buffered) when a new transfer is detected.
func (manager *sessionManager) bind(addr net.Addr, sequenceNumber uint32, now time.Time) (*session, error) {
	if isNewSession(manager.current, addr, sequenceNumber, now) {
		if err := manager.open(addr, now); err != nil {
			return nil, err
		}
	}
	manager.current.lastActivity = now
	return manager.current, nil
}

func (manager *sessionManager) open(addr net.Addr, now time.Time) error {
	if err := manager.close(); err != nil {
		manager.logger.WithError(err).Warn("closing previous session")
	}
	manager.counter++
	output, path, err := manager.sink.Open(manager.counter)
	if err != nil {
		return err
	}
	manager.current = &session{
		number:        manager.counter,
		clientAddress: addr,
		reorderBuffer: make(map[uint32][]byte),
		lastActivity:  now,
		output:        output,
		path:          path,
	}
	manager.logger.WithFields(logrus.Fields{
		"client":  addr.String(),
		"path":    path,
		"session": manager.counter,
	}).Info("new transfer")
	return nil
}

func (manager *sessionManager) close() error {
	if manager.current == nil {
		return nil
	}
	err := manager.current.output.Close()
	manager.current = nil
	return err
}
