// Package api holds HTTP plumbing shared by the asset fetcher.
package api

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/httputil"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// LoggingTransport wraps an http.RoundTripper and appends request and
// response summaries to a log file. Bodies are never dumped; asset traffic
// is binary.
type LoggingTransport struct {
	Transport http.RoundTripper
	logFile   *os.File
	writer    *bufio.Writer
	mu        sync.Mutex
}

// NewLoggingTransport creates a LoggingTransport appending to logFilePath.
func NewLoggingTransport(transport http.RoundTripper, logFilePath string) (*LoggingTransport, error) {
	// #nosec G304
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open request log file %s: %w", logFilePath, err)
	}

	if transport == nil {
		transport = http.DefaultTransport
	}

	return &LoggingTransport{
		Transport: transport,
		logFile:   f,
		writer:    bufio.NewWriter(f),
	}, nil
}

// RoundTrip executes one HTTP transaction and logs it.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	if dump, err := httputil.DumpRequestOut(req, false); err == nil {
		t.writeLog(fmt.Sprintf("--- Request (%s) ---\n%s\n", start.Format(time.RFC3339), dump))
	} else {
		log.WithError(err).Debug("Failed to dump request for logging")
	}

	resp, err := t.Transport.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		t.writeLog(fmt.Sprintf("--- Error after %s: %v ---\n\n", elapsed, err))
		return nil, err
	}

	t.writeLog(fmt.Sprintf("--- Response %s in %s ---\n\n", resp.Status, elapsed))
	return resp, nil
}

func (t *LoggingTransport) writeLog(entry string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.writer.WriteString(entry); err != nil {
		log.WithError(err).Debug("Failed to write request log entry")
		return
	}
	if err := t.writer.Flush(); err != nil {
		log.WithError(err).Debug("Failed to flush request log")
	}
}

// Close flushes and closes the underlying log file.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.writer.Flush(); err != nil {
		log.WithError(err).Debug("Failed to flush request log on close")
	}
	return t.logFile.Close()
}
