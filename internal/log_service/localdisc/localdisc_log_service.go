// Package localdisc backs log_service.LogService with a plain append-only
// file per node, for deployments where the zap JSON backend is overkill and
// a greppable one-line-per-event log is preferred.
package localdisc

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmux-project/elasticmem/internal/log_service"
)

type LocalDiscLogService struct {
	nodeID   string
	minLevel int

	mu   sync.Mutex
	file *os.File
}

// NewLocalDiscLogService opens (creating if needed) dir/<nodeID>.log in
// append mode. Events below minLogLevel are dropped; an empty level means
// log everything.
func NewLocalDiscLogService(dir, nodeID, minLogLevel string) (*LocalDiscLogService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(dir, nodeID+".log")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	minLevel := log_service.DebugLevelValue
	if lvl := strings.ToUpper(strings.TrimSpace(minLogLevel)); lvl != "" {
		minLevel = log_service.GetLevelValue(lvl)
	}

	return &LocalDiscLogService{nodeID: nodeID, minLevel: minLevel, file: file}, nil
}

// formatEvent renders one line: timestamp, node, level, message, then
// metadata as key=value pairs in sorted key order so lines are stable
// across runs.
func (ls *LocalDiscLogService) formatEvent(level string, event log_service.LogEvent) string {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	nodeID := event.NodeID
	if nodeID == "" {
		nodeID = ls.nodeID
	}

	var b strings.Builder
	b.WriteString(ts.Format(time.RFC3339))
	b.WriteString(" [")
	b.WriteString(nodeID)
	b.WriteString("] ")
	b.WriteString(level)
	b.WriteString(": ")
	b.WriteString(event.Message)

	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, event.Metadata[k])
	}
	b.WriteByte('\n')
	return b.String()
}

func (ls *LocalDiscLogService) write(level string, event log_service.LogEvent) {
	if log_service.GetLevelValue(level) < ls.minLevel {
		return
	}
	line := ls.formatEvent(level, event)

	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.file.WriteString(line)
}

func (ls *LocalDiscLogService) Debug(event log_service.LogEvent) {
	ls.write(log_service.DebugLevel, event)
}

func (ls *LocalDiscLogService) Info(event log_service.LogEvent) {
	ls.write(log_service.InfoLevel, event)
}

func (ls *LocalDiscLogService) Warn(event log_service.LogEvent) {
	ls.write(log_service.WarnLevel, event)
}

func (ls *LocalDiscLogService) Error(event log_service.LogEvent) {
	ls.write(log_service.ErrorLevel, event)
}

// Close closes the underlying log file.
func (ls *LocalDiscLogService) Close() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.file.Close()
}

var _ log_service.LogService = (*LocalDiscLogService)(nil)
