package dirtree_test

import "github.com/mmux-project/elasticmem/internal/log_service"

// noopLogService discards every event; tests assert on Recorder command
// logs and returned errors, not on log output.
type noopLogService struct{}

func (noopLogService) Debug(log_service.LogEvent) {}
func (noopLogService) Info(log_service.LogEvent)  {}
func (noopLogService) Warn(log_service.LogEvent)  {}
func (noopLogService) Error(log_service.LogEvent) {}

var _ log_service.LogService = noopLogService{}
