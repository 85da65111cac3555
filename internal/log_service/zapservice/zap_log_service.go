// Package zapservice backs log_service.LogService with go.uber.org/zap for
// structured, leveled JSON output.
package zapservice

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mmux-project/elasticmem/internal/log_service"
)

type ZapLogService struct {
	nodeID string
	logger *zap.Logger
}

// NewZapLogService builds a production JSON-encoded zap logger writing to
// the given sink path ("" defaults to stderr).
func NewZapLogService(nodeID string, outputPath string) (*ZapLogService, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if outputPath != "" {
		cfg.OutputPaths = []string{outputPath}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &ZapLogService{nodeID: nodeID, logger: logger}, nil
}

func (z *ZapLogService) fields(event log_service.LogEvent) []zap.Field {
	nodeID := event.NodeID
	if nodeID == "" {
		nodeID = z.nodeID
	}

	fields := make([]zap.Field, 0, len(event.Metadata)+2)
	fields = append(fields, zap.String("node_id", nodeID))
	if !event.Timestamp.IsZero() {
		fields = append(fields, zap.Time("event_time", event.Timestamp))
	}
	for k, v := range event.Metadata {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

func (z *ZapLogService) Debug(event log_service.LogEvent) {
	z.logger.Debug(event.Message, z.fields(event)...)
}

func (z *ZapLogService) Info(event log_service.LogEvent) {
	z.logger.Info(event.Message, z.fields(event)...)
}

func (z *ZapLogService) Warn(event log_service.LogEvent) {
	z.logger.Warn(event.Message, z.fields(event)...)
}

func (z *ZapLogService) Error(event log_service.LogEvent) {
	z.logger.Error(event.Message, z.fields(event)...)
}

// Sync flushes buffered log entries; callers should defer it at startup.
func (z *ZapLogService) Sync() error {
	return z.logger.Sync()
}

var _ log_service.LogService = (*ZapLogService)(nil)
