// Package audit writes an append-only JSON trail of who changed which
// appointment, schedule or review.
package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/medbook/booking-api/internal/model"
)

type LogOptions struct {
	Metadata map[string]interface{}
}

type Service struct {
	logger *zap.Logger
}

func NewService(logger *zap.Logger) *Service {
	return &Service{logger: logger.Named("audit")}
}

// NewLogger builds a JSON zap logger writing to path ("stdout", "stderr" or
// a file).
func NewLogger(path string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	return cfg.Build()
}

// Log records one action. Audit writes never fail the caller.
func (s *Service) Log(ctx context.Context, actor model.Principal, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID.String()),
		zap.String("actor_id", actor.SubjectID.String()),
		zap.String("actor_role", string(actor.Role)),
	}
	if requestID, ok := ctx.Value(model.RequestIDKey).(string); ok {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if opts != nil && len(opts.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", opts.Metadata))
	}
	s.logger.Info("audit", fields...)
}

// Sync flushes buffered entries.
func (s *Service) Sync() error {
	return s.logger.Sync()
}
