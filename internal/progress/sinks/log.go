package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/nga-crawler/internal/progress"
)

// LogSink writes build milestones to a zap logger. Section completions log
// at debug level; build boundaries at info or warn.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("job_id", evt.JobUUID().String()),
			zap.String("stage", string(evt.Stage)),
		}
		switch evt.Stage {
		case progress.StageSectionDone:
			fields = append(fields,
				zap.Int("done", evt.Done),
				zap.Int("total", evt.Total),
				zap.Duration("elapsed", evt.Elapsed),
			)
			if evt.HasETA {
				fields = append(fields, zap.Duration("eta", evt.ETA))
			}
			s.logger.Debug("index section done", fields...)
		case progress.StageBuildDone:
			fields = append(fields, zap.Int("boards", evt.Boards), zap.Duration("dur", evt.Dur), zap.String("note", evt.Note))
			s.logger.Info("index build done", fields...)
		case progress.StageBuildError:
			fields = append(fields, zap.Duration("dur", evt.Dur), zap.String("note", evt.Note))
			s.logger.Warn("index build failed", fields...)
		default:
			s.logger.Info("index build started", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
