package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

// MultiSink publishes to every sink in order and stops at the first failure.
// The system-of-record sink goes first so a fast-read store never leads it.
type MultiSink struct {
	sinks  []contracts.ResultSink
	logger *logger.Logger
}

// NewMultiSink creates a fan-out sink
func NewMultiSink(log *logger.Logger, sinks ...contracts.ResultSink) *MultiSink {
	return &MultiSink{
		sinks:  sinks,
		logger: log,
	}
}

// Name joins the wrapped sink names
func (m *MultiSink) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

// Publish fans the run out to every sink
func (m *MultiSink) Publish(ctx context.Context, out *contracts.RunOutput) error {
	for _, s := range m.sinks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Publish(ctx, out); err != nil {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
		m.logger.WithFields(map[string]interface{}{
			"run_id": out.RunID,
			"sink":   s.Name(),
		}).Debug("Sink published")
	}
	return nil
}
