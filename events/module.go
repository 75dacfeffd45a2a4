package events

import (
	"context"
	"log/slog"

	"github.com/pingidentity/ping-go/orchestrate"
)

// Config configures the events module
type Config struct {
	// Publisher receives the events. The module does nothing without one.
	Publisher Publisher
}

// Module publishes an event for the start, node and success stages of
// every flow. Publish failures are logged and ignored.
var Module = orchestrate.NewModule("events", nil, func(s *orchestrate.Setup[Config]) {
	cfg := s.Config()
	logger := s.Logger()

	publish := func(ctx context.Context, fc *orchestrate.FlowContext, stage string, node orchestrate.Node) {
		if cfg.Publisher == nil {
			return
		}
		event := NewEvent(fc.FlowID, stage, node)
		if err := cfg.Publisher.Publish(ctx, event); err != nil {
			logger.Warn("failed to publish event",
				slog.String("stage", stage),
				slog.String("flowId", fc.FlowID),
				slog.Any("error", err),
			)
		}
	}

	s.Start(func(ctx context.Context, fc *orchestrate.FlowContext, req *orchestrate.Request) (*orchestrate.Request, error) {
		publish(ctx, fc, StageStart, nil)
		return req, nil
	})

	s.Node(func(ctx context.Context, fc *orchestrate.FlowContext, node orchestrate.Node) (orchestrate.Node, error) {
		publish(ctx, fc, StageNode, node)
		return node, nil
	})

	s.Success(func(ctx context.Context, fc *orchestrate.FlowContext, node *orchestrate.SuccessNode) (*orchestrate.SuccessNode, error) {
		publish(ctx, fc, StageSuccess, node)
		return node, nil
	})
})
