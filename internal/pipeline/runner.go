package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/danshapiro/courier/internal/logging"
)

// Runner executes a pipeline per request, each in its own session, and
// reduces the event stream to the final text.
type Runner struct {
	AppName  string
	Pipeline *Pipeline
	Logger   *zap.Logger

	// OnPartial, when set, receives every partial event.
	OnPartial func(Event)
}

func (r *Runner) Run(ctx context.Context, userID, input string) (string, error) {
	sess := NewSession(r.AppName, userID)
	logger := logging.OrNop(r.Logger).With(
		zap.String("app", sess.AppName),
		zap.String("pipeline", r.Pipeline.Name()),
		zap.String("run_id", sess.RunID),
	)
	logger.Info("pipeline run started", zap.String("user_id", sess.UserID))

	partials := 0
	text, err := Reduce(r.Pipeline.Events(ctx, sess, input), func(ev Event) {
		partials++
		logger.Info("partial event",
			zap.String("event_id", ev.ID),
			zap.String("author", ev.Author),
			zap.Int("chars", len(ev.Text())),
		)
		if r.OnPartial != nil {
			r.OnPartial(ev)
		}
	})
	if err != nil {
		return "", err
	}
	logger.Info("pipeline run finished", zap.Int("partials", partials), zap.Int("chars", len(text)))
	return text, nil
}
