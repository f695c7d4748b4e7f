package pipeline

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"go.uber.org/zap"

	"github.com/danshapiro/courier/internal/logging"
)

// StageError ends a run: the stage's oracle call failed, its output was
// rejected, or a key it reads was never written.
type StageError struct {
	Stage string
	Key   string
	Err   error
}

func (e *StageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("stage %q: %v (key %q)", e.Stage, e.Err, e.Key)
	}
	return fmt.Sprintf("stage %q: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type Pipeline struct {
	name   string
	stages []Stage
	logger *zap.Logger
}

type Option func(*Pipeline)

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logging.OrNop(l) }
}

// New validates the stage list. Stages must be named and write distinct,
// non-empty keys.
func New(name string, stages []Stage, opts ...Option) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("pipeline %q: no stages", name)
	}
	seenName := map[string]bool{}
	seenKey := map[string]bool{}
	for i, st := range stages {
		if st == nil {
			return nil, fmt.Errorf("pipeline %q: stage %d is nil", name, i)
		}
		n := strings.TrimSpace(st.Name())
		if n == "" {
			return nil, fmt.Errorf("pipeline %q: stage %d has no name", name, i)
		}
		if seenName[n] {
			return nil, fmt.Errorf("pipeline %q: duplicate stage name %q", name, n)
		}
		seenName[n] = true
		key := strings.TrimSpace(st.OutputKey())
		if key == "" {
			return nil, fmt.Errorf("pipeline %q: stage %q has no output key", name, n)
		}
		if seenKey[key] {
			return nil, fmt.Errorf("pipeline %q: output key %q written by more than one stage", name, key)
		}
		seenKey[key] = true
	}
	p := &Pipeline{
		name:   name,
		stages: append([]Stage(nil), stages...),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) Name() string { return p.name }

func (p *Pipeline) Stages() []Stage { return append([]Stage(nil), p.stages...) }

// OutputKeys lists the keys a successful run writes, in order.
func (p *Pipeline) OutputKeys() []string {
	out := make([]string, 0, len(p.stages))
	for _, st := range p.stages {
		out = append(out, st.OutputKey())
	}
	return out
}

// Events runs the stages in order against a fresh State. Each non-terminal
// stage yields a partial event; the terminal stage yields the single final
// event. A failure yields a *StageError and ends the sequence. Breaking out
// of the loop stops the run before the next stage starts.
func (p *Pipeline) Events(ctx context.Context, sess Session, input string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		_ = p.execute(ctx, sess, input, NewState(), yield)
	}
}

// Run executes every stage and returns the populated State. On failure no
// state is returned.
func (p *Pipeline) Run(ctx context.Context, sess Session, input string) (*State, error) {
	st := NewState()
	err := p.execute(ctx, sess, input, st, func(Event, error) bool { return true })
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (p *Pipeline) execute(ctx context.Context, sess Session, input string, st *State, yield func(Event, error) bool) error {
	log := p.logger.With(
		zap.String("pipeline", p.name),
		zap.String("run_id", sess.RunID),
		zap.String("user_id", sess.UserID),
	)
	fail := func(err error) error {
		log.Warn("pipeline run failed", zap.Error(err))
		yield(Event{}, err)
		return err
	}

	last := len(p.stages) - 1
	for i, stage := range p.stages {
		name := stage.Name()
		if err := ctx.Err(); err != nil {
			return fail(&StageError{Stage: name, Err: err})
		}

		in := Input{Session: sess, Text: input}
		for _, key := range stage.Reads() {
			v, ok := st.Get(key)
			if !ok {
				return fail(&StageError{Stage: name, Key: key, Err: ErrMissingKey})
			}
			in.Reads = append(in.Reads, Entry{Key: key, Value: v})
		}

		out, err := stage.Run(ctx, in)
		if err != nil {
			return fail(&StageError{Stage: name, Err: err})
		}
		if err := st.Put(stage.OutputKey(), out); err != nil {
			return fail(&StageError{Stage: name, Key: stage.OutputKey(), Err: err})
		}
		log.Debug("stage completed",
			zap.String("stage", name),
			zap.String("key", stage.OutputKey()),
			zap.Int("chars", len(out)),
		)

		ev := Partial(name, out)
		if i == last {
			ev = Final(name, out)
		}
		if !yield(ev, nil) {
			return nil
		}
	}
	log.Debug("pipeline run finished", zap.Strings("keys", st.Keys()), zap.String("digest", st.Digest()))
	return nil
}
