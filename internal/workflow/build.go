package workflow

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/danshapiro/courier/internal/llm"
	"github.com/danshapiro/courier/internal/pipeline"
	"github.com/danshapiro/courier/internal/route"
)

// BuildPipeline turns a pipeline definition into a runnable pipeline whose
// stages call c with sampling.
func BuildPipeline(def Definition, c llm.Completer, sampling llm.Sampling, logger *zap.Logger) (*pipeline.Pipeline, error) {
	if def.Kind != KindPipeline {
		return nil, fmt.Errorf("workflow %q is a %s, not a pipeline", def.Name, def.Kind)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	stages := make([]pipeline.Stage, 0, len(def.Stages))
	for _, s := range def.Stages {
		st := &pipeline.LLMStage{
			StageName:   s.Name,
			Instruction: s.Instruction,
			ReadKeys:    append([]string(nil), s.Reads...),
			Output:      s.OutputKey,
			Completer:   c,
			Sampling:    sampling,
		}
		if s.Schema == SchemaReview {
			st.Normalize = pipeline.NormalizeReview
		}
		stages = append(stages, st)
	}
	return pipeline.New(def.Name, stages, pipeline.WithLogger(logger))
}

// BuildRouter turns a router definition into a dispatcher. Routes naming a
// handler are resolved against handlers, then route.StandardHandlers; a
// missing name is an error.
func BuildRouter(def Definition, c llm.Completer, sampling llm.Sampling, handlers map[string]route.Handler, logger *zap.Logger) (*route.Dispatcher, error) {
	if def.Kind != KindRouter {
		return nil, fmt.Errorf("workflow %q is a %s, not a router", def.Name, def.Kind)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	reg := route.NewRegistry(route.Label(strings.TrimSpace(def.Fallback)))
	for _, r := range def.Routes {
		h, err := routeHandler(def.Name, r, handlers)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(route.Label(strings.TrimSpace(r.Label)), h); err != nil {
			return nil, fmt.Errorf("router %q: %w", def.Name, err)
		}
	}
	classifier := &route.LLMClassifier{
		Completer:   c,
		Sampling:    sampling,
		Instruction: strings.TrimSpace(def.Instruction),
		Labels:      reg.Labels(),
	}
	return route.NewDispatcher(classifier, reg, route.WithLogger(logger))
}

func routeHandler(router string, r RouteDef, handlers map[string]route.Handler) (route.Handler, error) {
	if r.Handler != "" {
		h, ok := handlers[r.Handler]
		if !ok {
			h, ok = route.StandardHandlers()[r.Handler]
		}
		if !ok || h == nil {
			return nil, fmt.Errorf("router %q: route %q: unknown handler %q", router, r.Label, r.Handler)
		}
		return h, nil
	}
	reply := r.Reply
	return route.HandlerFunc(func(_ context.Context, request string) (string, error) {
		return strings.ReplaceAll(reply, "{request}", request), nil
	}), nil
}
