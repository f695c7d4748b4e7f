package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/danshapiro/courier/internal/llm"
)

// scriptedOracle answers by the first line of the system instruction.
type scriptedOracle struct {
	replies map[string]string
	err     map[string]error
	calls   []llm.Request
}

func (o *scriptedOracle) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	o.calls = append(o.calls, req)
	head, _, _ := strings.Cut(req.Messages[0].Text(), "\n")
	if err := o.err[head]; err != nil {
		return llm.Response{}, err
	}
	reply, ok := o.replies[head]
	if !ok {
		return llm.Response{}, fmt.Errorf("unscripted instruction %q", head)
	}
	return llm.Response{Message: llm.Assistant(reply)}, nil
}

func reflectionOracle() *scriptedOracle {
	return &scriptedOracle{replies: map[string]string{
		DraftInstruction:                     "The moon is made of cheese.",
		"You are a meticulous fact-checker.": "```json\n{\"reasoning\": \"The moon is rock.\", \"status\": \"INACCURATE\"}\n```",
		"You are an editor.":                 "The moon is made of rock.",
	}}
}

func TestReflection_RunWritesKeysInOrder(t *testing.T) {
	oracle := reflectionOracle()
	p, err := NewReflection(oracle, ReflectionOptions{Sampling: llm.Sampling{Model: "m"}})
	require.NoError(t, err)

	st, err := p.Run(context.Background(), NewSession("courier", "u"), "the moon")
	require.NoError(t, err)
	assert.Equal(t, []string{KeyDraft, KeyReview, KeyFinal}, st.Keys())
	assert.Equal(t, PhaseFinalized, ReflectionPhase(st))

	review, _ := st.Get(KeyReview)
	assert.Equal(t, `{"status":"INACCURATE","reasoning":"The moon is rock."}`, review)

	require.Len(t, oracle.calls, 3)
	for _, c := range oracle.calls {
		assert.Equal(t, "the moon", c.Messages[1].Text())
	}
	assert.Contains(t, oracle.calls[1].Messages[0].Text(), "The moon is made of cheese.")
	assert.Contains(t, oracle.calls[2].Messages[0].Text(), review)
}

func TestReflection_StructureIsStableAcrossRuns(t *testing.T) {
	p, err := NewReflection(reflectionOracle(), ReflectionOptions{Sampling: llm.Sampling{Model: "m"}})
	require.NoError(t, err)

	first, err := p.Run(context.Background(), NewSession("courier", "u"), "topic")
	require.NoError(t, err)
	second, err := p.Run(context.Background(), NewSession("courier", "u"), "topic")
	require.NoError(t, err)

	if diff := cmp.Diff(first.Keys(), second.Keys()); diff != "" {
		t.Fatalf("keys differ between runs (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.Digest(), second.Digest())
}

func TestReflection_EventsEmitPartialsThenOneFinal(t *testing.T) {
	p, err := NewReflection(reflectionOracle(), ReflectionOptions{Sampling: llm.Sampling{Model: "m"}})
	require.NoError(t, err)

	var kinds []EventKind
	var authors []string
	for ev, err := range p.Events(context.Background(), NewSession("courier", "u"), "topic") {
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
		authors = append(authors, ev.Author)
	}
	assert.Equal(t, []EventKind{EventPartial, EventPartial, EventFinal}, kinds)
	assert.Equal(t, []string{"drafter", "reviewer", "reviser"}, authors)

	got, err := Reduce(p.Events(context.Background(), NewSession("courier", "u"), "topic"), nil)
	require.NoError(t, err)
	assert.Equal(t, "The moon is made of rock.", got)
}

func TestReflection_MalformedReviewFailsStage(t *testing.T) {
	oracle := reflectionOracle()
	oracle.replies["You are a meticulous fact-checker."] = `{"status": "MAYBE", "reasoning": "unsure"}`
	p, err := NewReflection(oracle, ReflectionOptions{Sampling: llm.Sampling{Model: "m"}})
	require.NoError(t, err)

	st, err := p.Run(context.Background(), NewSession("courier", "u"), "topic")
	assert.Nil(t, st)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "reviewer", se.Stage)
	assert.Len(t, oracle.calls, 2)
}

func TestPipeline_OracleFailureEndsRun(t *testing.T) {
	oracle := reflectionOracle()
	boom := llm.ErrorFromHTTPStatus("ark", 503, "overloaded", nil)
	oracle.err = map[string]error{DraftInstruction: boom}
	p, err := NewReflection(oracle, ReflectionOptions{Sampling: llm.Sampling{Model: "m"}})
	require.NoError(t, err)

	var events int
	var gotErr error
	for _, err := range p.Events(context.Background(), NewSession("courier", "u"), "topic") {
		if err != nil {
			gotErr = err
			continue
		}
		events++
	}
	assert.Zero(t, events)
	var se *StageError
	require.ErrorAs(t, gotErr, &se)
	assert.Equal(t, "drafter", se.Stage)
	assert.ErrorIs(t, gotErr, boom)
	assert.Len(t, oracle.calls, 1)
}

type fixedStage struct {
	name  string
	reads []string
	key   string
	out   string
	runs  *int
}

func (s fixedStage) Name() string      { return s.name }
func (s fixedStage) Reads() []string   { return s.reads }
func (s fixedStage) OutputKey() string { return s.key }
func (s fixedStage) Run(_ context.Context, in Input) (string, error) {
	if s.runs != nil {
		*s.runs++
	}
	var b strings.Builder
	b.WriteString(s.out)
	for _, e := range in.Reads {
		b.WriteString("+" + e.Value)
	}
	return b.String(), nil
}

func TestPipeline_MissingPredecessorKeyFails(t *testing.T) {
	runs := 0
	p, err := New("p", []Stage{
		fixedStage{name: "first", key: "a", out: "A", runs: &runs},
		fixedStage{name: "second", reads: []string{"b"}, key: "c", out: "C", runs: &runs},
		fixedStage{name: "third", reads: []string{"a"}, key: "b", out: "B", runs: &runs},
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), NewSession("x", "u"), "in")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "second", se.Stage)
	assert.Equal(t, "b", se.Key)
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.Equal(t, 1, runs)
}

func TestPipeline_ArbitraryLength(t *testing.T) {
	p, err := New("p", []Stage{
		fixedStage{name: "one", key: "a", out: "A"},
		fixedStage{name: "two", reads: []string{"a"}, key: "b", out: "B"},
		fixedStage{name: "three", reads: []string{"b"}, key: "c", out: "C"},
		fixedStage{name: "four", reads: []string{"a", "c"}, key: "d", out: "D"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, p.OutputKeys())

	got, err := Reduce(p.Events(context.Background(), NewSession("x", "u"), "in"), nil)
	require.NoError(t, err)
	assert.Equal(t, "D+A+C+B+A", got)

	single, err := New("single", []Stage{fixedStage{name: "only", key: "k", out: "K"}})
	require.NoError(t, err)
	got, err = Reduce(single.Events(context.Background(), NewSession("x", "u"), "in"), nil)
	require.NoError(t, err)
	assert.Equal(t, "K", got)
}

func TestPipeline_BreakStopsBeforeNextStage(t *testing.T) {
	runs := 0
	p, err := New("p", []Stage{
		fixedStage{name: "one", key: "a", out: "A", runs: &runs},
		fixedStage{name: "two", key: "b", out: "B", runs: &runs},
	})
	require.NoError(t, err)
	for range p.Events(context.Background(), NewSession("x", "u"), "in") {
		break
	}
	assert.Equal(t, 1, runs)
}

func TestPipeline_CanceledContext(t *testing.T) {
	runs := 0
	p, err := New("p", []Stage{fixedStage{name: "one", key: "a", out: "A", runs: &runs}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx, NewSession("x", "u"), "in")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, runs)
}

func TestNew_RejectsInvalidStageLists(t *testing.T) {
	cases := map[string][]Stage{
		"empty":     nil,
		"nil stage": {nil},
		"nameless":  {fixedStage{key: "a"}},
		"no key":    {fixedStage{name: "a"}},
		"dup key":   {fixedStage{name: "a", key: "k"}, fixedStage{name: "b", key: "k"}},
		"dup name":  {fixedStage{name: "a", key: "k"}, fixedStage{name: "a", key: "j"}},
	}
	for name, stages := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New("p", stages)
			assert.Error(t, err)
		})
	}
}

func TestRunner_LogsPartialsAndReturnsFinal(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p, err := NewReflection(reflectionOracle(), ReflectionOptions{Sampling: llm.Sampling{Model: "m"}})
	require.NoError(t, err)

	var partials []string
	r := &Runner{AppName: "courier", Pipeline: p, Logger: zap.New(core), OnPartial: func(ev Event) {
		partials = append(partials, ev.Author)
	}}
	got, err := r.Run(context.Background(), "user_123", "the moon")
	require.NoError(t, err)
	assert.Equal(t, "The moon is made of rock.", got)
	assert.Equal(t, []string{"drafter", "reviewer"}, partials)
	assert.Equal(t, 2, logs.FilterMessage("partial event").Len())
	assert.Equal(t, 1, logs.FilterMessage("pipeline run finished").Len())
}

func TestRenderInstruction(t *testing.T) {
	got := RenderInstruction("Check {draft}.", []Entry{{Key: "draft", Value: "X"}, {Key: "review", Value: "Y"}})
	assert.Equal(t, "Check X.\n\nreview:\nY", got)
	assert.Equal(t, "plain", RenderInstruction("plain", nil))

	got = RenderInstruction("draft:\n{draft}\n\nreview:\n{review}", []Entry{
		{Key: "draft", Value: "use {review} here"},
		{Key: "review", Value: `{"status":"ACCURATE","reasoning":"ok"}`},
	})
	assert.Equal(t, "draft:\nuse {review} here\n\nreview:\n{\"status\":\"ACCURATE\",\"reasoning\":\"ok\"}", got)
}

func TestParseReview(t *testing.T) {
	r, err := ParseReview(`Here you go: {"status": "ACCURATE", "reasoning": "fine"}`)
	require.NoError(t, err)
	assert.Equal(t, Review{Status: StatusAccurate, Reasoning: "fine"}, r)

	for _, bad := range []string{"", "looks good", `{"status": "ACCURATE"}`, `{"status": 1, "reasoning": "x"}`} {
		_, err := ParseReview(bad)
		assert.Error(t, err, bad)
	}
}
