package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/danshapiro/courier/internal/llm"
)

const (
	KeyDraft  = "draft"
	KeyReview = "review"
	KeyFinal  = "final"
)

// ReflectionName is the default name of the reflection pipeline.
const ReflectionName = "reflection"

// Reflection stage names, also the authors of their events.
const (
	StageDrafter  = "drafter"
	StageReviewer = "reviewer"
	StageReviser  = "reviser"
)

const (
	DraftInstruction = "Write a short, informative paragraph about the user's topic."

	ReviewInstruction = `You are a meticulous fact-checker.
1. Read the text below, taken from the state key 'draft'.
2. Carefully verify the factual accuracy of every claim.
3. Your final output must be a JSON object with exactly two keys:
- "status": either "ACCURATE" or "INACCURATE".
- "reasoning": a clear explanation of the status, citing specific problems if any were found.

draft:
{draft}`

	ReviseInstruction = `You are an editor.
1. Read the first draft.
2. Read the reviewer's feedback.
3. Combine both and rewrite the draft into a final version.

draft:
{draft}

review:
{review}`
)

// Phase is where a reflection run stands, derived from the keys written.
type Phase string

const (
	PhaseEmpty     Phase = "empty"
	PhaseDrafted   Phase = "drafted"
	PhaseReviewed  Phase = "reviewed"
	PhaseFinalized Phase = "finalized"
)

func ReflectionPhase(st *State) Phase {
	switch {
	case st.Has(KeyFinal):
		return PhaseFinalized
	case st.Has(KeyReview):
		return PhaseReviewed
	case st.Has(KeyDraft):
		return PhaseDrafted
	default:
		return PhaseEmpty
	}
}

type ReviewStatus string

const (
	StatusAccurate   ReviewStatus = "ACCURATE"
	StatusInaccurate ReviewStatus = "INACCURATE"
)

// Review is the reviewer's structured judgment of a draft.
type Review struct {
	Status    ReviewStatus `json:"status"`
	Reasoning string       `json:"reasoning"`
}

var reviewSchema = jsonschema.MustCompileString("review.json", `{
  "type": "object",
  "required": ["status", "reasoning"],
  "properties": {
    "status": {"enum": ["ACCURATE", "INACCURATE"]},
    "reasoning": {"type": "string"}
  }
}`)

// ParseReview extracts and validates a review judgment from oracle text.
// Surrounding prose and code fences are tolerated.
func ParseReview(text string) (Review, error) {
	payload := llm.ExtractJSON(text)
	if payload == "" {
		return Review{}, fmt.Errorf("review: no JSON object in output")
	}
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Review{}, fmt.Errorf("review: %w", err)
	}
	if err := reviewSchema.Validate(doc); err != nil {
		return Review{}, fmt.Errorf("review: %w", err)
	}
	var r Review
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return Review{}, fmt.Errorf("review: %w", err)
	}
	return r, nil
}

// NormalizeReview validates text and re-serializes it as canonical JSON.
func NormalizeReview(text string) (string, error) {
	r, err := ParseReview(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

type ReflectionOptions struct {
	Name     string
	Sampling llm.Sampling
	Logger   *zap.Logger

	DraftInstruction  string
	ReviewInstruction string
	ReviseInstruction string
}

// NewReflection builds the write, review, revise pipeline: draft reads
// nothing, review reads draft, and the final revision reads both.
func NewReflection(c llm.Completer, opts ReflectionOptions) (*Pipeline, error) {
	if c == nil {
		return nil, fmt.Errorf("reflection pipeline: completer is nil")
	}
	name := opts.Name
	if name == "" {
		name = ReflectionName
	}
	stages := []Stage{
		&LLMStage{
			StageName:   StageDrafter,
			Instruction: orDefault(opts.DraftInstruction, DraftInstruction),
			Output:      KeyDraft,
			Completer:   c,
			Sampling:    opts.Sampling,
		},
		&LLMStage{
			StageName:   StageReviewer,
			Instruction: orDefault(opts.ReviewInstruction, ReviewInstruction),
			ReadKeys:    []string{KeyDraft},
			Output:      KeyReview,
			Completer:   c,
			Sampling:    opts.Sampling,
			Normalize:   NormalizeReview,
		},
		&LLMStage{
			StageName:   StageReviser,
			Instruction: orDefault(opts.ReviseInstruction, ReviseInstruction),
			ReadKeys:    []string{KeyDraft, KeyReview},
			Output:      KeyFinal,
			Completer:   c,
			Sampling:    opts.Sampling,
		},
	}
	return New(name, stages, WithLogger(opts.Logger))
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
