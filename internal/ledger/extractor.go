package ledger

import (
	"context"

	"github.com/danshapiro/courier/internal/llm"
)

type Extractor interface {
	Extract(ctx context.Context, request string) (ExtractionResult, error)
}

type ExtractorFunc func(ctx context.Context, request string) (ExtractionResult, error)

func (f ExtractorFunc) Extract(ctx context.Context, request string) (ExtractionResult, error) {
	return f(ctx, request)
}

const ExtractionInstruction = `You are a bookkeeping expert. Analyze the user's input and convert every purchase into a JSON array whose objects have the keys unit_price (price per unit), nums (quantity) and total_price (total price); use null for anything the input does not state.
Output only a JSON object with the keys err_handle and details (the array above).
If purchases were extracted, set err_handle=false; otherwise set err_handle=true and details=[].`

// LLMExtractor asks the oracle for line items. Oracle failures are returned
// as-is; a reply that fails validation comes back as *ExtractionError.
type LLMExtractor struct {
	Completer   llm.Completer
	Sampling    llm.Sampling
	Instruction string
}

func (e *LLMExtractor) Extract(ctx context.Context, request string) (ExtractionResult, error) {
	instruction := e.Instruction
	if instruction == "" {
		instruction = ExtractionInstruction
	}
	text, err := llm.CompleteText(ctx, e.Completer, e.Sampling.Request(
		llm.System(instruction),
		llm.User(request),
	))
	if err != nil {
		return ExtractionResult{}, err
	}
	return ParseExtraction(text)
}
