package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danshapiro/courier/internal/llm"
)

func TestParseExtraction_ValidPayloads(t *testing.T) {
	res, err := ParseExtraction("```json\n{\"err_handle\": false, \"details\": [{\"unit_price\": 2, \"nums\": 2, \"total_price\": null}, {\"unit_price\": 1, \"nums\": 5}]}\n```")
	require.NoError(t, err)
	assert.True(t, res.OK)
	require.Len(t, res.Items, 2)
	assert.True(t, res.Items[0].UnitPrice.Valid)
	assert.False(t, res.Items[0].TotalPrice.Valid)
	assert.False(t, res.Items[1].TotalPrice.Valid)
	assert.Equal(t, "9", Sum(res.Items).Total.String())

	res, err = ParseExtraction(`{"err_handle": true, "details": []}`)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.False(t, res.Usable())
}

func TestParseExtraction_RejectsMalformedPayloads(t *testing.T) {
	for name, payload := range map[string]string{
		"empty":           "",
		"prose":           "I could not find any purchases.",
		"truncated":       `{"err_handle": false, "details": [{"unit_price": 2`,
		"missing details": `{"err_handle": false}`,
		"string price":    `{"details": [{"unit_price": "two", "nums": 2}]}`,
		"details object":  `{"details": {"unit_price": 2}}`,
		"bool err_handle": `{"err_handle": "no", "details": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseExtraction(payload)
			var ee *ExtractionError
			require.ErrorAs(t, err, &ee)
		})
	}
}

type replyCompleter struct {
	reply string
	err   error
	req   llm.Request
}

func (r *replyCompleter) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	r.req = req
	if r.err != nil {
		return llm.Response{}, r.err
	}
	return llm.Response{Message: llm.Assistant(r.reply)}, nil
}

func TestLLMExtractor_EndToEndThroughAccountant(t *testing.T) {
	oracle := &replyCompleter{reply: `{"err_handle":false,"details":[{"unit_price":null,"nums":2,"total_price":4},{"unit_price":null,"nums":1,"total_price":1}]}`}
	a := NewAccountant(&LLMExtractor{Completer: oracle, Sampling: llm.Sampling{Model: "doubao"}})

	got, err := a.ComputeTotal(context.Background(), "I bought 2 pencils for 4 and an eraser for 1")
	require.NoError(t, err)
	assert.Equal(t, "Total spent: 5", got)

	require.Len(t, oracle.req.Messages, 2)
	assert.Equal(t, ExtractionInstruction, oracle.req.Messages[0].Text())
	assert.Equal(t, "I bought 2 pencils for 4 and an eraser for 1", oracle.req.Messages[1].Text())
}

func TestLLMExtractor_MalformedReplyRoutesToErrorTemplate(t *testing.T) {
	oracle := &replyCompleter{reply: "sorry, nothing to extract"}
	got, err := NewAccountant(&LLMExtractor{Completer: oracle, Sampling: llm.Sampling{Model: "m"}}).
		ComputeTotal(context.Background(), "xxxxyyyy")
	require.NoError(t, err)
	assert.Equal(t, NoItemsMessage("xxxxyyyy"), got)
}

func TestLLMExtractor_TransportFailurePropagates(t *testing.T) {
	oracle := &replyCompleter{err: llm.WrapContextError("ark", context.DeadlineExceeded)}
	_, err := NewAccountant(&LLMExtractor{Completer: oracle, Sampling: llm.Sampling{Model: "m"}}).
		ComputeTotal(context.Background(), "x")
	var te *llm.TransportError
	require.ErrorAs(t, err, &te)
}
