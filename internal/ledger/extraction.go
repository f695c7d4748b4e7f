// Package ledger turns free-text expense descriptions into a spending total.
// An oracle extracts line items as JSON; the package validates that payload
// against a schema and sums it with decimal arithmetic.
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/danshapiro/courier/internal/llm"
)

// LineItem is one extracted purchase. Any field may be absent.
type LineItem struct {
	UnitPrice  decimal.NullDecimal `json:"unit_price"`
	Quantity   decimal.NullDecimal `json:"nums"`
	TotalPrice decimal.NullDecimal `json:"total_price"`
}

// Amount returns the item's contribution to the total: TotalPrice when
// present, else UnitPrice*Quantity. ok is false when neither is derivable.
func (it LineItem) Amount() (amount decimal.Decimal, ok bool) {
	if it.TotalPrice.Valid {
		return it.TotalPrice.Decimal, true
	}
	if it.UnitPrice.Valid && it.Quantity.Valid {
		return it.UnitPrice.Decimal.Mul(it.Quantity.Decimal), true
	}
	return decimal.Zero, false
}

type ExtractionResult struct {
	OK    bool
	Items []LineItem
}

// Usable reports whether the result may be summed.
func (r ExtractionResult) Usable() bool {
	return r.OK && len(r.Items) > 0
}

// ExtractionError means the oracle's payload was absent or did not match the
// extraction schema. It is recovered locally by the accounting handler.
type ExtractionError struct {
	Payload string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("malformed extraction payload: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

const extractionSchemaJSON = `{
  "type": "object",
  "required": ["details"],
  "properties": {
    "err_handle": {"type": "boolean"},
    "details": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "unit_price":  {"type": ["number", "null"]},
          "nums":        {"type": ["number", "null"]},
          "total_price": {"type": ["number", "null"]}
        }
      }
    }
  }
}`

var extractionSchema = jsonschema.MustCompileString("extraction.json", extractionSchemaJSON)

type extractionDoc struct {
	ErrHandle bool       `json:"err_handle"`
	Details   []LineItem `json:"details"`
}

// ParseExtraction validates oracle output and maps it to an ExtractionResult.
// err_handle=true means the oracle found nothing to account for.
func ParseExtraction(text string) (ExtractionResult, error) {
	payload := llm.ExtractJSON(text)
	if strings.TrimSpace(payload) == "" {
		return ExtractionResult{}, &ExtractionError{Payload: text, Err: fmt.Errorf("empty payload")}
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return ExtractionResult{}, &ExtractionError{Payload: text, Err: err}
	}
	if err := extractionSchema.Validate(generic); err != nil {
		return ExtractionResult{}, &ExtractionError{Payload: text, Err: err}
	}

	var doc extractionDoc
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return ExtractionResult{}, &ExtractionError{Payload: text, Err: err}
	}
	return ExtractionResult{OK: !doc.ErrHandle, Items: doc.Details}, nil
}
