package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/danshapiro/courier/internal/logging"
)

// Formatter renders a computed total for the user. Currency and locale are
// the caller's concern.
type Formatter func(total decimal.Decimal) string

func DefaultFormatter(total decimal.Decimal) string {
	return fmt.Sprintf("Total spent: %s", total.String())
}

// NoItemsMessage is the fixed reply for requests with nothing to account for.
func NoItemsMessage(request string) string {
	return fmt.Sprintf("No expense items found in request: '%s'. Please confirm.", request)
}

// Tally is the outcome of summing a set of line items.
type Tally struct {
	Total   decimal.Decimal
	Counted int
	Skipped int
}

// Sum adds each item's Amount in order. Items without derivable price
// information are skipped and counted in Skipped.
func Sum(items []LineItem) Tally {
	t := Tally{Total: decimal.Zero}
	for _, it := range items {
		amount, ok := it.Amount()
		if !ok {
			t.Skipped++
			continue
		}
		t.Total = t.Total.Add(amount)
		t.Counted++
	}
	return t
}

type Accountant struct {
	extractor Extractor
	format    Formatter
	logger    *zap.Logger
}

type Option func(*Accountant)

func WithFormatter(f Formatter) Option {
	return func(a *Accountant) {
		if f != nil {
			a.format = f
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Accountant) { a.logger = logging.OrNop(l) }
}

func NewAccountant(ex Extractor, opts ...Option) *Accountant {
	a := &Accountant{extractor: ex, format: DefaultFormatter, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ComputeTotal extracts line items from request and returns the formatted
// total. Malformed or empty extractions produce NoItemsMessage; oracle
// failures propagate.
func (a *Accountant) ComputeTotal(ctx context.Context, request string) (string, error) {
	res, err := a.extractor.Extract(ctx, request)
	if err != nil {
		var ee *ExtractionError
		if !errors.As(err, &ee) {
			return "", err
		}
		a.logger.Info("extraction rejected", zap.Error(err))
		return NoItemsMessage(request), nil
	}
	if !res.Usable() {
		a.logger.Info("no line items extracted", zap.Bool("ok", res.OK), zap.Int("items", len(res.Items)))
		return NoItemsMessage(request), nil
	}

	t := Sum(res.Items)
	a.logger.Debug("line items summed",
		zap.String("total", t.Total.String()),
		zap.Int("counted", t.Counted),
		zap.Int("skipped", t.Skipped),
	)
	return a.format(t.Total), nil
}
