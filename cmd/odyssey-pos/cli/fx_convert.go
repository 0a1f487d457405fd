package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

// FXConvertOptions defines available flags for the fx convert command.
type FXConvertOptions struct {
	Amount     string
	From       string
	To         string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// FXConvertSummary describes the JSON response for fx convert.
type FXConvertSummary struct {
	Amount    string `json:"amount"`
	From      string `json:"from"`
	To        string `json:"to"`
	Converted string `json:"converted"`
	Fallback  string `json:"fallback"`
}

// ConvertCommand normalises an amount between two currencies using live rates.
func (c *FXOpsCLI) ConvertCommand(ctx context.Context, opts FXConvertOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(opts.Amount))
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "fx convert: invalid amount %q\n", opts.Amount)
		return 1
	}
	from, err := fx.ParseCurrency(opts.From)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "fx convert: --from: %v\n", err)
		return 1
	}
	to, err := fx.ParseCurrency(opts.To)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "fx convert: --to: %v\n", err)
		return 1
	}
	rates, err := c.rates.Rates(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "fx convert: load rates: %v\n", err)
		return 1
	}
	converted, err := c.converter.Convert(amount, from, to, rates)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "fx convert: %v\n", err)
		if errors.Is(err, fx.ErrMissingExchangeRate) {
			return ExitGaps
		}
		return 1
	}
	summary := FXConvertSummary{
		Amount:    amount.String(),
		From:      from.String(),
		To:        to.String(),
		Converted: converted.StringFixed(2),
		Fallback:  string(c.converter.Policy().Fallback),
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "fx convert: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "%s %s = %s %s\n", summary.Amount, summary.From, summary.Converted, summary.To)
	return 0
}
