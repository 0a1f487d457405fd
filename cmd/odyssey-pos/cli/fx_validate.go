package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

// ExitGaps is returned by fx validate when at least one currency lacks a rate.
const ExitGaps = 10

// FXValidateOptions defines available flags for the fx validate command.
type FXValidateOptions struct {
	Currencies []string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// FXValidateSummary describes the JSON response for fx validate.
type FXValidateSummary struct {
	OK        bool                       `json:"ok"`
	Gaps      []string                   `json:"gaps"`
	Available []FXValidationAvailability `json:"available"`
}

// FXValidationAvailability reports a usable TRY-based rate.
type FXValidationAvailability struct {
	Currency string `json:"currency"`
	Rate     string `json:"rate"`
}

// ValidateCommand checks that every requested currency can be converted.
func (c *FXOpsCLI) ValidateCommand(ctx context.Context, opts FXValidateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	required := make([]fx.Currency, 0, len(opts.Currencies))
	for _, code := range opts.Currencies {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		cur, err := fx.ParseCurrency(code)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "fx validate: %v\n", err)
			return 1
		}
		required = append(required, cur)
	}
	result, err := fx.Validate(ctx, c.rates, required)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "fx validate: %v\n", err)
		return 1
	}
	summary := buildValidateSummary(result, required)
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "fx validate: encode json: %v\n", err)
			return 1
		}
	} else {
		renderValidateHuman(opts.Stdout, summary)
	}
	if !summary.OK {
		return ExitGaps
	}
	return 0
}

func buildValidateSummary(result fx.Result, required []fx.Currency) FXValidateSummary {
	summary := FXValidateSummary{
		OK:        result.OK(),
		Gaps:      make([]string, 0, len(result.Gaps)),
		Available: make([]FXValidationAvailability, 0),
	}
	missing := make(map[fx.Currency]struct{}, len(result.Gaps))
	for _, gap := range result.Gaps {
		summary.Gaps = append(summary.Gaps, gap.Currency.String())
		missing[gap.Currency] = struct{}{}
	}
	if len(required) == 0 {
		required = fx.Supported()
	}
	seen := make(map[fx.Currency]struct{}, len(required))
	for _, cur := range required {
		if _, dup := seen[cur]; dup {
			continue
		}
		seen[cur] = struct{}{}
		if _, gap := missing[cur]; gap {
			continue
		}
		rate, ok := result.Rates.Rate(cur)
		if !ok {
			continue
		}
		summary.Available = append(summary.Available, FXValidationAvailability{Currency: cur.String(), Rate: rate.String()})
	}
	return summary
}

func renderValidateHuman(out io.Writer, summary FXValidateSummary) {
	if summary.OK {
		_, _ = fmt.Fprintln(out, "FX rates complete")
	} else {
		_, _ = fmt.Fprintf(out, "FX gaps detected: %s\n", strings.Join(summary.Gaps, ", "))
	}
	for _, item := range summary.Available {
		_, _ = fmt.Fprintf(out, " - %s = %s TRY\n", item.Currency, item.Rate)
	}
}
