// Package sequence mints human-readable identifiers from per-period counters.
package sequence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/procurement/backend/internal/domain/shared"
)

// Kind is the entity kind a counter belongs to
type Kind string

const (
	KindOrder          Kind = "ORDER"
	KindPaymentRequest Kind = "PAYMENT_REQUEST"
	KindFundingRequest Kind = "FUNDING_REQUEST"
)

var prefixes = map[Kind]string{
	KindOrder:          "CMD",
	KindPaymentRequest: "PAY",
	KindFundingRequest: "FUND",
}

// IsValid returns true if the kind is known
func (k Kind) IsValid() bool {
	_, ok := prefixes[k]
	return ok
}

// Prefix returns the identifier prefix of the kind
func (k Kind) Prefix() string {
	return prefixes[k]
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// Period is a calendar year-month. Counters restart at 1 for every period.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses a "YYYY-MM" string
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Period{}, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("invalid period %q, expected YYYY-MM", s))
	}
	return PeriodOf(t), nil
}

// String returns the period as "YYYY-MM"
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Validate checks the period is a real month
func (p Period) Validate() error {
	if p.Year < 1 || p.Year > 9999 || p.Month < time.January || p.Month > time.December {
		return shared.NewDomainError("INVALID_INPUT", "Period must carry a valid year and month")
	}
	return nil
}

// FormatIdentifier renders {PREFIX}/{YYYY}/{MM}/{NNNN}
func FormatIdentifier(kind Kind, period Period, value int64) string {
	return fmt.Sprintf("%s/%04d/%02d/%04d", kind.Prefix(), period.Year, int(period.Month), value)
}

// ParseIdentifier splits an identifier back into its parts
func ParseIdentifier(identifier string) (Kind, Period, int64, error) {
	parts := strings.Split(identifier, "/")
	if len(parts) != 4 {
		return "", Period{}, 0, shared.NewDomainError("INVALID_INPUT", "malformed identifier: "+identifier)
	}
	var kind Kind
	for k, prefix := range prefixes {
		if prefix == parts[0] {
			kind = k
		}
	}
	if kind == "" {
		return "", Period{}, 0, shared.NewDomainError("INVALID_INPUT", "unknown identifier prefix: "+parts[0])
	}
	period, err := ParsePeriod(parts[1] + "-" + parts[2])
	if err != nil {
		return "", Period{}, 0, err
	}
	value, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil || value < 1 {
		return "", Period{}, 0, shared.NewDomainError("INVALID_INPUT", "malformed identifier counter: "+parts[3])
	}
	return kind, period, value, nil
}

// Generator hands out counter values. Implementations must use a single atomic
// increment-and-fetch against shared storage; values start at 1 per
// (kind, period) and are never reused.
type Generator interface {
	// Next returns the next counter value for kind in period
	Next(ctx context.Context, kind Kind, period Period) (int64, error)
	// Current returns the last issued value, or 0 if the period is unused
	Current(ctx context.Context, kind Kind, period Period) (int64, error)
}

// Issuer formats counter values into identifiers
type Issuer struct {
	generator Generator
	now       func() time.Time
}

// NewIssuer creates an identifier issuer on top of a generator
func NewIssuer(generator Generator) *Issuer {
	return &Issuer{generator: generator, now: time.Now}
}

// WithClock overrides the clock used to pick the current period
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue returns the next identifier of kind for the current period
func (i *Issuer) Issue(ctx context.Context, kind Kind) (string, error) {
	return i.IssueFor(ctx, kind, PeriodOf(i.now()))
}

// IssueFor returns the next identifier of kind for an explicit period
func (i *Issuer) IssueFor(ctx context.Context, kind Kind, period Period) (string, error) {
	if !kind.IsValid() {
		return "", shared.NewDomainError("INVALID_INPUT", "unknown sequence kind: "+kind.String())
	}
	if err := period.Validate(); err != nil {
		return "", err
	}
	value, err := i.generator.Next(ctx, kind, period)
	if err != nil {
		return "", err
	}
	return FormatIdentifier(kind, period, value), nil
}
