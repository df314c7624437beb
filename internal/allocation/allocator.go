// Package allocation splits a unit's nominal price across its installment schedule.
//
// Amounts are integer currency units. Ratios are exact decimals; every step is
// rounded half-up and the final step takes whatever is left so the result always
// reconciles to price plus extras.
package allocation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCode = "DEFAULT"

var one = decimal.NewFromInt(1)

// Step is one installment of a schedule.
type Step struct {
	Code        string
	Ratio       decimal.Decimal
	ExtraAmount int64
	DueDate     *time.Time
}

// Line is one allocated amount keyed by step code.
type Line struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
}

// Allocation is ordered by schedule position.
type Allocation []Line

type Options struct {
	Tolerance   decimal.Decimal
	DefaultCode string
}

func DefaultOptions() Options {
	return Options{
		Tolerance:   decimal.New(1, -6),
		DefaultCode: DefaultCode,
	}
}

func (o Options) defaultCode() string {
	code := strings.TrimSpace(o.DefaultCode)
	if code == "" {
		return DefaultCode
	}
	return code
}

// Allocate computes the per-step amounts for price under schedule.
//
// An out-of-tolerance ratio sum still yields a complete allocation alongside an
// *InvalidScheduleError; callers pick whether to keep it.
func Allocate(price int64, schedule []Step, opts Options) (Allocation, error) {
	if price < 0 {
		return nil, ErrNegativePrice
	}
	if len(schedule) == 0 {
		return Fallback(price, opts), nil
	}
	if err := checkSteps(schedule); err != nil {
		return nil, err
	}

	nominal := decimal.NewFromInt(price)
	out := make(Allocation, 0, len(schedule))
	var allocated int64
	last := len(schedule) - 1
	for i, step := range schedule {
		var base int64
		if i == last {
			base = price - allocated
		} else {
			base = nominal.Mul(step.Ratio).Round(0).IntPart()
			allocated += base
		}
		out = append(out, Line{Code: step.Code, Amount: base + step.ExtraAmount})
	}

	if len(out) == 0 {
		return Fallback(price, opts), nil
	}

	if err := CheckRatios(schedule, opts); err != nil {
		return out, err
	}
	return out, nil
}

// Fallback puts the full price on the synthetic default step.
func Fallback(price int64, opts Options) Allocation {
	return Allocation{{Code: opts.defaultCode(), Amount: price}}
}

// RatioSum returns the exact sum of the schedule's ratios.
func RatioSum(schedule []Step) decimal.Decimal {
	sum := decimal.Zero
	for _, step := range schedule {
		sum = sum.Add(step.Ratio)
	}
	return sum
}

// CheckRatios verifies that a non-empty schedule sums to 1 within tolerance.
func CheckRatios(schedule []Step, opts Options) error {
	if len(schedule) == 0 {
		return nil
	}
	sum := RatioSum(schedule)
	tolerance := opts.Tolerance.Abs()
	if sum.Sub(one).Abs().GreaterThan(tolerance) {
		return &InvalidScheduleError{RatioSum: sum, Tolerance: tolerance}
	}
	return nil
}

func checkSteps(schedule []Step) error {
	seen := make(map[string]struct{}, len(schedule))
	for _, step := range schedule {
		code := strings.TrimSpace(step.Code)
		if code == "" {
			return ErrInvalidStepCode
		}
		if _, ok := seen[code]; ok {
			return ErrDuplicateStepCode
		}
		seen[code] = struct{}{}
		if step.Ratio.IsNegative() {
			return ErrNegativeRatio
		}
	}
	return nil
}

// Total sums every line.
func (a Allocation) Total() int64 {
	var total int64
	for _, line := range a {
		total += line.Amount
	}
	return total
}

// Amount returns the amount for code, or false when the code is absent.
func (a Allocation) Amount(code string) (int64, bool) {
	for _, line := range a {
		if line.Code == code {
			return line.Amount, true
		}
	}
	return 0, false
}

func (a Allocation) Codes() []string {
	codes := make([]string, 0, len(a))
	for _, line := range a {
		codes = append(codes, line.Code)
	}
	return codes
}

// IsFallback reports whether a holds only the default step.
func (a Allocation) IsFallback(opts Options) bool {
	return len(a) == 1 && a[0].Code == opts.defaultCode()
}

// Equal compares code order and amounts.
func (a Allocation) Equal(other Allocation) bool {
	if len(a) != len(other) {
		return false
	}
	for i := range a {
		if a[i] != other[i] {
			return false
		}
	}
	return true
}

// DueBy keeps the lines whose step is due on or before asOf. Steps without a
// due date, and codes not in the schedule such as the default step, are always due.
func (a Allocation) DueBy(asOf time.Time, schedule []Step) Allocation {
	cutoff := endOfDay(asOf)
	dueDates := make(map[string]*time.Time, len(schedule))
	for _, step := range schedule {
		dueDates[step.Code] = step.DueDate
	}

	out := make(Allocation, 0, len(a))
	for _, line := range a {
		due := dueDates[line.Code]
		if due != nil && due.After(cutoff) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Reconcile validates a stored allocation against the schedule it was computed
// from: codes must match in order and the total must equal price plus extras.
func Reconcile(a Allocation, price int64, schedule []Step, opts Options) error {
	if len(schedule) == 0 {
		if !a.IsFallback(opts) || a[0].Amount != price {
			return ErrAllocationMismatch
		}
		return nil
	}
	if len(a) != len(schedule) {
		return ErrAllocationMismatch
	}
	want := price
	for i, step := range schedule {
		if a[i].Code != step.Code {
			return ErrAllocationMismatch
		}
		want += step.ExtraAmount
	}
	if a.Total() != want {
		return ErrAllocationMismatch
	}
	return nil
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
