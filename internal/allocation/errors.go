package allocation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativePrice      = errors.New("negative_price")
	ErrNegativeRatio      = errors.New("negative_ratio")
	ErrInvalidStepCode    = errors.New("invalid_step_code")
	ErrDuplicateStepCode  = errors.New("duplicate_step_code")
	ErrInvalidSchedule    = errors.New("invalid_schedule")
	ErrAllocationMismatch = errors.New("allocation_mismatch")
)

// InvalidScheduleError reports a schedule whose ratios do not sum to 1 within tolerance.
type InvalidScheduleError struct {
	RatioSum  decimal.Decimal
	Tolerance decimal.Decimal
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid_schedule: ratio sum %s outside 1±%s", e.RatioSum.String(), e.Tolerance.String())
}

func (e *InvalidScheduleError) Unwrap() error {
	return ErrInvalidSchedule
}

// AsInvalidSchedule extracts an InvalidScheduleError from err.
func AsInvalidSchedule(err error) (*InvalidScheduleError, bool) {
	var target *InvalidScheduleError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
