package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	CreateStep(ctx context.Context, projectID string, req StepRequest) (*InstallmentPaymentOrder, error)
	ListSchedule(ctx context.Context, projectID string, typeSort *int) ([]InstallmentPaymentOrder, error)
	ReplaceSchedule(ctx context.Context, projectID string, typeSort int, steps []StepRequest) ([]InstallmentPaymentOrder, error)
	DeleteStep(ctx context.Context, id string) error
}

type StepRequest struct {
	TypeSort    int             `json:"type_sort"`
	Code        string          `json:"code"`
	PayTime     int             `json:"pay_time"`
	Name        string          `json:"name"`
	Ratio       decimal.Decimal `json:"ratio"`
	ExtraAmount int64           `json:"extra_amount"`
	DueDate     *time.Time      `json:"due_date"`
}

var (
	ErrInvalidOrganization   = errors.New("invalid_organization")
	ErrInvalidProject        = errors.New("invalid_project")
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidTypeSort       = errors.New("invalid_type_sort")
	ErrInvalidCode           = errors.New("invalid_code")
	ErrDuplicateCode         = errors.New("duplicate_code")
	ErrInvalidRatio          = errors.New("invalid_ratio")
	ErrInvalidExtraAmount    = errors.New("invalid_extra_amount")
	ErrInvalidScheduleRatios = errors.New("invalid_schedule_ratios")
	ErrNotFound              = errors.New("not_found")
)
