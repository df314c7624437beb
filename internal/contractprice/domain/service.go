package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	InvalidationUnitPrice = "unit_price"
	InvalidationContract  = "contract"
	InvalidationSchedule  = "schedule"
	InvalidationProject   = "project"
)

// Invalidator is called by writers of upstream data inside their own transaction.
type Invalidator interface {
	InvalidateUnit(ctx context.Context, db *gorm.DB, orgID, unitID snowflake.ID, reason string) error
	InvalidateSchedule(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, typeSort int) error
}

// Recalculator refreshes one cache row under a row lock.
type Recalculator interface {
	Recalculate(ctx context.Context, orgID, id snowflake.ID, source string) (*ContractPrice, error)
}

type Service interface {
	Invalidator
	Recalculator

	GetByUnit(ctx context.Context, unitID string) (*ContractPrice, error)
	RecalculateUnit(ctx context.Context, unitID string) (*ContractPrice, error)
	RecalculateProject(ctx context.Context, projectID string) (*RecalcResult, error)
	RecalculateStale(ctx context.Context, filter StaleFilter) (*RecalcResult, error)
}

const (
	SourceRequest   = "request"
	SourceReport    = "report"
	SourceProject   = "project"
	SourceScheduler = "scheduler"
)

type RecalcResult struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failed_ids,omitempty"`
	Errors    []error  `json:"-"`
}

func (r *RecalcResult) Err() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.Errors...)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidProject      = errors.New("invalid_project")
	ErrUnitNotFound        = errors.New("unit_not_found")
	ErrNotFound            = errors.New("contract_price_not_found")
)
