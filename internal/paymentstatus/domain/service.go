package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
)

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks

// Source loads a project's snapshot; it returns nil when the project does not exist.
type Source interface {
	Load(ctx context.Context, orgID, projectID snowflake.ID) (*Snapshot, error)
}

// Refresher persists a recomputed cache row.
type Refresher interface {
	Recalculate(ctx context.Context, orgID, id snowflake.ID, source string) (*contractpricedomain.ContractPrice, error)
}

type Service interface {
	Aggregate(ctx context.Context, projectID string, asOf *time.Time) (*Report, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidProject      = errors.New("invalid_project")
	ErrProjectNotFound     = errors.New("project_not_found")
)
