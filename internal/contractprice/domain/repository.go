package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebook/internal/allocation"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, cp *ContractPrice) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*ContractPrice, error)
	FindByUnit(ctx context.Context, db *gorm.DB, orgID, unitID snowflake.ID) (*ContractPrice, error)
	// LockByID reads the row under a row lock where the dialect has one; db must be a transaction.
	LockByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*ContractPrice, error)
	ListByProject(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) ([]ContractPrice, error)
	ListStale(ctx context.Context, db *gorm.DB, filter StaleFilter) ([]StaleRef, error)

	SaveAllocation(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, amounts allocation.Allocation, calculatedAt time.Time) error
	LinkContract(ctx context.Context, db *gorm.DB, orgID, unitID snowflake.ID, contractID *snowflake.ID, updatedAt time.Time) error
	UpdatePrice(ctx context.Context, db *gorm.DB, orgID, unitID snowflake.ID, price int64, updatedAt time.Time) error

	InvalidateByUnit(ctx context.Context, db *gorm.DB, orgID, unitID snowflake.ID, updatedAt time.Time) (int64, error)
	InvalidateBySchedule(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, typeSort int, updatedAt time.Time) (int64, error)
	InvalidateByProject(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, updatedAt time.Time) (int64, error)
}
