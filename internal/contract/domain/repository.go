package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contract *Contract) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Contract, error)
	FindActiveByUnit(ctx context.Context, db *gorm.DB, orgID, unitID snowflake.ID) (*Contract, error)
	List(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, status Status) ([]Contract, error)
	Cancel(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, cancelledAt time.Time) (bool, error)
}
