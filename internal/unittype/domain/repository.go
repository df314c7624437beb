package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, unitType *UnitType) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*UnitType, error)
	FindBySort(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, sort int) (*UnitType, error)
	List(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) ([]UnitType, error)
	UpdateName(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, name string, updatedAt time.Time) error
}
