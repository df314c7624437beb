package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, unit *HouseUnit) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*HouseUnit, error)
	List(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) ([]HouseUnit, error)
	UpdatePrice(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, price int64, updatedAt time.Time) error
}
