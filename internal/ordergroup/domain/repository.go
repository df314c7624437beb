package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, group *OrderGroup) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*OrderGroup, error)
	FindDefault(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) (*OrderGroup, error)
	List(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) ([]OrderGroup, error)
	SetDefault(ctx context.Context, db *gorm.DB, orgID, projectID, id snowflake.ID, updatedAt time.Time) error
}
