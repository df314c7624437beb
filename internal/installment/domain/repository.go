package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, step *InstallmentPaymentOrder) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*InstallmentPaymentOrder, error)
	ListSchedule(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, typeSort int) ([]InstallmentPaymentOrder, error)
	ListProject(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) ([]InstallmentPaymentOrder, error)
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
	DeleteSchedule(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, typeSort int) error
}
