package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// OrderGroup is a sales phase. One group per project may collect units that
// have no contract yet.
type OrderGroup struct {
	ID                       snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID                    snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`
	ProjectID                snowflake.ID `json:"project_id" gorm:"not null;index"`
	OrderNumber              int          `json:"order_number" gorm:"not null"`
	Name                     string       `json:"name" gorm:"type:text;not null"`
	IsDefaultForUncontracted bool         `json:"is_default_for_uncontracted" gorm:"not null;default:false"`
	CreatedAt                time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt                time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrderGroup) TableName() string { return "order_groups" }
