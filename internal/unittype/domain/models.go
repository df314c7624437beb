package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// UnitType groups units sharing one installment schedule, linked through Sort.
type UnitType struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID     snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`
	ProjectID snowflake.ID `json:"project_id" gorm:"not null;uniqueIndex:ux_unit_types_project_sort,priority:1"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Sort      int          `json:"sort" gorm:"not null;uniqueIndex:ux_unit_types_project_sort,priority:2"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (UnitType) TableName() string { return "unit_types" }
