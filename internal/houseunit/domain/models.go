package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// HouseUnit is a sellable unit addressed by building (dong) and unit number (ho).
type HouseUnit struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID      snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`
	ProjectID  snowflake.ID `json:"project_id" gorm:"not null;uniqueIndex:ux_house_units_address,priority:1"`
	UnitTypeID snowflake.ID `json:"unit_type_id" gorm:"not null;index"`
	Dong       string       `json:"dong" gorm:"type:varchar(32);not null;uniqueIndex:ux_house_units_address,priority:2"`
	Ho         string       `json:"ho" gorm:"type:varchar(32);not null;uniqueIndex:ux_house_units_address,priority:3"`
	Price      int64        `json:"price" gorm:"not null"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (HouseUnit) TableName() string { return "house_units" }

func (u HouseUnit) Label() string {
	if u.Dong == "" {
		return u.Ho
	}
	return u.Dong + "-" + u.Ho
}
