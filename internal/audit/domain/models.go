package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem    ActorType = "system"
	ActorTypeUser      ActorType = "user"
	ActorTypeScheduler ActorType = "scheduler"
	ActorTypeCLI       ActorType = "cli"
)

// AuditLog is an append-only record of a write to sales data.
type AuditLog struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrgID         snowflake.ID      `json:"organization_id" gorm:"column:org_id;not null;index:ix_audit_logs_org_created,priority:1"`
	ActorType     string            `json:"actor_type" gorm:"type:text;not null"`
	ActorID       *string           `json:"actor_id,omitempty" gorm:"type:text"`
	Action        string            `json:"action" gorm:"type:text;not null;index"`
	TargetType    string            `json:"target_type" gorm:"type:text;not null"`
	TargetID      string            `json:"target_id,omitempty" gorm:"type:text;index"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:json"`
	RequestID     *string           `json:"request_id,omitempty" gorm:"type:text"`
	CorrelationID *string           `json:"correlation_id,omitempty" gorm:"type:text;index"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null;index:ix_audit_logs_org_created,priority:2"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Event is what domain services hand to Record. Actor and request fields
// come from the context.
type Event struct {
	OrgID      snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListFilter struct {
	OrgID         snowflake.ID
	Action        string
	TargetType    string
	TargetID      string
	ActorType     string
	CorrelationID string
	StartAt       *time.Time
	EndAt         *time.Time
	// rows strictly older than (Before, BeforeID) in created_at, id order
	Before   *time.Time
	BeforeID snowflake.ID
	Limit    int
}
