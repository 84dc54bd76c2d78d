package models

import (
	"time"

	"github.com/uptrace/bun"
)

type SystemLog struct {
	bun.BaseModel `bun:"table:system_logs,alias:l"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID     *int64    `bun:"user_id" json:"user_id,omitempty"`
	Action     string    `bun:"action,notnull,type:varchar(100)" json:"action"`
	EntityType string    `bun:"entity_type,type:varchar(50)" json:"entity_type,omitempty"`
	EntityID   *int64    `bun:"entity_id" json:"entity_id,omitempty"`
	Details    string    `bun:"details,type:text" json:"details"`
	IPAddress  string    `bun:"ip_address,type:varchar(45)" json:"ip_address"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
