package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Guest represents an anonymous visitor identified by a device handle
type Guest struct {
	ID           int            `db:"id" json:"id"`
	DeviceHandle string         `db:"device_handle" json:"device_handle"`
	DisplayName  string         `db:"display_name" json:"display_name"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	LastSeenAt   sql.NullTime   `db:"last_seen_at" json:"last_seen_at,omitempty"`
	IsBlocked    bool           `db:"is_blocked" json:"is_blocked"`
	BlockReason  sql.NullString `db:"block_reason" json:"block_reason,omitempty"`
}

// ArenaRecord is the durable row behind one arena
type ArenaRecord struct {
	ID        string        `db:"id" json:"id"`
	Name      string        `db:"name" json:"name"`
	Width     float64       `db:"width" json:"width"`
	Height    float64       `db:"height" json:"height"`
	Status    string        `db:"status" json:"status"`
	CreatedBy sql.NullInt64 `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	ClosedAt  sql.NullTime  `db:"closed_at" json:"closed_at,omitempty"`
}

// ArenaEvent is one durable lifecycle or roster event
type ArenaEvent struct {
	ID        int             `db:"id" json:"id"`
	ArenaID   string          `db:"arena_id" json:"arena_id"`
	GuestID   sql.NullInt64   `db:"guest_id" json:"guest_id,omitempty"`
	EventType string          `db:"event_type" json:"event_type"`
	Payload   json.RawMessage `db:"payload" json:"payload,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// PlacementQueue represents a guest waiting for a quick-join assignment
type PlacementQueue struct {
	ID         int            `db:"id" json:"id"`
	GuestID    int            `db:"guest_id" json:"guest_id"`
	QueueToken string         `db:"queue_token" json:"queue_token"`
	Status     string         `db:"status" json:"status"`
	ArenaID    sql.NullString `db:"arena_id" json:"arena_id,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	AssignedAt sql.NullTime   `db:"assigned_at" json:"assigned_at,omitempty"`
	ExpiresAt  time.Time      `db:"expires_at" json:"expires_at"`
}

// RuntimeConfig is one operator-tunable setting
type RuntimeConfig struct {
	Key         string    `db:"key" json:"key"`
	Value       string    `db:"value" json:"value"`
	ValueType   string    `db:"value_type" json:"value_type"`
	Description string    `db:"description" json:"description,omitempty"`
	UpdatedBy   string    `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AdminAccount is a dashboard operator account
type AdminAccount struct {
	Username    string         `db:"username" json:"username"`
	DisplayName string         `db:"display_name" json:"display_name"`
	TokenHash   string         `db:"token_hash" json:"-"`
	Roles       pq.StringArray `db:"roles" json:"roles"`
	AllowedIPs  pq.StringArray `db:"allowed_ips" json:"allowed_ips,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// AdminAudit records one admin dashboard action
type AdminAudit struct {
	ID            int             `db:"id" json:"id"`
	AdminUsername string          `db:"admin_username" json:"admin_username"`
	IP            string          `db:"ip" json:"ip"`
	Route         string          `db:"route" json:"route"`
	Action        string          `db:"action" json:"action"`
	Details       json.RawMessage `db:"details" json:"details,omitempty"`
	Success       bool            `db:"success" json:"success"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
