package models

import "time"

// Department groups subjects and users under a head.
type Department struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	HeadID    *string   `db:"head_id" json:"head_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentFilter captures listing criteria for departments.
type DepartmentFilter struct {
	Search   string
	Page     int
	PageSize int
}
