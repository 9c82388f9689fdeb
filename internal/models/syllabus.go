package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SyllabusStatus is the review state of a syllabus.
type SyllabusStatus string

const (
	StatusDraft    SyllabusStatus = "draft"
	StatusPending  SyllabusStatus = "pending"
	StatusApproved SyllabusStatus = "approved"
	StatusRejected SyllabusStatus = "rejected"
)

// ValidStatus reports whether the status is part of the review vocabulary.
func ValidStatus(s SyllabusStatus) bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// TemplateData is the open-ended document of syllabus field values
// (course title, code, instructor, policies, schedule, language, ...).
// Stored as a JSONB column.
type TemplateData map[string]string

// Value implements driver.Valuer for JSONB persistence.
func (t TemplateData) Value() (driver.Value, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for JSONB persistence.
func (t *TemplateData) Scan(src interface{}) error {
	if src == nil {
		*t = TemplateData{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported template_data type %T", src)
	}
	return json.Unmarshal(raw, t)
}

// Get returns the value for key or the provided fallback when empty.
func (t TemplateData) Get(key, fallback string) string {
	if v, ok := t[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Syllabus is a versioned course syllabus authored by a teacher for a subject.
// Version numbers are assigned server-side; clients never compute one.
type Syllabus struct {
	ID           string         `db:"id" json:"id"`
	SubjectID    string         `db:"subject_id" json:"subject_id"`
	TeacherID    string         `db:"teacher_id" json:"teacher_id"`
	TemplateData TemplateData   `db:"template_data" json:"template_data"`
	Status       SyllabusStatus `db:"status" json:"status"`
	Version      int            `db:"version" json:"version"`
	ArchivePath  *string        `db:"archive_path" json:"archive_path,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// SyllabusVersion is a snapshot of template data taken before an edit.
type SyllabusVersion struct {
	ID         string       `db:"id" json:"id"`
	SyllabusID string       `db:"syllabus_id" json:"syllabus_id"`
	Data       TemplateData `db:"data" json:"data"`
	Timestamp  time.Time    `db:"timestamp" json:"timestamp"`
}

// SyllabusFilter captures listing criteria for syllabi.
type SyllabusFilter struct {
	TeacherID    string
	DepartmentID string
	Status       SyllabusStatus
	Page         int
	PageSize     int
}
