package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unitir-dev/syllabus-api/internal/models"
)

// SyllabusRepository handles persistence for syllabi and their version snapshots.
type SyllabusRepository struct {
	db *sqlx.DB
}

// NewSyllabusRepository creates a new repository instance.
func NewSyllabusRepository(db *sqlx.DB) *SyllabusRepository {
	return &SyllabusRepository{db: db}
}

const syllabusColumns = "id, subject_id, teacher_id, template_data, status, version, archive_path, created_at, updated_at"

// List returns syllabi matching filters with a total count. The department
// scope joins through subjects; it is how head review queues are narrowed.
func (r *SyllabusRepository) List(ctx context.Context, filter models.SyllabusFilter) ([]models.Syllabus, int, error) {
	base := "FROM syllabi sy WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("sy.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("sy.status = $%d", len(args)+1))
		args = append(args, string(filter.Status))
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("sy.subject_id IN (SELECT id FROM subjects WHERE department_id = $%d)", len(args)+1))
		args = append(args, filter.DepartmentID)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	cols := strings.ReplaceAll(syllabusColumns, ", ", ", sy.")
	query := fmt.Sprintf("SELECT sy.%s %s ORDER BY sy.created_at DESC LIMIT %d OFFSET %d", cols, base, size, offset)
	var syllabi []models.Syllabus
	if err := r.db.SelectContext(ctx, &syllabi, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list syllabi: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count syllabi: %w", err)
	}

	return syllabi, total, nil
}

// FindByID returns a syllabus by id.
func (r *SyllabusRepository) FindByID(ctx context.Context, id string) (*models.Syllabus, error) {
	query := fmt.Sprintf("SELECT %s FROM syllabi WHERE id = $1", syllabusColumns)
	var syllabus models.Syllabus
	if err := r.db.GetContext(ctx, &syllabus, query, id); err != nil {
		return nil, err
	}
	return &syllabus, nil
}

// LatestVersion returns the highest version for a subject/teacher pair,
// zero when none exists.
func (r *SyllabusRepository) LatestVersion(ctx context.Context, subjectID, teacherID string) (int, error) {
	var version int
	err := r.db.GetContext(ctx, &version,
		`SELECT version FROM syllabi WHERE subject_id = $1 AND teacher_id = $2 ORDER BY version DESC LIMIT 1`,
		subjectID, teacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("latest syllabus version: %w", err)
	}
	return version, nil
}

// Create persists a new syllabus.
func (r *SyllabusRepository) Create(ctx context.Context, syllabus *models.Syllabus) error {
	if syllabus.ID == "" {
		syllabus.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if syllabus.CreatedAt.IsZero() {
		syllabus.CreatedAt = now
	}
	syllabus.UpdatedAt = now

	const query = `INSERT INTO syllabi (id, subject_id, teacher_id, template_data, status, version, archive_path, created_at, updated_at)
		VALUES (:id, :subject_id, :teacher_id, :template_data, :status, :version, :archive_path, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, syllabus); err != nil {
		return fmt.Errorf("create syllabus: %w", err)
	}
	return nil
}

// Update modifies a syllabus.
func (r *SyllabusRepository) Update(ctx context.Context, syllabus *models.Syllabus) error {
	syllabus.UpdatedAt = time.Now().UTC()
	const query = `UPDATE syllabi SET subject_id = :subject_id, teacher_id = :teacher_id, template_data = :template_data,
		status = :status, archive_path = :archive_path, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, syllabus); err != nil {
		return fmt.Errorf("update syllabus: %w", err)
	}
	return nil
}

// Delete removes a syllabus and its version snapshots.
func (r *SyllabusRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM syllabus_versions WHERE syllabus_id = $1`, id); err != nil {
		return fmt.Errorf("delete syllabus versions: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM syllabi WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete syllabus: %w", err)
	}
	return nil
}

// CreateVersion stores a template snapshot.
func (r *SyllabusRepository) CreateVersion(ctx context.Context, version *models.SyllabusVersion) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.Timestamp.IsZero() {
		version.Timestamp = time.Now().UTC()
	}

	const query = `INSERT INTO syllabus_versions (id, syllabus_id, data, timestamp)
		VALUES (:id, :syllabus_id, :data, :timestamp)`
	if _, err := r.db.NamedExecContext(ctx, query, version); err != nil {
		return fmt.Errorf("create syllabus version: %w", err)
	}
	return nil
}

// ListVersions returns snapshots for a syllabus, newest first.
func (r *SyllabusRepository) ListVersions(ctx context.Context, syllabusID string) ([]models.SyllabusVersion, error) {
	const query = `SELECT id, syllabus_id, data, timestamp FROM syllabus_versions WHERE syllabus_id = $1 ORDER BY timestamp DESC`
	var versions []models.SyllabusVersion
	if err := r.db.SelectContext(ctx, &versions, query, syllabusID); err != nil {
		return nil, fmt.Errorf("list syllabus versions: %w", err)
	}
	return versions, nil
}
