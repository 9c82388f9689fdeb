package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/unitir-dev/syllabus-api/internal/models"
)

func newSyllabusRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSyllabusRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newSyllabusRepoMock(t)
	defer cleanup()

	repo := NewSyllabusRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO syllabi")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	syllabus := &models.Syllabus{
		SubjectID:    "sub-1",
		TeacherID:    "t1",
		TemplateData: models.TemplateData{"courseTitle": "Algoritmika"},
		Status:       models.StatusDraft,
		Version:      1,
	}
	require.NoError(t, repo.Create(context.Background(), syllabus))
	require.NotEmpty(t, syllabus.ID)

	rows := sqlmock.NewRows([]string{"id", "subject_id", "teacher_id", "template_data", "status", "version", "archive_path", "created_at", "updated_at"}).
		AddRow(syllabus.ID, "sub-1", "t1", []byte(`{"courseTitle":"Algoritmika"}`), "draft", 1, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, subject_id, teacher_id, template_data, status")).
		WithArgs(syllabus.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), syllabus.ID)
	require.NoError(t, err)
	require.Equal(t, "Algoritmika", found.TemplateData["courseTitle"])
	require.Equal(t, models.StatusDraft, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyllabusRepositoryLatestVersion(t *testing.T) {
	db, mock, cleanup := newSyllabusRepoMock(t)
	defer cleanup()

	repo := NewSyllabusRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM syllabi WHERE subject_id = $1 AND teacher_id = $2")).
		WithArgs("sub-1", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(4))

	version, err := repo.LatestVersion(context.Background(), "sub-1", "t1")
	require.NoError(t, err)
	require.Equal(t, 4, version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyllabusRepositoryLatestVersionEmpty(t *testing.T) {
	db, mock, cleanup := newSyllabusRepoMock(t)
	defer cleanup()

	repo := NewSyllabusRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM syllabi")).
		WithArgs("sub-1", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	version, err := repo.LatestVersion(context.Background(), "sub-1", "t1")
	require.NoError(t, err)
	require.Equal(t, 0, version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyllabusRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newSyllabusRepoMock(t)
	defer cleanup()

	repo := NewSyllabusRepository(db)
	rows := sqlmock.NewRows([]string{"id", "subject_id", "teacher_id", "template_data", "status", "version", "archive_path", "created_at", "updated_at"}).
		AddRow("sy-1", "sub-1", "t1", []byte(`{}`), "pending", 2, nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT sy.id, sy.subject_id").
		WithArgs("pending", "dept-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM syllabi sy")).
		WithArgs("pending", "dept-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	syllabi, total, err := repo.List(context.Background(), models.SyllabusFilter{
		Status:       models.StatusPending,
		DepartmentID: "dept-1",
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, syllabi, 1)
	require.Equal(t, "sy-1", syllabi[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyllabusRepositoryDeleteRemovesVersions(t *testing.T) {
	db, mock, cleanup := newSyllabusRepoMock(t)
	defer cleanup()

	repo := NewSyllabusRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM syllabus_versions WHERE syllabus_id = $1")).
		WithArgs("sy-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM syllabi WHERE id = $1")).
		WithArgs("sy-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "sy-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyllabusRepositoryCreateVersion(t *testing.T) {
	db, mock, cleanup := newSyllabusRepoMock(t)
	defer cleanup()

	repo := NewSyllabusRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO syllabus_versions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	version := &models.SyllabusVersion{
		SyllabusID: "sy-1",
		Data:       models.TemplateData{"courseTitle": "Old"},
	}
	require.NoError(t, repo.CreateVersion(context.Background(), version))
	require.NotEmpty(t, version.ID)
	require.False(t, version.Timestamp.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
