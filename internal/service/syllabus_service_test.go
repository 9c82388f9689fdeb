package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unitir-dev/syllabus-api/internal/models"
	"github.com/unitir-dev/syllabus-api/pkg/config"
	appErrors "github.com/unitir-dev/syllabus-api/pkg/errors"
	"github.com/unitir-dev/syllabus-api/pkg/pdf"
)

type mockSyllabusRepo struct {
	syllabi    map[string]*models.Syllabus
	versions   []*models.SyllabusVersion
	latest     int
	lastFilter models.SyllabusFilter
}

func newMockSyllabusRepo() *mockSyllabusRepo {
	return &mockSyllabusRepo{syllabi: make(map[string]*models.Syllabus)}
}

func (m *mockSyllabusRepo) List(ctx context.Context, filter models.SyllabusFilter) ([]models.Syllabus, int, error) {
	m.lastFilter = filter
	var out []models.Syllabus
	for _, s := range m.syllabi {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockSyllabusRepo) FindByID(ctx context.Context, id string) (*models.Syllabus, error) {
	s, ok := m.syllabi[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (m *mockSyllabusRepo) LatestVersion(ctx context.Context, subjectID, teacherID string) (int, error) {
	return m.latest, nil
}

func (m *mockSyllabusRepo) Create(ctx context.Context, syllabus *models.Syllabus) error {
	if syllabus.ID == "" {
		syllabus.ID = "sy-new"
	}
	m.syllabi[syllabus.ID] = syllabus
	return nil
}

func (m *mockSyllabusRepo) Update(ctx context.Context, syllabus *models.Syllabus) error {
	m.syllabi[syllabus.ID] = syllabus
	return nil
}

func (m *mockSyllabusRepo) Delete(ctx context.Context, id string) error {
	delete(m.syllabi, id)
	return nil
}

func (m *mockSyllabusRepo) CreateVersion(ctx context.Context, version *models.SyllabusVersion) error {
	m.versions = append(m.versions, version)
	return nil
}

func (m *mockSyllabusRepo) ListVersions(ctx context.Context, syllabusID string) ([]models.SyllabusVersion, error) {
	var out []models.SyllabusVersion
	for _, v := range m.versions {
		if v.SyllabusID == syllabusID {
			out = append(out, *v)
		}
	}
	return out, nil
}

type mockSyllabusSubjects struct {
	subjects map[string]*models.Subject
	assigned map[string]bool
}

func newMockSyllabusSubjects() *mockSyllabusSubjects {
	return &mockSyllabusSubjects{subjects: make(map[string]*models.Subject), assigned: make(map[string]bool)}
}

func (m *mockSyllabusSubjects) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	s, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (m *mockSyllabusSubjects) AssignmentExists(ctx context.Context, teacherID, subjectID string) (bool, error) {
	return m.assigned[teacherID+"/"+subjectID], nil
}

type mockSyllabusDepts struct {
	byHead map[string]*models.Department
}

func (m *mockSyllabusDepts) FindByHeadID(ctx context.Context, headID string) (*models.Department, error) {
	d, ok := m.byHead[headID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return d, nil
}

type mockRenderer struct {
	rendered int
	err      error
}

func (m *mockRenderer) Render(data map[string]string) ([]byte, error) {
	m.rendered++
	if m.err != nil {
		return nil, m.err
	}
	return []byte("%PDF-mock"), nil
}

type mockImageRenderer struct{}

func (m *mockImageRenderer) Render(png []byte, meta pdf.ImageMeta) ([]byte, error) {
	return []byte("%PDF-image"), nil
}

type mockArchive struct {
	saved map[string][]byte
}

func newMockArchive() *mockArchive { return &mockArchive{saved: make(map[string][]byte)} }

func (m *mockArchive) Save(filename string, data []byte) (string, error) {
	m.saved[filename] = data
	return filename, nil
}

func (m *mockArchive) Read(filename string) ([]byte, error) {
	data, ok := m.saved[filename]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return data, nil
}

func (m *mockArchive) Delete(filename string) error {
	delete(m.saved, filename)
	return nil
}

type syllabusFixture struct {
	repo     *mockSyllabusRepo
	subjects *mockSyllabusSubjects
	depts    *mockSyllabusDepts
	renderer *mockRenderer
	archive  *mockArchive
	metrics  *MetricsService
	svc      *SyllabusService
}

func newSyllabusFixture(cfg SyllabusConfig) *syllabusFixture {
	f := &syllabusFixture{
		repo:     newMockSyllabusRepo(),
		subjects: newMockSyllabusSubjects(),
		depts:    &mockSyllabusDepts{byHead: make(map[string]*models.Department)},
		renderer: &mockRenderer{},
		archive:  newMockArchive(),
		metrics:  NewMetricsService(),
	}
	f.svc = NewSyllabusService(f.repo, f.subjects, f.depts, f.renderer, &mockImageRenderer{}, f.archive,
		validator.New(), zap.NewNop(), f.metrics, cfg)
	return f
}

var (
	teacherActor = models.UserInfo{ID: "t1", Role: models.RoleTeacher}
	headActor    = models.UserInfo{ID: "h1", Role: models.RoleHead}
	adminActor   = models.UserInfo{ID: "a1", Role: models.RoleAdmin}
)

func TestSyllabusCreateAssignsNextVersion(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{})
	f.subjects.subjects["sub-1"] = &models.Subject{ID: "sub-1", DepartmentID: "dept-1"}
	f.subjects.assigned["t1/sub-1"] = true
	f.repo.latest = 2

	syllabus, err := f.svc.Create(context.Background(), teacherActor, CreateSyllabusRequest{
		SubjectID:    "sub-1",
		TemplateData: models.TemplateData{"courseTitle": "Algoritmika"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, syllabus.Version)
	require.Equal(t, models.StatusDraft, syllabus.Status)
	require.Equal(t, "t1", syllabus.TeacherID)
}

func TestSyllabusCreateFirstVersionIsOne(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{})
	f.subjects.subjects["sub-1"] = &models.Subject{ID: "sub-1"}
	f.subjects.assigned["t1/sub-1"] = true

	syllabus, err := f.svc.Create(context.Background(), teacherActor, CreateSyllabusRequest{SubjectID: "sub-1"})
	require.NoError(t, err)
	require.Equal(t, 1, syllabus.Version)
}

func TestSyllabusCreateTeacherCannotImpersonate(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{})
	f.subjects.subjects["sub-1"] = &models.Subject{ID: "sub-1"}

	_, err := f.svc.Create(context.Background(), teacherActor, CreateSyllabusRequest{
		SubjectID: "sub-1", TeacherID: "t2",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSyllabusCreateRequiresAssignment(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{})
	f.subjects.subjects["sub-1"] = &models.Subject{ID: "sub-1"}

	_, err := f.svc.Create(context.Background(), teacherActor, CreateSyllabusRequest{SubjectID: "sub-1"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSyllabusUpdateSnapshotsAndResetsStatus(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{})
	original := models.TemplateData{"courseTitle": "Old title"}
	f.repo.syllabi["sy-1"] = &models.Syllabus{
		ID: "sy-1", SubjectID: "sub-1", TeacherID: "t1",
		TemplateData: original, Status: models.StatusApproved, Version: 1,
	}

	updated, err := f.svc.Update(context.Background(), teacherActor, "sy-1", UpdateSyllabusRequest{
		TemplateData: models.TemplateData{"courseTitle": "New title"},
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusDraft, updated.Status)
	require.Nil(t, updated.ArchivePath)
	require.Len(t, f.repo.versions, 1)
	require.Equal(t, "Old title", f.repo.versions[0].Data["courseTitle"])
}

func TestSyllabusUpdateForbiddenForOtherTeacher(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{})
	f.repo.syllabi["sy-1"] = &models.Syllabus{ID: "sy-1", TeacherID: "t2"}

	_, err := f.svc.Update(context.Background(), teacherActor, "sy-1", UpdateSyllabusRequest{
		TemplateData: models.TemplateData{},
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSyllabusTeacherSubmitsForReview(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{})
	f.repo.syllabi["sy-1"] = &models.Syllabus{ID: "sy-1", TeacherID: "t1", Status: models.StatusDraft}

	syllabus, err := f.svc.UpdateStatus(context.Background(), teacherActor, "sy-1", UpdateStatusRequest{Status: models.StatusPending})
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, syllabus.Status)

	// A teacher may not approve, even their own.
	_, err = f.svc.UpdateStatus(context.Background(), teacherActor, "sy-1", UpdateStatusRequest{Status: models.StatusApproved})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSyllabusHeadApprovesWithinDepartment(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{})
	f.depts.byHead["h1"] = &models.Department{ID: "dept-1"}
	f.subjects.subjects["sub-1"] = &models.Subject{ID: "sub-1", DepartmentID: "dept-1"}
	f.repo.syllabi["sy-1"] = &models.Syllabus{ID: "sy-1", SubjectID: "sub-1", TeacherID: "t1", Status: models.StatusPending}

	syllabus, err := f.svc.UpdateStatus(context.Background(), headActor, "sy-1", UpdateStatusRequest{Status: models.StatusApproved})
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, syllabus.Status)
}

func TestSyllabusHeadBlockedOutsideDepartment(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{})
	f.depts.byHead["h1"] = &models.Department{ID: "dept-1"}
	f.subjects.subjects["sub-2"] = &models.Subject{ID: "sub-2", DepartmentID: "dept-2"}
	f.repo.syllabi["sy-2"] = &models.Syllabus{ID: "sy-2", SubjectID: "sub-2", TeacherID: "t9", Status: models.StatusPending}

	_, err := f.svc.UpdateStatus(context.Background(), headActor, "sy-2", UpdateStatusRequest{Status: models.StatusRejected})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSyllabusUnknownStatusRejected(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{})
	f.repo.syllabi["sy-1"] = &models.Syllabus{ID: "sy-1", TeacherID: "t1"}

	_, err := f.svc.UpdateStatus(context.Background(), adminActor, "sy-1", UpdateStatusRequest{Status: "published"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSyllabusPendingQueueScopedToHeadDepartment(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{})
	f.depts.byHead["h1"] = &models.Department{ID: "dept-1"}

	_, _, err := f.svc.ListPending(context.Background(), headActor, models.SyllabusFilter{})
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, f.repo.lastFilter.Status)
	require.Equal(t, "dept-1", f.repo.lastFilter.DepartmentID)

	// Admins see the whole queue.
	_, _, err = f.svc.ListPending(context.Background(), adminActor, models.SyllabusFilter{})
	require.NoError(t, err)
	require.Empty(t, f.repo.lastFilter.DepartmentID)
}

func TestSyllabusPendingHeadWithoutDepartment(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{})

	_, _, err := f.svc.ListPending(context.Background(), headActor, models.SyllabusFilter{})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSyllabusGetVisibility(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{})
	f.repo.syllabi["sy-1"] = &models.Syllabus{ID: "sy-1", SubjectID: "sub-1", TeacherID: "t1"}

	_, err := f.svc.Get(context.Background(), teacherActor, "sy-1")
	require.NoError(t, err)

	other := models.UserInfo{ID: "t2", Role: models.RoleTeacher}
	_, err = f.svc.Get(context.Background(), other, "sy-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Get(context.Background(), adminActor, "sy-1")
	require.NoError(t, err)
}

func TestSyllabusRenderPDFArchivesApproved(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{ArchiveEnabled: true})
	f.repo.syllabi["sy-1"] = &models.Syllabus{
		ID: "sy-1", SubjectID: "sub-1", TeacherID: "t1",
		TemplateData: models.TemplateData{"courseCode": "INF201"},
		Status:       models.StatusApproved, Version: 2,
	}

	data, filename, err := f.svc.RenderPDF(context.Background(), adminActor, "sy-1")
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-mock"), data)
	require.Equal(t, "syllabus-INF201.pdf", filename)
	require.Contains(t, f.archive.saved, "sy-1/v2.pdf")
	require.NotNil(t, f.repo.syllabi["sy-1"].ArchivePath)

	// Subsequent downloads come from the archive without a re-render.
	renders := f.renderer.rendered
	_, _, err = f.svc.RenderPDF(context.Background(), adminActor, "sy-1")
	require.NoError(t, err)
	require.Equal(t, renders, f.renderer.rendered)
}

func TestSyllabusRenderPreviewNativeEngine(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{Engine: config.PDFEngineNative})

	data, filename, err := f.svc.RenderPreview(context.Background(), PreviewRequest{
		TemplateData: models.TemplateData{"courseTitle": "Algoritmika"},
	})
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-mock"), data)
	require.Equal(t, "syllabus-algoritmika.pdf", filename)
}

func TestSyllabusUpdateRemovesArchivedFile(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{ArchiveEnabled: true})
	path := "sy-1/v1.pdf"
	f.archive.saved[path] = []byte("%PDF-old")
	f.repo.syllabi["sy-1"] = &models.Syllabus{
		ID: "sy-1", SubjectID: "sub-1", TeacherID: "t1",
		TemplateData: models.TemplateData{}, Status: models.StatusApproved,
		Version: 1, ArchivePath: &path,
	}

	updated, err := f.svc.Update(context.Background(), teacherActor, "sy-1", UpdateSyllabusRequest{
		TemplateData: models.TemplateData{"courseTitle": "New title"},
	})
	require.NoError(t, err)
	require.Nil(t, updated.ArchivePath)
	require.NotContains(t, f.archive.saved, path)
}

func TestSyllabusDeleteRemovesArchivedFile(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{ArchiveEnabled: true})
	path := "sy-1/v2.pdf"
	f.archive.saved[path] = []byte("%PDF-old")
	f.repo.syllabi["sy-1"] = &models.Syllabus{
		ID: "sy-1", TeacherID: "t1", Status: models.StatusApproved,
		Version: 2, ArchivePath: &path,
	}

	require.NoError(t, f.svc.Delete(context.Background(), "sy-1"))
	require.NotContains(t, f.repo.syllabi, "sy-1")
	require.NotContains(t, f.archive.saved, path)
}

func TestSyllabusRenderCountsMetrics(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{})
	f.repo.syllabi["sy-1"] = &models.Syllabus{ID: "sy-1", TeacherID: "t1", TemplateData: models.TemplateData{}}

	_, _, err := f.svc.RenderPDF(context.Background(), adminActor, "sy-1")
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.renderTotal.WithLabelValues("native", "ok")))

	f.renderer.err = errors.New("boom")
	_, _, err = f.svc.RenderPDF(context.Background(), adminActor, "sy-1")
	require.Error(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.renderTotal.WithLabelValues("native", "error")))
}

func TestSyllabusPreviewCountsImageEngineMetrics(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{Engine: config.PDFEngineImage})

	_, _, err := f.svc.RenderPreview(context.Background(), PreviewRequest{Image: []byte{1, 2, 3}})
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.renderTotal.WithLabelValues("image", "ok")))
}

func TestSyllabusRenderPreviewImageEngine(t *testing.T) {
	f := newSyllabusFixture(SyllabusConfig{Engine: config.PDFEngineImage})

	_, _, err := f.svc.RenderPreview(context.Background(), PreviewRequest{})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	data, _, err := f.svc.RenderPreview(context.Background(), PreviewRequest{Image: []byte{1, 2, 3}})
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-image"), data)
}
