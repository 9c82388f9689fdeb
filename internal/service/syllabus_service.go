package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unitir-dev/syllabus-api/internal/models"
	"github.com/unitir-dev/syllabus-api/pkg/config"
	appErrors "github.com/unitir-dev/syllabus-api/pkg/errors"
	"github.com/unitir-dev/syllabus-api/pkg/pdf"
)

type syllabusRepository interface {
	List(ctx context.Context, filter models.SyllabusFilter) ([]models.Syllabus, int, error)
	FindByID(ctx context.Context, id string) (*models.Syllabus, error)
	LatestVersion(ctx context.Context, subjectID, teacherID string) (int, error)
	Create(ctx context.Context, syllabus *models.Syllabus) error
	Update(ctx context.Context, syllabus *models.Syllabus) error
	Delete(ctx context.Context, id string) error
	CreateVersion(ctx context.Context, version *models.SyllabusVersion) error
	ListVersions(ctx context.Context, syllabusID string) ([]models.SyllabusVersion, error)
}

type syllabusSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	AssignmentExists(ctx context.Context, teacherID, subjectID string) (bool, error)
}

type syllabusDepartmentRepository interface {
	FindByHeadID(ctx context.Context, headID string) (*models.Department, error)
}

type templateRenderer interface {
	Render(data map[string]string) ([]byte, error)
}

type imageRenderer interface {
	Render(png []byte, meta pdf.ImageMeta) ([]byte, error)
}

type archiveStore interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	Delete(filename string) error
}

// CreateSyllabusRequest captures fields for creating a syllabus. TeacherID is
// optional; when omitted the caller becomes the author. Version is never
// accepted from the client.
type CreateSyllabusRequest struct {
	SubjectID    string              `json:"subject_id" validate:"required"`
	TeacherID    string              `json:"teacher_id"`
	TemplateData models.TemplateData `json:"template_data"`
}

// UpdateSyllabusRequest replaces the template content of a syllabus.
type UpdateSyllabusRequest struct {
	TemplateData models.TemplateData `json:"template_data" validate:"required"`
}

// UpdateStatusRequest moves a syllabus through the review workflow.
type UpdateStatusRequest struct {
	Status models.SyllabusStatus `json:"status" validate:"required"`
}

// PreviewRequest carries the raster preview image for the image engine.
// The native engine ignores Image and renders from TemplateData directly.
type PreviewRequest struct {
	TemplateData models.TemplateData `json:"template_data"`
	Image        []byte              `json:"-"`
}

// SyllabusConfig selects the rendering engine and archive behaviour.
type SyllabusConfig struct {
	Engine         string
	ArchiveEnabled bool
}

// SyllabusService handles syllabus authoring, review and document assembly.
type SyllabusService struct {
	repo        syllabusRepository
	subjects    syllabusSubjectRepository
	departments syllabusDepartmentRepository
	renderer    templateRenderer
	images      imageRenderer
	archive     archiveStore
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
	config      SyllabusConfig
}

// NewSyllabusService creates a new syllabus service.
func NewSyllabusService(
	repo syllabusRepository,
	subjects syllabusSubjectRepository,
	departments syllabusDepartmentRepository,
	renderer templateRenderer,
	images imageRenderer,
	archive archiveStore,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg SyllabusConfig,
) *SyllabusService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Engine == "" {
		cfg.Engine = config.PDFEngineNative
	}
	return &SyllabusService{
		repo:        repo,
		subjects:    subjects,
		departments: departments,
		renderer:    renderer,
		images:      images,
		archive:     archive,
		validator:   validate,
		logger:      logger,
		metrics:     metrics,
		config:      cfg,
	}
}

// Create adds a new syllabus as a draft. The version number is assigned
// server-side as one past the latest version for the subject/teacher pair.
// Teachers may only author for themselves and only for assigned subjects.
func (s *SyllabusService) Create(ctx context.Context, actor models.UserInfo, req CreateSyllabusRequest) (*models.Syllabus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid syllabus payload")
	}

	teacherID := req.TeacherID
	if teacherID == "" {
		teacherID = actor.ID
	}
	if actor.Role == models.RoleTeacher && teacherID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers can only create their own syllabi")
	}

	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	if actor.Role == models.RoleTeacher {
		assigned, err := s.subjects.AssignmentExists(ctx, teacherID, req.SubjectID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
		}
		if !assigned {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "subject is not assigned to you")
		}
	}

	latest, err := s.repo.LatestVersion(ctx, req.SubjectID, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve syllabus version")
	}

	data := req.TemplateData
	if data == nil {
		data = models.TemplateData{}
	}

	syllabus := &models.Syllabus{
		SubjectID:    req.SubjectID,
		TeacherID:    teacherID,
		TemplateData: data,
		Status:       models.StatusDraft,
		Version:      latest + 1,
	}
	if err := s.repo.Create(ctx, syllabus); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create syllabus")
	}

	s.logger.Info("syllabus created",
		zap.String("syllabus_id", syllabus.ID),
		zap.String("teacher_id", teacherID),
		zap.Int("version", syllabus.Version))
	return syllabus, nil
}

// ListMine returns the calling teacher's syllabi.
func (s *SyllabusService) ListMine(ctx context.Context, teacherID string, filter models.SyllabusFilter) ([]models.Syllabus, *models.Pagination, error) {
	filter.TeacherID = teacherID
	filter.DepartmentID = ""
	return s.list(ctx, filter)
}

// ListAll returns every syllabus. Reserved for admins at the route level.
func (s *SyllabusService) ListAll(ctx context.Context, filter models.SyllabusFilter) ([]models.Syllabus, *models.Pagination, error) {
	return s.list(ctx, filter)
}

// ListPending returns the review queue. Heads only see pending syllabi whose
// subject belongs to the department they head; admins see all of them.
func (s *SyllabusService) ListPending(ctx context.Context, actor models.UserInfo, filter models.SyllabusFilter) ([]models.Syllabus, *models.Pagination, error) {
	filter.Status = models.StatusPending
	filter.TeacherID = ""

	if actor.Role == models.RoleHead {
		department, err := s.departments.FindByHeadID(ctx, actor.ID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "no department is assigned to you")
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
		}
		filter.DepartmentID = department.ID
	}

	return s.list(ctx, filter)
}

// Get returns a syllabus the actor is allowed to see. Teachers see their own,
// heads see their department's, admins see all.
func (s *SyllabusService) Get(ctx context.Context, actor models.UserInfo, id string) (*models.Syllabus, error) {
	syllabus, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, syllabus); err != nil {
		return nil, err
	}
	return syllabus, nil
}

// Update replaces the template content. The prior content is snapshotted to
// the version history first, and any non-draft syllabus returns to draft so
// it must pass review again.
func (s *SyllabusService) Update(ctx context.Context, actor models.UserInfo, id string, req UpdateSyllabusRequest) (*models.Syllabus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid syllabus payload")
	}

	syllabus, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && syllabus.TeacherID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only edit your own syllabi")
	}

	snapshot := &models.SyllabusVersion{SyllabusID: syllabus.ID, Data: syllabus.TemplateData}
	if err := s.repo.CreateVersion(ctx, snapshot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot syllabus")
	}

	s.removeArchived(syllabus)
	syllabus.TemplateData = req.TemplateData
	syllabus.Status = models.StatusDraft
	syllabus.ArchivePath = nil

	if err := s.repo.Update(ctx, syllabus); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update syllabus")
	}
	return syllabus, nil
}

// UpdateStatus moves a syllabus through review. Teachers submit their own
// drafts for review; heads approve or reject pending syllabi in their
// department; admins may set any status.
func (s *SyllabusService) UpdateStatus(ctx context.Context, actor models.UserInfo, id string, req UpdateStatusRequest) (*models.Syllabus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !models.ValidStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}

	syllabus, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case models.RoleAdmin:
		// no restrictions
	case models.RoleTeacher:
		if syllabus.TeacherID != actor.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only submit your own syllabi")
		}
		if req.Status != models.StatusPending {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers can only submit syllabi for review")
		}
	case models.RoleHead:
		if req.Status != models.StatusApproved && req.Status != models.StatusRejected {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "heads can only approve or reject syllabi")
		}
		if err := s.requireHeadScope(ctx, actor, syllabus); err != nil {
			return nil, err
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}

	syllabus.Status = req.Status
	if err := s.repo.Update(ctx, syllabus); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update syllabus status")
	}

	if req.Status == models.StatusApproved && s.config.ArchiveEnabled && s.archive != nil {
		if err := s.archiveApproved(ctx, syllabus); err != nil {
			s.logger.Warn("failed to archive approved syllabus",
				zap.String("syllabus_id", syllabus.ID), zap.Error(err))
		}
	}

	s.logger.Info("syllabus status changed",
		zap.String("syllabus_id", syllabus.ID),
		zap.String("status", string(req.Status)),
		zap.String("actor_id", actor.ID))
	return syllabus, nil
}

// Delete removes a syllabus and its version history. Reserved for admins at
// the route level.
func (s *SyllabusService) Delete(ctx context.Context, id string) error {
	syllabus, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete syllabus")
	}
	s.removeArchived(syllabus)
	return nil
}

// ListVersions returns the snapshot history for a syllabus the actor can see.
func (s *SyllabusService) ListVersions(ctx context.Context, actor models.UserInfo, id string) ([]models.SyllabusVersion, error) {
	syllabus, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, syllabus); err != nil {
		return nil, err
	}
	versions, err := s.repo.ListVersions(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list syllabus versions")
	}
	return versions, nil
}

// RenderPDF assembles the syllabus document and returns the bytes together
// with the download filename. Approved syllabi are served from the archive
// when one exists.
func (s *SyllabusService) RenderPDF(ctx context.Context, actor models.UserInfo, id string) ([]byte, string, error) {
	syllabus, err := s.find(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if err := s.authorizeRead(ctx, actor, syllabus); err != nil {
		return nil, "", err
	}

	filename := pdf.DefaultFilename(
		syllabus.TemplateData.Get("courseTitle", ""),
		syllabus.TemplateData.Get("courseCode", ""),
		syllabus.TemplateData.Get("language", ""),
	)

	if syllabus.ArchivePath != nil && s.config.ArchiveEnabled && s.archive != nil {
		if data, err := s.archive.Read(*syllabus.ArchivePath); err == nil {
			return data, filename, nil
		}
		// archive miss falls through to a fresh render
	}

	start := time.Now()
	data, err := s.renderer.Render(syllabus.TemplateData)
	s.metrics.ObserveRender(config.PDFEngineNative, err, time.Since(start))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrRender.Code, appErrors.ErrRender.Status, appErrors.ErrRender.Message)
	}

	if syllabus.Status == models.StatusApproved && s.config.ArchiveEnabled && s.archive != nil {
		if err := s.storeArchive(ctx, syllabus, data); err != nil {
			s.logger.Warn("failed to archive rendered syllabus",
				zap.String("syllabus_id", syllabus.ID), zap.Error(err))
		}
	}

	return data, filename, nil
}

// RenderPreview assembles a document from unsaved template data. The active
// engine decides how: the native engine draws from the fields, the image
// engine paginates a client-captured raster.
func (s *SyllabusService) RenderPreview(ctx context.Context, req PreviewRequest) ([]byte, string, error) {
	data := req.TemplateData
	if data == nil {
		data = models.TemplateData{}
	}

	filename := pdf.DefaultFilename(
		data.Get("courseTitle", ""),
		data.Get("courseCode", ""),
		data.Get("language", ""),
	)

	if s.config.Engine == config.PDFEngineImage {
		if len(req.Image) == 0 {
			return nil, "", appErrors.Clone(appErrors.ErrValidation, "preview image is required for the image engine")
		}
		start := time.Now()
		out, err := s.images.Render(req.Image, pdf.ImageMeta{
			CourseTitle: data.Get("courseTitle", ""),
			CourseCode:  data.Get("courseCode", ""),
		})
		s.metrics.ObserveRender(config.PDFEngineImage, err, time.Since(start))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrRender.Code, appErrors.ErrRender.Status, appErrors.ErrRender.Message)
		}
		return out, filename, nil
	}

	start := time.Now()
	out, err := s.renderer.Render(data)
	s.metrics.ObserveRender(config.PDFEngineNative, err, time.Since(start))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrRender.Code, appErrors.ErrRender.Status, appErrors.ErrRender.Message)
	}
	return out, filename, nil
}

func (s *SyllabusService) list(ctx context.Context, filter models.SyllabusFilter) ([]models.Syllabus, *models.Pagination, error) {
	syllabi, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list syllabi")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return syllabi, pagination, nil
}

func (s *SyllabusService) find(ctx context.Context, id string) (*models.Syllabus, error) {
	syllabus, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "syllabus not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load syllabus")
	}
	return syllabus, nil
}

func (s *SyllabusService) authorizeRead(ctx context.Context, actor models.UserInfo, syllabus *models.Syllabus) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		if syllabus.TeacherID == actor.ID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "you can only view your own syllabi")
	case models.RoleHead:
		return s.requireHeadScope(ctx, actor, syllabus)
	}
	return appErrors.Clone(appErrors.ErrForbidden, "")
}

// requireHeadScope checks the syllabus subject belongs to the department
// headed by the actor.
func (s *SyllabusService) requireHeadScope(ctx context.Context, actor models.UserInfo, syllabus *models.Syllabus) error {
	department, err := s.departments.FindByHeadID(ctx, actor.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrForbidden, "no department is assigned to you")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}

	subject, err := s.subjects.FindByID(ctx, syllabus.SubjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	if subject.DepartmentID != department.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "syllabus is outside your department")
	}
	return nil
}

func (s *SyllabusService) archiveApproved(ctx context.Context, syllabus *models.Syllabus) error {
	start := time.Now()
	data, err := s.renderer.Render(syllabus.TemplateData)
	s.metrics.ObserveRender(config.PDFEngineNative, err, time.Since(start))
	if err != nil {
		return err
	}
	return s.storeArchive(ctx, syllabus, data)
}

// removeArchived drops the on-disk copy referenced by the syllabus, if any.
func (s *SyllabusService) removeArchived(syllabus *models.Syllabus) {
	if syllabus.ArchivePath == nil || !s.config.ArchiveEnabled || s.archive == nil {
		return
	}
	if err := s.archive.Delete(*syllabus.ArchivePath); err != nil {
		s.logger.Warn("failed to remove archived syllabus",
			zap.String("syllabus_id", syllabus.ID), zap.Error(err))
	}
}

func (s *SyllabusService) storeArchive(ctx context.Context, syllabus *models.Syllabus, data []byte) error {
	name := fmt.Sprintf("%s/v%d.pdf", syllabus.ID, syllabus.Version)
	stored, err := s.archive.Save(name, data)
	if err != nil {
		return err
	}
	syllabus.ArchivePath = &stored
	return s.repo.Update(ctx, syllabus)
}
