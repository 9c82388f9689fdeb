package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Section labels and boilerplate used when no dynamic value is supplied.
// These are institution template text, kept verbatim: generated output
// compatibility depends on the exact strings.
const (
	labelDocTitle      = "SYLLABUS"
	labelCourseTitle   = "Titulli i lëndës"
	labelCourseCode    = "Kodi i lëndës"
	labelInstructor    = "Pedagogu i lëndës"
	labelEmail         = "Email"
	labelOfficeHours   = "Orët e konsultimit"
	labelAcademicYear  = "Viti akademik"
	labelSemester      = "Semestri"
	labelLanguage      = "Gjuha e lëndës"
	labelTypology      = "Tipologjia e lëndës"
	labelGrading       = "Kriteret e vlerësimit"
	labelDescription   = "Përshkrimi i lëndës"
	labelObjectives    = "Objektivat e të nxënit"
	labelPrerequisites = "Parakushtet"
	labelSkills        = "Aftësitë e fituara"
	labelSchedule      = "Plani mësimor javor"
	labelLiterature    = "Literatura"
	labelSignHead      = "Përgjegjësi i departamentit"
	labelDate          = "Data"

	placeholderBody = "Plotësohet nga pedagogu i lëndës."
)

var defaultGrading = []string{
	"Vlerësimi i vazhduar 20%",
	"Detyrat e kursit 20%",
	"Provimi përfundimtar 60%",
}

const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	sideMargin   = 15.0
	topMargin    = 15.0
	writableW    = pageWidth - 2*sideMargin
	infoLabelW   = 55.0
	infoValueW   = writableW - infoLabelW
	lineHeight   = 5.5
	sectionLimit = 255.0 // near-bottom threshold: break before the section, never inside it
)

// TemplateRenderer assembles a syllabus PDF with direct drawing calls:
// a cover block, a tabular course-info block, a grading bullet list and a
// fixed sequence of wrapped free-text sections.
type TemplateRenderer struct {
	institution string
	now         func() time.Time
}

// NewTemplateRenderer builds the native-drawing renderer. The institution
// line is optional and appears above the document title.
func NewTemplateRenderer(institution string) *TemplateRenderer {
	return &TemplateRenderer{institution: institution, now: time.Now}
}

// Render produces the full document for the given template data.
func (r *TemplateRenderer) Render(data map[string]string) ([]byte, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(data[key]); v != "" {
			return v
		}
		return fallback
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(get("courseTitle", labelDocTitle)), true)
	pdf.SetAuthor(tr(get("instructor", "")), true)
	pdf.SetSubject(tr(get("courseCode", "")), true)
	pdf.SetMargins(sideMargin, topMargin, sideMargin)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AddPage()

	// Cover block.
	if r.institution != "" {
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 6, tr(r.institution), "", 1, "C", false, 0, "")
		pdf.Ln(2)
	}
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, labelDocTitle, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 9, tr(get("courseTitle", labelCourseTitle)), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, tr(get("courseCode", "")), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	// Course-info table with fixed column widths.
	rows := [][2]string{
		{labelCourseTitle, get("courseTitle", placeholderBody)},
		{labelCourseCode, get("courseCode", placeholderBody)},
		{labelInstructor, get("instructor", placeholderBody)},
		{labelEmail, get("email", "")},
		{labelOfficeHours, get("officeHours", "")},
		{labelAcademicYear, get("year", "")},
		{labelSemester, get("semester", "")},
		{labelLanguage, get("language", "Shqip")},
		{labelTypology, get("typology", "")},
	}
	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(infoLabelW, 7, tr(row[0]), "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(infoValueW, 7, tr(row[1]), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(5)

	// Grading criteria bullet list.
	r.breakBeforeSection(pdf)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, tr(labelGrading), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, item := range gradingItems(data["gradingPolicy"]) {
		pdf.CellFormat(6, lineHeight, "-", "", 0, "R", false, 0, "")
		pdf.MultiCell(writableW-6, lineHeight, tr(item), "", "L", false)
	}
	pdf.Ln(4)

	// Free-text sections, wrapped to the writable width.
	sections := [][2]string{
		{labelDescription, get("courseDescription", "")},
		{labelObjectives, get("learningObjectives", "")},
		{labelPrerequisites, get("prerequisites", "")},
		{labelSkills, get("skills", "")},
		{labelSchedule, get("schedule", "")},
		{labelLiterature, get("textbooks", "")},
	}
	for _, s := range sections {
		r.section(pdf, tr, s[0], s[1])
	}

	// Signature block.
	r.breakBeforeSection(pdf)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(writableW/2, 6, tr(labelInstructor), "", 0, "L", false, 0, "")
	pdf.CellFormat(writableW/2, 6, tr(labelSignHead), "", 1, "L", false, 0, "")
	pdf.CellFormat(writableW/2, 6, "________________________", "", 0, "L", false, 0, "")
	pdf.CellFormat(writableW/2, 6, "________________________", "", 1, "L", false, 0, "")
	pdf.Ln(4)
	pdf.CellFormat(0, 6, fmt.Sprintf("%s: %s", labelDate, r.now().Format("02.01.2006")), "", 1, "L", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render syllabus pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *TemplateRenderer) section(pdf *gofpdf.Fpdf, tr func(string) string, label, body string) {
	r.breakBeforeSection(pdf)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, tr(label), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	if strings.TrimSpace(body) == "" {
		body = placeholderBody
	}
	pdf.MultiCell(writableW, lineHeight, tr(body), "", "L", false)
	pdf.Ln(4)
}

func (r *TemplateRenderer) breakBeforeSection(pdf *gofpdf.Fpdf) {
	if pdf.GetY() > sectionLimit {
		pdf.AddPage()
	}
}

func gradingItems(policy string) []string {
	var items []string
	for _, line := range strings.Split(policy, "\n") {
		if line = strings.TrimSpace(strings.TrimLeft(line, "-* ")); line != "" {
			items = append(items, line)
		}
	}
	if len(items) == 0 {
		return defaultGrading
	}
	return items
}
