package pdf

import (
	"regexp"
	"strings"
)

var filenamePattern = regexp.MustCompile(`filename[^;=\n]*=((['"]).*?['"]|[^;\n]*)`)

// FilenameFromContentDisposition extracts the filename hint from a
// Content-Disposition header value. The value may be quoted or bare; the
// second return reports whether a usable name was found.
func FilenameFromContentDisposition(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	match := filenamePattern.FindStringSubmatch(header)
	if match == nil {
		return "", false
	}
	name := strings.Trim(strings.TrimSpace(match[1]), `'"`)
	if name == "" {
		return "", false
	}
	return name, true
}

// DefaultFilename builds the deterministic fallback name from template
// fields when no header hint is available.
func DefaultFilename(title, code, language string) string {
	stem := code
	if stem == "" {
		stem = slugify(title)
	}
	if stem == "" {
		stem = "template"
	}
	if language != "" {
		stem += "-" + strings.ToLower(language)
	}
	return "syllabus-" + stem + ".pdf"
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
