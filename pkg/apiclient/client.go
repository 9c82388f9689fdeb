package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unitir-dev/syllabus-api/pkg/pdf"
)

// Client is a minimal consumer of the syllabus API used by CLI tooling and
// sibling services that need assembled documents.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a client for the given API base URL (including the /api/v1
// prefix) and bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Document is a downloaded PDF together with the filename the server chose.
type Document struct {
	Filename string
	Data     []byte
}

// DownloadPDF fetches the assembled PDF for a syllabus. The filename comes
// from the Content-Disposition header when the server provides one, falling
// back to a deterministic name built from the title hint.
func (c *Client) DownloadPDF(ctx context.Context, syllabusID, titleHint string) (*Document, error) {
	endpoint := fmt.Sprintf("%s/syllabi/%s/pdf", c.baseURL, url.PathEscape(syllabusID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download syllabus pdf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download syllabus pdf: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download syllabus pdf: %w", err)
	}

	filename, ok := pdf.FilenameFromContentDisposition(resp.Header.Get("Content-Disposition"))
	if !ok {
		filename = pdf.DefaultFilename(titleHint, "", "")
	}

	return &Document{Filename: filename, Data: data}, nil
}
