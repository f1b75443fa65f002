package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrExportDenied means the export answered with an error status or a login
// page instead of CSV, which is what an unshared spreadsheet returns.
var ErrExportDenied = errors.New("export access denied")

// ExportClient reads the spreadsheet's CSV export.
type ExportClient struct {
	url    string
	client *http.Client
}

func NewExportClient(url string, client *http.Client) *ExportClient {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &ExportClient{url: url, client: client}
}

// Configured reports whether an export URL was set.
func (c *ExportClient) Configured() bool {
	return c != nil && c.url != ""
}

// Fetch returns the raw export body.
func (c *ExportClient) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build export request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 ||
		strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrExportDenied
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export body: %w", err)
	}
	return body, nil
}
