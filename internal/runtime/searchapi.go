// internal/runtime/searchapi.go — adapts the bulk search-and-purge REST
// surface to our small compliance-client interface.
package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/joshsymonds/mailreaper/internal/compliance"
	"github.com/joshsymonds/mailreaper/internal/graph"
)

type searchClient struct {
	hc     *http.Client
	base   string
	tokens TokenSource
}

// NewSearchClient returns a bulk-search client for the compliance API.
func NewSearchClient(cfg Config, tokens TokenSource) compliance.Client {
	return &searchClient{
		hc:     &http.Client{Timeout: 60 * time.Second},
		base:   cfg.SearchURL,
		tokens: tokens,
	}
}

type jobPayload struct {
	Name      string `json:"name"`
	Query     string `json:"query"`
	Status    string `json:"status"`
	ItemCount int    `json:"itemCount"`
	TotalSize int64  `json:"totalSize"`
}

func (p jobPayload) toJob() compliance.Job {
	return compliance.Job{
		Name:      p.Name,
		Query:     p.Query,
		Status:    compliance.ParseStatus(p.Status),
		Items:     p.ItemCount,
		SizeBytes: p.TotalSize,
	}
}

func (c *searchClient) do(ctx context.Context, method, rawURL string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", graph.ErrAuth, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", graph.ErrAuth, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, rawURL, resp.StatusCode, snippet)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *searchClient) CreateSearch(ctx context.Context, name, mailbox, query string) (compliance.Job, error) {
	body := map[string]any{
		"name":              name,
		"exchangeLocations": []string{mailbox},
		"query":             query,
	}
	var payload jobPayload
	if err := c.do(ctx, http.MethodPost, c.base+"/complianceSearches", body, &payload); err != nil {
		return compliance.Job{}, fmt.Errorf("create search %s: %w", name, err)
	}
	job := payload.toJob()
	if job.Name == "" {
		job.Name = name
	}
	if job.Query == "" {
		job.Query = query
	}
	return job, nil
}

func (c *searchClient) StartSearch(ctx context.Context, name string) error {
	u := fmt.Sprintf("%s/complianceSearches/%s/start", c.base, url.PathEscape(name))
	if err := c.do(ctx, http.MethodPost, u, nil, nil); err != nil {
		return fmt.Errorf("start search %s: %w", name, err)
	}
	return nil
}

func (c *searchClient) GetSearch(ctx context.Context, name string) (compliance.Job, error) {
	u := fmt.Sprintf("%s/complianceSearches/%s", c.base, url.PathEscape(name))
	var payload jobPayload
	if err := c.do(ctx, http.MethodGet, u, nil, &payload); err != nil {
		return compliance.Job{}, fmt.Errorf("get search %s: %w", name, err)
	}
	return payload.toJob(), nil
}

func (c *searchClient) CreatePurge(ctx context.Context, name string) error {
	u := fmt.Sprintf("%s/complianceSearches/%s/purge", c.base, url.PathEscape(name))
	if err := c.do(ctx, http.MethodPost, u, map[string]string{"purgeType": "HardDelete"}, nil); err != nil {
		return fmt.Errorf("create purge %s: %w", name, err)
	}
	return nil
}

func (c *searchClient) DeleteSearch(ctx context.Context, name string) error {
	u := fmt.Sprintf("%s/complianceSearches/%s", c.base, url.PathEscape(name))
	if err := c.do(ctx, http.MethodDelete, u, nil, nil); err != nil {
		return fmt.Errorf("delete search %s: %w", name, err)
	}
	return nil
}

func (c *searchClient) ListSearches(ctx context.Context, prefix string) ([]compliance.Job, error) {
	u := fmt.Sprintf("%s/complianceSearches?$filter=%s",
		c.base, url.QueryEscape(fmt.Sprintf("startswith(name,'%s')", prefix)))
	var page struct {
		Value []jobPayload `json:"value"`
	}
	if err := c.do(ctx, http.MethodGet, u, nil, &page); err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	jobs := make([]compliance.Job, 0, len(page.Value))
	for _, p := range page.Value {
		jobs = append(jobs, p.toJob())
	}
	return jobs, nil
}

var _ compliance.Client = (*searchClient)(nil)
