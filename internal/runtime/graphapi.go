// internal/runtime/graphapi.go — adapts the Graph REST surface to our small
// mail-client interface.
package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/joshsymonds/mailreaper/internal/graph"
)

const folderPageSize = 250

type graphClient struct {
	hc      *http.Client
	base    string
	mailbox string
	tokens  TokenSource
}

// NewGraphClient returns a mail client bound to one mailbox.
func NewGraphClient(cfg Config, mailbox string, tokens TokenSource) graph.Client {
	return &graphClient{
		hc:      &http.Client{Timeout: 60 * time.Second},
		base:    cfg.GraphURL,
		mailbox: mailbox,
		tokens:  tokens,
	}
}

func (g *graphClient) do(ctx context.Context, method, rawURL string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, err
	}
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", graph.ErrAuth, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ConsistencyLevel", "eventual")

	resp, err := g.hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return resp.StatusCode, fmt.Errorf("%w: status %d", graph.ErrAuth, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, rawURL, resp.StatusCode, snippet)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

type folderPayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	TotalItems  int    `json:"totalItemCount"`
	UnreadItems int    `json:"unreadItemCount"`
	Size        string `json:"size"`
}

func (p folderPayload) toFolder() graph.Folder {
	return graph.Folder{
		ID:          graph.FolderID(p.ID),
		DisplayName: p.DisplayName,
		TotalItems:  p.TotalItems,
		UnreadItems: p.UnreadItems,
		SizeRaw:     p.Size,
	}
}

func (g *graphClient) ListFolders(ctx context.Context) ([]graph.Folder, error) {
	next := fmt.Sprintf("%s/users/%s/mailFolders?$top=%d", g.base, url.PathEscape(g.mailbox), folderPageSize)
	var out []graph.Folder
	for next != "" {
		var page struct {
			Value    []folderPayload `json:"value"`
			NextLink string          `json:"@odata.nextLink"`
		}
		if _, err := g.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("list folders: %w", err)
		}
		for _, f := range page.Value {
			out = append(out, f.toFolder())
		}
		next = page.NextLink
	}
	return out, nil
}

func (g *graphClient) GetFolder(ctx context.Context, id graph.FolderID) (graph.Folder, error) {
	var payload folderPayload
	u := fmt.Sprintf("%s/users/%s/mailFolders/%s", g.base, url.PathEscape(g.mailbox), url.PathEscape(string(id)))
	if _, err := g.do(ctx, http.MethodGet, u, nil, &payload); err != nil {
		return graph.Folder{}, fmt.Errorf("get folder %s: %w", id, err)
	}
	return payload.toFolder(), nil
}

// CountMessages prefers the count-only endpoint and falls back to counting
// minimal-property pages when it is unavailable.
func (g *graphClient) CountMessages(ctx context.Context, folder graph.FolderID, q graph.Query) (int, error) {
	u := fmt.Sprintf("%s/users/%s/mailFolders/%s/messages/$count?$filter=%s",
		g.base, url.PathEscape(g.mailbox), url.PathEscape(string(folder)), url.QueryEscape(q.Raw))
	var raw json.Number
	if _, err := g.do(ctx, http.MethodGet, u, nil, &raw); err == nil {
		if n, convErr := strconv.Atoi(raw.String()); convErr == nil {
			return n, nil
		}
	}
	return g.countByPaging(ctx, folder, q)
}

func (g *graphClient) countByPaging(ctx context.Context, folder graph.FolderID, q graph.Query) (int, error) {
	next := fmt.Sprintf("%s/users/%s/mailFolders/%s/messages?$filter=%s&$select=id&$top=%d",
		g.base, url.PathEscape(g.mailbox), url.PathEscape(string(folder)), url.QueryEscape(q.Raw), folderPageSize)
	total := 0
	for next != "" {
		var page struct {
			Value    []struct{} `json:"value"`
			NextLink string     `json:"@odata.nextLink"`
		}
		if _, err := g.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return 0, fmt.Errorf("count by paging: %w", err)
		}
		total += len(page.Value)
		next = page.NextLink
	}
	return total, nil
}

func (g *graphClient) ListMessageIDs(ctx context.Context, folder graph.FolderID, q graph.Query, limit int) ([]graph.MessageID, error) {
	u := fmt.Sprintf("%s/users/%s/mailFolders/%s/messages?$filter=%s&$select=id&$top=%d",
		g.base, url.PathEscape(g.mailbox), url.PathEscape(string(folder)), url.QueryEscape(q.Raw), limit)
	var page struct {
		Value []struct {
			ID string `json:"id"`
		} `json:"value"`
	}
	if _, err := g.do(ctx, http.MethodGet, u, nil, &page); err != nil {
		return nil, fmt.Errorf("list message ids: %w", err)
	}
	ids := make([]graph.MessageID, 0, len(page.Value))
	for _, m := range page.Value {
		ids = append(ids, graph.MessageID(m.ID))
	}
	return ids, nil
}

type batchSubRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

type batchSubResponse struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}

// DeleteBatch submits one $batch request of independent DELETE sub-requests
// and classifies each sub-response on its own status code.
func (g *graphClient) DeleteBatch(ctx context.Context, ids []graph.MessageID) (graph.BatchOutcome, error) {
	if len(ids) > graph.BatchLimit {
		return graph.BatchOutcome{}, fmt.Errorf("batch of %d exceeds limit %d", len(ids), graph.BatchLimit)
	}
	reqs := make([]batchSubRequest, 0, len(ids))
	for i, id := range ids {
		reqs = append(reqs, batchSubRequest{
			ID:     strconv.Itoa(i + 1),
			Method: http.MethodDelete,
			URL:    fmt.Sprintf("/users/%s/messages/%s", url.PathEscape(g.mailbox), url.PathEscape(string(id))),
		})
	}
	var resp struct {
		Responses []batchSubResponse `json:"responses"`
	}
	u := fmt.Sprintf("%s/$batch", g.base)
	if _, err := g.do(ctx, http.MethodPost, u, map[string]any{"requests": reqs}, &resp); err != nil {
		return graph.BatchOutcome{}, err
	}

	var out graph.BatchOutcome
	for _, sub := range resp.Responses {
		switch {
		case sub.Status >= 200 && sub.Status < 300, sub.Status == http.StatusNotFound:
			// 404 means already gone; that is the outcome we wanted
			out.Succeeded++
		case sub.Status == http.StatusTooManyRequests, sub.Status == http.StatusServiceUnavailable:
			out.Failed++
			out.Throttled = true
		case sub.Status == http.StatusForbidden, sub.Status == http.StatusInsufficientStorage:
			out.Failed++
			out.Denied = true
		default:
			out.Failed++
		}
	}
	return out, nil
}

func (g *graphClient) GetMailboxStats(ctx context.Context) (graph.MailboxStats, error) {
	var payload struct {
		DisplayName       string `json:"displayName"`
		ItemCount         int    `json:"itemCount"`
		TotalItemSize     string `json:"totalItemSize"`
		ProhibitSendQuota string `json:"prohibitSendQuota"`
		RetentionHold     bool   `json:"retentionHoldEnabled"`
	}
	u := fmt.Sprintf("%s/users/%s/mailboxUsage", g.base, url.PathEscape(g.mailbox))
	if _, err := g.do(ctx, http.MethodGet, u, nil, &payload); err != nil {
		return graph.MailboxStats{}, fmt.Errorf("mailbox stats: %w", err)
	}
	return graph.MailboxStats{
		Mailbox:       g.mailbox,
		ItemCount:     payload.ItemCount,
		TotalSizeRaw:  payload.TotalItemSize,
		QuotaRaw:      payload.ProhibitSendQuota,
		RetentionHold: payload.RetentionHold,
	}, nil
}

func (g *graphClient) SetRetentionHold(ctx context.Context, enabled bool) error {
	u := fmt.Sprintf("%s/users/%s/mailboxSettings", g.base, url.PathEscape(g.mailbox))
	body := map[string]any{"retentionHoldEnabled": enabled}
	if _, err := g.do(ctx, http.MethodPatch, u, body, nil); err != nil {
		return fmt.Errorf("set retention hold: %w", err)
	}
	return nil
}

var _ graph.Client = (*graphClient)(nil)
