package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Document is one upstream document as served by the source API.
type Document struct {
	Id       string                 `json:"id"`
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Page is one page of the source listing. Total is the total number of
// documents across all pages; an empty Data slice marks the end.
type Page struct {
	Data  []Document `json:"data"`
	Total int        `json:"total"`
}

// Client fetches documents from a paginated HTTP source.
type Client struct {
	baseURL  string
	pageSize int
	client   *http.Client
}

func NewClient(baseURL string, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Client{
		baseURL:  baseURL,
		pageSize: pageSize,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) PageSize() int {
	return c.pageSize
}

// FetchPage retrieves one page (1-based) of the document listing.
func (c *Client) FetchPage(ctx context.Context, page int) (*Page, error) {
	endpoint, err := url.Parse(c.baseURL + "/documents")
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	query := endpoint.Query()
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(c.pageSize))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source error: status %d, body: %s", res.StatusCode, string(body))
	}

	var result Page
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal page: %w", err)
	}
	return &result, nil
}
