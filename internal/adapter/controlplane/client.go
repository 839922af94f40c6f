package controlplane

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chiwei-platform/app-bundler/internal/port"
)

var _ port.WorkloadPauser = (*Client)(nil)

// Client 调用应用管理控制台的 pauseApp 接口暂停工作负载。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Pause 请求 GET /api/pauseApp?namespace=..&appName=..&isStop=none，非 200 视为失败。
func (c *Client) Pause(ctx context.Context, namespace, name string) error {
	params := url.Values{
		"namespace": {namespace},
		"appName":   {name},
		"isStop":    {"none"},
	}

	reqURL := c.baseURL + "/api/pauseApp?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("controlplane: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("controlplane: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("controlplane: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
