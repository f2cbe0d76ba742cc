// Package clients holds the Aid service's external HTTP collaborators: the video record
// store consulted/patched by the Video Healer, and the remote cluster node directory
// fronted by the EncoderCache.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/log"
)

// VideoRecord mirrors the external collaborator's schema (spec §3): read-mostly from the
// core's perspective, the Healer mutates exactly Status and VideoV2.
type VideoRecord struct {
	Owner    string    `json:"owner"`
	Permlink string    `json:"permlink"`
	Status   string    `json:"status"`
	VideoV2  string    `json:"video_v2"`
	Created  time.Time `json:"created"`
}

// VideoRecordPatch is the set of fields the Healer is permitted to mutate.
type VideoRecordPatch struct {
	Status  string `json:"status"`
	VideoV2 string `json:"video_v2"`
}

// VideoRecordClient is the Healer's collaborator for reading and patching video records.
type VideoRecordClient interface {
	Get(ctx context.Context, owner, permlink string) (*VideoRecord, error)
	Patch(ctx context.Context, owner, permlink string, patch VideoRecordPatch) error
}

type videoRecordClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewVideoRecordClient builds a retryable HTTP client bounded well below the Timeout
// Monitor's interval (spec §5).
func NewVideoRecordClient(baseURL string) VideoRecordClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 1 * time.Second
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: 5 * time.Second}

	return &videoRecordClient{
		baseURL:    baseURL,
		httpClient: client.StandardClient(),
	}
}

func (c *videoRecordClient) Get(ctx context.Context, owner, permlink string) (*VideoRecord, error) {
	url := fmt.Sprintf("%s/videos/%s/%s", c.baseURL, owner, permlink)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building video record request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching video record %s/%s: %w", owner, permlink, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching video record %s/%s: http %d", owner, permlink, resp.StatusCode)
	}

	var rec VideoRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding video record %s/%s: %w", owner, permlink, err)
	}
	return &rec, nil
}

func (c *videoRecordClient) Patch(ctx context.Context, owner, permlink string, patch VideoRecordPatch) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshalling video record patch: %w", err)
	}

	url := fmt.Sprintf("%s/videos/%s/%s", c.baseURL, owner, permlink)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building video record patch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.LogNoRequestID("failed to patch video record", "owner", owner, "permlink", permlink, "err", err)
		return fmt.Errorf("patching video record %s/%s: %w", owner, permlink, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("patching video record %s/%s: http %d", owner, permlink, resp.StatusCode)
	}
	return nil
}
