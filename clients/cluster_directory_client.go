package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// NodeDescriptor is the denormalized fleet-wide encoder descriptor fronted by the
// EncoderCache (spec §3).
type NodeDescriptor struct {
	EncoderID string `json:"encoder_id"`
	Name      string `json:"name"`
	Region    string `json:"region"`
	Address   string `json:"address"`
}

// ClusterDirectoryClient is the remote source of truth the EncoderCache misses through to.
type ClusterDirectoryClient interface {
	Get(ctx context.Context, did string) (*NodeDescriptor, error)
}

type clusterDirectoryClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewClusterDirectoryClient(baseURL string) ClusterDirectoryClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 1 * time.Second
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: 5 * time.Second}

	return &clusterDirectoryClient{
		baseURL:    baseURL,
		httpClient: client.StandardClient(),
	}
}

func (c *clusterDirectoryClient) Get(ctx context.Context, did string) (*NodeDescriptor, error) {
	url := fmt.Sprintf("%s/nodes/%s", c.baseURL, did)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building node directory request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching node descriptor %s: %w", did, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching node descriptor %s: http %d", did, resp.StatusCode)
	}

	var desc NodeDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, fmt.Errorf("decoding node descriptor %s: %w", did, err)
	}
	return &desc, nil
}
