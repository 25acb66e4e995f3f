package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const aggregatePath = "/api/all"

// APIOrigin fetches the full dashboard payload from the backend's
// aggregate endpoint in a single request.
type APIOrigin struct {
	baseURL string
	client  *resty.Client
	opts    NormalizeOptions
}

// Ensure APIOrigin implements Origin
var _ Origin = (*APIOrigin)(nil)

// NewAPIOrigin creates the primary origin. An empty baseURL disables it.
func NewAPIOrigin(baseURL string, timeout time.Duration, opts NormalizeOptions) *APIOrigin {
	return &APIOrigin{
		baseURL: baseURL,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "LeapPulse-Dashboard/1.0"),
		opts: opts,
	}
}

func (a *APIOrigin) Name() string {
	return "api"
}

func (a *APIOrigin) IsEnabled() bool {
	return a.baseURL != ""
}

// Fetch performs GET /api/all. Any transport error or non-2xx status is an
// origin failure; missing keys in a successful response are empty resources.
func (a *APIOrigin) Fetch(ctx context.Context) (*Payload, error) {
	if !a.IsEnabled() {
		return nil, ErrNotConfigured
	}

	resp, err := a.client.R().
		SetContext(ctx).
		Get(a.baseURL + aggregatePath)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", aggregatePath, err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%s returned status %d", aggregatePath, resp.StatusCode())
	}

	var raw rawPayload
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", aggregatePath, err)
	}

	payload := raw.normalize(a.opts)
	logrus.Debugf("API origin returned %d mentions (%d records rejected)", len(payload.Mentions), payload.Rejected)
	return payload, nil
}
