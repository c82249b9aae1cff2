package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wendao/limitpulse/pkg/httputil"
	"github.com/wendao/limitpulse/pkg/logger"
)

// Source is one upstream snapshot provider. FetchSnapshot returns the full
// raw equity snapshot for the current moment; callers run it under the
// request scheduler so pacing and retries apply.
type Source interface {
	SourceID() string
	FetchSnapshot(ctx context.Context) ([]RawRecord, error)
}

// shanghaiSelect names the positional fields requested from the exchange,
// in the order the response arrays carry them.
const shanghaiSelect = "code,name,open,high,low,last,prev_close,chg_rate,volume,amount,tradephase,change,amplitude,cpxxsubtype,cpxxprodusta"

// ShanghaiClient pulls the exchange's own snapshot endpoint. The endpoint
// answers JSONP regardless of the callback value and returns every listed
// equity in a single response, as positional arrays.
type ShanghaiClient struct {
	http    *httputil.Client
	baseURL string
	logger  *logger.Logger
}

// NewShanghaiClient creates a client for the exchange snapshot endpoint.
func NewShanghaiClient(http *httputil.Client, baseURL string, log *logger.Logger) *ShanghaiClient {
	return &ShanghaiClient{http: http, baseURL: baseURL, logger: log}
}

// SourceID returns the health/retry source id for this provider.
func (c *ShanghaiClient) SourceID() string { return string(ProviderShanghai) }

type shanghaiEnvelope struct {
	Date  int             `json:"date"`
	Time  int             `json:"time"`
	Total int             `json:"total"`
	List  [][]interface{} `json:"list"`
}

// FetchSnapshot pulls the full equity list in one request.
func (c *ShanghaiClient) FetchSnapshot(ctx context.Context) ([]RawRecord, error) {
	url := fmt.Sprintf("%s/v1/sh1/list/exchange/equity?callback=cb&select=%s&begin=0&end=-1",
		c.baseURL, shanghaiSelect)

	body, err := c.http.GetBody(ctx, url)
	if err != nil {
		return nil, err
	}

	payload, err := stripCallback(body)
	if err != nil {
		return nil, fmt.Errorf("sse snapshot: %w", err)
	}

	var env shanghaiEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("sse snapshot: decode failed: %w", err)
	}

	records := make([]RawRecord, 0, len(env.List))
	for _, row := range env.List {
		records = append(records, RawRecord{Provider: ProviderShanghai, Positional: row})
	}

	c.logger.WithFields(map[string]interface{}{
		"source": c.SourceID(),
		"date":   env.Date,
		"count":  len(records),
	}).Debug("Snapshot fetched")

	return records, nil
}
