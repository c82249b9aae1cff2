package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/wendao/limitpulse/pkg/httputil"
	"github.com/wendao/limitpulse/pkg/logger"
)

const (
	// eastmoneyFields is the f-code projection requested per row.
	eastmoneyFields = "f2,f3,f4,f5,f6,f12,f14,f15,f16,f17,f18,f23"

	// eastmoneyMarkets selects all A-share boards.
	eastmoneyMarkets = "m:0 t:6,m:0 t:80,m:1 t:2,m:1 t:23,m:0 t:81 s:2048"

	defaultPageSize = 200
)

// EastmoneyClient pulls the aggregator's paginated snapshot endpoint.
// Rows are flat JSON objects keyed by field codes; the full universe
// spans multiple pages.
type EastmoneyClient struct {
	http     *httputil.Client
	baseURL  string
	pageSize int
	logger   *logger.Logger
}

// NewEastmoneyClient creates a client for the aggregator snapshot endpoint.
func NewEastmoneyClient(http *httputil.Client, baseURL string, pageSize int, log *logger.Logger) *EastmoneyClient {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &EastmoneyClient{http: http, baseURL: baseURL, pageSize: pageSize, logger: log}
}

// SourceID returns the health/retry source id for this provider.
func (c *EastmoneyClient) SourceID() string { return string(ProviderEastmoney) }

// FetchSnapshot drains the page sequence into one raw batch.
func (c *EastmoneyClient) FetchSnapshot(ctx context.Context) ([]RawRecord, error) {
	var all []RawRecord

	pages := c.Pages()
	for {
		batch, more, err := pages.Next(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if !more {
			break
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"source": c.SourceID(),
		"count":  len(all),
	}).Debug("Snapshot fetched")

	return all, nil
}

// Pages starts a fresh page sequence from page one. Each call returns an
// independent sequence, so a failed fetch can restart cleanly.
func (c *EastmoneyClient) Pages() *PageSequence {
	return &PageSequence{client: c, page: 1}
}

// PageSequence walks the paginated snapshot lazily. It is not safe for
// concurrent use.
type PageSequence struct {
	client *EastmoneyClient
	page   int
	done   bool
}

type eastmoneyEnvelope struct {
	Data *struct {
		Total int             `json:"total"`
		Diff  json.RawMessage `json:"diff"`
	} `json:"data"`
}

// Next fetches the next page. It returns the page's rows and whether more
// pages remain. An empty or short page ends the sequence.
func (p *PageSequence) Next(ctx context.Context) ([]RawRecord, bool, error) {
	if p.done {
		return nil, false, nil
	}

	body, err := p.client.http.GetBody(ctx, p.client.pageURL(p.page))
	if err != nil {
		return nil, false, err
	}

	var env eastmoneyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, fmt.Errorf("eastmoney snapshot page %d: decode failed: %w", p.page, err)
	}
	if env.Data == nil || len(env.Data.Diff) == 0 {
		p.done = true
		return nil, false, nil
	}

	rows, err := decodeDiff(env.Data.Diff)
	if err != nil {
		return nil, false, fmt.Errorf("eastmoney snapshot page %d: %w", p.page, err)
	}
	if len(rows) == 0 {
		p.done = true
		return nil, false, nil
	}

	records := make([]RawRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, RawRecord{Provider: ProviderEastmoney, Coded: row})
	}

	p.page++
	if len(rows) < p.client.pageSize {
		p.done = true
	}
	return records, !p.done, nil
}

func (c *EastmoneyClient) pageURL(page int) string {
	q := url.Values{}
	q.Set("pn", strconv.Itoa(page))
	q.Set("pz", strconv.Itoa(c.pageSize))
	q.Set("po", "1")
	q.Set("np", "1")
	q.Set("fltt", "2")
	q.Set("invt", "2")
	q.Set("fid", "f3")
	q.Set("fs", eastmoneyMarkets)
	q.Set("fields", eastmoneyFields)
	return c.baseURL + "/api/qt/clist/get?" + q.Encode()
}

// decodeDiff handles both shapes the endpoint emits for the row set: a
// JSON array and, on some deployments, an object keyed by row index.
func decodeDiff(raw json.RawMessage) ([]map[string]interface{}, error) {
	var asList []map[string]interface{}
	if err := json.Unmarshal(raw, &asList); err == nil {
		return asList, nil
	}

	var asMap map[string]map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, fmt.Errorf("unrecognized diff shape: %w", err)
	}

	rows := make([]map[string]interface{}, 0, len(asMap))
	keys := make([]int, 0, len(asMap))
	byIndex := make(map[int]map[string]interface{}, len(asMap))
	for k, v := range asMap {
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("unrecognized diff key %q", k)
		}
		keys = append(keys, i)
		byIndex[i] = v
	}
	sort.Ints(keys)
	for _, i := range keys {
		rows = append(rows, byIndex[i])
	}
	return rows, nil
}
