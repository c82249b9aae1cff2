package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wendao/limitpulse/internal/calendar"
	"github.com/wendao/limitpulse/internal/dispatch"
	"github.com/wendao/limitpulse/internal/feed"
	"github.com/wendao/limitpulse/internal/health"
	"github.com/wendao/limitpulse/internal/limits"
	"github.com/wendao/limitpulse/internal/quote"
	"github.com/wendao/limitpulse/internal/retry"
	"github.com/wendao/limitpulse/internal/store"
	"github.com/wendao/limitpulse/pkg/logger"
)

type fakeSource struct {
	id      string
	records []feed.RawRecord
	err     error
	calls   int32
}

func (s *fakeSource) SourceID() string { return s.id }

func (s *fakeSource) FetchSnapshot(ctx context.Context) ([]feed.RawRecord, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

type fakeArchiver struct {
	mu    sync.Mutex
	saved map[limits.Direction][]limits.LimitFact
	err   error
}

func (a *fakeArchiver) SaveLimitFacts(ctx context.Context, date string, dir limits.Direction, facts []limits.LimitFact) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.saved == nil {
		a.saved = map[limits.Direction][]limits.LimitFact{}
	}
	a.saved[dir] = facts
	return a.err
}

// row builds a positional snapshot record in the provider's field order.
func row(code, name string, prevClose, last float64, phase string) feed.RawRecord {
	return feed.RawRecord{
		Provider: feed.ProviderShanghai,
		Positional: []interface{}{
			code, name,
			prevClose, last, prevClose, last, prevClose,
			(last - prevClose) / prevClose * 100,
			float64(1000), float64(50000),
			phase,
			last - prevClose, float64(1.0), "ASH", "",
		},
	}
}

func snapshotRecords() []feed.RawRecord {
	return []feed.RawRecord{
		row("600001", "示例股份", 10.00, 11.00, "T111"), // main board, at the band
		row("600002", "普通股份", 10.00, 10.50, "T111"), // trading, not at the band
		row("600003", "停牌股份", 10.00, 10.00, "P11"),  // suspended
		row("688001", "科创之星", 10.00, 12.00, "T111"), // 20% band hit
	}
}

func newTestPipeline(t *testing.T, archiver Archiver, sources ...feed.Source) (*Pipeline, *store.Store) {
	t.Helper()

	st, err := store.New(logger.NewNop(),
		store.NewFileLocation("primary", t.TempDir()),
		store.NewFileLocation("backup", t.TempDir()),
	)
	require.NoError(t, err)
	return newTestPipelineWithStore(t, st, archiver, sources...), st
}

func newTestPipelineWithStore(t *testing.T, st *store.Store, archiver Archiver, sources ...feed.Source) *Pipeline {
	t.Helper()

	retrier := retry.New(retry.Strategy{
		MaxAttempts: 1,
		BaseDelay:   time.Millisecond,
		Multiplier:  2,
		MinDelay:    time.Millisecond,
	}, health.NewTracker(), logger.NewNop())
	sched := dispatch.New(dispatch.Config{MaxConcurrent: 2}, retrier, logger.NewNop())
	t.Cleanup(sched.Shutdown)

	p, err := New(calendar.New(), sched, sources, st, archiver, logger.NewNop())
	require.NoError(t, err)
	return p
}

func TestRunPersistsAllDataTypes(t *testing.T) {
	src := &fakeSource{id: "sse", records: snapshotRecords()}
	p, st := newTestPipeline(t, nil, src)
	ctx := context.Background()

	// 2025-01-27 is a regular Monday before the new-year closure.
	res, err := p.Run(ctx, "2025-01-27", nil, Options{})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.False(t, res.Skipped)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{"sse"}, res.Metadata.Sources)
	assert.Equal(t, 4, res.Metadata.QuoteCount)
	require.Len(t, res.Data, len(AllDataTypes))

	up := res.Data[store.TypeLimitUp]
	assert.Equal(t, 2, up.TotalCount)
	assert.Equal(t, 1, up.MainBoardCount)
	assert.NotEmpty(t, up.CalculationMethod)

	var facts []limits.LimitFact
	require.NoError(t, json.Unmarshal(up.Data, &facts))
	require.Len(t, facts, 2)
	assert.Equal(t, "688001", facts[0].SecurityCode, "higher change rate ranks first")

	suspended := res.Data[store.TypeSuspended]
	assert.Equal(t, 1, suspended.TotalCount)

	// Artifacts are readable back from the store.
	got, err := st.Get(ctx, store.TypeQuotes, "2025-01-27")
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalCount)
}

func TestRunSkipsNonTradingDay(t *testing.T) {
	src := &fakeSource{id: "sse", records: snapshotRecords()}
	p, _ := newTestPipeline(t, nil, src)

	// Sunday inside the 2025 new-year closure.
	res, err := p.Run(context.Background(), "2025-02-02", nil, Options{})
	require.NoError(t, err)

	assert.True(t, res.Skipped)
	assert.False(t, res.Success, "a skipped day must not read as an acquired one")
	assert.NotEmpty(t, res.Reason)
	assert.Equal(t, "2025-01-27", res.Suggested)
	assert.Zero(t, atomic.LoadInt32(&src.calls), "skipped run must not touch the network")
}

func TestRunSkipCalendarCheckOverridesGate(t *testing.T) {
	src := &fakeSource{id: "sse", records: snapshotRecords()}
	p, _ := newTestPipeline(t, nil, src)

	res, err := p.Run(context.Background(), "2025-02-02", []string{store.TypeQuotes}, Options{SkipCalendarCheck: true})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.True(t, res.Success)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))
}

func TestRunMergesAllSources(t *testing.T) {
	// Feed A serves only the first exchange; feed B covers the rest plus a
	// duplicate listing of a security feed A already carries.
	primary := &fakeSource{id: "sse", records: []feed.RawRecord{
		row("600001", "示例股份", 10.00, 11.00, "T111"),
	}}
	secondary := &fakeSource{id: "eastmoney", records: []feed.RawRecord{
		row("000001", "深市样本", 10.00, 10.20, ""),
		row("300001", "创业先锋", 10.00, 12.00, ""),
		row("600001", "聚合行情", 10.00, 11.00, ""),
	}}
	p, _ := newTestPipeline(t, nil, primary, secondary)

	res, err := p.Run(context.Background(), "2025-01-27", []string{store.TypeQuotes}, Options{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{"sse", "eastmoney"}, res.Metadata.Sources)
	assert.Equal(t, int32(1), atomic.LoadInt32(&primary.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&secondary.calls))

	var quotes []*quote.SecurityQuote
	require.NoError(t, json.Unmarshal(res.Data[store.TypeQuotes].Data, &quotes))
	require.Len(t, quotes, 3, "snapshot must carry both exchanges, de-duplicated")

	byCode := map[string]*quote.SecurityQuote{}
	for _, q := range quotes {
		byCode[q.Code] = q
	}
	require.Contains(t, byCode, "600001")
	require.Contains(t, byCode, "000001")
	require.Contains(t, byCode, "300001")
	assert.Equal(t, "示例股份", byCode["600001"].Name, "exchange row wins the duplicate")
}

func TestRunDegradesToPartialCoverageWhenOneSourceFails(t *testing.T) {
	primary := &fakeSource{id: "sse", err: errors.New("read: connection reset by peer")}
	secondary := &fakeSource{id: "eastmoney", records: snapshotRecords()}
	p, _ := newTestPipeline(t, nil, primary, secondary)

	res, err := p.Run(context.Background(), "2025-01-27", []string{store.TypeQuotes}, Options{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"eastmoney"}, res.Metadata.Sources)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "sse", res.Warnings[0].Source)
	assert.Equal(t, "fetch", res.Warnings[0].Stage)
	assert.Equal(t, int32(1), atomic.LoadInt32(&primary.calls))
}

func TestRunAllSourcesFail(t *testing.T) {
	a := &fakeSource{id: "sse", err: errors.New("timeout")}
	b := &fakeSource{id: "eastmoney", err: errors.New("timeout")}
	p, _ := newTestPipeline(t, nil, a, b)

	_, err := p.Run(context.Background(), "2025-01-27", []string{store.TypeQuotes}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all sources failed")
}

func TestRunServesFromCache(t *testing.T) {
	src := &fakeSource{id: "sse", records: snapshotRecords()}
	p, _ := newTestPipeline(t, nil, src)
	ctx := context.Background()

	_, err := p.Run(ctx, "2025-01-27", []string{store.TypeQuotes}, Options{})
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&src.calls))

	res, err := p.Run(ctx, "2025-01-27", []string{store.TypeQuotes}, Options{UseCache: true})
	require.NoError(t, err)
	assert.True(t, res.Metadata.FromCache)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls), "cached run must not refetch")

	// Force overrides the cache.
	res, err = p.Run(ctx, "2025-01-27", []string{store.TypeQuotes}, Options{UseCache: true, Force: true})
	require.NoError(t, err)
	assert.False(t, res.Metadata.FromCache)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))
}

// downLocation rejects every write, standing in for an unreachable mount.
type downLocation struct{}

func (l *downLocation) Name() string { return "backup" }
func (l *downLocation) Put(ctx context.Context, dataType, date string, payload []byte) error {
	return errors.New("location down")
}
func (l *downLocation) Get(ctx context.Context, dataType, date string) ([]byte, error) {
	return nil, store.ErrNotFound
}
func (l *downLocation) Dates(ctx context.Context, dataType string) ([]string, error) {
	return nil, nil
}

func TestRunSurfacesPartialWritesInWarnings(t *testing.T) {
	st, err := store.New(logger.NewNop(),
		store.NewFileLocation("primary", t.TempDir()),
		&downLocation{},
	)
	require.NoError(t, err)

	src := &fakeSource{id: "sse", records: snapshotRecords()}
	p := newTestPipelineWithStore(t, st, nil, src)

	res, err := p.Run(context.Background(), "2025-01-27", []string{store.TypeQuotes}, Options{})
	require.NoError(t, err)

	// One surviving copy keeps the run successful, but the degraded
	// redundancy must be visible on the result.
	assert.True(t, res.Success)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, store.TypeQuotes, res.Warnings[0].DataType)
	assert.Equal(t, "persist", res.Warnings[0].Stage)
	assert.Contains(t, res.Warnings[0].Message, "backup")

	got, err := st.Get(context.Background(), store.TypeQuotes, "2025-01-27")
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalCount)
}

func TestRunArchivesClassifiedFacts(t *testing.T) {
	src := &fakeSource{id: "sse", records: snapshotRecords()}
	archiver := &fakeArchiver{}
	p, _ := newTestPipeline(t, archiver, src)

	res, err := p.Run(context.Background(), "2025-01-27", []string{store.TypeLimitUp, store.TypeLimitDown}, Options{})
	require.NoError(t, err)
	assert.True(t, res.Success)

	archiver.mu.Lock()
	defer archiver.mu.Unlock()
	assert.Len(t, archiver.saved[limits.DirectionUp], 2)
	assert.Empty(t, archiver.saved[limits.DirectionDown])
}

func TestRunArchiveFailureDoesNotFailRun(t *testing.T) {
	src := &fakeSource{id: "sse", records: snapshotRecords()}
	archiver := &fakeArchiver{err: errors.New("db down")}
	p, _ := newTestPipeline(t, archiver, src)

	res, err := p.Run(context.Background(), "2025-01-27", []string{store.TypeLimitUp}, Options{})
	require.NoError(t, err)
	assert.True(t, res.Success, "file artifact is authoritative")
}

func TestRunRejectsBadInput(t *testing.T) {
	src := &fakeSource{id: "sse", records: snapshotRecords()}
	p, _ := newTestPipeline(t, nil, src)
	ctx := context.Background()

	_, err := p.Run(ctx, "2025/01/27", nil, Options{})
	assert.ErrorIs(t, err, calendar.ErrInvalidDate)

	_, err = p.Run(ctx, "2025-01-27", []string{"bogus"}, Options{})
	assert.Error(t, err)
	assert.Zero(t, atomic.LoadInt32(&src.calls))
}
