package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wendao/limitpulse/pkg/httputil"
	"github.com/wendao/limitpulse/pkg/logger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testHTTPClient() *httputil.Client {
	return httputil.New(logger.NewNop(), 5*time.Second)
}

func TestShanghaiFetchSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sh1/list/exchange/equity", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("select"))
		fmt.Fprint(w, `cb({"date":20250127,"time":150003,"total":2,"list":[`+
			`["600519","贵州茅台",1700.0,1725.5,1695.0,1720.1,1710.0,0.59,2145600,3689000000,"T111",10.1,1.78,"ASH",""],`+
			`["600000","浦发银行",7.5,7.8,7.4,7.7,7.5,2.67,99000,760000,"T111",0.2,5.33,"ASH",""]`+
			`]});`)
	}))
	defer srv.Close()

	c := NewShanghaiClient(testHTTPClient(), srv.URL, logger.NewNop())
	records, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, ProviderShanghai, records[0].Provider)
	assert.Equal(t, "600519", records[0].Positional[posCode])
	assert.Equal(t, "T111", records[0].Positional[posTradePhase])
}

func TestShanghaiFetchSnapshotMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not jsonp at all`)
	}))
	defer srv.Close()

	c := NewShanghaiClient(testHTTPClient(), srv.URL, logger.NewNop())
	_, err := c.FetchSnapshot(context.Background())
	assert.Error(t, err)
}

func TestEastmoneyPaginationEndsOnShortPage(t *testing.T) {
	pages := map[int]string{
		1: `{"data":{"total":5,"diff":[` +
			`{"f12":"600000","f14":"浦发银行","f2":7.7},` +
			`{"f12":"600519","f14":"贵州茅台","f2":1720.1}` +
			`]}}`,
		2: `{"data":{"total":5,"diff":[` +
			`{"f12":"300750","f14":"宁德时代","f2":188.88}` +
			`]}}`,
	}

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		pn, _ := strconv.Atoi(r.URL.Query().Get("pn"))
		assert.Equal(t, "2", r.URL.Query().Get("pz"))
		body, ok := pages[pn]
		if !ok {
			fmt.Fprint(w, `{"data":null}`)
			return
		}
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	c := NewEastmoneyClient(testHTTPClient(), srv.URL, 2, logger.NewNop())
	records, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)

	// Page 2 is short, so the sequence ends without requesting page 3.
	assert.Equal(t, 2, hits)
	require.Len(t, records, 3)
	assert.Equal(t, ProviderEastmoney, records[0].Provider)
	assert.Equal(t, "300750", records[2].Coded["f12"])
}

func TestEastmoneyPaginationEndsOnEmptyPage(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		pn, _ := strconv.Atoi(r.URL.Query().Get("pn"))
		if pn == 1 {
			fmt.Fprint(w, `{"data":{"total":4,"diff":[`+
				`{"f12":"600000","f14":"浦发银行"},`+
				`{"f12":"600519","f14":"贵州茅台"}`+
				`]}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"total":4,"diff":[]}}`)
	}))
	defer srv.Close()

	c := NewEastmoneyClient(testHTTPClient(), srv.URL, 2, logger.NewNop())
	records, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, hits)
}

func TestEastmoneyDiffObjectShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"total":2,"diff":{`+
			`"1":{"f12":"600519","f14":"贵州茅台"},`+
			`"0":{"f12":"600000","f14":"浦发银行"}`+
			`}}}`)
	}))
	defer srv.Close()

	c := NewEastmoneyClient(testHTTPClient(), srv.URL, 10, logger.NewNop())
	records, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Keyed rows come back in index order.
	assert.Equal(t, "600000", records[0].Coded["f12"])
	assert.Equal(t, "600519", records[1].Coded["f12"])
}

func TestEastmoneyPagesRestartable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"total":1,"diff":[{"f12":"600000","f14":"浦发银行"}]}}`)
	}))
	defer srv.Close()

	c := NewEastmoneyClient(testHTTPClient(), srv.URL, 10, logger.NewNop())

	for i := 0; i < 2; i++ {
		seq := c.Pages()
		batch, more, err := seq.Next(context.Background())
		require.NoError(t, err)
		assert.Len(t, batch, 1)
		assert.False(t, more)

		// The sequence stays exhausted once done.
		batch, more, err = seq.Next(context.Background())
		require.NoError(t, err)
		assert.Empty(t, batch)
		assert.False(t, more)
	}
}

func TestStripCallbackShapes(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`cb({"a":1});`, `{"a":1}`, true},
		{`  jQuery123_456([1,2])`, `[1,2]`, true},
		{`{"a":1}`, `{"a":1}`, true},
		{`garbage`, ``, false},
		{``, ``, false},
		{`cb()`, ``, false},
	}
	for _, tc := range cases {
		got, err := stripCallback([]byte(tc.in))
		if !tc.ok {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, string(got), "input %q", tc.in)
	}
}
