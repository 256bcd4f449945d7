package wx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyops/propilot/internal/config"
	"github.com/skyops/propilot/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)
	return log
}

func metarWith(visib, wdir string, clouds string, fltCat string) *METARResponse {
	raw := fmt.Sprintf(`{
		"icaoId": "KDEN",
		"obsTime": 1787851200,
		"visib": %s,
		"wdir": %s,
		"clouds": %s,
		"fltCat": %q,
		"rawOb": "KDEN 231453Z ..."
	}`, visib, wdir, clouds, fltCat)

	var m METARResponse
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		panic(err)
	}
	return &m
}

func TestVisibilityHandlesMixedTypes(t *testing.T) {
	m := metarWith(`10`, `270`, `[]`, "")
	vis, ok := m.VisibilitySM()
	require.True(t, ok)
	assert.Equal(t, 10.0, vis)

	m = metarWith(`"10+"`, `"VRB"`, `[]`, "")
	vis, ok = m.VisibilitySM()
	require.True(t, ok)
	assert.Equal(t, 10.0, vis)

	m = metarWith(`"0.5"`, `270`, `[]`, "")
	vis, ok = m.VisibilitySM()
	require.True(t, ok)
	assert.Equal(t, 0.5, vis)

	m = metarWith(`null`, `270`, `[]`, "")
	_, ok = m.VisibilitySM()
	assert.False(t, ok)
}

func TestCeilingUsesLowestBrokenOrOvercast(t *testing.T) {
	clouds := `[
		{"cover": "FEW", "base": 1500},
		{"cover": "BKN", "base": 4000},
		{"cover": "OVC", "base": 2500}
	]`
	m := metarWith(`10`, `270`, clouds, "")

	ceil, ok := m.CeilingFt()
	require.True(t, ok)
	assert.Equal(t, 2500.0, ceil)

	// Scattered layers never make a ceiling
	m = metarWith(`10`, `270`, `[{"cover": "SCT", "base": 800}]`, "")
	_, ok = m.CeilingFt()
	assert.False(t, ok)
}

func TestFlightCategoryDerivation(t *testing.T) {
	// API-provided category wins
	m := metarWith(`10`, `270`, `[]`, "MVFR")
	assert.Equal(t, "MVFR", m.FlightCategory())

	cases := []struct {
		visib  string
		clouds string
		want   string
	}{
		{`10`, `[]`, "VFR"},
		{`4`, `[]`, "MVFR"},
		{`10`, `[{"cover": "OVC", "base": 2500}]`, "MVFR"},
		{`2`, `[]`, "IFR"},
		{`10`, `[{"cover": "BKN", "base": 700}]`, "IFR"},
		{`0.5`, `[]`, "LIFR"},
		{`10`, `[{"cover": "VV", "base": 200}]`, "LIFR"},
	}
	for _, tc := range cases {
		m := metarWith(tc.visib, `270`, tc.clouds, "")
		assert.Equal(t, tc.want, m.FlightCategory(), "visib=%s clouds=%s", tc.visib, tc.clouds)
	}
}

func TestObservedAt(t *testing.T) {
	m := metarWith(`10`, `270`, `[]`, "")
	assert.Equal(t, time.Unix(1787851200, 0).UTC(), m.ObservedAt())
}

func TestDecodeDATISShapes(t *testing.T) {
	// Array of broadcasts (datis.clowd.io)
	list, err := decodeDATIS(json.RawMessage(`[
		{"airport": "KDEN", "type": "arr", "code": "K", "datis": "DEN ARR INFO K"},
		{"airport": "KDEN", "type": "dep", "code": "K", "datis": "DEN DEP INFO K"}
	]`))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "arr", list[0].Type)

	// Single broadcast object
	list, err = decodeDATIS(json.RawMessage(`{"airport": "KLGA", "type": "combined", "code": "B", "datis": "LGA INFO B"}`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "LGA INFO B", list[0].Text)

	// Error envelope
	_, err = decodeDATIS(json.RawMessage(`{"error": "airport not found"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "airport not found")

	// Garbage
	_, err = decodeDATIS(json.RawMessage(`42`))
	assert.Error(t, err)
}

func TestFetchMETARTakesLatestEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metar", r.URL.Path)
		assert.Equal(t, "KDEN", r.URL.Query().Get("ids"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		fmt.Fprint(w, `[
			{"icaoId": "KDEN", "obsTime": 1787851200, "rawOb": "newest"},
			{"icaoId": "KDEN", "obsTime": 1787847600, "rawOb": "older"}
		]`)
	}))
	defer srv.Close()

	client := NewClient(config.WeatherConfig{
		APIBaseURL:            srv.URL,
		RequestTimeoutSeconds: 5,
		FetchMETAR:            true,
	}, testLogger(t))

	metar, err := client.FetchMETAR("KDEN")
	require.NoError(t, err)
	assert.Equal(t, "newest", metar.RawOb)
}

func TestFetchMETAREmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	client := NewClient(config.WeatherConfig{
		APIBaseURL:            srv.URL,
		RequestTimeoutSeconds: 5,
	}, testLogger(t))

	_, err := client.FetchMETAR("KDEN")
	assert.Error(t, err)
}

func TestFetchRetriesOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[{"icaoId": "KDEN", "rawOb": "after retry"}]`)
	}))
	defer srv.Close()

	client := NewClient(config.WeatherConfig{
		APIBaseURL:            srv.URL,
		RequestTimeoutSeconds: 5,
		MaxRetries:            2,
	}, testLogger(t))

	metar, err := client.FetchMETAR("KDEN")
	require.NoError(t, err)
	assert.Equal(t, "after retry", metar.RawOb)
	assert.Equal(t, 2, calls)
}

func TestFetchDATISFallsThroughEndpoints(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": "no datis here"}`)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/KDEN", r.URL.Path)
		fmt.Fprint(w, `[{"airport": "KDEN", "type": "combined", "code": "C", "datis": "DEN INFO C"}]`)
	}))
	defer good.Close()

	client := NewClient(config.WeatherConfig{
		DATISBaseURLs:         []string{bad.URL, good.URL},
		RequestTimeoutSeconds: 5,
	}, testLogger(t))

	broadcasts, err := client.FetchDATIS("KDEN")
	require.NoError(t, err)
	require.Len(t, broadcasts, 1)
	assert.Equal(t, "C", broadcasts[0].Code)
}

func TestCacheKeepsPreviousValuesOnFailure(t *testing.T) {
	cfg := config.WeatherConfig{CacheExpiryMinutes: 15}
	cache := NewCache(cfg, testLogger(t))

	metar := metarWith(`10`, `270`, `[]`, "VFR")
	cache.Update("kden", []FetchResult{{Type: TypeMETAR, Data: metar}})

	data, fresh := cache.Get("KDEN")
	require.True(t, fresh)
	require.NotNil(t, data.METAR)
	assert.Empty(t, data.FetchErrors)

	// A failed refresh keeps the old METAR and reports the error
	updated := cache.Update("KDEN", []FetchResult{
		{Type: TypeMETAR, Err: fmt.Errorf("connection refused")},
	})
	require.NotNil(t, updated.METAR)
	assert.Equal(t, metar, updated.METAR)
	require.Len(t, updated.FetchErrors, 1)
	assert.Contains(t, updated.FetchErrors[0], "METAR")
}

func TestCacheMissAndInvalidate(t *testing.T) {
	cache := NewCache(config.WeatherConfig{CacheExpiryMinutes: 15}, testLogger(t))

	_, fresh := cache.Get("KDEN")
	assert.False(t, fresh)

	cache.Update("KDEN", []FetchResult{{Type: TypeMETAR, Data: metarWith(`10`, `270`, `[]`, "")}})
	cache.Invalidate()

	data, _ := cache.Get("KDEN")
	assert.Nil(t, data)
	assert.Equal(t, 0, cache.Stats()["entry_count"])
}
