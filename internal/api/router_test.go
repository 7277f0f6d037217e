package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerosolkit/aeronet/internal/api"
	"github.com/aerosolkit/aeronet/internal/api/models"
	"github.com/aerosolkit/aeronet/internal/provider/resilience"
	"github.com/aerosolkit/aeronet/pkg/aeronet"
)

const cartSitePayload = `AERONET Version 3;
Cart_Site
Version 3: AOD Level 2.0
The following data are automatically cloud cleared and quality assured.
Contact: PI=Rick Wagener
AERONET_Site,Date(dd:mm:yyyy),Time(hh:mm:ss),AOD_500nm,Site_Longitude(Degrees)
Cart_Site,01:06:2000,13:45:12,0.092931,-97.485954
`

const cartSiteQuery = "site=Cart_Site&year=2000&month=6&day=1&AOD20=1"

type routerOptions struct {
	perMinute  int
	requireTLS bool
}

func newTestRouter(t *testing.T, opts routerOptions) http.Handler {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, cartSitePayload)
	}))
	t.Cleanup(upstream.Close)

	registry := resilience.NewRegistry()
	client, err := aeronet.NewClient(aeronet.ClientConfig{
		BaseURL: upstream.URL,
		HTTPClient: resilience.NewClient(resilience.ClientConfig{
			Name:     aeronet.ProviderName,
			Registry: registry,
		}),
	})
	require.NoError(t, err)

	return api.NewRouter(api.RouterConfig{
		Version:               "test",
		BuildTime:             "2024-01-01T00:00:00Z",
		Logger:                zerolog.New(io.Discard),
		Client:                client,
		Registry:              registry,
		ObservationsPerMinute: opts.perMinute,
		RequireTLS:            opts.requireTLS,
	})
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthCheck(t *testing.T) {
	w := get(newTestRouter(t, routerOptions{}), "/v1/ops/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_ReadinessCheck(t *testing.T) {
	w := get(newTestRouter(t, routerOptions{}), "/v1/ops/ready")

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_SystemStatus(t *testing.T) {
	w := get(newTestRouter(t, routerOptions{}), "/v1/ops/status")

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, aeronet.ProviderName, status.Providers[0].Provider)
}

func TestRouter_Options(t *testing.T) {
	w := get(newTestRouter(t, routerOptions{}), "/v1/options")

	assert.Equal(t, http.StatusOK, w.Code)

	var groups models.OptionGroups
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &groups))
	assert.Contains(t, groups.DataTypes, aeronet.AOD20)
}

func TestRouter_Observations(t *testing.T) {
	router := newTestRouter(t, routerOptions{})

	w := get(router, "/v1/observations?"+cartSiteQuery+"&add_lst=true")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var obs models.Observations
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &obs))
	assert.Equal(t, 1, obs.Count)
	assert.Equal(t, "2000-06-01T06:45:12Z", obs.Rows[0]["time_lst"])

	w = get(router, "/v1/observations?"+cartSiteQuery+"&format=csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "AERONET_Site,"))
}

func TestRouter_ObservationsValidation(t *testing.T) {
	w := get(newTestRouter(t, routerOptions{}), "/v1/observations?site=Cart_Site")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_ObservationsRateLimit(t *testing.T) {
	router := newTestRouter(t, routerOptions{perMinute: 2})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, get(router, "/v1/observations?"+cartSiteQuery).Code)
	}

	w := get(router, "/v1/observations?"+cartSiteQuery)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// Other routes have their own budget.
	assert.Equal(t, http.StatusOK, get(router, "/v1/options").Code)
}

func TestRouter_RequireTLS(t *testing.T) {
	router := newTestRouter(t, routerOptions{requireTLS: true})

	for proto, want := range map[string]int{
		"":      http.StatusForbidden,
		"http":  http.StatusForbidden,
		"https": http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
		if proto != "" {
			req.Header.Set("X-Forwarded-Proto", proto)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, proto)
	}
}

func TestRouter_NotFound(t *testing.T) {
	w := get(newTestRouter(t, routerOptions{}), "/v1/nope")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeNotFound, problem.Type)
	assert.Equal(t, "/v1/nope", problem.Instance)
}
