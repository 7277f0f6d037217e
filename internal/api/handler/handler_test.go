package handler_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aerosolkit/aeronet/internal/provider/resilience"
	"github.com/aerosolkit/aeronet/pkg/aeronet"
)

const cartSiteAOD = `AERONET Version 3;
Cart_Site
Version 3: AOD Level 2.0
The following data are automatically cloud cleared and quality assured.
Contact: PI=Rick Wagener
AERONET_Site,Date(dd:mm:yyyy),Time(hh:mm:ss),AOD_1640nm,AOD_500nm,Site_Latitude(Degrees),Site_Longitude(Degrees)
Cart_Site,01:06:2000,13:45:12,-999.000000,0.092931,36.606680,-97.485954
Cart_Site,01:06:2000,14:00:41,-999.000000,0.090122,36.606680,-97.485954
`

// fakeAERONET serves cartSiteAOD, or the status in fail when it is non-zero.
type fakeAERONET struct {
	server   *httptest.Server
	requests atomic.Int32
	fail     atomic.Int32
	body     atomic.Value
	query    atomic.Value
}

func newFakeAERONET(t *testing.T) *fakeAERONET {
	t.Helper()

	f := &fakeAERONET{}
	f.body.Store(cartSiteAOD)
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		f.query.Store(r.URL.Query())
		if status := int(f.fail.Load()); status != 0 {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write([]byte(f.body.Load().(string)))
	}))
	t.Cleanup(f.server.Close)

	return f
}

// lastQuery returns the query string of the most recent upstream request.
func (f *fakeAERONET) lastQuery() url.Values {
	q, _ := f.query.Load().(url.Values)
	return q
}

// newClient wires an AERONET client through a registered resilient client.
func newClient(t *testing.T, baseURL string, registry *resilience.Registry, breaker *resilience.CircuitBreakerConfig) *aeronet.Client {
	t.Helper()

	httpClient := resilience.NewClient(resilience.ClientConfig{
		Name:           aeronet.ProviderName,
		Registry:       registry,
		CircuitBreaker: breaker,
	})
	client, err := aeronet.NewClient(aeronet.ClientConfig{
		BaseURL:    baseURL,
		HTTPClient: httpClient,
	})
	require.NoError(t, err)
	return client
}
