package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vitalsense/analysis-jobs/internal/adapters/broker"
	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/data"
	domainjob "github.com/vitalsense/analysis-jobs/internal/domain/job"
	"github.com/vitalsense/analysis-jobs/internal/observability/metrics"
	"github.com/vitalsense/analysis-jobs/internal/service"
)

// testAPI bundles a router over in-memory backends.
type testAPI struct {
	handler http.Handler
	store   *data.MemoryJobRepo
	broker  *broker.MemoryBroker
	metrics *metrics.Recorder
}

type apiOption func(*RouterServices, *testAPI)

func withStrictNotFound() apiOption {
	return func(s *RouterServices, _ *testAPI) { s.StrictNotFound = true }
}

func withAuth(cfg AuthConfig) apiOption {
	return func(s *RouterServices, _ *testAPI) { s.Auth = &cfg }
}

func withPublisher(p core.Publisher) apiOption {
	return func(s *RouterServices, a *testAPI) {
		s.Submission = service.MustNewSubmissionService(service.SubmissionServiceOptions{Store: a.store, Publisher: p})
	}
}

func withHealth(h HealthChecker) apiOption {
	return func(s *RouterServices, _ *testAPI) { s.Health = h }
}

func newTestAPI(t *testing.T, opts ...apiOption) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := &testAPI{
		store:   data.NewMemoryJobRepo(),
		broker:  broker.NewMemoryBroker(broker.MemoryOptions{Logger: logger}),
		metrics: metrics.NewRecorder(),
	}
	t.Cleanup(func() { _ = a.broker.Close() })

	notifier, err := domainjob.NewNotifier(domainjob.NotifierOptions{Subscriber: a.broker, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(notifier.StopAll)

	svcs := RouterServices{
		Submission: service.MustNewSubmissionService(service.SubmissionServiceOptions{
			Store: a.store, Publisher: a.broker, Logger: logger, Metrics: a.metrics,
		}),
		Ingestion: service.MustNewIngestionService(service.IngestionServiceOptions{
			Store: a.store, Events: a.broker, Notifier: notifier, Logger: logger, Metrics: a.metrics,
		}),
		Query: service.MustNewQueryService(service.QueryServiceOptions{
			Store: a.store, Notifier: notifier, Logger: logger,
		}),
		Metrics: a.metrics,
		Logger:  logger,
	}
	for _, o := range opts {
		o(&svcs, a)
	}
	a.handler = NewRouter(svcs)
	return a
}

func (a *testAPI) do(t *testing.T, method, target string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}
