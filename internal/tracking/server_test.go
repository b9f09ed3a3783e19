package tracking

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dtrain-ml/dtrain/appmaster/internal/config"
	"github.com/dtrain-ml/dtrain/appmaster/internal/rm/yarnrm"
	"github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"
)

type staticStatus yarnrm.Status

func (s staticStatus) Status() yarnrm.Status { return yarnrm.Status(s) }

type staticProgress float32

func (p staticProgress) Progress() float32 { return float32(p) }

func TestStatusEndpoint(t *testing.T) {
	s := New(
		config.TrackingConfig{Host: "127.0.0.1", Port: 0},
		staticStatus{
			ApplicationID: "app-1",
			Running:       2,
			Bands: []yarnrm.BandStatus{
				{Priority: 10, Containers: []cproto.ID{"c1", "c2"}},
			},
			Blacklist: []string{"n1"},
		},
		staticProgress(0.75),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "app-1", body["application_id"])
	require.Equal(t, float64(2), body["running"])
	require.Equal(t, 0.75, body["progress"])
	require.Equal(t, []interface{}{"n1"}, body["blacklist"])
}

func TestRootRedirectsToStatus(t *testing.T) {
	s := New(config.TrackingConfig{}, staticStatus{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/api/v1/status", rec.Header().Get("Location"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(config.TrackingConfig{}, staticStatus{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.String())
}
