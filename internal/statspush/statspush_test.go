package statspush

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/metalid/internal/config"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticStats struct {
	stats memberdomain.Stats
	err   error
}

func (s staticStats) Stats(context.Context) (memberdomain.Stats, error) {
	return s.stats, s.err
}

func TestNewPusherDisabled(t *testing.T) {
	log := zap.NewNop()
	assert.Nil(t, NewPusher(config.Config{}, log))
	assert.Nil(t, NewPusher(config.Config{StatsPush: config.StatsPushConfig{Enabled: true}}, log))
	assert.Nil(t, NewPusher(config.Config{StatsPush: config.StatsPushConfig{
		Enabled:  true,
		Exporter: "carrier_pigeon",
		Endpoint: "http://localhost",
	}}, log))
}

func TestWorkerPushesMemberGauges(t *testing.T) {
	var received prompb.WriteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		decoded, err := snappy.Decode(nil, body)
		assert.NoError(t, err)
		assert.NoError(t, received.Unmarshal(decoded))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	pusher := NewPusher(config.Config{StatsPush: config.StatsPushConfig{
		Enabled:   true,
		Exporter:  exporterPrometheusRemoteWrite,
		Endpoint:  srv.URL,
		AuthToken: "secret",
	}}, zap.NewNop())
	require.NotNil(t, pusher)

	worker := NewWorker(zap.NewNop(), staticStats{stats: memberdomain.Stats{Total: 3, Active: 2, Pending: 1}}, NewGauges(), pusher, 0)
	require.NoError(t, worker.RunOnce(context.Background()))

	values := map[string]float64{}
	for _, ts := range received.Timeseries {
		var name, status string
		for _, label := range ts.Labels {
			switch label.Name {
			case "__name__":
				name = label.Value
			case "status":
				status = label.Value
			}
		}
		assert.Equal(t, "metalid_members", name)
		require.Len(t, ts.Samples, 1)
		values[status] = ts.Samples[0].Value
	}
	assert.Equal(t, map[string]float64{"total": 3, "active": 2, "pending": 1}, values)
}

func TestWorkerSurfacesStoreError(t *testing.T) {
	worker := NewWorker(zap.NewNop(), staticStats{err: errors.New("db down")}, NewGauges(), NewRemoteWritePusher("http://127.0.0.1:0", ""), 0)
	assert.Error(t, worker.RunOnce(context.Background()))
}

func TestRemoteWriteRejectsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gauges := NewGauges()
	gauges.Set(memberdomain.Stats{Total: 1})
	err := NewRemoteWritePusher(srv.URL, "").Push(context.Background(), gauges.Registry())
	assert.Error(t, err)
}
