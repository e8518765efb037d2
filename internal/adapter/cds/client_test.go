package cds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCDS serves a job that is pending for the first polls.
type fakeCDS struct {
	polls      int32
	pending    int32
	finalState string
	submitted  map[string]interface{}
	token      string
}

func (f *fakeCDS) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/retrieve/v1/processes/reanalysis-era5-single-levels/execution", func(w http.ResponseWriter, r *http.Request) {
		f.token = r.Header.Get("PRIVATE-TOKEN")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.submitted))
		srvURL = "http://" + r.Host
		_ = json.NewEncoder(w).Encode(jobStatus{JobID: "job-1", Status: StatusAccepted})
	})
	mux.HandleFunc("/retrieve/v1/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&f.polls, 1)
		st := StatusRunning
		if n > f.pending {
			st = f.finalState
		}
		_ = json.NewEncoder(w).Encode(jobStatus{JobID: "job-1", Status: st})
	})
	mux.HandleFunc("/retrieve/v1/jobs/job-1/results", func(w http.ResponseWriter, r *http.Request) {
		var res jobResults
		res.Asset.Value.Href = srvURL + "/download/job-1.nc"
		_ = json.NewEncoder(w).Encode(res)
	})
	mux.HandleFunc("/download/job-1.nc", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("CDF-payload"))
	})
	return mux
}

func testClient(url string) *Client {
	log, _ := test.NewNullLogger()
	c := NewClient(url, "uid:key", log)
	c.NewBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 10)
	}
	return c
}

// TestClient_Retrieve checks submit, polling until success and download.
func TestClient_Retrieve(t *testing.T) {
	f := &fakeCDS{pending: 2, finalState: StatusSuccessful}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "era5_daily_sfc_20210115.nc")
	day := time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)
	c := testClient(srv.URL)

	require.NoError(t, c.Retrieve(context.Background(), SingleLevelDataset, SingleLevelRequest(day, DefaultOptions()), target))

	b, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "CDF-payload", string(b))
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.polls))
	assert.Equal(t, "uid:key", f.token)

	inputs := f.submitted["inputs"].(map[string]interface{})
	assert.Equal(t, []interface{}{"15"}, inputs["day"])
	assert.Equal(t, []interface{}{"00:00", "06:00", "12:00", "18:00"}, inputs["time"])

	// A second retrieve finds the file and does not contact the server.
	require.NoError(t, c.Retrieve(context.Background(), SingleLevelDataset, nil, target))
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.polls))
}

func TestClient_RetrieveFailedJob(t *testing.T) {
	f := &fakeCDS{pending: 0, finalState: StatusFailed}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "out.nc")
	err := testClient(srv.URL).Retrieve(context.Background(), SingleLevelDataset, Request{}, target)
	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.polls))
	assert.NoFileExists(t, target)
}

func TestClient_SubmitUnauthorized(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := testClient(srv.URL).Retrieve(context.Background(), PressureLevelDataset, Request{}, filepath.Join(t.TempDir(), "x.nc"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "client errors are not retried")
}

func TestPressureLevelRequest(t *testing.T) {
	req := PressureLevelRequest(time.Date(2010, 7, 1, 0, 0, 0, 0, time.UTC), Options{
		Hours: []int{0, 12}, Resolution: 0.25, Area: []float64{60, -20, 20, 40},
	})
	levels := req["pressure_level"].([]string)
	assert.Len(t, levels, 37)
	assert.Equal(t, "1", levels[0])
	assert.Equal(t, "1000", levels[36])
	assert.Equal(t, []string{"07"}, req["month"])
	assert.Equal(t, []string{"00:00", "12:00"}, req["time"])
	assert.Equal(t, []float64{0.25, 0.25}, req["grid"])
	assert.Equal(t, []float64{60, -20, 20, 40}, req["area"])
}
