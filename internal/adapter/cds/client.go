// Package cds retrieves ERA5 data from the Copernicus Climate Data Store.
package cds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// DefaultURL is the CDS API root.
const DefaultURL = "https://cds.climate.copernicus.eu/api"

// Job states reported by the retrieve API.
const (
	StatusAccepted   = "accepted"
	StatusRunning    = "running"
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
	StatusRejected   = "rejected"
)

// ErrJobFailed is returned when the CDS reports a failed or rejected job.
var ErrJobFailed = errors.New("cds job failed")

// errPending keeps the poll loop going while a job is queued or running.
var errPending = errors.New("cds job pending")

// Request holds the inputs of one retrieve request.
type Request map[string]interface{}

type jobStatus struct {
	JobID  string `json:"jobID"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type jobResults struct {
	Asset struct {
		Value struct {
			Href   string `json:"href"`
			Length int64  `json:"file:size"`
		} `json:"value"`
	} `json:"asset"`
}

// Client submits retrieve jobs, polls them and downloads the results.
type Client struct {
	url        string
	key        string
	httpClient *http.Client
	log        logrus.FieldLogger

	// NewBackOff returns the polling and retry policy of one job.
	NewBackOff func() backoff.BackOff
}

// NewClient creates a client for the API at url authenticated with key.
func NewClient(url, key string, log logrus.FieldLogger) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url:        strings.TrimRight(url, "/"),
		key:        key,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		log:        log,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 5 * time.Second
			b.MaxInterval = 2 * time.Minute
			b.MaxElapsedTime = 12 * time.Hour
			return b
		},
	}
}

// Retrieve runs a request for dataset and stores the result at target.
// An existing target is kept. Transient HTTP failures are retried.
func (c *Client) Retrieve(ctx context.Context, dataset string, req Request, target string) error {
	if _, err := os.Stat(target); err == nil {
		c.log.WithField("file", target).Info("already downloaded")
		return nil
	}
	log := c.log.WithFields(logrus.Fields{"dataset": dataset, "file": target})

	var job jobStatus
	err := c.retry(ctx, log, func() error {
		var err error
		job, err = c.submit(ctx, dataset, req)
		return err
	})
	if err != nil {
		return fmt.Errorf("submit %s: %w", dataset, err)
	}
	log = log.WithField("job", job.JobID)
	log.Info("request submitted")

	err = c.retry(ctx, log, func() error {
		st, err := c.status(ctx, job.JobID)
		if err != nil {
			return err
		}
		switch st.Status {
		case StatusSuccessful:
			return nil
		case StatusFailed, StatusRejected:
			return backoff.Permanent(fmt.Errorf("%w: %s %s", ErrJobFailed, st.Status, st.Detail))
		default:
			return errPending
		}
	})
	if err != nil {
		return fmt.Errorf("job %s: %w", job.JobID, err)
	}

	var href string
	err = c.retry(ctx, log, func() error {
		var res jobResults
		if err := c.getJSON(ctx, c.url+"/retrieve/v1/jobs/"+job.JobID+"/results", &res); err != nil {
			return err
		}
		href = res.Asset.Value.Href
		if href == "" {
			return backoff.Permanent(fmt.Errorf("job %s: results carry no download link", job.JobID))
		}
		return c.download(ctx, href, target)
	})
	if err != nil {
		return fmt.Errorf("download job %s: %w", job.JobID, err)
	}
	log.Info("downloaded")
	return nil
}

func (c *Client) retry(ctx context.Context, log logrus.FieldLogger, op backoff.Operation) error {
	return backoff.RetryNotify(
		op,
		backoff.WithContext(c.NewBackOff(), ctx),
		func(err error, d time.Duration) {
			if errors.Is(err, errPending) {
				log.WithField("next", d).Debug("job pending")
				return
			}
			log.WithError(err).Warnf("retrying in %v", d)
		},
	)
}

func (c *Client) submit(ctx context.Context, dataset string, req Request) (jobStatus, error) {
	body, err := json.Marshal(map[string]interface{}{"inputs": req})
	if err != nil {
		return jobStatus{}, backoff.Permanent(err)
	}
	u := c.url + "/retrieve/v1/processes/" + dataset + "/execution"
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return jobStatus{}, backoff.Permanent(err)
	}
	r.Header.Set("Content-Type", "application/json")
	var st jobStatus
	if err := c.do(r, &st); err != nil {
		return jobStatus{}, err
	}
	if st.JobID == "" {
		return jobStatus{}, backoff.Permanent(errors.New("response carries no job id"))
	}
	return st, nil
}

func (c *Client) status(ctx context.Context, id string) (jobStatus, error) {
	var st jobStatus
	err := c.getJSON(ctx, c.url+"/retrieve/v1/jobs/"+id, &st)
	return st, err
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) error {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	return c.do(r, out)
}

func (c *Client) do(r *http.Request, out interface{}) error {
	r.Header.Set("PRIVATE-TOKEN", c.key)
	resp, err := c.httpClient.Do(r)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", r.URL.Path, err)
	}
	return nil
}

// checkStatus turns HTTP errors into errors; client errors other than
// rate limiting are not retried.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("%s %s: %s: %s", resp.Request.Method, resp.Request.URL.Path, resp.Status, strings.TrimSpace(string(msg)))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return backoff.Permanent(err)
	}
	return err
}

// download streams href into target through a temporary file.
func (c *Client) download(ctx context.Context, href, target string) error {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := c.httpClient.Do(r)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return backoff.Permanent(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return backoff.Permanent(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
