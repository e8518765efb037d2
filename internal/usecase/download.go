package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.ngs.io/pgw4era/internal/adapter/cds"
)

// Retriever fetches one CDS request into a file.
type Retriever interface {
	Retrieve(ctx context.Context, dataset string, req cds.Request, target string) error
}

// DailyFiles names the ERA5 files of a day.
type DailyFiles interface {
	PressureFile(day time.Time) string
	SurfaceFile(day time.Time) string
}

// Download fetches ERA5 pressure-level and single-level files day by day.
type Download struct {
	client  Retriever
	files   DailyFiles
	opts    cds.Options
	workers int
	log     logrus.FieldLogger
}

// NewDownload creates a downloader. workers bounds the concurrent CDS jobs.
func NewDownload(client Retriever, files DailyFiles, opts cds.Options, workers int, log logrus.FieldLogger) *Download {
	if workers < 1 {
		workers = 1
	}
	return &Download{client: client, files: files, opts: opts, workers: workers, log: log}
}

// Run downloads every day of [start, end]. Existing files are kept by the client.
func (d *Download) Run(ctx context.Context, start, end time.Time) error {
	days, err := Days(start, end)
	if err != nil {
		return err
	}
	d.log.WithFields(logrus.Fields{"days": len(days), "workers": d.workers}).Info("downloading ERA5")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, day := range days {
		g.Go(func() error {
			if err := d.client.Retrieve(ctx, cds.PressureLevelDataset, cds.PressureLevelRequest(day, d.opts), d.files.PressureFile(day)); err != nil {
				return fmt.Errorf("pressure levels %s: %w", day.Format("2006-01-02"), err)
			}
			if err := d.client.Retrieve(ctx, cds.SingleLevelDataset, cds.SingleLevelRequest(day, d.opts), d.files.SurfaceFile(day)); err != nil {
				return fmt.Errorf("single levels %s: %w", day.Format("2006-01-02"), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Days lists the UTC days from start to end inclusive.
func Days(start, end time.Time) ([]time.Time, error) {
	start, end = start.UTC(), end.UTC()
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if last.Before(first) {
		return nil, fmt.Errorf("end %s before start %s", last.Format("2006-01-02"), first.Format("2006-01-02"))
	}
	var out []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out, nil
}
