package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Chunk is one WPS/real run. Consecutive chunks share their boundary day.
type Chunk struct {
	Start time.Time
	End   time.Time
	First bool
}

// PlanChunks splits the simulation of the months [from, to) into runs of
// chunkDays, starting spinupDays before the first day of from's month.
func PlanChunks(from, to time.Time, spinupDays, chunkDays int) ([]Chunk, error) {
	if chunkDays < 1 {
		return nil, fmt.Errorf("chunk length must be >= 1 day, got %d", chunkDays)
	}
	if spinupDays < 0 {
		return nil, fmt.Errorf("spin-up must be >= 0 days, got %d", spinupDays)
	}
	start := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -spinupDays)
	end := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	if !start.Before(end) {
		return nil, fmt.Errorf("empty simulation period %s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	var chunks []Chunk
	for cur := start; cur.Before(end); {
		next := cur.AddDate(0, 0, chunkDays)
		if next.After(end) {
			next = end
		}
		chunks = append(chunks, Chunk{Start: cur, End: next, First: len(chunks) == 0})
		cur = next
	}
	return chunks, nil
}

// ChunkRunner runs the boundary-condition programs of one chunk.
type ChunkRunner interface {
	Run(ctx context.Context, start, end time.Time, first bool) error
}

// Boundary generates WRF boundary conditions chunk by chunk.
type Boundary struct {
	runner ChunkRunner
	log    logrus.FieldLogger
}

// NewBoundary creates a boundary generator.
func NewBoundary(runner ChunkRunner, log logrus.FieldLogger) *Boundary {
	return &Boundary{runner: runner, log: log}
}

// Run processes the chunks in order and stops at the first failure.
func (b *Boundary) Run(ctx context.Context, chunks []Chunk) error {
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := b.log.WithFields(logrus.Fields{
			"chunk": fmt.Sprintf("%d/%d", i+1, len(chunks)),
			"start": c.Start.Format("2006-01-02"),
			"end":   c.End.Format("2006-01-02"),
		})
		log.Info("running boundary chunk")
		if err := b.runner.Run(ctx, c.Start, c.End, c.First); err != nil {
			return fmt.Errorf("chunk %s to %s: %w", c.Start.Format("2006-01-02"), c.End.Format("2006-01-02"), err)
		}
	}
	return nil
}
