package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/sirupsen/logrus"

	"go.ngs.io/pgw4era/internal/adapter/store/models"
	"go.ngs.io/pgw4era/internal/adapter/store/ncio"
)

// DefaultCoverage is the period each CMIP6 experiment must span.
var DefaultCoverage = map[string]Period{
	"historical": {Start: 1850, End: 2014},
	"ssp585":     {Start: 2015, End: 2100},
}

// Coverage is the availability of one model, experiment and variable.
type Coverage struct {
	Model      models.Model
	Experiment string
	Variable   string
	Files      int
	First      time.Time
	Last       time.Time
	Complete   bool
	Reason     string
}

// CompletenessChecker verifies that a CMIP6 archive holds every file the
// signal builder needs.
type CompletenessChecker struct {
	archive  *models.Archive
	coverage map[string]Period
	log      logrus.FieldLogger
}

// NewCompletenessChecker creates a checker. A nil coverage uses DefaultCoverage.
func NewCompletenessChecker(archive *models.Archive, coverage map[string]Period, log logrus.FieldLogger) *CompletenessChecker {
	if coverage == nil {
		coverage = DefaultCoverage
	}
	return &CompletenessChecker{archive: archive, coverage: coverage, log: log}
}

// Check inspects every model, experiment and variable. Unreadable files
// make the entry incomplete; only an unknown experiment is an error.
func (c *CompletenessChecker) Check(ms []models.Model, experiments, variables []string) ([]Coverage, error) {
	var out []Coverage
	for _, exp := range experiments {
		p, ok := c.coverage[exp]
		if !ok {
			return nil, fmt.Errorf("no coverage period for experiment %q", exp)
		}
		for _, v := range variables {
			for _, m := range ms {
				cov := c.checkOne(m, exp, v, p)
				entry := c.log.WithFields(logrus.Fields{"model": m.ID(), "experiment": exp, "var": v})
				if cov.Complete {
					entry.Debug("complete")
				} else {
					entry.WithField("reason", cov.Reason).Warn("incomplete")
				}
				out = append(out, cov)
			}
		}
	}
	return out, nil
}

func (c *CompletenessChecker) checkOne(m models.Model, exp, variable string, p Period) Coverage {
	cov := Coverage{Model: m, Experiment: exp, Variable: variable}
	files, err := c.archive.Files(exp, variable, m)
	if err != nil {
		cov.Reason = err.Error()
		return cov
	}
	cov.Files = len(files)
	if len(files) == 0 {
		cov.Reason = "no files"
		return cov
	}

	for _, f := range files {
		first, last, err := timeRange(f)
		if err != nil {
			cov.Reason = err.Error()
			return cov
		}
		if cov.First.IsZero() || first.Before(cov.First) {
			cov.First = first
		}
		if last.After(cov.Last) {
			cov.Last = last
		}
	}

	from, to := p.Bounds()
	switch {
	case monthAfter(cov.First, from):
		cov.Reason = fmt.Sprintf("starts %s, after %s", cov.First.Format("2006-01"), from.Format("2006-01"))
	case monthAfter(to, cov.Last):
		cov.Reason = fmt.Sprintf("ends %s, before %s", cov.Last.Format("2006-01"), to.Format("2006-01"))
	default:
		cov.Complete = true
	}
	return cov
}

// monthAfter reports whether a falls in a later calendar month than b.
func monthAfter(a, b time.Time) bool {
	return a.Year()*12+int(a.Month()) > b.Year()*12+int(b.Month())
}

func timeRange(path string) (time.Time, time.Time, error) {
	var first, last time.Time
	err := ncio.WithFile(path, func(ds netcdf.Dataset) error {
		axis, err := ncio.ReadTimes(ds)
		if err != nil {
			return err
		}
		if len(axis.Times) == 0 {
			return fmt.Errorf("empty time axis")
		}
		first, last = axis.Times[0], axis.Times[len(axis.Times)-1]
		for _, t := range axis.Times {
			if t.Before(first) {
				first = t
			}
			if t.After(last) {
				last = t
			}
		}
		return nil
	})
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%s: %w", path, err)
	}
	return first, last, nil
}

// CompleteModels returns the models whose every entry is complete, in
// the order of ms.
func CompleteModels(ms []models.Model, cov []Coverage) []models.Model {
	bad := make(map[string]bool)
	for _, c := range cov {
		if !c.Complete {
			bad[c.Model.ID()] = true
		}
	}
	out := make([]models.Model, 0, len(ms))
	for _, m := range ms {
		if !bad[m.ID()] {
			out = append(out, m)
		}
	}
	return out
}

// IncompleteSummary groups incomplete entries by model id.
func IncompleteSummary(cov []Coverage) map[string][]string {
	out := make(map[string][]string)
	for _, c := range cov {
		if c.Complete {
			continue
		}
		id := c.Model.ID()
		out[id] = append(out[id], fmt.Sprintf("%s/%s: %s", c.Experiment, c.Variable, c.Reason))
	}
	for id := range out {
		sort.Strings(out[id])
	}
	return out
}
