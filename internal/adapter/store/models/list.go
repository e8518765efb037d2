// Package models provides the CMIP6 model list and the per-model monthly
// file layout ({root}/{experiment}/{var}/{model}/{var}_*.nc).
package models

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultListFile is the model list read when none is given.
const DefaultListFile = "list_CMIP6.txt"

// Model identifies one CMIP6 model run, e.g. "GFDL-CM4_r1i1p1f1".
type Model struct {
	Name   string
	Member string
}

// ID returns the directory name of the model run.
func (m Model) ID() string {
	if m.Member == "" {
		return m.Name
	}
	return m.Name + "_" + m.Member
}

func (m Model) String() string { return m.ID() }

// ParseModel splits "NAME_MEMBER". Member ids start with "r" (ripf notation);
// anything else is treated as part of the name.
func ParseModel(id string) (Model, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Model{}, errors.New("empty model id")
	}
	i := strings.LastIndex(id, "_")
	if i <= 0 || i == len(id)-1 || id[i+1] != 'r' {
		return Model{Name: id}, nil
	}
	return Model{Name: id[:i], Member: id[i+1:]}, nil
}

// ParseModels parses a comma separated list as given on the command line.
func ParseModels(list string) ([]Model, error) {
	var out []Model
	for _, id := range strings.Split(list, ",") {
		if strings.TrimSpace(id) == "" {
			continue
		}
		m, err := ParseModel(id)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, errors.New("no models given")
	}
	return out, nil
}

// LoadList reads a model list file. Each line holds one model id, or a
// "name,member" pair; blank lines and lines starting with '#' are ignored.
// Duplicates are dropped, keeping the first occurrence.
func LoadList(path string) ([]Model, error) {
	//nolint:gosec // G304: path comes from configuration.
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model list: %w", err)
	}
	defer func() { _ = file.Close() }()
	return ReadList(file)
}

// ReadList parses a model list from r.
func ReadList(r io.Reader) ([]Model, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	models := make([]Model, 0)
	seen := make(map[string]bool)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read model list: %w", err)
		}

		var m Model
		switch len(record) {
		case 1:
			if strings.TrimSpace(record[0]) == "" {
				continue
			}
			if m, err = ParseModel(record[0]); err != nil {
				return nil, err
			}
		case 2:
			m = Model{Name: strings.TrimSpace(record[0]), Member: strings.TrimSpace(record[1])}
		default:
			return nil, fmt.Errorf("invalid model record: expected 1 or 2 columns, got %d", len(record))
		}
		if m.Name == "" {
			return nil, fmt.Errorf("invalid model record %v: empty name", record)
		}
		if seen[m.ID()] {
			continue
		}
		seen[m.ID()] = true
		models = append(models, m)
	}

	if len(models) == 0 {
		return nil, errors.New("no models found in list")
	}
	return models, nil
}

// Archive locates CMIP6 monthly files below a root directory.
type Archive struct {
	root string
}

// NewArchive creates an archive rooted at dir.
func NewArchive(dir string) *Archive {
	return &Archive{root: dir}
}

// Dir returns the directory of one model, experiment and variable.
func (a *Archive) Dir(experiment, variable string, m Model) string {
	return filepath.Join(a.root, experiment, variable, m.ID())
}

// Files returns the sorted NetCDF files of one model, experiment and variable.
// A missing directory yields no files and no error.
func (a *Archive) Files(experiment, variable string, m Model) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(a.Dir(experiment, variable, m), variable+"_*.nc"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ListModels returns the model ids present for an experiment and variable.
func (a *Archive) ListModels(experiment, variable string) ([]Model, error) {
	entries, err := os.ReadDir(filepath.Join(a.root, experiment, variable))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	out := make([]Model, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m, err := ParseModel(entry.Name())
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
