// Package wps prepares namelists and runs the WPS programs and real.exe
// that turn intermediate files into WRF boundary conditions.
package wps

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.ngs.io/pgw4era/internal/adapter/intermediate"
)

// DeckVars are the values substituted into namelist decks.
type DeckVars struct {
	Start    time.Time
	End      time.Time
	SoilFile string // Intermediate file holding the soil initial state.
}

func (v DeckVars) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"%syear%", strconv.Itoa(v.Start.Year()),
		"%smonth%", fmt.Sprintf("%02d", int(v.Start.Month())),
		"%sday%", fmt.Sprintf("%02d", v.Start.Day()),
		"%eyear%", strconv.Itoa(v.End.Year()),
		"%emonth%", fmt.Sprintf("%02d", int(v.End.Month())),
		"%eday%", fmt.Sprintf("%02d", v.End.Day()),
		"%soilera5_file%", v.SoilFile,
	)
}

// RenderDeck substitutes the date placeholders of a deck.
func RenderDeck(deck string, v DeckVars) string {
	return v.replacer().Replace(deck)
}

// RenderDeckFile renders the deck at in into out.
func RenderDeckFile(in, out string, v DeckVars) error {
	b, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read deck: %w", err)
	}
	if err := os.WriteFile(out, []byte(RenderDeck(string(b), v)), 0o644); err != nil {
		return fmt.Errorf("write namelist: %w", err)
	}
	return nil
}

// CheckLog reports whether message appears in the last n lines of a log file.
func CheckLog(path string, n int, message string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return false, err
	}
	for _, line := range ring {
		if strings.Contains(line, message) {
			return true, nil
		}
	}
	return false, nil
}

// SelectIntermediate keeps intermediate files (PREFIX:YYYY-MM-DD_HH) whose
// date lies within [start, end], comparing calendar days.
func SelectIntermediate(files []string, start, end time.Time) []string {
	d1, d2 := civilDay(start), civilDay(end)
	var out []string
	for _, f := range files {
		_, t, err := intermediate.ParseFileName(f)
		if err != nil {
			continue
		}
		if d := civilDay(t); !d.Before(d1) && !d.After(d2) {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// SelectDaily keeps files named *_YYYYMMDD.<ext> whose date lies within
// [start, end].
func SelectDaily(files []string, start, end time.Time) []string {
	d1, d2 := civilDay(start), civilDay(end)
	var out []string
	for _, f := range files {
		base := filepath.Base(f)
		base = strings.TrimSuffix(base, filepath.Ext(base))
		i := strings.LastIndex(base, "_")
		if i < 0 {
			continue
		}
		t, err := time.Parse("20060102", base[i+1:])
		if err != nil {
			continue
		}
		if !t.Before(d1) && !t.After(d2) {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

func civilDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
