package intermediate

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"go.ngs.io/pgw4era/internal/domain"
)

// recordReader reads big-endian Fortran sequential records.
type recordReader struct {
	r io.Reader
}

// next returns the payload of the next record, or io.EOF at a clean end of input.
func (rr *recordReader) next() (*bytes.Reader, error) {
	var n int32
	if err := binary.Read(rr.r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrBadRecord, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(rr.r, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	var tail int32
	if err := binary.Read(rr.r, binary.BigEndian, &tail); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	if tail != n {
		return nil, fmt.Errorf("%w: leading marker %d, trailing marker %d", ErrBadRecord, n, tail)
	}
	return bytes.NewReader(payload), nil
}

func (rr *recordReader) must() (*bytes.Reader, error) {
	b, err := rr.next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: truncated slab", ErrBadRecord)
	}
	return b, err
}

func readString(b *bytes.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(b, buf); err != nil {
		return "", err
	}
	return strings.TrimRight(string(buf), " \x00"), nil
}

// Read parses an intermediate stream written with a lat-lon projection.
// The grid and date of the first slab are taken as the record's.
func Read(r io.Reader) (Record, error) {
	rr := &recordReader{r: r}
	var rec Record
	for i := 0; ; i++ {
		b, err := rr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Record{}, err
		}
		var version int32
		if err := binary.Read(b, binary.BigEndian, &version); err != nil {
			return Record{}, fmt.Errorf("%w: version: %v", ErrBadRecord, err)
		}
		if version != Version {
			return Record{}, fmt.Errorf("%w: version %d", ErrUnsupported, version)
		}

		s, g, date, source, err := readSlab(rr)
		if err != nil {
			return Record{}, fmt.Errorf("slab %d: %w", i, err)
		}
		if i == 0 {
			rec.Date = date
			rec.Source = source
			rec.Grid = g.Grid
			rec.EarthRadius = g.radius
			rec.WindEarthRelative = g.windRel
		}
		rec.Slabs = append(rec.Slabs, s)
	}
	return rec, nil
}

type slabGrid struct {
	domain.Grid
	radius  float64
	windRel bool
}

func readSlab(rr *recordReader) (Slab, slabGrid, time.Time, string, error) {
	var (
		s    Slab
		g    slabGrid
		date time.Time
	)
	b, err := rr.must()
	if err != nil {
		return s, g, date, "", err
	}
	hdate, err := readString(b, hdateLen)
	if err != nil {
		return s, g, date, "", err
	}
	var xfcst float32
	if err := binary.Read(b, binary.BigEndian, &xfcst); err != nil {
		return s, g, date, "", err
	}
	source, err := readString(b, sourceLen)
	if err != nil {
		return s, g, date, "", err
	}
	if s.Field, err = readString(b, fieldLen); err != nil {
		return s, g, date, "", err
	}
	if s.Units, err = readString(b, unitsLen); err != nil {
		return s, g, date, "", err
	}
	if s.Desc, err = readString(b, descLen); err != nil {
		return s, g, date, "", err
	}
	var head struct {
		XLevel float32
		NX     int32
		NY     int32
		IProj  int32
	}
	if err := binary.Read(b, binary.BigEndian, &head); err != nil {
		return s, g, date, "", err
	}
	if head.IProj != ProjLatLon {
		return s, g, date, "", fmt.Errorf("%w: projection %d", ErrUnsupported, head.IProj)
	}
	s.Level = float64(head.XLevel)
	if date, err = time.Parse(dateLayout, hdate); err != nil {
		return s, g, date, "", fmt.Errorf("hdate %q: %w", hdate, err)
	}

	if b, err = rr.must(); err != nil {
		return s, g, date, "", err
	}
	if _, err := readString(b, startLocLen); err != nil {
		return s, g, date, "", err
	}
	var proj [5]float32
	if err := binary.Read(b, binary.BigEndian, &proj); err != nil {
		return s, g, date, "", err
	}
	g.Grid = domain.Grid{
		StartLat: float64(proj[0]),
		StartLon: float64(proj[1]),
		DLat:     float64(proj[2]),
		DLon:     float64(proj[3]),
		NLat:     int(head.NY),
		NLon:     int(head.NX),
	}
	g.radius = float64(proj[4])

	if b, err = rr.must(); err != nil {
		return s, g, date, "", err
	}
	var windRel int32
	if err := binary.Read(b, binary.BigEndian, &windRel); err != nil {
		return s, g, date, "", err
	}
	g.windRel = windRel != 0

	if b, err = rr.must(); err != nil {
		return s, g, date, "", err
	}
	data := make([]float32, int(head.NX)*int(head.NY))
	if err := binary.Read(b, binary.BigEndian, data); err != nil {
		return s, g, date, "", fmt.Errorf("%w: slab data: %v", ErrBadRecord, err)
	}
	s.Data = make([]float64, len(data))
	for i, v := range data {
		if v == MissingValue {
			s.Data[i] = math.NaN()
			continue
		}
		s.Data[i] = float64(v)
	}
	return s, g, date, source, nil
}

// ReadFile reads an intermediate file from disk.
func ReadFile(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, err
	}
	defer f.Close()
	rec, err := Read(bufio.NewReader(f))
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}
