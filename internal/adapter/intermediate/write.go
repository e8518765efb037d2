package intermediate

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// recordWriter frames payloads as big-endian Fortran sequential records.
type recordWriter struct {
	w   io.Writer
	buf bytes.Buffer
	err error
}

func (rw *recordWriter) put(v interface{}) {
	if rw.err != nil {
		return
	}
	rw.err = binary.Write(&rw.buf, binary.BigEndian, v)
}

func (rw *recordWriter) flush() {
	if rw.err != nil {
		return
	}
	n := int32(rw.buf.Len())
	if rw.err = binary.Write(rw.w, binary.BigEndian, n); rw.err != nil {
		return
	}
	if _, rw.err = rw.w.Write(rw.buf.Bytes()); rw.err != nil {
		return
	}
	rw.err = binary.Write(rw.w, binary.BigEndian, n)
	rw.buf.Reset()
}

// Write serializes every slab of r. Values are written in single precision
// with non-finite values replaced by MissingValue.
func Write(w io.Writer, r Record) error {
	nx, ny := r.Grid.NLon, r.Grid.NLat
	if nx < 1 || ny < 1 {
		return fmt.Errorf("write intermediate: empty grid %dx%d", ny, nx)
	}
	radius := r.EarthRadius
	if radius == 0 {
		radius = EarthRadius
	}
	source := r.Source
	if source == "" {
		source = DefaultSource
	}
	hdate := r.Date.UTC().Format(dateLayout)

	rw := &recordWriter{w: w}
	data := make([]float32, nx*ny)
	for _, s := range r.Slabs {
		if len(s.Data) != nx*ny {
			return fmt.Errorf("write intermediate: slab %s has %d values, grid is %dx%d", s.Field, len(s.Data), ny, nx)
		}

		rw.put(int32(Version))
		rw.flush()

		rw.put(pad(hdate, hdateLen))
		rw.put(float32(0)) // Forecast hour.
		rw.put(pad(source, sourceLen))
		rw.put(pad(s.Field, fieldLen))
		rw.put(pad(s.Units, unitsLen))
		rw.put(pad(s.Desc, descLen))
		rw.put(float32(s.Level))
		rw.put(int32(nx))
		rw.put(int32(ny))
		rw.put(int32(ProjLatLon))
		rw.flush()

		rw.put(pad(startLocation, startLocLen))
		rw.put([]float32{
			float32(r.Grid.StartLat),
			float32(r.Grid.StartLon),
			float32(r.Grid.DLat),
			float32(r.Grid.DLon),
			float32(radius),
		})
		rw.flush()

		var windRel int32
		if r.WindEarthRelative {
			windRel = 1
		}
		rw.put(windRel)
		rw.flush()

		for i, v := range s.Data {
			data[i] = finite32(v)
		}
		rw.put(data)
		rw.flush()

		if rw.err != nil {
			return fmt.Errorf("write intermediate slab %s at %.0f: %w", s.Field, s.Level, rw.err)
		}
	}
	return nil
}

// WriteFile writes r to dir/PREFIX:YYYY-MM-DD_HH. An existing file is kept
// unless overwrite is set; the returned flag reports whether a file was written.
func WriteFile(dir, prefix string, r Record, overwrite bool) (string, bool, error) {
	path := filepath.Join(dir, FileName(prefix, r.Date))
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return path, false, nil
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return path, false, fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+prefix+"-*")
	if err != nil {
		return path, false, fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := Write(bw, r); err != nil {
		tmp.Close()
		return path, false, fmt.Errorf("%s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return path, false, fmt.Errorf("%s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return path, false, fmt.Errorf("%s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return path, false, fmt.Errorf("rename to %s: %w", path, err)
	}
	return path, true, nil
}
