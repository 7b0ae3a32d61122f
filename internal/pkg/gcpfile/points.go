// Package gcpfile reads QGIS georeferencer .points files.
package gcpfile

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/jszwec/csvutil"

	"github.com/digmaps/groundcontrol/internal/core/domain"
)

// row mirrors one line of a .points file. Newer QGIS versions append dX, dY,
// and residual columns; csvutil matches by header name, so extras are ignored.
type row struct {
	MapX   float64 `csv:"mapX"`
	MapY   float64 `csv:"mapY"`
	PixelX float64 `csv:"pixelX"`
	PixelY float64 `csv:"pixelY"`
	Enable *int    `csv:"enable"`
}

// Load parses control points from r. Rows with enable=0 are dropped; exports
// from old QGIS versions have no enable column, which means every row is
// enabled. QGIS stores pixel y negative-down, so it is negated here: callers
// always see y growing downward from the top-left corner as positive.
func Load(r io.Reader) ([]domain.ControlPoint, error) {
	br := bufio.NewReader(r)

	// QGIS 3.18+ writes a "#CRS: ..." comment line above the header.
	if b, err := br.Peek(1); err == nil && b[0] == '#' {
		if _, err := br.ReadString('\n'); err != nil && err != io.EOF {
			return nil, fmt.Errorf("skip crs line: %w", err)
		}
	}

	cr := csv.NewReader(br)
	cr.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var points []domain.ControlPoint
	for line := 1; ; line++ {
		var rec row
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		if rec.Enable != nil && *rec.Enable == 0 {
			continue
		}
		points = append(points, domain.ControlPoint{
			ID:    fmt.Sprintf("row-%d", line),
			Image: domain.PixelPoint{X: rec.PixelX, Y: -rec.PixelY},
			Map:   domain.GeoPoint{Lat: rec.MapY, Lng: rec.MapX},
		})
	}

	return points, nil
}

// LoadFile opens path and parses it with Load.
func LoadFile(path string) ([]domain.ControlPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	points, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return points, nil
}
