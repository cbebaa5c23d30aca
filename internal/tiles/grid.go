package tiles

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	// MaxLatitude is the latitude limit of the Web Mercator projection.
	MaxLatitude = 85.05112878

	// MaxZoom is the deepest zoom level accepted by the planner.
	MaxZoom = 22
)

var (
	// ErrInvalidBoundingBox is returned for a bounding box outside the valid
	// longitude/latitude ranges or with inverted corners.
	ErrInvalidBoundingBox = errors.New("invalid bounding box")

	// ErrInvalidZoom is returned for a zoom level outside [0, MaxZoom].
	ErrInvalidZoom = errors.New("invalid zoom level")
)

// BoundingBox is the geographic extent covered by a dataset.
type BoundingBox struct {
	MinLng float64 `yaml:"minLng" json:"minLng"`
	MinLat float64 `yaml:"minLat" json:"minLat"`
	MaxLng float64 `yaml:"maxLng" json:"maxLng"`
	MaxLat float64 `yaml:"maxLat" json:"maxLat"`
}

// Validate reports whether the bounding box can be planned.
func (b BoundingBox) Validate() error {
	for _, lng := range []float64{b.MinLng, b.MaxLng} {
		if math.IsNaN(lng) || lng < -180 || lng > 180 {
			return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidBoundingBox, lng)
		}
	}
	for _, lat := range []float64{b.MinLat, b.MaxLat} {
		if math.IsNaN(lat) || lat < -MaxLatitude || lat > MaxLatitude {
			return fmt.Errorf("%w: latitude %v outside [-%v, %v]", ErrInvalidBoundingBox, lat, MaxLatitude, MaxLatitude)
		}
	}
	if b.MinLng > b.MaxLng {
		return fmt.Errorf("%w: minLng %v > maxLng %v", ErrInvalidBoundingBox, b.MinLng, b.MaxLng)
	}
	if b.MinLat > b.MaxLat {
		return fmt.Errorf("%w: minLat %v > maxLat %v", ErrInvalidBoundingBox, b.MinLat, b.MaxLat)
	}
	return nil
}

// Bound returns the bounding box as an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLng, b.MinLat},
		Max: orb.Point{b.MaxLng, b.MaxLat},
	}
}

// ValidateZoom reports whether z can be planned.
func ValidateZoom(z int) error {
	if z < 0 || z > MaxZoom {
		return fmt.Errorf("%w: %d outside [0, %d]", ErrInvalidZoom, z, MaxZoom)
	}
	return nil
}

// Plan returns every tile at zoom z whose footprint intersects bbox. Tiles are
// ordered row-major: north to south, then west to east within a row.
func Plan(bbox BoundingBox, z int) ([]maptile.Tile, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateZoom(z); err != nil {
		return nil, err
	}

	zoom := maptile.Zoom(z)
	minX, minY := tileIndex(bbox.MinLng, bbox.MaxLat, zoom)
	maxX, maxY := tileIndex(bbox.MaxLng, bbox.MinLat, zoom)

	planned := make([]maptile.Tile, 0, int(maxX-minX+1)*int(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			planned = append(planned, maptile.New(x, y, zoom))
		}
	}
	return planned, nil
}

// tileIndex projects a longitude/latitude pair to the integer tile indices
// containing it, clamped to the pyramid at zoom z.
func tileIndex(lng, lat float64, z maptile.Zoom) (uint32, uint32) {
	n := float64(uint64(1) << uint(z))
	latRad := lat * math.Pi / 180

	fx := (lng + 180) / 360 * n
	fy := (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n

	return clampIndex(math.Floor(fx), n), clampIndex(math.Floor(fy), n)
}

func clampIndex(v, n float64) uint32 {
	if v < 0 {
		return 0
	}
	if v > n-1 {
		return uint32(n - 1)
	}
	return uint32(v)
}

// Key returns the checkpoint key of a tile, "{z}/{x}/{y}".
func Key(t maptile.Tile) string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Exclude returns the tiles whose key is not in done, preserving order.
func Exclude(planned []maptile.Tile, done map[string]struct{}) []maptile.Tile {
	if len(done) == 0 {
		return planned
	}
	remaining := make([]maptile.Tile, 0, len(planned))
	for _, t := range planned {
		if _, ok := done[Key(t)]; ok {
			continue
		}
		remaining = append(remaining, t)
	}
	return remaining
}
