package tiles

import "github.com/paulmach/orb"

// GeometryType is the geometry kind of a decoded Feature.
type GeometryType string

const (
	// GeometryLine is a single LineString.
	GeometryLine GeometryType = "Line"
	// GeometryPolygon is a single Polygon.
	GeometryPolygon GeometryType = "Polygon"
)

// Synthetic attributes recorded on every decoded Feature.
const (
	AttrSourceLayer = "_source_layer"
	AttrSourceTile  = "_source_tile"
)

// Feature is a single-part geographic feature decoded from a tile. It lives
// only between decode and upsert.
type Feature struct {
	SourceLayer  string
	Category     string
	DedupKey     string
	GeometryType GeometryType
	// Geometry is an orb.LineString or an orb.Polygon in WGS84.
	Geometry   orb.Geometry
	Attributes map[string]any
}

// PartCount returns the number of rings or vertices describing the geometry,
// used for diagnostics.
func (f *Feature) PartCount() int {
	switch g := f.Geometry.(type) {
	case orb.LineString:
		return len(g)
	case orb.Polygon:
		return len(g)
	default:
		return 0
	}
}
