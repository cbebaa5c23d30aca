package tiles

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
)

// Decoder turns vector tile bytes into classified Features.
type Decoder struct {
	classification Classification
}

// NewDecoder creates a Decoder for the given classification table.
func NewDecoder(classification Classification) *Decoder {
	return &Decoder{classification: classification}
}

// Decode parses a raw or gzip-compressed vector tile and returns one Feature
// per geometry part of every feature in a classified layer, reprojected to
// WGS84 using the tile as anchor. DedupKey is left empty.
func (d *Decoder) Decode(data []byte, tile maptile.Tile) ([]*Feature, error) {
	layers, err := unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tile %s: %w", Key(tile), err)
	}
	layers.ProjectToWGS84(tile)

	tileKey := Key(tile)
	var features []*Feature
	for _, layer := range layers {
		class, ok := d.classification.Lookup(layer.Name)
		if !ok {
			continue
		}
		for _, f := range layer.Features {
			for _, part := range splitParts(f.Geometry, class.Kind) {
				attrs := attributes(f)
				attrs[AttrSourceLayer] = layer.Name
				attrs[AttrSourceTile] = tileKey
				features = append(features, &Feature{
					SourceLayer:  layer.Name,
					Category:     class.Category,
					GeometryType: geometryType(class.Kind),
					Geometry:     part,
					Attributes:   attrs,
				})
			}
		}
	}
	return features, nil
}

func unmarshal(data []byte) (mvt.Layers, error) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return mvt.UnmarshalGzipped(data)
	}
	return mvt.Unmarshal(data)
}

// splitParts flattens a geometry into the single parts a layer of the given
// kind accepts. Degenerate parts are dropped.
func splitParts(g orb.Geometry, kind LayerKind) []orb.Geometry {
	var parts []orb.Geometry
	switch kind {
	case LayerLine:
		switch geom := g.(type) {
		case orb.LineString:
			if len(geom) >= 2 {
				parts = append(parts, geom)
			}
		case orb.MultiLineString:
			for _, ls := range geom {
				if len(ls) >= 2 {
					parts = append(parts, ls)
				}
			}
		}
	case LayerPolygon:
		switch geom := g.(type) {
		case orb.Polygon:
			if len(geom) > 0 {
				parts = append(parts, geom)
			}
		case orb.MultiPolygon:
			for _, p := range geom {
				if len(p) > 0 {
					parts = append(parts, p)
				}
			}
		}
	}
	return parts
}

func attributes(f *geojson.Feature) map[string]any {
	attrs := make(map[string]any, len(f.Properties)+3)
	for k, v := range f.Properties {
		attrs[k] = v
	}
	if _, ok := attrs["id"]; !ok && f.ID != nil {
		attrs["id"] = f.ID
	}
	return attrs
}

func geometryType(kind LayerKind) GeometryType {
	if kind == LayerLine {
		return GeometryLine
	}
	return GeometryPolygon
}
