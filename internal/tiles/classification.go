package tiles

import (
	"fmt"
	"sort"
)

// LayerKind is the role a vector tile layer plays in the pipeline.
type LayerKind string

const (
	// LayerLine layers yield line features.
	LayerLine LayerKind = "line"
	// LayerPolygon layers yield polygon features.
	LayerPolygon LayerKind = "polygon"
	// LayerIgnored layers are known but never synchronized.
	LayerIgnored LayerKind = "ignored"
)

// LayerClass classifies one vector tile layer.
type LayerClass struct {
	Kind     LayerKind `yaml:"kind" json:"kind"`
	Category string    `yaml:"category" json:"category"`
}

// Classification maps vector tile layer names to their class. Layers absent
// from the table are skipped by the decoder.
type Classification map[string]LayerClass

// Built-in classification profiles.
const (
	ProfileRoads     = "roads"
	ProfileBuildings = "buildings"
)

var profiles = map[string]Classification{
	ProfileRoads: {
		"designated_road_line": {Kind: LayerLine, Category: "Designated road centerline"},
		"designated_road_area": {Kind: LayerPolygon, Category: "Designated road area"},
		"road_boundary":        {Kind: LayerLine, Category: "Road boundary"},
		"building_line":        {Kind: LayerLine, Category: "Building setback line"},
		"dead_end_road":        {Kind: LayerPolygon, Category: "Dead-end road"},
		"road_label":           {Kind: LayerIgnored, Category: "Road labels"},
	},
	ProfileBuildings: {
		"building_zone":      {Kind: LayerPolygon, Category: "Building zone"},
		"district_unit_plan": {Kind: LayerPolygon, Category: "District unit plan area"},
		"height_limit_zone":  {Kind: LayerPolygon, Category: "Height limit zone"},
		"landscape_district": {Kind: LayerPolygon, Category: "Landscape district"},
		"zone_boundary":      {Kind: LayerLine, Category: "Zone boundary"},
		"parcel_label":       {Kind: LayerIgnored, Category: "Parcel labels"},
	},
}

// Profile returns a copy of a built-in classification table.
func Profile(name string) (Classification, error) {
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown layer profile %q", name)
	}
	c := make(Classification, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c, nil
}

// Lookup returns the class of a layer that should be synchronized.
func (c Classification) Lookup(layer string) (LayerClass, bool) {
	class, ok := c[layer]
	if !ok || (class.Kind != LayerLine && class.Kind != LayerPolygon) {
		return LayerClass{}, false
	}
	return class, true
}

// Layers returns the synchronized layer names in lexical order.
func (c Classification) Layers() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		if _, ok := c.Lookup(name); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Validate checks every entry uses a known kind and that at least one layer
// is synchronized.
func (c Classification) Validate() error {
	for name, class := range c {
		switch class.Kind {
		case LayerLine, LayerPolygon, LayerIgnored:
		default:
			return fmt.Errorf("layer %q: unknown kind %q", name, class.Kind)
		}
	}
	if len(c.Layers()) == 0 {
		return fmt.Errorf("classification has no line or polygon layers")
	}
	return nil
}
