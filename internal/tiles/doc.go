// Package tiles contains the pure building blocks of the tile synchronization
// pipeline: the Web Mercator grid planner, the layer classification tables,
// the vector tile decoder and the dedup key resolver.
//
// Nothing in this package performs I/O. The planner turns a bounding box and a
// zoom level into the exhaustive, row-major list of covering tiles; the decoder
// turns raw (optionally gzip-compressed) Mapbox Vector Tile bytes into
// reprojected, single-part Features for the allow-listed layers; ResolveKey
// derives a stable identity for a Feature from its attributes.
package tiles
