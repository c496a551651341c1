package track

// LatLng is a geographic coordinate pair in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates are inside WGS84 range.
func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// BoundingBox frames a set of points for map display.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// NewBoundingBox returns a box collapsed onto a single point.
func NewBoundingBox(p LatLng) BoundingBox {
	return BoundingBox{MinLat: p.Lat, MinLng: p.Lng, MaxLat: p.Lat, MaxLng: p.Lng}
}

// Extend grows the box to include p.
func (b *BoundingBox) Extend(p LatLng) {
	if p.Lat < b.MinLat {
		b.MinLat = p.Lat
	}
	if p.Lat > b.MaxLat {
		b.MaxLat = p.Lat
	}
	if p.Lng < b.MinLng {
		b.MinLng = p.Lng
	}
	if p.Lng > b.MaxLng {
		b.MaxLng = p.Lng
	}
}

// IsPoint reports a degenerate box. Callers rendering maps apply a
// minimum-zoom floor instead of dividing by a zero-size span.
func (b BoundingBox) IsPoint() bool {
	return b.MinLat == b.MaxLat && b.MinLng == b.MaxLng
}
