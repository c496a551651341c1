package route

import (
	"time"

	"fleettrack/store"
	"fleettrack/track"
)

// PointKind labels where a route point came from.
const (
	KindOrigin      = "origin"
	KindWarehouse   = "warehouse"
	KindBreadcrumb  = "breadcrumb"
	KindCurrent     = "current"
	KindDestination = "destination"
)

type Point struct {
	Kind       string     `json:"kind"`
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

// Route is the reconstructed path for one assignment, ordered from where
// the truck started toward the order's destination.
type Route struct {
	Points []Point           `json:"points"`
	Bounds track.BoundingBox `json:"bounds"`
}

// Input carries everything Build needs. Breadcrumbs must already be in
// capture order; Destination and Warehouse are nil when the record has no
// usable coordinates.
type Input struct {
	Assignment  *store.Assignment
	Warehouse   *track.LatLng
	Destination *track.LatLng
	Breadcrumbs []*store.Breadcrumb
}

// Build assembles the display route: the truck's position at assignment
// time, the pickup warehouse, the travelled trail, the live position, and
// the destination. The trail only appears once the driver has picked up;
// before that the breadcrumbs are pre-pickup noise and stay hidden.
func Build(in Input, defaultRegion track.BoundingBox) Route {
	a := in.Assignment
	var points []Point

	if a.OriginLat != nil && a.OriginLng != nil {
		points = append(points, Point{Kind: KindOrigin, Lat: *a.OriginLat, Lng: *a.OriginLng})
	}
	if in.Warehouse != nil {
		points = append(points, Point{Kind: KindWarehouse, Lat: in.Warehouse.Lat, Lng: in.Warehouse.Lng})
	}

	showTrail := a.Status == track.StatusPickedUp || a.Status == track.StatusDelivered
	var lastCrumb *store.Breadcrumb
	if showTrail {
		for _, b := range in.Breadcrumbs {
			at := b.CapturedAt
			points = append(points, Point{Kind: KindBreadcrumb, Lat: b.Lat, Lng: b.Lng, CapturedAt: &at})
			lastCrumb = b
		}
	}

	if cur := a.CurrentLocation(); cur != nil && showTrail {
		if lastCrumb == nil || cur.CapturedAt.After(lastCrumb.CapturedAt) {
			at := cur.CapturedAt
			points = append(points, Point{Kind: KindCurrent, Lat: cur.Lat, Lng: cur.Lng, CapturedAt: &at})
		}
	}

	if in.Destination != nil {
		points = append(points, Point{Kind: KindDestination, Lat: in.Destination.Lat, Lng: in.Destination.Lng})
	}

	return Route{Points: points, Bounds: bounds(points, defaultRegion)}
}

func bounds(points []Point, defaultRegion track.BoundingBox) track.BoundingBox {
	if len(points) == 0 {
		return defaultRegion
	}
	box := track.NewBoundingBox(track.LatLng{Lat: points[0].Lat, Lng: points[0].Lng})
	for _, p := range points[1:] {
		box.Extend(track.LatLng{Lat: p.Lat, Lng: p.Lng})
	}
	return box
}
