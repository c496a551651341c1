package route

import (
	"testing"
	"time"

	"fleettrack/store"
	"fleettrack/track"
)

var (
	originLat, originLng = 22.57, 88.36
	warehousePt          = track.LatLng{Lat: 22.68, Lng: 88.29}
	destPt               = track.LatLng{Lat: 22.51, Lng: 88.33}
	testRegion           = track.BoundingBox{MinLat: 22.0, MinLng: 88.0, MaxLat: 23.0, MaxLng: 89.0}
	baseTime             = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
)

func assignment(status string) *store.Assignment {
	return &store.Assignment{
		ID: 1, Ref: "asg-route-1", TruckID: 1,
		Status:    status,
		OriginLat: &originLat, OriginLng: &originLng,
	}
}

func crumb(lat, lng float64, at time.Time) *store.Breadcrumb {
	return &store.Breadcrumb{AssignmentID: 1, TruckID: 1, Lat: lat, Lng: lng, CapturedAt: at}
}

func setCurrent(a *store.Assignment, lat, lng float64, at time.Time) {
	a.CurrentLat, a.CurrentLng, a.CurrentCapturedAt = &lat, &lng, &at
}

func kinds(r Route) []string {
	out := make([]string, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Kind
	}
	return out
}

func assertKinds(t *testing.T, r Route, want ...string) {
	t.Helper()
	got := kinds(r)
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", got, want)
		}
	}
}

func TestBuildFullRoute(t *testing.T) {
	a := assignment(track.StatusPickedUp)
	setCurrent(a, 22.54, 88.34, baseTime.Add(3*time.Minute))

	r := Build(Input{
		Assignment:  a,
		Warehouse:   &warehousePt,
		Destination: &destPt,
		Breadcrumbs: []*store.Breadcrumb{
			crumb(22.56, 88.35, baseTime),
			crumb(22.55, 88.34, baseTime.Add(time.Minute)),
		},
	}, testRegion)

	assertKinds(t, r, KindOrigin, KindWarehouse, KindBreadcrumb, KindBreadcrumb, KindCurrent, KindDestination)

	if r.Points[0].Lat != originLat || r.Points[0].Lng != originLng {
		t.Errorf("origin = %+v", r.Points[0])
	}
	last := r.Points[len(r.Points)-1]
	if last.Lat != destPt.Lat || last.Lng != destPt.Lng {
		t.Errorf("destination = %+v", last)
	}
	for _, p := range r.Points[2:5] {
		if p.CapturedAt == nil {
			t.Errorf("%s point missing capture time", p.Kind)
		}
	}
}

func TestBuildHidesTrailBeforePickup(t *testing.T) {
	a := assignment(track.StatusAssigned)
	setCurrent(a, 22.56, 88.35, baseTime)

	r := Build(Input{
		Assignment:  a,
		Warehouse:   &warehousePt,
		Destination: &destPt,
		Breadcrumbs: []*store.Breadcrumb{crumb(22.56, 88.35, baseTime)},
	}, testRegion)

	// Pre-pickup movement is noise from the truck's previous trip.
	assertKinds(t, r, KindOrigin, KindWarehouse, KindDestination)
}

func TestBuildHidesTrailWhenCancelled(t *testing.T) {
	a := assignment(track.StatusCancelled)

	r := Build(Input{
		Assignment:  a,
		Destination: &destPt,
		Breadcrumbs: []*store.Breadcrumb{crumb(22.56, 88.35, baseTime)},
	}, testRegion)

	assertKinds(t, r, KindOrigin, KindDestination)
}

func TestBuildCurrentOnlyWhenNewerThanTrail(t *testing.T) {
	a := assignment(track.StatusPickedUp)
	// Current pointer matches the last crumb; showing both would double
	// the head of the trail.
	setCurrent(a, 22.55, 88.34, baseTime.Add(time.Minute))

	r := Build(Input{
		Assignment: a,
		Breadcrumbs: []*store.Breadcrumb{
			crumb(22.56, 88.35, baseTime),
			crumb(22.55, 88.34, baseTime.Add(time.Minute)),
		},
	}, testRegion)

	assertKinds(t, r, KindOrigin, KindBreadcrumb, KindBreadcrumb)
}

func TestBuildCurrentWithoutCrumbs(t *testing.T) {
	a := assignment(track.StatusPickedUp)
	setCurrent(a, 22.55, 88.34, baseTime)

	r := Build(Input{Assignment: a, Destination: &destPt}, testRegion)
	assertKinds(t, r, KindOrigin, KindCurrent, KindDestination)
}

func TestBuildMissingEndpoints(t *testing.T) {
	a := assignment(track.StatusAssigned)
	a.OriginLat, a.OriginLng = nil, nil

	r := Build(Input{Assignment: a}, testRegion)
	if len(r.Points) != 0 {
		t.Fatalf("points = %v, want none", r.Points)
	}
	if r.Bounds != testRegion {
		t.Errorf("Bounds = %+v, want the default region", r.Bounds)
	}
}

func TestBuildBounds(t *testing.T) {
	a := assignment(track.StatusPickedUp)
	r := Build(Input{
		Assignment:  a,
		Warehouse:   &warehousePt,
		Destination: &destPt,
	}, testRegion)

	want := track.BoundingBox{MinLat: 22.51, MinLng: 88.29, MaxLat: 22.68, MaxLng: 88.36}
	if r.Bounds != want {
		t.Errorf("Bounds = %+v, want %+v", r.Bounds, want)
	}

	// A lone point degenerates to a zero-area box.
	solo := assignment(track.StatusAssigned)
	solo.OriginLat, solo.OriginLng = &originLat, &originLng
	r = Build(Input{Assignment: solo}, testRegion)
	if !r.Bounds.IsPoint() {
		t.Errorf("single-point Bounds = %+v, want degenerate", r.Bounds)
	}
}
