package telemetry

import "time"

// GeoFix is one sample from the location sensor. SpeedMps is nil when the
// sensor did not report an instantaneous speed.
type GeoFix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	SpeedMps  *float64  `json:"speed_mps,omitempty"`
}

// RoutePoint is the projection of a GeoFix kept in the route.
type RoutePoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the running telemetry state derived from the accepted fixes.
type Snapshot struct {
	CurrentPosition      *RoutePoint `json:"current_position,omitempty"`
	CumulativeDistanceKm float64     `json:"cumulative_distance_km"`
	CurrentSpeedKmh      float64     `json:"current_speed_kmh"`
	MaxSpeedKmh          float64     `json:"max_speed_kmh"`
	FixCount             int         `json:"fix_count"`
	OutOfOrderFixes      int         `json:"out_of_order_fixes"`
}

// Update is pushed to subscribers after every accepted fix. Route is a
// read-only view of the route as of this fix.
type Update struct {
	Point    RoutePoint   `json:"point"`
	Route    []RoutePoint `json:"-"`
	Snapshot Snapshot     `json:"snapshot"`
}
