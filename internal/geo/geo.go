// Package geo holds the point arithmetic behind proximity searches.
package geo

import (
	"math"
	"strconv"
	"strings"

	"storefinder/internal/models"
)

// EarthRadiusMeters is the mean earth radius used by Distance.
const EarthRadiusMeters = 6371008.8

// Search defaults.
const (
	DefaultMaxDistance = 10000.0
	DefaultLimit       = 10
)

// boxPadding widens bounding boxes so float rounding never drops an edge point.
const boxPadding = 1e-7

// Point is a validated longitude/latitude pair in degrees.
type Point struct {
	Lng float64
	Lat float64
}

// NewPoint validates that lng and lat are finite and within range.
func NewPoint(lng, lat float64) (Point, error) {
	if math.IsNaN(lng) || math.IsInf(lng, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return Point{}, models.NewValidationError("Coordinates must be finite numbers")
	}
	if lat < -90 || lat > 90 {
		return Point{}, models.NewValidationError("Latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return Point{}, models.NewValidationError("Longitude must be between -180 and 180")
	}
	return Point{Lng: lng, Lat: lat}, nil
}

// ParsePoint parses query-string coordinates.
func ParsePoint(lng, lat string) (Point, error) {
	x, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return Point{}, models.NewValidationError("Longitude must be a number")
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return Point{}, models.NewValidationError("Latitude must be a number")
	}
	return NewPoint(x, y)
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Box is a latitude/longitude window.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Contains reports whether p lies inside the box.
func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// BoundingBox returns a window containing every point within meters of
// center. Near the poles, or when the radius spans the antimeridian, the
// longitude range widens to the full circle.
func BoundingBox(center Point, meters float64) Box {
	angular := meters / EarthRadiusMeters
	dLat := degrees(angular) + boxPadding
	box := Box{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
		MinLng: -180,
		MaxLng: 180,
	}
	if box.MinLat == -90 || box.MaxLat == 90 {
		return box
	}
	ratio := math.Sin(angular) / math.Cos(radians(center.Lat))
	if ratio >= 1 {
		return box
	}
	dLng := degrees(math.Asin(ratio)) + boxPadding
	if center.Lng-dLng < -180 || center.Lng+dLng > 180 {
		return box
	}
	box.MinLng = center.Lng - dLng
	box.MaxLng = center.Lng + dLng
	return box
}

// Offset returns the point meters north of p along its meridian.
func Offset(p Point, meters float64) Point {
	return Point{Lng: p.Lng, Lat: p.Lat + degrees(meters/EarthRadiusMeters)}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
