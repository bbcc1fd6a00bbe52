package geo

import "math"

// WGS84 ellipsoid.
const (
	SemiMajorAxis = 6378137.0
	Flattening    = 1.0 / 298.257223563
)

const (
	deg = math.Pi / 180.0
	e2  = Flattening * (2.0 - Flattening)
)

// Position locates a point in geodetic (GPS-like) coordinates.
type Position struct {
	Latitude  float64 // deg
	Longitude float64 // deg
	Height    float64 // m, above the ellipsoid
}

// Direction is an observation direction in horizontal coordinates.
type Direction struct {
	Azimuth   float64 // deg, clockwise w.r.t. geographic North
	Elevation float64 // deg, w.r.t. the local horizontal
}

// ENU is a vector in the local East, North, Upward tangent frame.
type ENU struct {
	East   float64
	North  float64
	Upward float64
}

// Ecef is an Earth-Centered Earth-Fixed Cartesian vector, in m for
// positions and unitless for directions.
type Ecef [3]float64

func (v Ecef) Add(w Ecef) Ecef      { return Ecef{v[0] + w[0], v[1] + w[1], v[2] + w[2]} }
func (v Ecef) Sub(w Ecef) Ecef      { return Ecef{v[0] - w[0], v[1] - w[1], v[2] - w[2]} }
func (v Ecef) Scale(s float64) Ecef { return Ecef{s * v[0], s * v[1], s * v[2]} }
func (v Ecef) Dot(w Ecef) float64   { return v[0]*w[0] + v[1]*w[1] + v[2]*w[2] }
func (v Ecef) Norm() float64        { return math.Sqrt(v.Dot(v)) }

func (v Ecef) Cross(w Ecef) Ecef {
	return Ecef{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

func (v Ecef) Unit() Ecef {
	n := v.Norm()
	if n == 0 {
		return Ecef{}
	}
	return v.Scale(1.0 / n)
}

// EcefFromGeodetic converts a geodetic position to ECEF coordinates.
func EcefFromGeodetic(p Position) Ecef {
	sinLat, cosLat := math.Sincos(p.Latitude * deg)
	sinLon, cosLon := math.Sincos(p.Longitude * deg)
	n := SemiMajorAxis / math.Sqrt(1.0-e2*sinLat*sinLat)
	return Ecef{
		(n + p.Height) * cosLat * cosLon,
		(n + p.Height) * cosLat * sinLon,
		(n*(1.0-e2) + p.Height) * sinLat,
	}
}

// EcefToGeodetic converts ECEF coordinates back to a geodetic position,
// using Bowring's closed-form approximation followed by one refinement
// step. The result is accurate to well below 1E-04 m for heights within
// the atmosphere.
func EcefToGeodetic(r Ecef) Position {
	const b = SemiMajorAxis * (1.0 - Flattening)
	const ep2 = (SemiMajorAxis*SemiMajorAxis - b*b) / (b * b)

	lon := math.Atan2(r[1], r[0])
	p := math.Hypot(r[0], r[1])

	if p < 1e-9 {
		// Polar singularity.
		lat := math.Pi / 2
		if r[2] < 0 {
			lat = -lat
		}
		return Position{
			Latitude:  lat / deg,
			Longitude: lon / deg,
			Height:    math.Abs(r[2]) - b,
		}
	}

	theta := math.Atan2(SemiMajorAxis*r[2], b*p)
	var lat float64
	for i := 0; i < 3; i++ {
		sinT, cosT := math.Sincos(theta)
		lat = math.Atan2(
			r[2]+ep2*b*sinT*sinT*sinT,
			p-e2*SemiMajorAxis*cosT*cosT*cosT,
		)
		sinLat, cosLat := math.Sincos(lat)
		theta = math.Atan2(b*sinLat, SemiMajorAxis*cosLat)
	}
	sinLat, cosLat := math.Sincos(lat)
	n := SemiMajorAxis / math.Sqrt(1.0-e2*sinLat*sinLat)
	h := p/cosLat - n

	return Position{
		Latitude:  lat / deg,
		Longitude: lon / deg,
		Height:    h,
	}
}

// LocalFrame returns the East, North and Up unit vectors of the local
// tangent frame, expressed in ECEF coordinates.
func LocalFrame(latitude, longitude float64) (east, north, up Ecef) {
	sinLat, cosLat := math.Sincos(latitude * deg)
	sinLon, cosLon := math.Sincos(longitude * deg)
	east = Ecef{-sinLon, cosLon, 0.0}
	north = Ecef{-sinLat * cosLon, -sinLat * sinLon, cosLat}
	up = Ecef{cosLat * cosLon, cosLat * sinLon, sinLat}
	return east, north, up
}

// EcefFromHorizontal converts a horizontal observation direction at the
// given location to an ECEF unit vector.
func EcefFromHorizontal(latitude, longitude float64, d Direction) Ecef {
	east, north, up := LocalFrame(latitude, longitude)
	sinAz, cosAz := math.Sincos(d.Azimuth * deg)
	sinEl, cosEl := math.Sincos(d.Elevation * deg)

	v := east.Scale(cosEl * sinAz)
	v = v.Add(north.Scale(cosEl * cosAz))
	v = v.Add(up.Scale(sinEl))
	return v
}

// EcefToHorizontal converts an ECEF direction to horizontal coordinates
// at the given location.
func EcefToHorizontal(latitude, longitude float64, v Ecef) Direction {
	east, north, up := LocalFrame(latitude, longitude)
	e := v.Dot(east)
	n := v.Dot(north)
	u := v.Dot(up)

	r := v.Norm()
	if r == 0 {
		return Direction{}
	}
	s := u / r
	if s > 1.0 {
		s = 1.0
	} else if s < -1.0 {
		s = -1.0
	}
	return Direction{
		Azimuth:   math.Atan2(e, n) / deg,
		Elevation: math.Asin(s) / deg,
	}
}

// EcefFromENU transforms a vector from the local tangent frame at the
// given location to ECEF coordinates.
func EcefFromENU(latitude, longitude float64, v ENU) Ecef {
	east, north, up := LocalFrame(latitude, longitude)
	r := east.Scale(v.East)
	r = r.Add(north.Scale(v.North))
	r = r.Add(up.Scale(v.Upward))
	return r
}
