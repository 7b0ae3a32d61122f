package geospatial

import "math"

const earthRadiusKm = 6371.0

// MetersPerDegreeLat is the planar meters-per-degree-latitude approximation used
// to express degree-space errors in meters. Longitude degrees shrink with
// latitude; use LonMetersPerDegree for the east-west axis.
const MetersPerDegreeLat = 111320.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// LonMetersPerDegree returns the length in meters of one degree of longitude at
// the given latitude, correcting for meridian convergence. A small-area planar
// approximation; it degrades near the poles and over very large extents.
func LonMetersPerDegree(lat float64) float64 {
	return MetersPerDegreeLat * math.Cos(toRad(lat))
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / MetersPerDegreeLat
	lonDelta := radiusMeters / LonMetersPerDegree(lat)

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
