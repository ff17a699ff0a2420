package geometry

import (
	polyline "github.com/twpayne/go-polyline"

	"github.com/example/ridesharing-adapter/internal/models"
)

// Decoder turns an encoded path string into an ordered point sequence.
type Decoder interface {
	Decode(encoded string) []models.GeoPoint
}

// PolylineDecoder decodes Google-format encoded polylines (1e-5 precision),
// the encoding Karos uses for journey and walking shapes.
type PolylineDecoder struct{}

// Decode returns the decoded points, or nil for an empty or malformed input.
// Malformed geometry is not an error at this layer: the normalizer treats a
// missing shape as "fewer than 2 points" and falls back accordingly.
func (PolylineDecoder) Decode(encoded string) []models.GeoPoint {
	if encoded == "" {
		return nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil
	}
	pts := make([]models.GeoPoint, 0, len(coords))
	for _, c := range coords {
		pts = append(pts, models.GeoPoint{Lat: c[0], Lon: c[1]})
	}
	return pts
}
