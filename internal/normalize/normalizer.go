// Package normalize maps raw Karos marketplace offers onto the canonical
// ridesharing journey model. Normalization is a pure in-memory transform:
// no I/O, no clock, same input always yields the same output.
package normalize

import (
	"fmt"
	"math"

	"github.com/example/ridesharing-adapter/internal/geometry"
	"github.com/example/ridesharing-adapter/internal/models"
)

// MinorUnitLabel is the fixed currency label for Karos prices, which are
// quoted upstream as decimal euros and stored here in centimes.
const MinorUnitLabel = "centime"

var genderByCode = map[string]models.Gender{
	"M": models.GenderMale,
	"F": models.GenderFemale,
}

// MalformedOffer flags a field that should have carried a value but did not.
// The offer is still normalized with the documented zero default; the note
// lets the caller log and count the defect instead of hiding it.
type MalformedOffer struct {
	OfferID string
	Field   string
	Reason  string
}

func (m MalformedOffer) Error() string {
	return fmt.Sprintf("malformed offer %s: field %s %s", m.OfferID, m.Field, m.Reason)
}

// Normalizer converts raw offers into journeys. Metadata is shared by
// reference across every journey the instance produces.
type Normalizer struct {
	decoder  geometry.Decoder
	metadata *models.MetaData
}

func New(decoder geometry.Decoder, metadata *models.MetaData) *Normalizer {
	return &Normalizer{decoder: decoder, metadata: metadata}
}

// Normalize maps every raw offer to a journey. Offers are never dropped:
// absent optional fields degrade to zero or unknown, and fields whose absence
// is an upstream defect (price amount, departure timestamp) additionally
// produce a MalformedOffer note.
func (n *Normalizer) Normalize(offers []models.RawOffer) ([]models.RidesharingJourney, []MalformedOffer) {
	if len(offers) == 0 {
		return []models.RidesharingJourney{}, nil
	}

	journeys := make([]models.RidesharingJourney, 0, len(offers))
	var defects []MalformedOffer

	for _, offer := range offers {
		j := models.RidesharingJourney{
			Metadata:      n.metadata,
			Distance:      intOrZero(offer.Distance),
			Duration:      intOrZero(offer.Duration),
			RidesharingAd: offer.WebURL,
			Currency:      MinorUnitLabel,
		}

		j.OriginPickupDuration = intOrZero(offer.DepartureToPickupWalkingTime)
		j.OriginPickupDistance = intOrZero(offer.DepartureToPickupWalkingDistance)
		j.OriginPickupShape = n.decoder.Decode(offer.DepartureToPickupWalkingPolyline)

		j.DropoffDestDuration = intOrZero(offer.DropoffToArrivalWalkingTime)
		j.DropoffDestDistance = intOrZero(offer.DropoffToArrivalWalkingDistance)
		j.DropoffDestShape = n.decoder.Decode(offer.DropoffToArrivalWalkingPolyline)

		// The driverDeparture/driverArrival coordinates describe the
		// driver's complete multi-passenger route, not this passenger's
		// boarding and alighting points. The decoded journey shape is the
		// authoritative source for those; raw coordinates are only a
		// fallback when the shape is too short to have two endpoints.
		shape := n.decoder.Decode(offer.JourneyPolyline)
		j.Shape = shape
		if len(shape) >= 2 {
			j.PickupPlace = models.Place{Lat: shape[0].Lat, Lon: shape[0].Lon}
			j.DropoffPlace = models.Place{Lat: shape[len(shape)-1].Lat, Lon: shape[len(shape)-1].Lon}
		} else {
			j.PickupPlace = models.Place{
				Lat: floatOrZero(offer.DriverDepartureLat),
				Lon: floatOrZero(offer.DriverDepartureLng),
			}
			j.DropoffPlace = models.Place{
				Lat: floatOrZero(offer.DriverArrivalLat),
				Lon: floatOrZero(offer.DriverArrivalLng),
			}
		}

		if offer.Price == nil || offer.Price.Amount == nil {
			defects = append(defects, MalformedOffer{OfferID: offer.ID, Field: "price.amount", Reason: "absent"})
		} else {
			j.Price = int64(math.Round(*offer.Price.Amount * 100))
		}

		j.AvailableSeats = offer.AvailableSeats
		j.TotalSeats = nil // Karos never reports vehicle capacity

		if offer.DriverDepartureDate == nil {
			defects = append(defects, MalformedOffer{OfferID: offer.ID, Field: "driverDepartureDate", Reason: "absent"})
		}
		j.DepartureDateTime, j.PickupDateTime, j.DropoffDateTime, j.ArrivalDateTime = timingChain(
			int64OrZero(offer.DriverDepartureDate),
			j.OriginPickupDuration,
			j.Duration,
			j.DropoffDestDuration,
		)

		j.Driver = normalizeDriver(offer.Driver)

		journeys = append(journeys, j)
	}

	return journeys, defects
}

// timingChain derives all four stamps from the pickup time plus durations.
// pickup is the moment the driver reaches the pickup point. Deriving the
// other three arithmetically is what keeps the chain monotonic even when the
// upstream payload is internally inconsistent; no other raw timestamp field
// may feed this chain.
func timingChain(pickup int64, originPickupDur, rideDur, dropoffDestDur int) (departure, pickupOut, dropoff, arrival int64) {
	departure = pickup - int64(originPickupDur)
	dropoff = pickup + int64(rideDur)
	arrival = dropoff + int64(dropoffDestDur)
	return departure, pickup, dropoff, arrival
}

func normalizeDriver(raw *models.RawDriver) models.Individual {
	if raw == nil {
		return models.Individual{Gender: models.GenderUnknown}
	}
	gender, ok := genderByCode[raw.Gender]
	if !ok {
		gender = models.GenderUnknown
	}
	return models.Individual{
		Alias:  raw.FirstName,
		Gender: gender,
		Image:  raw.Picture,
		Rate:   raw.Grade,
		// The Karos API does not expose how many ratings back the grade,
		// so the count stays unknown rather than zero.
		RateCount: nil,
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func int64OrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
