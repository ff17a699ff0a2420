package models

// GeoPoint is one vertex of a decoded path. Sequences are ordered: the first
// point is the start of the leg, the last is its end.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Place is a boarding or alighting location. Addr may be empty when the
// location was derived from geometry rather than a geocoded address.
type Place struct {
	Addr string  `json:"addr"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// Individual describes the driver attached to an offer. Rate and RateCount
// are nil when the provider does not expose them; nil means "unknown", which
// downstream consumers distinguish from zero.
type Individual struct {
	Alias     string   `json:"alias"`
	Gender    Gender   `json:"gender"`
	Image     string   `json:"image"`
	Rate      *float64 `json:"rate"`
	RateCount *int     `json:"rate_count"`
}

// MetaData is shared by every journey produced by one adapter instance.
// It is built once at construction and never mutated afterwards.
type MetaData struct {
	SystemID       string   `json:"system_id"`
	Network        string   `json:"network"`
	RatingScaleMin *float64 `json:"rating_scale_min"`
	RatingScaleMax *float64 `json:"rating_scale_max"`
}

// FeedPublisher is the attribution record redistributed with provider data.
type FeedPublisher struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	License string `json:"license"`
	URL     string `json:"url"`
}

// RidesharingJourney is the canonical, provider-agnostic view of one offer.
//
// The four timestamps form a chain derived from PickupDateTime and the three
// durations, so DepartureDateTime <= PickupDateTime <= DropoffDateTime <=
// ArrivalDateTime always holds when durations are non-negative.
type RidesharingJourney struct {
	Metadata *MetaData `json:"metadata"`

	PickupPlace  Place `json:"pickup_place"`
	DropoffPlace Place `json:"dropoff_place"`

	Shape             []GeoPoint `json:"shape"`
	OriginPickupShape []GeoPoint `json:"origin_pickup_shape"`
	DropoffDestShape  []GeoPoint `json:"dropoff_dest_shape"`

	Distance             int `json:"distance"`
	Duration             int `json:"duration"`
	OriginPickupDistance int `json:"origin_pickup_distance"`
	OriginPickupDuration int `json:"origin_pickup_duration"`
	DropoffDestDistance  int `json:"dropoff_dest_distance"`
	DropoffDestDuration  int `json:"dropoff_dest_duration"`

	DepartureDateTime int64 `json:"departure_date_time"`
	PickupDateTime    int64 `json:"pickup_date_time"`
	DropoffDateTime   int64 `json:"dropoff_date_time"`
	ArrivalDateTime   int64 `json:"arrival_date_time"`

	// Price is in minor currency units (e.g. centimes).
	Price    int64  `json:"price"`
	Currency string `json:"currency"`

	AvailableSeats *int `json:"available_seats"`
	TotalSeats     *int `json:"total_seats"`

	Driver Individual `json:"driver"`

	RidesharingAd string `json:"ridesharing_ad"`
}
