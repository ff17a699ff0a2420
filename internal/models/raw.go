package models

// RawOffer is one offer exactly as the Karos marketplace returns it.
// The upstream payload is loosely typed: any numeric field may be absent or
// null, so optional numerics are pointers and absence is handled by the
// normalizer, field by field, instead of scattered defaulting.
type RawOffer struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Distance *int   `json:"distance"`
	Duration *int   `json:"duration"`
	WebURL   string `json:"webUrl"`

	Price  *RawPrice  `json:"price"`
	Driver *RawDriver `json:"driver"`

	AvailableSeats *int `json:"availableSeats"`

	DepartureToPickupWalkingTime     *int   `json:"departureToPickupWalkingTime"`
	DepartureToPickupWalkingDistance *int   `json:"departureToPickupWalkingDistance"`
	DepartureToPickupWalkingPolyline string `json:"departureToPickupWalkingPolyline"`

	DropoffToArrivalWalkingTime     *int   `json:"dropoffToArrivalWalkingTime"`
	DropoffToArrivalWalkingDistance *int   `json:"dropoffToArrivalWalkingDistance"`
	DropoffToArrivalWalkingPolyline string `json:"dropoffToArrivalWalkingPolyline"`

	// JourneyPolyline encodes the passenger leg of the ride. The
	// driver*Lat/Lng fields describe the driver's complete route instead,
	// which is why they are only a fallback for pickup/dropoff places.
	JourneyPolyline     string   `json:"journeyPolyline"`
	DriverDepartureLat  *float64 `json:"driverDepartureLat"`
	DriverDepartureLng  *float64 `json:"driverDepartureLng"`
	DriverArrivalLat    *float64 `json:"driverArrivalLat"`
	DriverArrivalLng    *float64 `json:"driverArrivalLng"`
	DriverDepartureDate *int64   `json:"driverDepartureDate"`
}

// RawPrice is the upstream price sub-object. Amount is a decimal
// major-currency value (euros, not centimes).
type RawPrice struct {
	Amount *float64 `json:"amount"`
	Type   string   `json:"type"`
}

// RawDriver is the upstream driver profile. Gender is a single-letter code.
type RawDriver struct {
	ID        string   `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Gender    string   `json:"gender"`
	Grade     *float64 `json:"grade"`
	Picture   string   `json:"picture"`
}
