package model

// Airline describes a carrier and its fleet limits. ActiveFleet counts
// aircraft currently flying for the airline; MaxFlights caps how many may
// be up at once. No new flight is generated once the cap is reached.
type Airline struct {
	Name        string       `json:"name"`
	PrimaryType AircraftType `json:"-"`
	// Type is the JSON form of PrimaryType ("COMMERCIAL" etc).
	Type          string `json:"type"`
	TotalAircraft int    `json:"total_aircraft"`
	MaxFlights    int    `json:"max_flights"`
	ActiveFleet   int    `json:"active_flights"`
}

// HasCapacity reports whether the airline can put another aircraft up.
func (a *Airline) HasCapacity() bool {
	limit := a.MaxFlights
	if limit <= 0 || limit > a.TotalAircraft {
		limit = a.TotalAircraft
	}
	return a.ActiveFleet < limit
}
