package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/towerworks/atc-simulator/model"
)

// LoadAirlineRoster decodes an airline roster from JSON. The file format
// mirrors the built-in roster:
//
//	[{"name": "PIA", "type": "COMMERCIAL", "total_aircraft": 6, "max_flights": 4}, ...]
//
// max_flights defaults to total_aircraft when omitted. Every airline starts
// with an empty sky; active_flights in the file is ignored.
func LoadAirlineRoster(r io.Reader) ([]*model.Airline, error) {
	var airlines []*model.Airline
	if err := json.NewDecoder(r).Decode(&airlines); err != nil {
		return nil, fmt.Errorf("decode airline roster: %w", err)
	}
	for _, a := range airlines {
		if a.Name == "" {
			return nil, fmt.Errorf("airline roster entry missing name")
		}
		typ, err := parseAircraftType(a.Type)
		if err != nil {
			return nil, fmt.Errorf("airline %q: %w", a.Name, err)
		}
		a.PrimaryType = typ
		if a.TotalAircraft <= 0 {
			return nil, fmt.Errorf("airline %q: total_aircraft must be positive", a.Name)
		}
		if a.MaxFlights < 0 || a.MaxFlights > a.TotalAircraft {
			return nil, fmt.Errorf("airline %q: max_flights out of range", a.Name)
		}
		if a.MaxFlights == 0 {
			a.MaxFlights = a.TotalAircraft
		}
		a.ActiveFleet = 0
	}
	return airlines, nil
}

func parseAircraftType(s string) (model.AircraftType, error) {
	switch strings.ToUpper(s) {
	case "COMMERCIAL":
		return model.TypeCommercial, nil
	case "CARGO":
		return model.TypeCargo, nil
	case "EMERGENCY":
		return model.TypeEmergency, nil
	default:
		return 0, fmt.Errorf("unknown aircraft type %q", s)
	}
}

// DefaultAirlines returns the built-in roster used when no scenario file is
// supplied.
func DefaultAirlines() []*model.Airline {
	return []*model.Airline{
		{Name: "PIA", Type: "COMMERCIAL", PrimaryType: model.TypeCommercial, TotalAircraft: 6, MaxFlights: 4},
		{Name: "AirBlue", Type: "COMMERCIAL", PrimaryType: model.TypeCommercial, TotalAircraft: 4, MaxFlights: 4},
		{Name: "FedEx", Type: "CARGO", PrimaryType: model.TypeCargo, TotalAircraft: 3, MaxFlights: 2},
		{Name: "Pakistan Airforce", Type: "EMERGENCY", PrimaryType: model.TypeEmergency, TotalAircraft: 2, MaxFlights: 1},
		{Name: "Blue Dart", Type: "CARGO", PrimaryType: model.TypeCargo, TotalAircraft: 2, MaxFlights: 2},
		{Name: "AghaKhan Air", Type: "EMERGENCY", PrimaryType: model.TypeEmergency, TotalAircraft: 2, MaxFlights: 1},
	}
}
