// Package billing implements the airspace violation notice (AVN)
// collaborator: notice issuance with the fixed fine schedule, payment
// confirmation, and read-only queries for reporting.
package billing

import (
	"time"

	"github.com/towerworks/atc-simulator/model"
)

// Fine schedule. Cargo carriers pay the higher base fine; a fixed
// percentage service fee is added on top, and payment is due three days
// after issuance.
const (
	CommercialFine       = 500000.0
	CargoFine            = 700000.0
	ServiceFeePercentage = 0.15
	PaymentWindow        = 72 * time.Hour
)

// PaymentStatus tracks a notice through its payment lifecycle.
type PaymentStatus int

const (
	Unpaid PaymentStatus = iota
	Paid
	Overdue
)

func (s PaymentStatus) String() string {
	switch s {
	case Unpaid:
		return "UNPAID"
	case Paid:
		return "PAID"
	case Overdue:
		return "OVERDUE"
	default:
		return "UNKNOWN"
	}
}

// Notice is one issued violation notice. FineAmount, ServiceFee, and
// TotalDue are fixed at issuance; only Status and PaidAmount change.
type Notice struct {
	ID           string
	AircraftID   string
	Airline      string
	FlightNumber string
	Category     model.AircraftType

	RecordedSpeed float64
	MinAllowed    float64
	MaxAllowed    float64

	IssuedAt time.Time
	DueAt    time.Time

	FineAmount float64
	ServiceFee float64
	TotalDue   float64

	Status     PaymentStatus
	PaidAmount float64
	PaidAt     time.Time
}

// fineFor returns the base fine for an aircraft category. Anything
// non-commercial pays the cargo rate.
func fineFor(category model.AircraftType) float64 {
	if category == model.TypeCommercial {
		return CommercialFine
	}
	return CargoFine
}
