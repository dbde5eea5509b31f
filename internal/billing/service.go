package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/towerworks/atc-simulator/core"
	"github.com/towerworks/atc-simulator/internal/logging"
)

var (
	// ErrNoticeNotFound indicates a requested notice was not found.
	ErrNoticeNotFound = errors.New("notice not found")
	// ErrInsufficientPayment indicates a payment below the total due.
	ErrInsufficientPayment = errors.New("payment below total due")
	// ErrAlreadyPaid indicates the notice has already been settled.
	ErrAlreadyPaid = errors.New("notice already paid")
)

// Service is the in-process billing collaborator. It implements
// core.NoticeIssuer and additionally handles payment confirmation and the
// read-only query surface.
type Service struct {
	mu      sync.RWMutex
	notices map[string]*Notice
	order   []string

	tracer trace.Tracer
	log    logging.Logger
}

// NewService constructs an empty billing service.
func NewService(log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{
		notices: make(map[string]*Notice),
		tracer:  otel.Tracer("billing"),
		log:     log,
	}
}

var _ core.NoticeIssuer = (*Service)(nil)

// IssueNotice creates a notice from the monitor's request, applying the
// fine schedule, and returns the notice ID.
func (s *Service) IssueNotice(ctx context.Context, req core.NoticeRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "billing.IssueNotice",
		trace.WithAttributes(
			attribute.String("aircraft.id", req.AircraftID),
			attribute.String("airline", req.Airline),
			attribute.String("category", req.Category.String()),
			attribute.Float64("speed.recorded", req.RecordedSpeed),
		),
	)
	defer span.End()

	fine := fineFor(req.Category)
	fee := fine * ServiceFeePercentage

	n := &Notice{
		ID:            uuid.NewString(),
		AircraftID:    req.AircraftID,
		Airline:       req.Airline,
		FlightNumber:  req.FlightNumber,
		Category:      req.Category,
		RecordedSpeed: req.RecordedSpeed,
		MinAllowed:    req.MinAllowed,
		MaxAllowed:    req.MaxAllowed,
		IssuedAt:      req.Timestamp,
		DueAt:         req.Timestamp.Add(PaymentWindow),
		FineAmount:    fine,
		ServiceFee:    fee,
		TotalDue:      fine + fee,
		Status:        Unpaid,
	}

	s.mu.Lock()
	s.notices[n.ID] = n
	s.order = append(s.order, n.ID)
	s.mu.Unlock()

	s.log.Info(ctx, "notice issued",
		logging.String("notice", n.ID),
		logging.String("aircraft", n.AircraftID),
		logging.String("airline", n.Airline),
		logging.Float64("total_due", n.TotalDue),
	)
	return n.ID, nil
}

// ConfirmPayment settles a notice. The payment is accepted only when it
// covers the total due.
func (s *Service) ConfirmPayment(noticeID string, amount float64, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notices[noticeID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoticeNotFound, noticeID)
	}
	if n.Status == Paid {
		return fmt.Errorf("%w: %q", ErrAlreadyPaid, noticeID)
	}
	if amount < n.TotalDue {
		return fmt.Errorf("%w: %.2f < %.2f", ErrInsufficientPayment, amount, n.TotalDue)
	}
	n.Status = Paid
	n.PaidAmount = amount
	n.PaidAt = paidAt
	return nil
}

// MarkOverdue flips unpaid notices whose due date has passed to OVERDUE
// and returns how many changed.
func (s *Service) MarkOverdue(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, n := range s.notices {
		if n.Status == Unpaid && now.After(n.DueAt) {
			n.Status = Overdue
			changed++
		}
	}
	return changed
}

// Notice returns a copy of one notice.
func (s *Service) Notice(noticeID string) (Notice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notices[noticeID]
	if !ok {
		return Notice{}, fmt.Errorf("%w: %q", ErrNoticeNotFound, noticeID)
	}
	return *n, nil
}

// ListNotices returns copies of all notices in issuance order.
func (s *Service) ListNotices() []Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notice, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.notices[id])
	}
	return out
}

// NoticesForAirline returns copies of an airline's notices.
func (s *Service) NoticesForAirline(airline string) []Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Notice
	for _, id := range s.order {
		if n := s.notices[id]; n.Airline == airline {
			out = append(out, *n)
		}
	}
	return out
}

// NoticesForAircraft returns copies of an aircraft's notices.
func (s *Service) NoticesForAircraft(aircraftID string) []Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Notice
	for _, id := range s.order {
		if n := s.notices[id]; n.AircraftID == aircraftID {
			out = append(out, *n)
		}
	}
	return out
}

// OutstandingForAirline sums an airline's unpaid and overdue totals.
func (s *Service) OutstandingForAirline(airline string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, id := range s.order {
		if n := s.notices[id]; n.Airline == airline && n.Status != Paid {
			total += n.TotalDue
		}
	}
	return total
}
