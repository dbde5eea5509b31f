package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/towerworks/atc-simulator/core"
	"github.com/towerworks/atc-simulator/model"
)

func commercialRequest(ts time.Time) core.NoticeRequest {
	return core.NoticeRequest{
		AircraftID:    "PA-001",
		Airline:       "PIA",
		FlightNumber:  "PA-001",
		Category:      model.TypeCommercial,
		RecordedSpeed: 650,
		MinAllowed:    400,
		MaxAllowed:    600,
		Timestamp:     ts,
	}
}

func TestIssueNoticeAppliesFineSchedule(t *testing.T) {
	svc := NewService(nil)
	issued := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	id, err := svc.IssueNotice(context.Background(), commercialRequest(issued))
	if err != nil {
		t.Fatalf("IssueNotice error: %v", err)
	}
	n, err := svc.Notice(id)
	if err != nil {
		t.Fatalf("Notice error: %v", err)
	}

	if n.FineAmount != CommercialFine {
		t.Fatalf("fine = %.0f, want %.0f", n.FineAmount, CommercialFine)
	}
	if n.ServiceFee != CommercialFine*ServiceFeePercentage {
		t.Fatalf("fee = %.0f, want %.0f", n.ServiceFee, CommercialFine*ServiceFeePercentage)
	}
	if n.TotalDue != 575000 {
		t.Fatalf("total due = %.0f, want 575000", n.TotalDue)
	}
	if !n.DueAt.Equal(issued.Add(PaymentWindow)) {
		t.Fatalf("due at = %s, want issuance + 3 days", n.DueAt)
	}
	if n.Status != Unpaid {
		t.Fatalf("status = %s, want UNPAID", n.Status)
	}
}

func TestIssueNoticeCargoRate(t *testing.T) {
	svc := NewService(nil)
	req := commercialRequest(time.Now())
	req.Category = model.TypeCargo

	id, err := svc.IssueNotice(context.Background(), req)
	if err != nil {
		t.Fatalf("IssueNotice error: %v", err)
	}
	n, _ := svc.Notice(id)
	if n.FineAmount != CargoFine || n.TotalDue != 805000 {
		t.Fatalf("cargo notice amounts wrong: fine %.0f total %.0f", n.FineAmount, n.TotalDue)
	}
}

func TestConfirmPayment(t *testing.T) {
	svc := NewService(nil)
	id, err := svc.IssueNotice(context.Background(), commercialRequest(time.Now()))
	if err != nil {
		t.Fatalf("IssueNotice error: %v", err)
	}

	if err := svc.ConfirmPayment(id, 100, time.Now()); !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
	if err := svc.ConfirmPayment("missing", 575000, time.Now()); !errors.Is(err, ErrNoticeNotFound) {
		t.Fatalf("expected ErrNoticeNotFound, got %v", err)
	}

	paidAt := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	if err := svc.ConfirmPayment(id, 575000, paidAt); err != nil {
		t.Fatalf("ConfirmPayment error: %v", err)
	}
	n, _ := svc.Notice(id)
	if n.Status != Paid || n.PaidAmount != 575000 || !n.PaidAt.Equal(paidAt) {
		t.Fatalf("paid notice wrong: %+v", n)
	}

	if err := svc.ConfirmPayment(id, 575000, time.Now()); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestMarkOverdue(t *testing.T) {
	svc := NewService(nil)
	issued := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	id, err := svc.IssueNotice(context.Background(), commercialRequest(issued))
	if err != nil {
		t.Fatalf("IssueNotice error: %v", err)
	}

	if changed := svc.MarkOverdue(issued.Add(24 * time.Hour)); changed != 0 {
		t.Fatalf("notice marked overdue before its due date")
	}
	if changed := svc.MarkOverdue(issued.Add(PaymentWindow + time.Hour)); changed != 1 {
		t.Fatalf("MarkOverdue changed %d, want 1", changed)
	}
	n, _ := svc.Notice(id)
	if n.Status != Overdue {
		t.Fatalf("status = %s, want OVERDUE", n.Status)
	}

	// Overdue notices can still be settled.
	if err := svc.ConfirmPayment(id, n.TotalDue, time.Now()); err != nil {
		t.Fatalf("ConfirmPayment on overdue notice: %v", err)
	}
}

func TestNoticeQueries(t *testing.T) {
	svc := NewService(nil)
	now := time.Now()

	reqA := commercialRequest(now)
	reqB := commercialRequest(now)
	reqB.AircraftID = "FE-001"
	reqB.Airline = "FedEx"
	reqB.Category = model.TypeCargo

	if _, err := svc.IssueNotice(context.Background(), reqA); err != nil {
		t.Fatalf("IssueNotice error: %v", err)
	}
	if _, err := svc.IssueNotice(context.Background(), reqB); err != nil {
		t.Fatalf("IssueNotice error: %v", err)
	}

	if got := len(svc.ListNotices()); got != 2 {
		t.Fatalf("ListNotices = %d, want 2", got)
	}
	if got := svc.NoticesForAirline("FedEx"); len(got) != 1 || got[0].AircraftID != "FE-001" {
		t.Fatalf("NoticesForAirline wrong: %+v", got)
	}
	if got := svc.NoticesForAircraft("PA-001"); len(got) != 1 {
		t.Fatalf("NoticesForAircraft = %d, want 1", len(got))
	}
	if got := svc.OutstandingForAirline("FedEx"); got != 805000 {
		t.Fatalf("outstanding = %.0f, want 805000", got)
	}
}

func TestDispatcherDrainsToService(t *testing.T) {
	svc := NewService(nil)
	d := NewDispatcher(svc, nil)

	for i := 0; i < 5; i++ {
		if _, err := d.IssueNotice(context.Background(), commercialRequest(time.Now())); err != nil {
			t.Fatalf("dispatcher IssueNotice error: %v", err)
		}
	}
	d.Close()

	if got := len(svc.ListNotices()); got != 5 {
		t.Fatalf("service holds %d notices after drain, want 5", got)
	}
	if _, err := d.IssueNotice(context.Background(), commercialRequest(time.Now())); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("expected ErrDispatcherClosed, got %v", err)
	}
}
