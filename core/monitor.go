package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/towerworks/atc-simulator/internal/logging"
	"github.com/towerworks/atc-simulator/model"
)

const (
	// speedHistoryDepth bounds the rolling per-aircraft sample window.
	speedHistoryDepth = 10
	// erraticDeltaThreshold flags an aircraft whose mean absolute
	// sample-to-sample speed delta exceeds this many km/h.
	erraticDeltaThreshold = 50.0

	// Fines applied by CalculateFines. The severe rate kicks in when the
	// deviation from the envelope exceeds severeDeviation km/h.
	baseFine        = 1000.0
	severeFine      = 5000.0
	severeDeviation = 100.0
)

// NoticeRequest carries everything the billing collaborator needs to issue
// an airspace violation notice.
type NoticeRequest struct {
	AircraftID    string
	Airline       string
	FlightNumber  string
	Category      model.AircraftType
	RecordedSpeed float64
	MinAllowed    float64
	MaxAllowed    float64
	Timestamp     time.Time
}

// NoticeIssuer is the boundary to the billing collaborator. Whether the
// implementation is an in-process service, a channel, or real IPC is a
// deployment choice invisible to the monitor.
type NoticeIssuer interface {
	IssueNotice(ctx context.Context, req NoticeRequest) (noticeID string, err error)
}

// ViolationMonitor checks aircraft speeds against phase envelopes, detects
// erratic speed patterns, and emits at most one violation record per
// (aircraft, phase) pair.
type ViolationMonitor struct {
	mu sync.Mutex

	history map[string][]float64

	records   []model.ViolationRecord
	byAirline map[string]int
	byPhase   map[model.FlightPhase]int

	issuer NoticeIssuer
	log    logging.Logger
}

// NewViolationMonitor constructs a monitor reporting to issuer. A nil issuer
// records violations without requesting notices; a nil logger is replaced
// with a noop.
func NewViolationMonitor(issuer NoticeIssuer, log logging.Logger) *ViolationMonitor {
	if log == nil {
		log = logging.Noop()
	}
	return &ViolationMonitor{
		history:   make(map[string][]float64),
		byAirline: make(map[string]int),
		byPhase:   make(map[model.FlightPhase]int),
		issuer:    issuer,
		log:       log,
	}
}

// Observe ingests one speed sample for the aircraft and returns a violation
// record if this tick produced one. Either an out-of-envelope sample or an
// erratic history triggers a record, but a phase that was already flagged
// stays silent. Observe only detects; callers collect the returned records
// and request notices via Issue after dropping any simulation locks.
func (m *ViolationMonitor) Observe(ctx context.Context, a *model.Aircraft, flightID string, now time.Time) *model.ViolationRecord {
	env := EnvelopeFor(a.CurrentPhase)

	m.mu.Lock()
	m.recordSampleLocked(a.ID, a.CurrentSpeed)

	hard := !env.Contains(a.CurrentSpeed)
	erratic := m.erraticLocked(a.ID)
	if (!hard && !erratic) || a.FlaggedPhases[a.CurrentPhase] {
		m.mu.Unlock()
		return nil
	}

	a.FlaggedPhases[a.CurrentPhase] = true
	rec := model.ViolationRecord{
		AircraftID:  a.ID,
		Airline:     a.Airline,
		Phase:       a.CurrentPhase,
		ActualSpeed: a.CurrentSpeed,
		MinAllowed:  env.Min,
		MaxAllowed:  env.Max,
		Timestamp:   now,
		Description: describeViolation(a, env, hard),
	}
	m.records = append(m.records, rec)
	m.byAirline[a.Airline]++
	m.byPhase[a.CurrentPhase]++
	m.mu.Unlock()

	m.log.Warn(ctx, "speed violation detected",
		logging.String("aircraft", a.ID),
		logging.String("airline", a.Airline),
		logging.String("phase", a.CurrentPhase.String()),
		logging.Any("speed", a.CurrentSpeed),
	)
	return &rec
}

// NoticeRequestFor translates a violation record into a billing request.
func NoticeRequestFor(rec model.ViolationRecord, flightID string, category model.AircraftType) NoticeRequest {
	return NoticeRequest{
		AircraftID:    rec.AircraftID,
		Airline:       rec.Airline,
		FlightNumber:  flightID,
		Category:      category,
		RecordedSpeed: rec.ActualSpeed,
		MinAllowed:    rec.MinAllowed,
		MaxAllowed:    rec.MaxAllowed,
		Timestamp:     rec.Timestamp,
	}
}

// Issue forwards a notice request to the billing issuer. It must be called
// with no simulation locks held; issuance can involve slow transports.
func (m *ViolationMonitor) Issue(ctx context.Context, req NoticeRequest) {
	if m.issuer == nil {
		return
	}
	if _, err := m.issuer.IssueNotice(ctx, req); err != nil {
		m.log.Error(ctx, "notice issuance failed",
			logging.String("aircraft", req.AircraftID),
			logging.String("error", err.Error()),
		)
	}
}

func (m *ViolationMonitor) recordSampleLocked(aircraftID string, speed float64) {
	h := append(m.history[aircraftID], speed)
	if len(h) > speedHistoryDepth {
		h = h[len(h)-speedHistoryDepth:]
	}
	m.history[aircraftID] = h
}

// erraticLocked reports whether the rolling history shows rapid speed
// changes: mean absolute delta between consecutive samples above threshold.
func (m *ViolationMonitor) erraticLocked(aircraftID string) bool {
	h := m.history[aircraftID]
	if len(h) < 2 {
		return false
	}
	var total float64
	for i := 1; i < len(h); i++ {
		d := h[i] - h[i-1]
		if d < 0 {
			d = -d
		}
		total += d
	}
	return total/float64(len(h)-1) > erraticDeltaThreshold
}

// Forget drops the speed history for an aircraft whose flight has ended.
func (m *ViolationMonitor) Forget(aircraftID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, aircraftID)
}

// Violations returns a copy of all violation records.
func (m *ViolationMonitor) Violations() []model.ViolationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ViolationRecord, len(m.records))
	copy(out, m.records)
	return out
}

// ViolationsForAircraft returns records for one aircraft.
func (m *ViolationMonitor) ViolationsForAircraft(aircraftID string) []model.ViolationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ViolationRecord
	for _, rec := range m.records {
		if rec.AircraftID == aircraftID {
			out = append(out, rec)
		}
	}
	return out
}

// ViolationsForAirline returns records for one airline.
func (m *ViolationMonitor) ViolationsForAirline(airline string) []model.ViolationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ViolationRecord
	for _, rec := range m.records {
		if rec.Airline == airline {
			out = append(out, rec)
		}
	}
	return out
}

// CountsByAirline returns violation counts keyed by airline name.
func (m *ViolationMonitor) CountsByAirline() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.byAirline))
	for k, v := range m.byAirline {
		out[k] = v
	}
	return out
}

// CountsByPhase returns violation counts keyed by flight phase.
func (m *ViolationMonitor) CountsByPhase() map[model.FlightPhase]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.FlightPhase]int, len(m.byPhase))
	for k, v := range m.byPhase {
		out[k] = v
	}
	return out
}

// TotalViolations returns how many records the monitor holds.
func (m *ViolationMonitor) TotalViolations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// CalculateFines sums the fines owed by an airline: a base fee per
// violation, escalated when the deviation from the envelope exceeds the
// severe threshold.
func (m *ViolationMonitor) CalculateFines(airline string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for _, rec := range m.records {
		if rec.Airline != airline {
			continue
		}
		if rec.Deviation() > severeDeviation {
			total += severeFine
		} else {
			total += baseFine
		}
	}
	return total
}

func describeViolation(a *model.Aircraft, env SpeedEnvelope, hard bool) string {
	if hard {
		return fmt.Sprintf("%s at %.0f km/h outside [%.0f, %.0f] during %s",
			a.ID, a.CurrentSpeed, env.Min, env.Max, a.CurrentPhase)
	}
	return fmt.Sprintf("%s erratic speed changes during %s", a.ID, a.CurrentPhase)
}
