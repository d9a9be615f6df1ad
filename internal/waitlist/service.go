// Package waitlist keeps patients waiting for a specialty and hands freed
// slots to them in strict enrollment order.
package waitlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/retry"
	"github.com/hackgods/clinic-scheduling/internal/slot"
	"github.com/hackgods/clinic-scheduling/internal/validate"
)

// Booker creates and cancels appointments. Booking must re-check capacity
// atomically with the insert.
type Booker interface {
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*appointment.Appointment, error)
}

// SlotSource lists the open slots of a professional.
type SlotSource interface {
	OpenSlots(ctx context.Context, professionalID uuid.UUID, horizonDays int) ([]slot.Slot, error)
}

type Options struct {
	MaxDeclines  int
	OfferTimeout time.Duration
	HorizonDays  int
	QueueSize    int
	Retry        retry.Policy
	Now          func() time.Time
}

func (o *Options) defaults() {
	if o.MaxDeclines <= 0 {
		o.MaxDeclines = 3
	}
	if o.OfferTimeout <= 0 {
		o.OfferTimeout = 30 * time.Second
	}
	if o.HorizonDays <= 0 {
		o.HorizonDays = 14
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Retry.Attempts == 0 {
		o.Retry = retry.DefaultPolicy()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type job func(ctx context.Context)

type Service struct {
	repo    Repository
	catalog catalog.Catalog
	booker  Booker
	slots   SlotSource
	offerer Offerer
	opts    Options

	queue chan job
}

func NewService(repo Repository, cat catalog.Catalog, booker Booker, slots SlotSource, offerer Offerer, opts Options) *Service {
	opts.defaults()
	if offerer == nil {
		offerer = AutoAcceptOfferer{}
	}
	return &Service{
		repo:    repo,
		catalog: cat,
		booker:  booker,
		slots:   slots,
		offerer: offerer,
		opts:    opts,
		queue:   make(chan job, opts.QueueSize),
	}
}

func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*Placement, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	patient, err := s.catalog.GetPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if !patient.Active {
		return nil, apperr.Validation("patient_id", "patient %s is inactive", patient.ID)
	}
	if req.PreferredUnitID != nil {
		if _, err := s.catalog.GetUnit(ctx, *req.PreferredUnitID); err != nil {
			return nil, err
		}
	}

	e := &Entry{
		PatientID:       req.PatientID,
		Specialty:       req.Specialty,
		PreferredUnitID: req.PreferredUnitID,
		Status:          StatusWaiting,
		EnrolledAt:      s.opts.Now(),
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		e.Notes = &notes
	}

	if err := s.repo.Create(ctx, e); err != nil {
		if errors.Is(err, ErrDuplicateWaiting) {
			return nil, apperr.DuplicateEntry("waitlist_entry", req.PatientID.String(),
				"patient is already waiting for %s", req.Specialty)
		}
		return nil, fmt.Errorf("create waitlist entry: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("entry_id", e.ID.String()).
		Str("specialty", string(e.Specialty)).
		Msg("patient enrolled in waitlist")

	return s.place(ctx, *e)
}

// Withdraw removes a waiting entry. Removal is terminal.
func (s *Service) Withdraw(ctx context.Context, id uuid.UUID, reason string) (*Entry, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = ReasonWithdrawn
	}
	return s.mutate(ctx, id, func(e *Entry) error {
		if e.Status != StatusWaiting {
			return apperr.InvalidTransition("waitlist_entry", id.String(), string(e.Status), "withdraw")
		}
		s.remove(e, reason)
		return nil
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Placement, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, id)
	}
	return s.place(ctx, *e)
}

// ListBySpecialty returns the waiting queue of a specialty in FIFO order.
func (s *Service) ListBySpecialty(ctx context.Context, specialty catalog.Specialty) ([]Placement, error) {
	if !specialty.Valid() {
		return nil, apperr.Validation("specialty", "%q is not a known specialty", specialty)
	}
	waiting, err := s.repo.ListWaiting(ctx, specialty)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	out := make([]Placement, len(waiting))
	for i, e := range waiting {
		out[i] = Placement{Entry: e, Position: i + 1, Total: len(waiting)}
	}
	return out, nil
}

// ListByUnit returns waiting entries that prefer the unit, positioned within
// their specialty queue.
func (s *Service) ListByUnit(ctx context.Context, unitID uuid.UUID) ([]Placement, error) {
	if _, err := s.catalog.GetUnit(ctx, unitID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListWaitingByUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist by unit: %w", err)
	}
	return s.placeAll(ctx, entries)
}

// ListByPatient returns every entry of the patient, including past ones.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Placement, error) {
	if _, err := s.catalog.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist by patient: %w", err)
	}
	return s.placeAll(ctx, entries)
}

// HandleSlotFreed proposes the slot to eligible waiting entries in FIFO order
// until one accepts and is booked. It returns the matched entry, or nil when
// nobody took the slot.
func (s *Service) HandleSlotFreed(ctx context.Context, ev slot.Freed) (*Entry, error) {
	candidates, err := s.repo.ListWaiting(ctx, ev.Specialty)
	if err != nil {
		return nil, fmt.Errorf("list waitlist candidates: %w", err)
	}

	logger := log.Ctx(ctx).With().Str("slot", ev.Key.String()).Str("specialty", string(ev.Specialty)).Logger()

	for _, c := range candidates {
		if !c.Accepts(ev.UnitID) {
			continue
		}

		// the queue may have moved since the listing
		cur, err := s.repo.Get(ctx, c.ID)
		if err != nil {
			return nil, s.mapErr(err, c.ID)
		}
		if cur.Status != StatusWaiting {
			continue
		}

		if !s.offer(ctx, *cur, ev) {
			if err := s.recordDecline(ctx, cur.ID); err != nil {
				logger.Warn().Err(err).Str("entry_id", cur.ID.String()).Msg("failed to record decline")
			}
			continue
		}

		appt, err := s.booker.Book(ctx, appointment.BookRequest{
			PatientID:      cur.PatientID,
			ProfessionalID: ev.ProfessionalID,
			Specialty:      ev.Specialty,
			Date:           ev.Date,
			Time:           ev.Time,
			Notes:          "waitlist",
		})
		switch {
		case err == nil:
		case errors.Is(err, apperr.ErrSlotUnavailable):
			logger.Info().Str("entry_id", cur.ID.String()).Msg("slot taken before the waitlist could book it")
			return nil, nil
		case patientIneligible(err):
			logger.Warn().Err(err).Str("entry_id", cur.ID.String()).Msg("waitlist candidate cannot be booked, removing entry")
			if err := s.removeIneligible(ctx, cur.ID); err != nil {
				logger.Warn().Err(err).Str("entry_id", cur.ID.String()).Msg("failed to remove ineligible entry")
			}
			continue
		case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrNotFound):
			// nobody can book this slot, e.g. the professional was deactivated
			logger.Warn().Err(err).Msg("freed slot cannot be booked")
			return nil, nil
		default:
			return nil, err
		}

		matched, err := s.markMatched(ctx, cur.ID, appt.ID)
		if err != nil {
			// the entry left the queue during the offer, give the slot back
			if _, cancelErr := s.booker.Cancel(ctx, appt.ID, "waitlist entry no longer waiting"); cancelErr != nil {
				logger.Error().Err(cancelErr).Str("appointment_id", appt.ID.String()).Msg("failed to release waitlist booking")
				return nil, cancelErr
			}
			logger.Warn().Err(err).Str("entry_id", cur.ID.String()).Msg("waitlist entry changed during offer")
			continue
		}

		logger.Info().
			Str("entry_id", matched.ID.String()).
			Str("appointment_id", appt.ID.String()).
			Msg("waitlist entry matched")
		return matched, nil
	}

	return nil, nil
}

// HandleCapacityAdded runs matching over the open slots of a professional
// whose schedule grew.
func (s *Service) HandleCapacityAdded(ctx context.Context, professionalID uuid.UUID) (int, error) {
	prof, err := s.catalog.GetProfessional(ctx, professionalID)
	if err != nil {
		return 0, err
	}
	open, err := s.slots.OpenSlots(ctx, professionalID, s.opts.HorizonDays)
	if err != nil {
		return 0, err
	}

	matched := 0
	for _, sl := range open {
		ev := slot.Freed{Key: sl.Key, Specialty: prof.Specialty, UnitID: sl.UnitID, Reason: "capacity_added"}
		for i := 0; i < sl.Remaining; i++ {
			m, err := s.HandleSlotFreed(ctx, ev)
			if err != nil {
				return matched, err
			}
			if m == nil {
				break
			}
			matched++
		}
	}
	return matched, nil
}

// ExpireStale removes waiting entries enrolled more than maxAge ago.
func (s *Service) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	stale, err := s.repo.ListWaitingEnrolledBefore(ctx, s.opts.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("find stale waitlist entries: %w", err)
	}

	expired := 0
	for _, e := range stale {
		_, err := s.mutate(ctx, e.ID, func(cur *Entry) error {
			if cur.Status != StatusWaiting {
				return apperr.InvalidTransition("waitlist_entry", cur.ID.String(), string(cur.Status), "expire")
			}
			s.remove(cur, ReasonExpired)
			return nil
		})
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("entry_id", e.ID.String()).Msg("failed to expire waitlist entry")
			continue
		}
		expired++
	}
	return expired, nil
}

// Notify queues a freed slot for the Run loop. It never blocks; when the
// queue is full the event is dropped and the slot stays open for direct
// booking.
func (s *Service) Notify(ctx context.Context, ev slot.Freed) {
	s.enqueueJob(ctx, "slot_freed", func(ctx context.Context) {
		if _, err := s.HandleSlotFreed(ctx, ev); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("slot", ev.Key.String()).Msg("waitlist matching failed")
		}
	})
}

// NotifyCapacityAdded queues matching for a professional's new slots.
func (s *Service) NotifyCapacityAdded(ctx context.Context, professionalID uuid.UUID) {
	s.enqueueJob(ctx, "capacity_added", func(ctx context.Context) {
		if _, err := s.HandleCapacityAdded(ctx, professionalID); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("professional_id", professionalID.String()).Msg("waitlist matching failed")
		}
	})
}

func (s *Service) enqueueJob(ctx context.Context, kind string, j job) {
	select {
	case s.queue <- j:
	default:
		log.Ctx(ctx).Warn().Str("job", kind).Msg("waitlist queue full, dropping event")
	}
}

// Run processes queued events until ctx is done.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			j(ctx)
		}
	}
}

func (s *Service) offer(ctx context.Context, e Entry, ev slot.Freed) bool {
	offerCtx, cancel := context.WithTimeout(ctx, s.opts.OfferTimeout)
	defer cancel()

	accepted, err := s.offerer.Offer(offerCtx, Offer{Entry: e, Slot: ev})
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Str("entry_id", e.ID.String()).Msg("offer expired or failed")
		return false
	}
	return accepted
}

func (s *Service) recordDecline(ctx context.Context, id uuid.UUID) error {
	_, err := s.mutate(ctx, id, func(e *Entry) error {
		if e.Status != StatusWaiting {
			return nil
		}
		e.Declines++
		if e.Declines >= s.opts.MaxDeclines {
			s.remove(e, ReasonDeclined)
		}
		return nil
	})
	return err
}

func (s *Service) removeIneligible(ctx context.Context, id uuid.UUID) error {
	_, err := s.mutate(ctx, id, func(e *Entry) error {
		if e.Status == StatusWaiting {
			s.remove(e, ReasonIneligible)
		}
		return nil
	})
	return err
}

// patientIneligible reports booking failures caused by the patient rather
// than the slot.
func patientIneligible(err error) bool {
	e, ok := apperr.As(err)
	if !ok {
		return false
	}
	switch e.Kind {
	case apperr.KindNotFound:
		return e.Entity == "patient"
	case apperr.KindValidation:
		return e.Field == "patient_id"
	}
	return false
}

func (s *Service) markMatched(ctx context.Context, id, appointmentID uuid.UUID) (*Entry, error) {
	return s.mutate(ctx, id, func(e *Entry) error {
		if e.Status != StatusWaiting {
			return apperr.InvalidTransition("waitlist_entry", id.String(), string(e.Status), "match")
		}
		now := s.opts.Now()
		e.Status = StatusMatched
		e.AppointmentID = &appointmentID
		e.MatchedAt = &now
		return nil
	})
}

func (s *Service) remove(e *Entry, reason string) {
	now := s.opts.Now()
	e.Status = StatusRemoved
	e.RemovedAt = &now
	e.RemovalReason = &reason
}

func (s *Service) mutate(ctx context.Context, id uuid.UUID, apply func(*Entry) error) (*Entry, error) {
	var updated *Entry
	err := retry.OnConflict(ctx, s.opts.Retry, func(ctx context.Context) error {
		e, err := s.repo.Get(ctx, id)
		if err != nil {
			return s.mapErr(err, id)
		}
		if err := apply(e); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, e); err != nil {
			return s.mapErr(err, id)
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) place(ctx context.Context, e Entry) (*Placement, error) {
	ps, err := s.placeAll(ctx, []Entry{e})
	if err != nil {
		return nil, err
	}
	return &ps[0], nil
}

// placeAll computes queue positions, loading each specialty queue once.
func (s *Service) placeAll(ctx context.Context, entries []Entry) ([]Placement, error) {
	queues := make(map[catalog.Specialty][]Entry)
	out := make([]Placement, len(entries))
	for i, e := range entries {
		out[i] = Placement{Entry: e}
		if e.Status != StatusWaiting {
			continue
		}
		q, ok := queues[e.Specialty]
		if !ok {
			var err error
			q, err = s.repo.ListWaiting(ctx, e.Specialty)
			if err != nil {
				return nil, fmt.Errorf("load waitlist queue: %w", err)
			}
			queues[e.Specialty] = q
		}
		for pos, w := range q {
			if w.ID == e.ID {
				out[i].Position = pos + 1
				out[i].Total = len(q)
				break
			}
		}
	}
	return out, nil
}

func (s *Service) mapErr(err error, id uuid.UUID) error {
	switch {
	case errors.Is(err, ErrEntryNotFound):
		e := apperr.NotFound("waitlist_entry", id.String())
		e.Err = err
		return e
	case errors.Is(err, ErrStaleVersion):
		return apperr.Conflict("waitlist_entry", id.String())
	default:
		return fmt.Errorf("waitlist entry %s: %w", id, err)
	}
}
