package service

import (
	"context"
	"fmt"

	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/internal/monitor"
	"github.com/MKhiriev/clinic-keeper/internal/reconciler"
	"github.com/MKhiriev/clinic-keeper/models"
)

// ReservationService joins server reservations with the locally cached
// patient data.
type ReservationService struct {
	api    ReservationAPI
	cache  *ReservationCache
	guard  Guard
	logger *logger.Logger
}

func NewReservationService(api ReservationAPI, cache *ReservationCache, guard Guard, log *logger.Logger) *ReservationService {
	return &ReservationService{
		api:    api,
		cache:  cache,
		guard:  guard,
		logger: log.WithComponent("reservation_service"),
	}
}

// List fetches the reservations and reconciles each with the patient cache.
// The cache is only read here; entries for reservations the server no
// longer returns are kept.
func (s *ReservationService) List(ctx context.Context) ([]models.ReservationView, error) {
	if !s.guard.Allow(monitor.ActionListReservations) {
		return nil, ErrRateLimited
	}

	items, err := s.api.ListReservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReservationsOnServer, err)
	}

	cached, err := s.cache.All(ctx)
	if err != nil {
		// reservations are still shown, with server data only
		s.logger.Warn().Err(err).Msg("patient cache unavailable")
		cached = nil
	}

	return reconciler.ReconcileAll(items, func(id int64) (models.LocalPatientRecord, bool) {
		rec, ok := cached[id]
		return rec, ok
	}), nil
}

// CreateManual books a patient by hand. The patient fields are screened,
// sent to the server and cached locally under the id the server assigned.
func (s *ReservationService) CreateManual(ctx context.Context, req models.ManualReservationRequest) (models.ReservationView, error) {
	if !s.guard.Allow(monitor.ActionCreateReservation) {
		return models.ReservationView{}, ErrRateLimited
	}

	if req.FullName == "" || req.PhoneNumber == "" {
		return models.ReservationView{}, fmt.Errorf("%w: full name and phone number are required", ErrInvalidDataProvided)
	}

	fields := [...]struct{ name, value string }{
		{"full_name", req.FullName},
		{"phone_number", req.PhoneNumber},
		{"age", req.Age},
		{"gender", req.Gender},
		{"notes", req.Notes},
	}
	for _, f := range fields {
		if !s.guard.CheckInput(f.name, f.value) {
			return models.ReservationView{}, fmt.Errorf("%w: %s", ErrSuspiciousInput, f.name)
		}
	}

	created, err := s.api.CreateReservation(ctx, req)
	if err != nil {
		return models.ReservationView{}, fmt.Errorf("%w: %w", ErrCreateOnServer, err)
	}

	patient := req.Patient()
	if err = s.cache.Save(ctx, created.ID, patient); err != nil {
		// the reservation exists; only the local copy of the patient is lost
		s.logger.Err(err).Int64("reservation_id", created.ID).Msg("error caching patient data")
	}

	return models.ReservationView{
		Reservation: created,
		Patient:     reconciler.Reconcile(created, &patient),
	}, nil
}

// Cleanup drops cached patients of reservations not in validIDs.
func (s *ReservationService) Cleanup(ctx context.Context, validIDs []int64) (int, error) {
	return s.cache.Cleanup(ctx, validIDs)
}
