package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/internal/mock"
	"github.com/MKhiriev/clinic-keeper/internal/monitor"
	"github.com/MKhiriev/clinic-keeper/models"
)

func newTestReservationService(t *testing.T) (*fixture, *ReservationService, *ReservationCache, *mock.MockServerAdapter) {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := newFixture(t)
	server := mock.NewMockServerAdapter(ctrl)
	cache := NewReservationCache(f.store, func() string { return "42" }, logger.Nop())
	return f, NewReservationService(server, cache, f.monitor, logger.Nop()), cache, server
}

func TestReservationService_ListReconciles(t *testing.T) {
	ctx := context.Background()
	_, svc, cache, server := newTestReservationService(t)

	require.NoError(t, cache.Save(ctx, 1, models.LocalPatientRecord{
		FullName: "A", PhoneNumber: "0700000001", Age: "30", Gender: "male",
	}))

	server.EXPECT().ListReservations(gomock.Any()).Return([]models.Reservation{
		{ID: 1, User: &models.ReservationUser{Account: &models.Account{FullName: "B", PhoneNumber: "0700000002"}}},
		{ID: 2, FullName: "C", PhoneNumber: "0700000003"},
		{ID: 3, User: &models.ReservationUser{Mobile: "0700000004"}},
	}, nil)

	views, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.Equal(t, "A", views[0].Patient.FullName)
	assert.Equal(t, "0700000001", views[0].Patient.PhoneNumber)
	assert.Equal(t, "C", views[1].Patient.FullName)
	assert.Equal(t, "0700000003", views[1].Patient.PhoneNumber)
	assert.Equal(t, "0700000004", views[2].Patient.PhoneNumber)
}

func TestReservationService_ListNeverDropsCachedPatients(t *testing.T) {
	ctx := context.Background()
	_, svc, cache, server := newTestReservationService(t)

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, cache.Save(ctx, id, patient("P", "0700000000")))
	}

	server.EXPECT().ListReservations(gomock.Any()).Return([]models.Reservation{{ID: 1}}, nil).Times(5)
	for i := 0; i < 5; i++ {
		_, err := svc.List(ctx)
		require.NoError(t, err)
	}

	all, err := cache.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestReservationService_ListServerError(t *testing.T) {
	_, svc, _, server := newTestReservationService(t)
	boom := errors.New("connection reset")

	server.EXPECT().ListReservations(gomock.Any()).Return(nil, boom)

	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, ErrReservationsOnServer)
	assert.ErrorIs(t, err, boom)
}

func TestReservationService_CreateManualCachesPatient(t *testing.T) {
	ctx := context.Background()
	_, svc, cache, server := newTestReservationService(t)

	req := models.ManualReservationRequest{
		Date:        "2026-03-02",
		Time:        "10:30",
		FullName:    "Aliya Nurlanovna",
		PhoneNumber: "0700000001",
		Age:         "34",
		Gender:      "female",
		Notes:       "penicillin allergy",
	}
	server.EXPECT().CreateReservation(gomock.Any(), req).
		Return(models.Reservation{ID: 77, Date: req.Date, Time: req.Time, IsManual: true}, nil)

	view, err := svc.CreateManual(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(77), view.Reservation.ID)
	assert.Equal(t, "Aliya Nurlanovna", view.Patient.FullName)

	cached, ok := cache.Get(ctx, 77)
	require.True(t, ok)
	assert.Equal(t, "penicillin allergy", cached.Notes)
}

func TestReservationService_CreateManualValidation(t *testing.T) {
	tests := []struct {
		name string
		req  models.ManualReservationRequest
		want error
	}{
		{
			name: "missing phone",
			req:  models.ManualReservationRequest{FullName: "Aliya"},
			want: ErrInvalidDataProvided,
		},
		{
			name: "script in notes",
			req:  models.ManualReservationRequest{FullName: "Aliya", PhoneNumber: "0700000001", Notes: "<script>alert(1)</script>"},
			want: ErrSuspiciousInput,
		},
		{
			name: "sql in name",
			req:  models.ManualReservationRequest{FullName: "x' OR '1'='1", PhoneNumber: "0700000001"},
			want: ErrSuspiciousInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, svc, _, _ := newTestReservationService(t)

			_, err := svc.CreateManual(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReservationService_CreateManualServerError(t *testing.T) {
	ctx := context.Background()
	_, svc, cache, server := newTestReservationService(t)

	server.EXPECT().CreateReservation(gomock.Any(), gomock.Any()).Return(models.Reservation{}, errors.New("503"))

	_, err := svc.CreateManual(ctx, models.ManualReservationRequest{FullName: "Aliya", PhoneNumber: "0700000001"})
	assert.ErrorIs(t, err, ErrCreateOnServer)

	all, err := cache.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReservationService_RateLimited(t *testing.T) {
	f, _, cache, server := newTestReservationService(t)
	guard := monitor.New(monitor.Options{
		Now:        f.clock.Now,
		RateLimits: map[string]monitor.RateLimit{monitor.ActionListReservations: {Every: 1 << 40, Burst: 1}},
	}, logger.Nop())
	svc := NewReservationService(server, cache, guard, logger.Nop())

	server.EXPECT().ListReservations(gomock.Any()).Return(nil, nil).Times(1)

	_, err := svc.List(context.Background())
	require.NoError(t, err)
	_, err = svc.List(context.Background())
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestReservationService_Cleanup(t *testing.T) {
	ctx := context.Background()
	_, svc, cache, _ := newTestReservationService(t)

	require.NoError(t, cache.Save(ctx, 1, patient("A", "1")))
	require.NoError(t, cache.Save(ctx, 2, patient("B", "2")))

	removed, err := svc.Cleanup(ctx, []int64{2})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}
