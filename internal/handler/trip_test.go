package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/patient-transport/internal/domain"
	"github.com/pkordes/patient-transport/internal/handler"
)

// mockTripServicer is a test double for handler.TripServicer.
// Set only the method fields your test needs.
type mockTripServicer struct {
	create         func(ctx context.Context, trip domain.Trip) (domain.TripSummary, error)
	get            func(ctx context.Context, ref domain.TripRef) (domain.TripSummary, error)
	list           func(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) (domain.Page[domain.TripSummary], error)
	history        func(ctx context.Context, ref domain.TripRef) ([]domain.StatusHistoryEntry, error)
	setDestination func(ctx context.Context, ref domain.TripRef, d domain.Destination) (domain.TripSummary, error)
	setSchedule    func(ctx context.Context, ref domain.TripRef, date time.Time, dep domain.TimeOfDay) (domain.TripSummary, error)
	setDriver      func(ctx context.Context, ref domain.TripRef, id *int64) (domain.TripSummary, error)
	setVehicle     func(ctx context.Context, ref domain.TripRef, id *int64) (domain.TripSummary, error)
	setNotes       func(ctx context.Context, ref domain.TripRef, notes string) (domain.TripSummary, error)
	confirm        func(ctx context.Context, ref domain.TripRef, actor, note string) (domain.TripSummary, error)
	cancel         func(ctx context.Context, ref domain.TripRef, actor, note string) (domain.TripSummary, error)
}

func (m *mockTripServicer) Create(ctx context.Context, t domain.Trip) (domain.TripSummary, error) {
	return m.create(ctx, t)
}
func (m *mockTripServicer) Get(ctx context.Context, ref domain.TripRef) (domain.TripSummary, error) {
	return m.get(ctx, ref)
}
func (m *mockTripServicer) List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) (domain.Page[domain.TripSummary], error) {
	return m.list(ctx, f, p)
}
func (m *mockTripServicer) History(ctx context.Context, ref domain.TripRef) ([]domain.StatusHistoryEntry, error) {
	return m.history(ctx, ref)
}
func (m *mockTripServicer) SetDestination(ctx context.Context, ref domain.TripRef, d domain.Destination) (domain.TripSummary, error) {
	return m.setDestination(ctx, ref, d)
}
func (m *mockTripServicer) SetSchedule(ctx context.Context, ref domain.TripRef, date time.Time, dep domain.TimeOfDay) (domain.TripSummary, error) {
	return m.setSchedule(ctx, ref, date, dep)
}
func (m *mockTripServicer) SetDriver(ctx context.Context, ref domain.TripRef, id *int64) (domain.TripSummary, error) {
	return m.setDriver(ctx, ref, id)
}
func (m *mockTripServicer) SetVehicle(ctx context.Context, ref domain.TripRef, id *int64) (domain.TripSummary, error) {
	return m.setVehicle(ctx, ref, id)
}
func (m *mockTripServicer) SetNotes(ctx context.Context, ref domain.TripRef, notes string) (domain.TripSummary, error) {
	return m.setNotes(ctx, ref, notes)
}
func (m *mockTripServicer) Confirm(ctx context.Context, ref domain.TripRef, actor, note string) (domain.TripSummary, error) {
	return m.confirm(ctx, ref, actor, note)
}
func (m *mockTripServicer) Cancel(ctx context.Context, ref domain.TripRef, actor, note string) (domain.TripSummary, error) {
	return m.cancel(ctx, ref, actor, note)
}

// compile-time check: mockTripServicer must satisfy handler.TripServicer.
var _ handler.TripServicer = (*mockTripServicer)(nil)

// ---- helpers ---------------------------------------------------------------

// newHTTPHandler wires a Server with the given mocks into a chi router.
// This mirrors how main.go wires it in production.
func newHTTPHandler(trips handler.TripServicer, assignments handler.AssignmentServicer, manifests handler.ManifestServicer) http.Handler {
	return handler.NewServer(trips, assignments, manifests, nil).Handler()
}

func tripFixture() domain.TripSummary {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return domain.TripSummary{
		Trip: domain.Trip{
			ID:            42,
			Code:          "V042",
			Destination:   domain.UnitDestination{UnitID: 3},
			Date:          time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
			DepartureTime: domain.TimeOfDay{Hour: 5, Minute: 30},
			SeatCount:     10,
			Status:        domain.StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		RosterSize: 4,
	}
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorDetail {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

// ---- POST /trips -----------------------------------------------------------

func TestCreateTrip_201(t *testing.T) {
	fixture := tripFixture()
	var got domain.Trip
	svc := &mockTripServicer{
		create: func(_ context.Context, trip domain.Trip) (domain.TripSummary, error) {
			got = trip
			return fixture, nil
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodPost, "/trips", jsonBody(t, map[string]any{
		"destination":    map[string]any{"unit_id": 3},
		"date":           "2025-06-10",
		"departure_time": "05h30",
		"seat_count":     10,
	}))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.UnitDestination{UnitID: 3}, got.Destination)
	assert.Equal(t, domain.TimeOfDay{Hour: 5, Minute: 30}, got.DepartureTime)
	assert.Equal(t, "2025-06-10", got.Date.Format("2006-01-02"))

	var resp handler.TripResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "V042", resp.Code)
	assert.Equal(t, "05h30", resp.DepartureTime)
	assert.Equal(t, "unit", resp.Destination.Type)
	assert.Equal(t, 6, resp.FreeSeats)
	assert.False(t, resp.OverCapacity)
}

func TestCreateTrip_acceptsColonTime(t *testing.T) {
	var got domain.Trip
	svc := &mockTripServicer{
		create: func(_ context.Context, trip domain.Trip) (domain.TripSummary, error) {
			got = trip
			return tripFixture(), nil
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodPost, "/trips", jsonBody(t, map[string]any{
		"destination":    map[string]any{"name": "Clínica Olhos"},
		"date":           "2025-06-10",
		"departure_time": "10:00",
		"seat_count":     2,
	}))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.FreeTextDestination{Name: "Clínica Olhos"}, got.Destination)
	assert.Equal(t, domain.TimeOfDay{Hour: 10}, got.DepartureTime)
}

func TestCreateTrip_422_RequestRejected(t *testing.T) {
	cases := []struct {
		name string
		body any
		want string
	}{
		{"missing body", nil, "request body is required"},
		{"bad time token", map[string]any{"date": "2025-06-10", "departure_time": "5 o'clock", "seat_count": 2}, "departure_time must be a time like 10h00"},
		{"zero seats", map[string]any{"date": "2025-06-10", "departure_time": "05h30", "seat_count": 0}, "seat_count is required"},
		{"missing date", map[string]any{"departure_time": "05h30", "seat_count": 2}, "date is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockTripServicer{
				create: func(context.Context, domain.Trip) (domain.TripSummary, error) {
					t.Fatal("service must not be called")
					return domain.TripSummary{}, nil
				},
			}
			var body io.Reader
			if tc.body != nil {
				body = jsonBody(t, tc.body)
			}

			rec := do(newHTTPHandler(svc, nil, nil), http.MethodPost, "/trips", body)

			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			detail := decodeError(t, rec)
			assert.Equal(t, "validation_error", detail.Code)
			assert.Contains(t, detail.Message, tc.want)
		})
	}
}

func TestCreateTrip_422_BothDestinationVariants(t *testing.T) {
	rec := do(newHTTPHandler(&mockTripServicer{}, nil, nil), http.MethodPost, "/trips", jsonBody(t, map[string]any{
		"destination":    map[string]any{"unit_id": 3, "name": "Clínica"},
		"date":           "2025-06-10",
		"departure_time": "05h30",
		"seat_count":     2,
	}))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "destination takes either unit_id or name, not both", decodeError(t, rec).Message)
}

func TestCreateTrip_422_ServiceValidation(t *testing.T) {
	svc := &mockTripServicer{
		create: func(context.Context, domain.Trip) (domain.TripSummary, error) {
			return domain.TripSummary{}, fmt.Errorf("%w: destination name is required", domain.ErrValidation)
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodPost, "/trips", jsonBody(t, map[string]any{
		"date":           "2025-06-10",
		"departure_time": "05h30",
		"seat_count":     2,
	}))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "destination name is required", decodeError(t, rec).Message)
}

func TestCreateTrip_404_UnknownUnit(t *testing.T) {
	svc := &mockTripServicer{
		create: func(context.Context, domain.Trip) (domain.TripSummary, error) {
			return domain.TripSummary{}, fmt.Errorf("service.TripService.Create: health unit 9: %w", domain.ErrNotFound)
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodPost, "/trips", jsonBody(t, map[string]any{
		"destination":    map[string]any{"unit_id": 9},
		"date":           "2025-06-10",
		"departure_time": "05h30",
		"seat_count":     2,
	}))

	require.Equal(t, http.StatusNotFound, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, "not_found", detail.Code)
	assert.Equal(t, "health unit 9 not found", detail.Message)
}

// ---- GET /trips ------------------------------------------------------------

func TestListTrips_200_WithFilterAndPaging(t *testing.T) {
	var (
		gotFilter domain.TripFilter
		gotPage   domain.PaginationParams
	)
	svc := &mockTripServicer{
		list: func(_ context.Context, f domain.TripFilter, p domain.PaginationParams) (domain.Page[domain.TripSummary], error) {
			gotFilter, gotPage = f, p
			return domain.Page[domain.TripSummary]{Items: []domain.TripSummary{tripFixture()}, Total: 11, PaginationParams: p}, nil
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodGet, "/trips?page=2&limit=5&status=confirmed", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotFilter.Status)
	assert.Equal(t, domain.StatusConfirmed, *gotFilter.Status)
	assert.Equal(t, domain.PaginationParams{Page: 2, Limit: 5}, gotPage)

	var resp handler.TripListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, handler.Pagination{Page: 2, Limit: 5, Total: 11}, resp.Pagination)
}

func TestListTrips_emptyIsArray(t *testing.T) {
	svc := &mockTripServicer{
		list: func(_ context.Context, _ domain.TripFilter, p domain.PaginationParams) (domain.Page[domain.TripSummary], error) {
			return domain.Page[domain.TripSummary]{Items: []domain.TripSummary{}, PaginationParams: p}, nil
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodGet, "/trips", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestListTrips_422_UnknownStatus(t *testing.T) {
	rec := do(newHTTPHandler(&mockTripServicer{}, nil, nil), http.MethodGet, "/trips?status=departed", nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListTrips_422_BadPage(t *testing.T) {
	rec := do(newHTTPHandler(&mockTripServicer{}, nil, nil), http.MethodGet, "/trips?page=abc", nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ---- GET /trips/{ref} ------------------------------------------------------

func TestGetTrip_resolvesIDAndCode(t *testing.T) {
	var refs []domain.TripRef
	svc := &mockTripServicer{
		get: func(_ context.Context, ref domain.TripRef) (domain.TripSummary, error) {
			refs = append(refs, ref)
			return tripFixture(), nil
		},
	}
	h := newHTTPHandler(svc, nil, nil)

	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/trips/42", nil).Code)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/trips/V042", nil).Code)

	assert.Equal(t, []domain.TripRef{{ID: 42}, {Code: "V042"}}, refs)
}

func TestGetTrip_404(t *testing.T) {
	svc := &mockTripServicer{
		get: func(context.Context, domain.TripRef) (domain.TripSummary, error) {
			return domain.TripSummary{}, fmt.Errorf("service.TripService.Get: %w", domain.ErrNotFound)
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodGet, "/trips/V999", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decodeError(t, rec).Message)
}

func TestGetTrip_500_HidesInternalError(t *testing.T) {
	svc := &mockTripServicer{
		get: func(context.Context, domain.TripRef) (domain.TripSummary, error) {
			return domain.TripSummary{}, errors.New("dial tcp: connection refused")
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodGet, "/trips/1", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, "internal_error", detail.Code)
	assert.NotContains(t, detail.Message, "dial tcp")
}

// ---- field edits -----------------------------------------------------------

func TestSetTripVehicle_200_ReportsNegativeFreeSeats(t *testing.T) {
	over := tripFixture()
	over.SeatCount = 6
	over.RosterSize = 8
	svc := &mockTripServicer{
		setVehicle: func(_ context.Context, ref domain.TripRef, id *int64) (domain.TripSummary, error) {
			require.NotNil(t, id)
			assert.Equal(t, int64(7), *id)
			return over, nil
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodPut, "/trips/42/vehicle", jsonBody(t, map[string]any{"vehicle_id": 7}))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp handler.TripResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, -2, resp.FreeSeats)
	assert.True(t, resp.OverCapacity)
}

func TestSetTripVehicle_409_RejectPolicy(t *testing.T) {
	svc := &mockTripServicer{
		setVehicle: func(context.Context, domain.TripRef, *int64) (domain.TripSummary, error) {
			return domain.TripSummary{}, fmt.Errorf("service.TripService.SetVehicle: %w: vehicle VAN0606 seats 6 but 8 patients are assigned", domain.ErrCapacityExceeded)
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodPut, "/trips/42/vehicle", jsonBody(t, map[string]any{"vehicle_id": 7}))

	require.Equal(t, http.StatusConflict, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, "capacity_exceeded", detail.Code)
	assert.Equal(t, "vehicle VAN0606 seats 6 but 8 patients are assigned", detail.Message)
}

func TestSetTripDriver_nullClears(t *testing.T) {
	called := false
	svc := &mockTripServicer{
		setDriver: func(_ context.Context, _ domain.TripRef, id *int64) (domain.TripSummary, error) {
			called = true
			assert.Nil(t, id)
			return tripFixture(), nil
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodPut, "/trips/42/driver", bytes.NewBufferString(`{"driver_id":null}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestSetTripSchedule_200(t *testing.T) {
	svc := &mockTripServicer{
		setSchedule: func(_ context.Context, ref domain.TripRef, date time.Time, dep domain.TimeOfDay) (domain.TripSummary, error) {
			assert.Equal(t, domain.TripRef{Code: "V042"}, ref)
			assert.Equal(t, "2025-07-01", date.Format("2006-01-02"))
			assert.Equal(t, domain.TimeOfDay{Hour: 4, Minute: 45}, dep)
			return tripFixture(), nil
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodPut, "/trips/V042/schedule", jsonBody(t, map[string]any{
		"date":           "2025-07-01",
		"departure_time": "04h45",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSetTripDestination_freeText(t *testing.T) {
	svc := &mockTripServicer{
		setDestination: func(_ context.Context, _ domain.TripRef, d domain.Destination) (domain.TripSummary, error) {
			assert.Equal(t, domain.FreeTextDestination{Name: "UPA Torrões", Address: "Rua A"}, d)
			return tripFixture(), nil
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodPut, "/trips/42/destination", jsonBody(t, map[string]any{
		"name":    " UPA Torrões ",
		"address": "Rua A",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSetTripNotes_200(t *testing.T) {
	svc := &mockTripServicer{
		setNotes: func(_ context.Context, _ domain.TripRef, notes string) (domain.TripSummary, error) {
			assert.Equal(t, "levar maca", notes)
			return tripFixture(), nil
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodPut, "/trips/42/notes", jsonBody(t, map[string]any{"notes": "levar maca"}))

	require.Equal(t, http.StatusOK, rec.Code)
}

// ---- status workflow -------------------------------------------------------

func TestConfirmTrip_passesActorHeader(t *testing.T) {
	confirmed := tripFixture()
	confirmed.Status = domain.StatusConfirmed
	svc := &mockTripServicer{
		confirm: func(_ context.Context, _ domain.TripRef, actor, note string) (domain.TripSummary, error) {
			assert.Equal(t, "ana.souza", actor)
			assert.Empty(t, note)
			return confirmed, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/trips/42/confirm", nil)
	req.Header.Set(handler.ActorHeader, "ana.souza")
	rec := httptest.NewRecorder()

	newHTTPHandler(svc, nil, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp handler.TripResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, domain.StatusConfirmed, resp.Status)
}

func TestConfirmTrip_409_AlreadyConfirmed(t *testing.T) {
	svc := &mockTripServicer{
		confirm: func(context.Context, domain.TripRef, string, string) (domain.TripSummary, error) {
			return domain.TripSummary{}, fmt.Errorf("service.TripService.Confirm: %w: cannot move trip from confirmed to confirmed", domain.ErrInvalidStateTransition)
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodPost, "/trips/42/confirm", nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state_transition", decodeError(t, rec).Code)
}

func TestCancelTrip_withNote(t *testing.T) {
	svc := &mockTripServicer{
		cancel: func(_ context.Context, _ domain.TripRef, _, note string) (domain.TripSummary, error) {
			assert.Equal(t, "sem motorista", note)
			return tripFixture(), nil
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodPost, "/trips/42/cancel", jsonBody(t, map[string]any{"note": "sem motorista"}))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetTripHistory_200(t *testing.T) {
	svc := &mockTripServicer{
		history: func(context.Context, domain.TripRef) ([]domain.StatusHistoryEntry, error) {
			return []domain.StatusHistoryEntry{{
				TripID: 42,
				From:   domain.StatusPending,
				To:     domain.StatusConfirmed,
				Actor:  "ana",
			}}, nil
		},
	}

	rec := do(newHTTPHandler(svc, nil, nil), http.MethodGet, "/trips/42/history", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []handler.HistoryEntryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, domain.StatusConfirmed, resp[0].To)
}
