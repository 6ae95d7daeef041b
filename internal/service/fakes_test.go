package service_test

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/patient-transport/internal/domain"
	"github.com/pkordes/patient-transport/internal/repo"
	"github.com/pkordes/patient-transport/internal/service"
)

// memStore is an in-memory repo.Store. WithinTx holds a store-wide lock and
// restores a snapshot when fn fails, which is enough to model the
// all-or-nothing behaviour the services rely on.
type memStore struct {
	mu    sync.Mutex
	state memState

	// failWith, when set, is returned by the next trip write.
	failWith error
}

type memState struct {
	trips       map[int64]domain.Trip
	assignments map[int64]domain.Assignment
	history     []domain.StatusHistoryEntry
	nextTrip    int64
	nextAssign  int64
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		trips:       map[int64]domain.Trip{},
		assignments: map[int64]domain.Assignment{},
	}}
}

var _ repo.Store = (*memStore)(nil)

func (s *memStore) Trips() repo.TripRepo             { return memTrips{s: s, locked: false} }
func (s *memStore) Assignments() repo.AssignmentRepo { return memAssignments{s: s, locked: false} }
func (s *memStore) History() repo.HistoryRepo        { return memHistory{s: s, locked: false} }

func (s *memStore) WithinTx(ctx context.Context, fn func(tx repo.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := memState{
		trips:       maps.Clone(s.state.trips),
		assignments: maps.Clone(s.state.assignments),
		history:     slices.Clone(s.state.history),
		nextTrip:    s.state.nextTrip,
		nextAssign:  s.state.nextAssign,
	}
	if err := fn(memTx{s: s}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// memTx exposes the repos without re-taking the lock WithinTx already holds.
type memTx struct{ s *memStore }

func (t memTx) Trips() repo.TripRepo             { return memTrips{s: t.s, locked: true} }
func (t memTx) Assignments() repo.AssignmentRepo { return memAssignments{s: t.s, locked: true} }
func (t memTx) History() repo.HistoryRepo        { return memHistory{s: t.s, locked: true} }

func (s *memStore) with(locked bool, fn func(st *memState)) {
	if !locked {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	fn(&s.state)
}

func (s *memStore) tripCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.trips)
}

func (s *memStore) rosterSize(tripID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.state.assignments {
		if a.TripID == tripID {
			n++
		}
	}
	return n
}

func (s *memStore) historyFor(tripID int64) []domain.StatusHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StatusHistoryEntry
	for _, e := range s.state.history {
		if e.TripID == tripID {
			out = append(out, e)
		}
	}
	return out
}

// ---- trips -----------------------------------------------------------------

type memTrips struct {
	s      *memStore
	locked bool
}

func (r memTrips) Create(_ context.Context, t domain.Trip) (out domain.Trip, err error) {
	r.s.with(r.locked, func(st *memState) {
		if err = r.s.takeFailure(); err != nil {
			return
		}
		st.nextTrip++
		t.ID = st.nextTrip
		t.Code = domain.TripCode(t.ID)
		t.CreatedAt = time.Now().UTC()
		t.UpdatedAt = t.CreatedAt
		st.trips[t.ID] = t
		out = t
	})
	return out, err
}

func (r memTrips) Get(_ context.Context, ref domain.TripRef) (out domain.Trip, err error) {
	r.s.with(r.locked, func(st *memState) {
		out, err = findTrip(st, ref)
	})
	return out, err
}

func (r memTrips) GetForUpdate(ctx context.Context, ref domain.TripRef) (domain.Trip, error) {
	return r.Get(ctx, ref)
}

func (r memTrips) ListPaged(_ context.Context, f domain.TripFilter, p domain.PaginationParams) (out []domain.TripSummary, total int64, err error) {
	r.s.with(r.locked, func(st *memState) {
		ids := slices.Sorted(maps.Keys(st.trips))
		slices.Reverse(ids)
		for _, id := range ids {
			t := st.trips[id]
			if f.Status != nil && t.Status != *f.Status {
				continue
			}
			total++
			if int(total) <= p.Offset() || len(out) >= p.Limit {
				continue
			}
			out = append(out, domain.TripSummary{Trip: t, RosterSize: countRoster(st, id)})
		}
	})
	return out, total, nil
}

func (r memTrips) Update(_ context.Context, t domain.Trip) (out domain.Trip, err error) {
	r.s.with(r.locked, func(st *memState) {
		if err = r.s.takeFailure(); err != nil {
			return
		}
		if _, ok := st.trips[t.ID]; !ok {
			err = domain.ErrNotFound
			return
		}
		t.UpdatedAt = time.Now().UTC()
		st.trips[t.ID] = t
		out = t
	})
	return out, err
}

func (s *memStore) takeFailure() error {
	err := s.failWith
	s.failWith = nil
	return err
}

func findTrip(st *memState, ref domain.TripRef) (domain.Trip, error) {
	if ref.Code != "" {
		for _, t := range st.trips {
			if t.Code == ref.Code {
				return t, nil
			}
		}
		return domain.Trip{}, domain.ErrNotFound
	}
	t, ok := st.trips[ref.ID]
	if !ok {
		return domain.Trip{}, domain.ErrNotFound
	}
	return t, nil
}

func countRoster(st *memState, tripID int64) int {
	n := 0
	for _, a := range st.assignments {
		if a.TripID == tripID {
			n++
		}
	}
	return n
}

// ---- assignments -----------------------------------------------------------

type memAssignments struct {
	s      *memStore
	locked bool
}

func (r memAssignments) Create(_ context.Context, a domain.Assignment) (out domain.Assignment, err error) {
	r.s.with(r.locked, func(st *memState) {
		for _, x := range st.assignments {
			if x.TripID == a.TripID && x.PatientID == a.PatientID {
				err = domain.ErrDuplicateAssignment
				return
			}
		}
		st.nextAssign++
		a.ID = st.nextAssign
		a.CreatedAt = time.Now().UTC()
		st.assignments[a.ID] = a
		out = a
	})
	return out, err
}

func (r memAssignments) GetByID(_ context.Context, id int64) (out domain.Assignment, err error) {
	r.s.with(r.locked, func(st *memState) {
		var ok bool
		if out, ok = st.assignments[id]; !ok {
			err = domain.ErrNotFound
		}
	})
	return out, err
}

func (r memAssignments) ListByTripID(_ context.Context, tripID int64) (out []domain.Assignment, err error) {
	r.s.with(r.locked, func(st *memState) {
		for _, id := range slices.Sorted(maps.Keys(st.assignments)) {
			if a := st.assignments[id]; a.TripID == tripID {
				out = append(out, a)
			}
		}
	})
	return out, nil
}

func (r memAssignments) CountByTripID(_ context.Context, tripID int64) (n int, err error) {
	r.s.with(r.locked, func(st *memState) { n = countRoster(st, tripID) })
	return n, nil
}

func (r memAssignments) Exists(_ context.Context, tripID, patientID int64) (ok bool, err error) {
	r.s.with(r.locked, func(st *memState) {
		for _, a := range st.assignments {
			if a.TripID == tripID && a.PatientID == patientID {
				ok = true
			}
		}
	})
	return ok, nil
}

func (r memAssignments) Update(_ context.Context, a domain.Assignment) (out domain.Assignment, err error) {
	r.s.with(r.locked, func(st *memState) {
		if _, ok := st.assignments[a.ID]; !ok {
			err = domain.ErrNotFound
			return
		}
		st.assignments[a.ID] = a
		out = a
	})
	return out, err
}

func (r memAssignments) SetAttendance(_ context.Context, id int64, attended bool) (out domain.Assignment, err error) {
	r.s.with(r.locked, func(st *memState) {
		a, ok := st.assignments[id]
		if !ok {
			err = domain.ErrNotFound
			return
		}
		a.Attended = attended
		st.assignments[id] = a
		out = a
	})
	return out, err
}

func (r memAssignments) Delete(_ context.Context, id int64) (err error) {
	r.s.with(r.locked, func(st *memState) {
		if _, ok := st.assignments[id]; !ok {
			err = domain.ErrNotFound
			return
		}
		delete(st.assignments, id)
	})
	return err
}

// ---- history ---------------------------------------------------------------

type memHistory struct {
	s      *memStore
	locked bool
}

func (r memHistory) Append(_ context.Context, e domain.StatusHistoryEntry) (domain.StatusHistoryEntry, error) {
	r.s.with(r.locked, func(st *memState) {
		e.ID = uuid.New()
		e.CreatedAt = time.Now().UTC()
		st.history = append(st.history, e)
	})
	return e, nil
}

func (r memHistory) ListByTripID(_ context.Context, tripID int64) (out []domain.StatusHistoryEntry, err error) {
	r.s.with(r.locked, func(st *memState) {
		for _, e := range st.history {
			if e.TripID == tripID {
				out = append(out, e)
			}
		}
	})
	return out, nil
}

// ---- directory -------------------------------------------------------------

// fakeDirectory is a read-only directory backed by maps.
type fakeDirectory struct {
	drivers    map[int64]domain.Driver
	vehicles   map[int64]domain.Vehicle
	units      map[int64]domain.HealthUnit
	physicians map[int64]domain.Physician
	patients   map[int64]domain.Patient
}

var _ service.Directory = (*fakeDirectory)(nil)

func intPtr(n int) *int    { return &n }
func idPtr(n int64) *int64 { return &n }

// newDirectory returns a directory with:
//   - driver 1 "Severino"
//   - vehicle 1 plate VAN1010 capacity 10, vehicle 2 VAN0606 capacity 6,
//     vehicle 3 CAR0001 without rated capacity
//   - unit 1 "Hospital da Restauração"
//   - physician 1 "Dra. Helena"
//   - patients 1..6: Carla, Álvaro, Bruno, alice, Davi, Ester
func newDirectory() *fakeDirectory {
	return &fakeDirectory{
		drivers: map[int64]domain.Driver{1: {ID: 1, Name: "Severino", License: "CNH-1"}},
		vehicles: map[int64]domain.Vehicle{
			1: {ID: 1, Plate: "VAN1010", Model: "Sprinter", Capacity: intPtr(10)},
			2: {ID: 2, Plate: "VAN0606", Model: "Ducato", Capacity: intPtr(6)},
			3: {ID: 3, Plate: "CAR0001", Model: "Spin"},
		},
		units:      map[int64]domain.HealthUnit{1: {ID: 1, Name: "Hospital da Restauração", Address: "Av. Agamenon Magalhães", City: "Recife"}},
		physicians: map[int64]domain.Physician{1: {ID: 1, Name: "Dra. Helena", CRM: "CRM-PE 123"}},
		patients: map[int64]domain.Patient{
			1: {ID: 1, Name: "Carla"},
			2: {ID: 2, Name: "Álvaro"},
			3: {ID: 3, Name: "Bruno"},
			4: {ID: 4, Name: "alice"},
			5: {ID: 5, Name: "Davi"},
			6: {ID: 6, Name: "Ester"},
		},
	}
}

func (d *fakeDirectory) addPatients(n int) {
	for i := 0; i < n; i++ {
		id := int64(100 + i)
		d.patients[id] = domain.Patient{ID: id, Name: fmt.Sprintf("Paciente %03d", i)}
	}
}

func lookup[T any](m map[int64]T, id int64) (T, error) {
	v, ok := m[id]
	if !ok {
		var zero T
		return zero, domain.ErrNotFound
	}
	return v, nil
}

func (d *fakeDirectory) FindDriver(_ context.Context, id int64) (domain.Driver, error) {
	return lookup(d.drivers, id)
}
func (d *fakeDirectory) FindVehicle(_ context.Context, id int64) (domain.Vehicle, error) {
	return lookup(d.vehicles, id)
}
func (d *fakeDirectory) FindHealthUnit(_ context.Context, id int64) (domain.HealthUnit, error) {
	return lookup(d.units, id)
}
func (d *fakeDirectory) FindPhysician(_ context.Context, id int64) (domain.Physician, error) {
	return lookup(d.physicians, id)
}
func (d *fakeDirectory) FindPatient(_ context.Context, id int64) (domain.Patient, error) {
	return lookup(d.patients, id)
}

// ---- recorder --------------------------------------------------------------

type fakeRecorder struct {
	mu           sync.Mutex
	rejected     map[string]int
	transitions  int
	overCapacity int
}

func (r *fakeRecorder) AssignmentRejected(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejected == nil {
		r.rejected = map[string]int{}
	}
	r.rejected[reason]++
}

func (r *fakeRecorder) StatusChanged(_, _ domain.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions++
}

func (r *fakeRecorder) OverCapacity() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overCapacity++
}

// ---- fixture ---------------------------------------------------------------

// fixture wires all three services to one in-memory store and directory.
type fixture struct {
	store       *memStore
	dir         *fakeDirectory
	rec         *fakeRecorder
	now         time.Time
	trips       *service.TripService
	assignments *service.AssignmentService
	manifests   *service.ManifestService
}

// departureDay is the trip date used by fixtures; the clock sits two days earlier.
var departureDay = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, policy domain.OverCapacityPolicy) *fixture {
	t.Helper()
	f := &fixture{
		store: newMemStore(),
		dir:   newDirectory(),
		rec:   &fakeRecorder{},
		now:   departureDay.AddDate(0, 0, -2),
	}
	deps := service.Deps{
		Store:     f.store,
		Directory: f.dir,
		Metrics:   f.rec,
		Now:       func() time.Time { return f.now },
		Location:  time.UTC,
	}
	f.trips = service.NewTripService(deps, policy)
	f.assignments = service.NewAssignmentService(deps)
	f.manifests = service.NewManifestService(deps)
	return f
}

func validTrip() domain.Trip {
	return domain.Trip{
		Destination:   domain.FreeTextDestination{Name: "Clínica Olhos", Address: "Rua da Aurora, 50"},
		Date:          departureDay,
		DepartureTime: domain.TimeOfDay{Hour: 5, Minute: 30},
		SeatCount:     2,
	}
}

// createTrip creates a trip with the given seat count and returns its summary.
func (f *fixture) createTrip(t *testing.T, seats int) domain.TripSummary {
	t.Helper()
	trip := validTrip()
	trip.SeatCount = seats
	got, err := f.trips.Create(context.Background(), trip)
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	return got
}

func (f *fixture) add(tripID, patientID int64) (domain.Assignment, error) {
	return f.assignments.Add(context.Background(), domain.IDRef(tripID), domain.Assignment{
		PatientID: patientID,
		Reason:    "consulta",
	})
}
