package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/renthive/renthive-backend/internal/models"
)

type listingKey struct {
	kind models.ListingKind
	id   uint
}

type memoryState struct {
	listings     map[listingKey]models.ListingRow
	applications map[uint]models.Application
	rentals      map[uint]models.Rental
	payments     map[uint]models.Payment
	unread       map[uint]int64
	nextID       uint
}

func (st *memoryState) clone() *memoryState {
	c := &memoryState{
		listings:     make(map[listingKey]models.ListingRow, len(st.listings)),
		applications: make(map[uint]models.Application, len(st.applications)),
		rentals:      make(map[uint]models.Rental, len(st.rentals)),
		payments:     make(map[uint]models.Payment, len(st.payments)),
		unread:       make(map[uint]int64, len(st.unread)),
		nextID:       st.nextID,
	}
	for k, v := range st.listings {
		c.listings[k] = models.CloneListingRow(v)
	}
	for k, v := range st.applications {
		c.applications[k] = v
	}
	for k, v := range st.rentals {
		c.rentals[k] = v
	}
	for k, v := range st.payments {
		c.payments[k] = v
	}
	for k, v := range st.unread {
		c.unread[k] = v
	}
	return c
}

// MemoryStore keeps everything in maps. Transactions are serialized and roll
// back to a snapshot when fn fails; reads outside a transaction may observe
// its uncommitted writes.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   *memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: &memoryState{
		listings:     make(map[listingKey]models.ListingRow),
		applications: make(map[uint]models.Application),
		rentals:      make(map[uint]models.Rental),
		payments:     make(map[uint]models.Payment),
		unread:       make(map[uint]int64),
	}}
}

// AddListing registers a listing the workflow can refer to.
func (m *MemoryStore) AddListing(ref models.ListingRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var row models.ListingRow
	if ref.Kind == models.ListingKindBike {
		row = &models.Bike{Model: gorm.Model{ID: ref.ID}, OwnerID: ref.OwnerID, Title: ref.Title, Status: ref.Status}
	} else {
		row = &models.Property{Model: gorm.Model{ID: ref.ID}, OwnerID: ref.OwnerID, Title: ref.Title, Status: ref.Status}
	}
	m.st.listings[listingKey{ref.Kind, ref.ID}] = row
}

// SetUnread overrides the unread notification count for a user.
func (m *MemoryStore) SetUnread(userID uint, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.unread[userID] = n
}

// Payments returns every stored payment ordered by id.
func (m *MemoryStore) Payments() []models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Payment, 0, len(m.st.payments))
	for _, p := range m.st.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllRentals returns every stored rental ordered by id.
func (m *MemoryStore) AllRentals() []models.Rental {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedRentals(func(models.Rental) bool { return true })
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.st.clone()
	m.mu.Unlock()

	if err := fn(memoryTx{m}); err != nil {
		m.mu.Lock()
		m.st = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MemoryStore) nextID() uint {
	m.st.nextID++
	return m.st.nextID
}

func (m *MemoryStore) Listing(ctx context.Context, kind models.ListingKind, id uint) (*models.ListingRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.st.listings[listingKey{kind, id}]
	if !ok {
		return nil, ErrNotFound
	}
	ref := row.Ref()
	return &ref, nil
}

func (m *MemoryStore) SetListingStatus(ctx context.Context, kind models.ListingKind, id uint, status models.ListingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := listingKey{kind, id}
	row, ok := m.st.listings[key]
	if !ok {
		return ErrNotFound
	}
	row = models.CloneListingRow(row)
	row.SetStatus(status)
	m.st.listings[key] = row
	return nil
}

func (m *MemoryStore) CreateApplication(ctx context.Context, app *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	app.ID = m.nextID()
	app.CreatedAt, app.UpdatedAt = now, now
	m.st.applications[app.ID] = *app
	return nil
}

func (m *MemoryStore) Application(ctx context.Context, id uint) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.st.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &app, nil
}

func (m *MemoryStore) SaveApplication(ctx context.Context, app *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.applications[app.ID]; !ok {
		return ErrNotFound
	}
	app.UpdatedAt = time.Now()
	m.st.applications[app.ID] = *app
	return nil
}

func statusIn(s models.ApplicationStatus, statuses []models.ApplicationStatus) bool {
	for _, x := range statuses {
		if s == x {
			return true
		}
	}
	return false
}

func (m *MemoryStore) OverlappingApplications(ctx context.Context, kind models.ListingKind, listingID uint, start, end time.Time, statuses []models.ApplicationStatus, excludeID uint) ([]models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Application
	for _, app := range m.st.applications {
		if app.ListingKind != kind || app.ListingID != listingID || app.ID == excludeID {
			continue
		}
		if !statusIn(app.Status, statuses) {
			continue
		}
		if app.StartDate.Before(end) && app.EndDate.After(start) {
			out = append(out, app)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *MemoryStore) matchApplications(filter ApplicationFilter) []models.Application {
	var out []models.Application
	for _, app := range m.st.applications {
		if filter.ApplicantID != 0 && app.ApplicantID != filter.ApplicantID {
			continue
		}
		if filter.OwnerID != 0 && app.OwnerID != filter.OwnerID {
			continue
		}
		if filter.ListingKind != "" && app.ListingKind != filter.ListingKind {
			continue
		}
		if filter.ListingID != 0 && app.ListingID != filter.ListingID {
			continue
		}
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *MemoryStore) Applications(ctx context.Context, filter ApplicationFilter) ([]models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchApplications(filter), nil
}

func (m *MemoryStore) CountApplications(ctx context.Context, filter ApplicationFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matchApplications(filter))), nil
}

func (m *MemoryStore) CreateRental(ctx context.Context, rental *models.Rental) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	rental.ID = m.nextID()
	rental.CreatedAt, rental.UpdatedAt = now, now
	m.st.rentals[rental.ID] = *rental
	return nil
}

func (m *MemoryStore) Rental(ctx context.Context, id uint) (*models.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rental, ok := m.st.rentals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rental, nil
}

func (m *MemoryStore) RentalByApplication(ctx context.Context, applicationID uint) (*models.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := m.sortedRentals(func(r models.Rental) bool { return r.ApplicationID == applicationID })
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (m *MemoryStore) SaveRental(ctx context.Context, rental *models.Rental) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.rentals[rental.ID]; !ok {
		return ErrNotFound
	}
	rental.UpdatedAt = time.Now()
	m.st.rentals[rental.ID] = *rental
	return nil
}

func (m *MemoryStore) sortedRentals(keep func(models.Rental) bool) []models.Rental {
	var out []models.Rental
	for _, r := range m.st.rentals {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStore) OverlappingRentals(ctx context.Context, kind models.ListingKind, listingID uint, start, end time.Time, status models.RentalStatus) ([]models.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedRentals(func(r models.Rental) bool {
		return r.ListingKind == kind && r.ListingID == listingID && r.Status == status &&
			r.StartDate.Before(end) && r.EndDate.After(start)
	}), nil
}

func (m *MemoryStore) CountRentals(ctx context.Context, kind models.ListingKind, listingID uint, status models.RentalStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sortedRentals(func(r models.Rental) bool {
		return r.ListingKind == kind && r.ListingID == listingID && r.Status == status
	}))), nil
}

func (m *MemoryStore) RentalsForUser(ctx context.Context, userID uint) ([]models.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedRentals(func(r models.Rental) bool {
		return r.TenantID == userID || r.OwnerID == userID
	}), nil
}

func (m *MemoryStore) EndedRentals(ctx context.Context, status models.RentalStatus, day time.Time) ([]models.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedRentals(func(r models.Rental) bool {
		return r.Status == status && !r.EndDate.After(day)
	}), nil
}

func (m *MemoryStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.st.payments {
		if p.ApplicationID == payment.ApplicationID || p.Reference == payment.Reference {
			return ErrConflict
		}
	}
	now := time.Now()
	payment.ID = m.nextID()
	payment.CreatedAt, payment.UpdatedAt = now, now
	m.st.payments[payment.ID] = *payment
	return nil
}

func (m *MemoryStore) CountUnreadNotifications(ctx context.Context, userID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.unread[userID], nil
}

func (m *MemoryStore) CreateListing(ctx context.Context, row models.ListingRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID()
	for {
		if _, taken := m.st.listings[listingKey{row.Ref().Kind, id}]; !taken {
			break
		}
		id = m.nextID()
	}
	now := time.Now()
	switch r := row.(type) {
	case *models.Bike:
		r.ID, r.CreatedAt, r.UpdatedAt = id, now, now
	case *models.Property:
		r.ID, r.CreatedAt, r.UpdatedAt = id, now, now
	}
	ref := row.Ref()
	m.st.listings[listingKey{ref.Kind, ref.ID}] = models.CloneListingRow(row)
	return nil
}

func (m *MemoryStore) ListingRow(ctx context.Context, kind models.ListingKind, id uint) (models.ListingRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.st.listings[listingKey{kind, id}]
	if !ok {
		return nil, ErrNotFound
	}
	return models.CloneListingRow(row), nil
}

func (m *MemoryStore) UpdateListing(ctx context.Context, kind models.ListingKind, id uint, edit func(models.ListingRow) error) (models.ListingRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := listingKey{kind, id}
	row, ok := m.st.listings[key]
	if !ok {
		return nil, ErrNotFound
	}
	row = models.CloneListingRow(row)
	if err := edit(row); err != nil {
		return nil, err
	}
	m.st.listings[key] = models.CloneListingRow(row)
	return row, nil
}

func (m *MemoryStore) DeleteListing(ctx context.Context, kind models.ListingKind, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := listingKey{kind, id}
	if _, ok := m.st.listings[key]; !ok {
		return ErrNotFound
	}
	delete(m.st.listings, key)
	return nil
}

// memoryTx is the Store handed to WithinTx callbacks; nested transactions
// join the outer one.
type memoryTx struct {
	*MemoryStore
}

func (t memoryTx) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}
