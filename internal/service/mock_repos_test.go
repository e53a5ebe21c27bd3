package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/khalilhajj/PfeManagement/config"
	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/model"
	"github.com/khalilhajj/PfeManagement/internal/repository"
	apperrors "github.com/khalilhajj/PfeManagement/pkg/errors"
	"github.com/khalilhajj/PfeManagement/pkg/matcher"
	"github.com/khalilhajj/PfeManagement/pkg/storage"
)

// ── In-memory store ──

// memTables holds rows by primary key. Relations are never stored; the mock
// repositories attach them on read the way the gorm preloads do.
type memTables struct {
	users         map[string]model.User
	offers        map[string]model.Offer
	slots         map[string]model.InterviewSlot
	apps          map[string]model.Application
	internships   map[string]model.Internship
	invitations   map[string]model.TeacherInvitation
	reports       map[string]model.Report
	versions      map[string]model.ReportVersion
	comments      map[string]model.ReviewComment
	soutenances   map[string]model.Soutenance
	juries        map[string][]model.SoutenanceJury
	rooms         map[string]model.Room
	notifications map[string]model.Notification
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t memTables) clone() memTables {
	juries := make(map[string][]model.SoutenanceJury, len(t.juries))
	for k, v := range t.juries {
		juries[k] = append([]model.SoutenanceJury(nil), v...)
	}
	return memTables{
		users:         cloneMap(t.users),
		offers:        cloneMap(t.offers),
		slots:         cloneMap(t.slots),
		apps:          cloneMap(t.apps),
		internships:   cloneMap(t.internships),
		invitations:   cloneMap(t.invitations),
		reports:       cloneMap(t.reports),
		versions:      cloneMap(t.versions),
		comments:      cloneMap(t.comments),
		soutenances:   cloneMap(t.soutenances),
		juries:        juries,
		rooms:         cloneMap(t.rooms),
		notifications: cloneMap(t.notifications),
	}
}

// memStore backs every mock repository. Transactions run one at a time and
// roll back by restoring a snapshot, which stands in for the row locks of the
// gorm implementation.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex
	seq  int
	// order remembers insertion order for stable listings.
	order map[string]int
	// failJuryUpdate makes Soutenance.Complete fail after the soutenance row
	// was written.
	failJuryUpdate error
	memTables
}

func newMemStore() *memStore {
	return &memStore{
		order: make(map[string]int),
		memTables: memTables{
			users:         make(map[string]model.User),
			offers:        make(map[string]model.Offer),
			slots:         make(map[string]model.InterviewSlot),
			apps:          make(map[string]model.Application),
			internships:   make(map[string]model.Internship),
			invitations:   make(map[string]model.TeacherInvitation),
			reports:       make(map[string]model.Report),
			versions:      make(map[string]model.ReportVersion),
			comments:      make(map[string]model.ReviewComment),
			soutenances:   make(map[string]model.Soutenance),
			juries:        make(map[string][]model.SoutenanceJury),
			rooms:         make(map[string]model.Room),
			notifications: make(map[string]model.Notification),
		},
	}
}

// repository returns the aggregate wired to the store.
func (s *memStore) repository() *repository.Repository {
	repo := &repository.Repository{
		User:         &mockUserRepo{s},
		Offer:        &mockOfferRepo{s},
		Slot:         &mockSlotRepo{s},
		Application:  &mockApplicationRepo{s},
		Internship:   &mockInternshipRepo{s},
		Invitation:   &mockInvitationRepo{s},
		Report:       &mockReportRepo{s},
		Version:      &mockVersionRepo{s},
		Comment:      &mockCommentRepo{s},
		Soutenance:   &mockSoutenanceRepo{s},
		Room:         &mockRoomRepo{s},
		Notification: &mockNotificationRepo{s},
	}
	repo.Tx = &mockTx{s: s, repo: repo}
	return repo
}

// newID must be called with mu held.
func (s *memStore) newID() string {
	s.seq++
	id := uuid.NewString()
	s.order[id] = s.seq
	return id
}

func (s *memStore) sortByOrder(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return s.order[ids[i]] < s.order[ids[j]] })
}

func stamp(b *model.BaseModel) {
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

func initVersion(v *model.VersionedModel) {
	if v.Version == 0 {
		v.Version = 1
	}
}

func (s *memStore) userPtr(id string) *model.User {
	if u, ok := s.users[id]; ok {
		return &u
	}
	return nil
}

func (s *memStore) userPtrP(id *string) *model.User {
	if id == nil {
		return nil
	}
	return s.userPtr(*id)
}

// ── Seeding helpers ──

func (s *memStore) addUser(role, username string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := model.User{
		UserID:    s.newID(),
		Username:  username,
		Email:     username + "@example.com",
		FirstName: strings.ToUpper(username[:1]) + username[1:],
		Role:      role,
		IsActive:  true,
	}
	stamp(&u.BaseModel)
	s.users[u.UserID] = u
	return &u
}

func (s *memStore) addOffer(companyID string, status model.OfferStatus, positions int) *model.Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := model.Offer{
		OfferID:            s.newID(),
		CompanyID:          companyID,
		Title:              "Backend engineering internship",
		Description:        "Build services in Go",
		Requirements:       "Go, SQL",
		Type:               model.OfferTypePFE,
		Location:           "Tunis",
		Duration:           "6 months",
		StartDate:          time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
		PositionsAvailable: positions,
		Status:             status,
	}
	stamp(&o.BaseModel)
	initVersion(&o.VersionedModel)
	s.offers[o.OfferID] = o
	return &o
}

func (s *memStore) addSlot(offerID, day, start, end string) *model.InterviewSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	date, _ := time.Parse(model.DateLayout, day)
	slot := model.InterviewSlot{
		SlotID:    s.newID(),
		OfferID:   offerID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Location:  "Meeting room B",
	}
	stamp(&slot.BaseModel)
	s.slots[slot.SlotID] = slot
	return &slot
}

func (s *memStore) addRoom(name string, available bool) *model.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := model.Room{RoomID: s.newID(), Name: name, Building: "A", Capacity: 30, IsAvailable: available}
	stamp(&r.BaseModel)
	s.rooms[r.RoomID] = r
	return &r
}

// addInternship stores an approved internship supervised by teacherID
// (empty for none).
func (s *memStore) addInternship(studentID, teacherID string) *model.Internship {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := model.Internship{
		InternshipID: s.newID(),
		StudentID:    studentID,
		Title:        "Payment gateway",
		Type:         "PFE",
		CompanyName:  "Acme",
		Status:       model.InternshipApproved,
		StartDate:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
	}
	if teacherID != "" {
		in.TeacherID = &teacherID
	}
	stamp(&in.BaseModel)
	initVersion(&in.VersionedModel)
	s.internships[in.InternshipID] = in
	return &in
}

// addReport stores a report of the internship, final or not.
func (s *memStore) addReport(in *model.Internship, final bool) *model.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := model.Report{
		ReportID:     s.newID(),
		InternshipID: in.InternshipID,
		StudentID:    in.StudentID,
		Title:        "Final report",
		IsFinal:      final,
	}
	stamp(&r.BaseModel)
	initVersion(&r.VersionedModel)
	s.reports[r.ReportID] = r
	return &r
}

// ── Column mapping ──

var naming = schema.NamingStrategy{}

// applyFields writes a column map the way gorm's Updates does: keys are
// column names, nil clears, plain values fill pointer columns.
func applyFields(dst interface{}, fields map[string]interface{}) error {
	cols := make(map[string]reflect.Value)
	collectColumns(reflect.ValueOf(dst).Elem(), cols)
	for col, v := range fields {
		f, ok := cols[col]
		if !ok {
			return fmt.Errorf("mock: unknown column %q", col)
		}
		if v == nil {
			f.Set(reflect.Zero(f.Type()))
			continue
		}
		rv := reflect.ValueOf(v)
		if f.Kind() == reflect.Ptr && rv.Type() != f.Type() {
			p := reflect.New(f.Type().Elem())
			p.Elem().Set(rv.Convert(f.Type().Elem()))
			f.Set(p)
			continue
		}
		f.Set(rv.Convert(f.Type()))
	}
	return nil
}

func collectColumns(v reflect.Value, cols map[string]reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			collectColumns(v.Field(i), cols)
			continue
		}
		cols[naming.ColumnName("", sf.Name)] = v.Field(i)
	}
}

// ── Transactions ──

type mockTx struct {
	s    *memStore
	repo *repository.Repository
}

func (t *mockTx) Run(_ context.Context, fn func(tx *repository.Repository) error) error {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	t.s.mu.Lock()
	snapshot := t.s.memTables.clone()
	t.s.mu.Unlock()

	if err := fn(t.repo); err != nil {
		t.s.mu.Lock()
		t.s.memTables = snapshot
		t.s.mu.Unlock()
		return err
	}
	return nil
}

// ── Mock UserRepository ──

type mockUserRepo struct{ s *memStore }

func (m *mockUserRepo) Create(_ context.Context, u *model.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, other := range m.s.users {
		if other.Username == u.Username {
			return repository.ErrDuplicate
		}
	}
	if u.UserID == "" {
		u.UserID = m.s.newID()
	}
	stamp(&u.BaseModel)
	m.s.users[u.UserID] = *u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if u := m.s.userPtr(id); u != nil && !u.DeletedAt.Valid {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) find(match func(u model.User) bool) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if !u.DeletedAt.Valid && match(u) {
			u := u
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return m.find(func(u model.User) bool { return u.Username == username })
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u model.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *mockUserRepo) GetByIDs(_ context.Context, ids []string) ([]model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var list []model.User
	for _, id := range ids {
		if u, ok := m.s.users[id]; ok {
			list = append(list, u)
		}
	}
	return list, nil
}

func (m *mockUserRepo) LockByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	list, err := m.GetByIDs(ctx, ids)
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list, err
}

func (m *mockUserRepo) ListByRole(_ context.Context, role string) ([]model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var ids []string
	for id, u := range m.s.users {
		if role == "" || u.Role == role {
			ids = append(ids, id)
		}
	}
	m.s.sortByOrder(ids)
	list := make([]model.User, 0, len(ids))
	for _, id := range ids {
		list = append(list, m.s.users[id])
	}
	return list, nil
}

func (m *mockUserRepo) Update(_ context.Context, u *model.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.users[u.UserID]; !ok {
		return repository.ErrNotMatched
	}
	stamp(&u.BaseModel)
	m.s.users[u.UserID] = *u
	return nil
}

func (m *mockUserRepo) List(_ context.Context, f repository.UserFilter) ([]model.User, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	kw := strings.ToLower(strings.TrimSpace(f.Keyword))
	var ids []string
	for id, u := range m.s.users {
		if u.DeletedAt.Valid || (f.Role != "" && u.Role != f.Role) {
			continue
		}
		if f.Active != nil && u.IsActive != *f.Active {
			continue
		}
		if kw != "" && !strings.Contains(strings.ToLower(u.Username+" "+u.Email+" "+u.FirstName+" "+u.LastName), kw) {
			continue
		}
		ids = append(ids, id)
	}
	m.s.sortByOrder(ids)
	total := int64(len(ids))
	list := make([]model.User, 0, f.Limit)
	for i := f.Offset; i < len(ids) && len(list) < f.Limit; i++ {
		list = append(list, m.s.users[ids[i]])
	}
	return list, total, nil
}

func (m *mockUserRepo) Delete(_ context.Context, id, deletedBy string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok || u.DeletedAt.Valid {
		return repository.ErrNotMatched
	}
	u.IsActive = false
	u.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	u.DeletedBy = &deletedBy
	m.s.users[id] = u
	return nil
}

func (m *mockUserRepo) TouchLogin(_ context.Context, id string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if u, ok := m.s.users[id]; ok {
		u.LastLoginAt = &at
		m.s.users[id] = u
	}
	return nil
}

func (m *mockUserRepo) DeactivateInactive(_ context.Context, cutoff time.Time) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for id, u := range m.s.users {
		if !u.IsActive || u.DeletedAt.Valid || u.Role == string(authz.RoleAdministrator) || !u.CreatedAt.Before(cutoff) {
			continue
		}
		if u.LastLoginAt != nil && !u.LastLoginAt.Before(cutoff) {
			continue
		}
		u.IsActive = false
		m.s.users[id] = u
		n++
	}
	return n, nil
}

func (m *mockUserRepo) CountByRole(_ context.Context) (map[string]int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make(map[string]int64)
	for _, u := range m.s.users {
		out[u.Role]++
	}
	return out, nil
}

// ── Mock OfferRepository ──

type mockOfferRepo struct{ s *memStore }

func (m *mockOfferRepo) Create(_ context.Context, o *model.Offer) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if o.OfferID == "" {
		o.OfferID = m.s.newID()
	}
	stamp(&o.BaseModel)
	initVersion(&o.VersionedModel)
	row := *o
	row.Company = nil
	m.s.offers[o.OfferID] = row
	return nil
}

func (m *mockOfferRepo) load(o model.Offer) *model.Offer {
	o.Company = m.s.userPtr(o.CompanyID)
	return &o
}

func (m *mockOfferRepo) GetByID(_ context.Context, id string) (*model.Offer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.offers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m.load(o), nil
}

func (m *mockOfferRepo) GetForUpdate(_ context.Context, id string) (*model.Offer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.offers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &o, nil
}

func (m *mockOfferRepo) Update(_ context.Context, o *model.Offer, status model.OfferStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.offers[o.OfferID]
	if !ok || cur.Version != o.Version || cur.Status != status {
		return apperrors.ErrOptimisticLock
	}
	cur.Title, cur.Description, cur.Requirements = o.Title, o.Description, o.Requirements
	cur.Type, cur.Location, cur.Duration = o.Type, o.Location, o.Duration
	cur.StartDate, cur.EndDate = o.StartDate, o.EndDate
	cur.PositionsAvailable = o.PositionsAvailable
	cur.UpdatedBy = o.UpdatedBy
	cur.Version++
	stamp(&cur.BaseModel)
	m.s.offers[o.OfferID] = cur
	o.Version = cur.Version
	return nil
}

func (m *mockOfferRepo) UpdateIfStatus(_ context.Context, id string, status model.OfferStatus, fields map[string]interface{}) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.offers[id]
	if !ok || cur.Status != status {
		return repository.ErrNotMatched
	}
	if err := applyFields(&cur, fields); err != nil {
		return err
	}
	cur.Version++
	m.s.offers[id] = cur
	return nil
}

func (m *mockOfferRepo) Delete(_ context.Context, id, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.offers[id]; !ok {
		return repository.ErrNotMatched
	}
	delete(m.s.offers, id)
	return nil
}

func (m *mockOfferRepo) list(keep func(o *model.Offer) bool) []model.Offer {
	var ids []string
	for id, o := range m.s.offers {
		if keep(&o) {
			ids = append(ids, id)
		}
	}
	m.s.sortByOrder(ids)
	list := make([]model.Offer, 0, len(ids))
	for _, id := range ids {
		list = append(list, *m.load(m.s.offers[id]))
	}
	return list
}

func (m *mockOfferRepo) ListByCompany(_ context.Context, companyID string) ([]model.Offer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.list(func(o *model.Offer) bool { return o.CompanyID == companyID }), nil
}

func (m *mockOfferRepo) ListByStatus(_ context.Context, status string) ([]model.Offer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.list(func(o *model.Offer) bool { return status == "" || string(o.Status) == status }), nil
}

func (m *mockOfferRepo) Browse(_ context.Context, f repository.OfferFilter) ([]model.Offer, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	contains := func(s, sub string) bool { return strings.Contains(strings.ToLower(s), strings.ToLower(sub)) }
	all := m.list(func(o *model.Offer) bool {
		if o.Status != model.OfferApproved {
			return false
		}
		if f.Type != "" && string(o.Type) != f.Type {
			return false
		}
		if f.Location != "" && !contains(o.Location, f.Location) {
			return false
		}
		if kw := strings.TrimSpace(f.Keyword); kw != "" {
			return contains(o.Title, kw) || contains(o.Description, kw) || contains(o.Requirements, kw)
		}
		return true
	})
	total := int64(len(all))
	if f.Offset >= len(all) {
		return []model.Offer{}, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (m *mockOfferRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make(map[string]int64)
	for _, o := range m.s.offers {
		out[string(o.Status)]++
	}
	return out, nil
}

// ── Mock InterviewSlotRepository ──

type mockSlotRepo struct{ s *memStore }

func (m *mockSlotRepo) Create(_ context.Context, slot *model.InterviewSlot) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if slot.SlotID == "" {
		slot.SlotID = m.s.newID()
	}
	stamp(&slot.BaseModel)
	row := *slot
	row.Offer = nil
	m.s.slots[slot.SlotID] = row
	return nil
}

func (m *mockSlotRepo) GetByID(_ context.Context, id string) (*model.InterviewSlot, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	slot, ok := m.s.slots[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &slot, nil
}

func (m *mockSlotRepo) ListByOffer(_ context.Context, offerID string, onlyFree bool) ([]model.InterviewSlot, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var list []model.InterviewSlot
	for _, slot := range m.s.slots {
		if slot.OfferID == offerID && (!onlyFree || !slot.IsBooked()) {
			list = append(list, slot)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].StartsAt(time.UTC).Before(list[j].StartsAt(time.UTC))
	})
	return list, nil
}

func (m *mockSlotRepo) ListByIDs(_ context.Context, ids []string) ([]model.InterviewSlot, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var list []model.InterviewSlot
	for _, id := range ids {
		if slot, ok := m.s.slots[id]; ok {
			if o, ok := m.s.offers[slot.OfferID]; ok {
				slot.Offer = &o
			}
			list = append(list, slot)
		}
	}
	return list, nil
}

func (m *mockSlotRepo) Book(_ context.Context, slotID, applicationID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	slot, ok := m.s.slots[slotID]
	if !ok || slot.IsBooked() {
		return repository.ErrNotMatched
	}
	for _, other := range m.s.slots {
		if other.BookedByApplicationID != nil && *other.BookedByApplicationID == applicationID {
			return repository.ErrDuplicate
		}
	}
	slot.BookedByApplicationID = &applicationID
	m.s.slots[slotID] = slot
	return nil
}

func (m *mockSlotRepo) Release(_ context.Context, slotID, applicationID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	slot, ok := m.s.slots[slotID]
	if !ok || slot.BookedByApplicationID == nil || *slot.BookedByApplicationID != applicationID {
		return repository.ErrNotMatched
	}
	slot.BookedByApplicationID = nil
	m.s.slots[slotID] = slot
	return nil
}

func (m *mockSlotRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	slot, ok := m.s.slots[id]
	if !ok || slot.IsBooked() {
		return repository.ErrNotMatched
	}
	delete(m.s.slots, id)
	return nil
}

// ── Mock ApplicationRepository ──

type mockApplicationRepo struct{ s *memStore }

func (m *mockApplicationRepo) Create(_ context.Context, app *model.Application) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, other := range m.s.apps {
		if other.OfferID == app.OfferID && other.StudentID == app.StudentID {
			return repository.ErrDuplicate
		}
	}
	if app.ApplicationID == "" {
		app.ApplicationID = m.s.newID()
	}
	stamp(&app.BaseModel)
	initVersion(&app.VersionedModel)
	row := *app
	row.Offer, row.Student, row.SelectedSlot = nil, nil, nil
	m.s.apps[app.ApplicationID] = row
	return nil
}

func (m *mockApplicationRepo) load(app model.Application) *model.Application {
	if o, ok := m.s.offers[app.OfferID]; ok {
		o.Company = m.s.userPtr(o.CompanyID)
		app.Offer = &o
	}
	app.Student = m.s.userPtr(app.StudentID)
	if app.SelectedSlotID != nil {
		if slot, ok := m.s.slots[*app.SelectedSlotID]; ok {
			app.SelectedSlot = &slot
		}
	}
	return &app
}

func (m *mockApplicationRepo) GetByID(_ context.Context, id string) (*model.Application, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	app, ok := m.s.apps[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m.load(app), nil
}

func (m *mockApplicationRepo) GetByOfferAndStudent(_ context.Context, offerID, studentID string) (*model.Application, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, app := range m.s.apps {
		if app.OfferID == offerID && app.StudentID == studentID {
			app := app
			return &app, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockApplicationRepo) list(keep func(a *model.Application) bool) []model.Application {
	var ids []string
	for id, app := range m.s.apps {
		if keep(&app) {
			ids = append(ids, id)
		}
	}
	m.s.sortByOrder(ids)
	list := make([]model.Application, 0, len(ids))
	for _, id := range ids {
		list = append(list, *m.load(m.s.apps[id]))
	}
	return list
}

func (m *mockApplicationRepo) ListByStudent(_ context.Context, studentID string) ([]model.Application, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.list(func(a *model.Application) bool { return a.StudentID == studentID }), nil
}

func (m *mockApplicationRepo) ListByOffer(_ context.Context, offerID string, status *model.ApplicationStatus) ([]model.Application, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.list(func(a *model.Application) bool {
		return a.OfferID == offerID && (status == nil || a.Status == *status)
	}), nil
}

func (m *mockApplicationRepo) CountByOfferAndStatus(_ context.Context, offerID string, status model.ApplicationStatus) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, app := range m.s.apps {
		if app.OfferID == offerID && app.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *mockApplicationRepo) CountByOffers(_ context.Context, offerIDs []string) (map[string]int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make(map[string]int64)
	for _, id := range offerIDs {
		for _, app := range m.s.apps {
			if app.OfferID == id {
				out[id]++
			}
		}
	}
	return out, nil
}

func (m *mockApplicationRepo) AppliedOfferIDs(_ context.Context, studentID string, offerIDs []string) (map[string]bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make(map[string]bool)
	for _, id := range offerIDs {
		for _, app := range m.s.apps {
			if app.OfferID == id && app.StudentID == studentID {
				out[id] = true
			}
		}
	}
	return out, nil
}

func (m *mockApplicationRepo) UpdateIfStatus(_ context.Context, id string, status model.ApplicationStatus, fields map[string]interface{}) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	app, ok := m.s.apps[id]
	if !ok || app.Status != status {
		return repository.ErrNotMatched
	}
	if err := applyFields(&app, fields); err != nil {
		return err
	}
	app.Version++
	m.s.apps[id] = app
	return nil
}

func (m *mockApplicationRepo) AttachSlot(_ context.Context, id, slotID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	app, ok := m.s.apps[id]
	if !ok || app.Status != model.ApplicationInterview || app.SelectedSlotID != nil {
		return repository.ErrNotMatched
	}
	for _, other := range m.s.apps {
		if other.SelectedSlotID != nil && *other.SelectedSlotID == slotID {
			return repository.ErrDuplicate
		}
	}
	app.SelectedSlotID = &slotID
	app.Version++
	m.s.apps[id] = app
	return nil
}

func (m *mockApplicationRepo) SaveMatch(_ context.Context, id string, score int, analysis string, breakdown datatypes.JSON, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	app, ok := m.s.apps[id]
	if !ok {
		return repository.ErrNotMatched
	}
	app.MatchScore = &score
	app.MatchAnalysis = analysis
	app.MatchBreakdown = breakdown
	app.MatchedAt = &at
	m.s.apps[id] = app
	return nil
}

func (m *mockApplicationRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make(map[string]int64)
	for _, app := range m.s.apps {
		out[strconv.Itoa(int(app.Status))]++
	}
	return out, nil
}

// ── Mock InternshipRepository ──

type mockInternshipRepo struct{ s *memStore }

func (m *mockInternshipRepo) Create(_ context.Context, in *model.Internship) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if in.ApplicationID != nil {
		for _, other := range m.s.internships {
			if other.ApplicationID != nil && *other.ApplicationID == *in.ApplicationID {
				return repository.ErrDuplicate
			}
		}
	}
	if in.InternshipID == "" {
		in.InternshipID = m.s.newID()
	}
	stamp(&in.BaseModel)
	initVersion(&in.VersionedModel)
	row := *in
	row.Student, row.Teacher = nil, nil
	m.s.internships[in.InternshipID] = row
	return nil
}

func (m *mockInternshipRepo) load(in model.Internship) *model.Internship {
	in.Student = m.s.userPtr(in.StudentID)
	in.Teacher = m.s.userPtrP(in.TeacherID)
	return &in
}

func (m *mockInternshipRepo) GetByID(_ context.Context, id string) (*model.Internship, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	in, ok := m.s.internships[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m.load(in), nil
}

func (m *mockInternshipRepo) GetByApplication(_ context.Context, applicationID string) (*model.Internship, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, in := range m.s.internships {
		if in.ApplicationID != nil && *in.ApplicationID == applicationID {
			return m.load(in), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockInternshipRepo) list(keep func(in *model.Internship) bool) []model.Internship {
	var ids []string
	for id, in := range m.s.internships {
		if keep(&in) {
			ids = append(ids, id)
		}
	}
	m.s.sortByOrder(ids)
	list := make([]model.Internship, 0, len(ids))
	for _, id := range ids {
		list = append(list, *m.load(m.s.internships[id]))
	}
	return list
}

func (m *mockInternshipRepo) ListByStudent(_ context.Context, studentID string) ([]model.Internship, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.list(func(in *model.Internship) bool { return in.StudentID == studentID }), nil
}

func (m *mockInternshipRepo) ListBySupervisor(_ context.Context, teacherID string) ([]model.Internship, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.list(func(in *model.Internship) bool { return in.IsSupervisedBy(teacherID) }), nil
}

func (m *mockInternshipRepo) ListByStatus(_ context.Context, status model.InternshipStatus) ([]model.Internship, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.list(func(in *model.Internship) bool { return in.Status == status }), nil
}

func (m *mockInternshipRepo) UpdateIfStatus(_ context.Context, id string, status model.InternshipStatus, fields map[string]interface{}) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	in, ok := m.s.internships[id]
	if !ok || in.Status != status {
		return repository.ErrNotMatched
	}
	if err := applyFields(&in, fields); err != nil {
		return err
	}
	in.Version++
	m.s.internships[id] = in
	return nil
}

func (m *mockInternshipRepo) SetSupervisor(_ context.Context, id, teacherID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	in, ok := m.s.internships[id]
	if !ok || in.TeacherID != nil {
		return repository.ErrNotMatched
	}
	in.TeacherID = &teacherID
	in.Version++
	m.s.internships[id] = in
	return nil
}

func (m *mockInternshipRepo) ListSoutenanceCandidates(_ context.Context) ([]model.Internship, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.list(func(in *model.Internship) bool {
		if in.Status != model.InternshipApproved {
			return false
		}
		final := false
		for _, r := range m.s.reports {
			if r.InternshipID == in.InternshipID && r.IsFinal {
				final = true
			}
		}
		for _, sout := range m.s.soutenances {
			if sout.InternshipID == in.InternshipID {
				return false
			}
		}
		return final
	}), nil
}

func (m *mockInternshipRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make(map[string]int64)
	for _, in := range m.s.internships {
		out[string(in.Status)]++
	}
	return out, nil
}

// ── Mock InvitationRepository ──

type mockInvitationRepo struct{ s *memStore }

func (m *mockInvitationRepo) Create(_ context.Context, inv *model.TeacherInvitation) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, other := range m.s.invitations {
		if other.InternshipID == inv.InternshipID && other.TeacherID == inv.TeacherID && other.Status == model.InvitationPending {
			return repository.ErrDuplicate
		}
	}
	if inv.InvitationID == "" {
		inv.InvitationID = m.s.newID()
	}
	stamp(&inv.BaseModel)
	row := *inv
	row.Internship, row.Student, row.Teacher = nil, nil, nil
	m.s.invitations[inv.InvitationID] = row
	return nil
}

func (m *mockInvitationRepo) load(inv model.TeacherInvitation) *model.TeacherInvitation {
	if in, ok := m.s.internships[inv.InternshipID]; ok {
		inv.Internship = &in
	}
	inv.Student = m.s.userPtr(inv.StudentID)
	inv.Teacher = m.s.userPtr(inv.TeacherID)
	return &inv
}

func (m *mockInvitationRepo) GetByID(_ context.Context, id string) (*model.TeacherInvitation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	inv, ok := m.s.invitations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m.load(inv), nil
}

func (m *mockInvitationRepo) list(keep func(inv *model.TeacherInvitation) bool) []model.TeacherInvitation {
	var ids []string
	for id, inv := range m.s.invitations {
		if keep(&inv) {
			ids = append(ids, id)
		}
	}
	m.s.sortByOrder(ids)
	list := make([]model.TeacherInvitation, 0, len(ids))
	for _, id := range ids {
		list = append(list, *m.load(m.s.invitations[id]))
	}
	return list
}

func (m *mockInvitationRepo) ListByStudent(_ context.Context, studentID string) ([]model.TeacherInvitation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.list(func(inv *model.TeacherInvitation) bool { return inv.StudentID == studentID }), nil
}

func (m *mockInvitationRepo) ListByTeacher(_ context.Context, teacherID string) ([]model.TeacherInvitation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.list(func(inv *model.TeacherInvitation) bool { return inv.TeacherID == teacherID }), nil
}

func (m *mockInvitationRepo) HasPending(_ context.Context, internshipID, teacherID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, inv := range m.s.invitations {
		if inv.InternshipID == internshipID && inv.TeacherID == teacherID && inv.Status == model.InvitationPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockInvitationRepo) UpdateIfStatus(_ context.Context, id string, status model.InvitationStatus, fields map[string]interface{}) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	inv, ok := m.s.invitations[id]
	if !ok || inv.Status != status {
		return repository.ErrNotMatched
	}
	if err := applyFields(&inv, fields); err != nil {
		return err
	}
	m.s.invitations[id] = inv
	return nil
}

func (m *mockInvitationRepo) DeclineOtherPending(_ context.Context, internshipID, keepID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	now := time.Now()
	for id, inv := range m.s.invitations {
		if inv.InternshipID == internshipID && id != keepID && inv.Status == model.InvitationPending {
			inv.Status = model.InvitationDeclined
			inv.RespondedAt = &now
			m.s.invitations[id] = inv
		}
	}
	return nil
}

// ── Mock ReportRepository ──

type mockReportRepo struct{ s *memStore }

func (m *mockReportRepo) Create(_ context.Context, r *model.Report) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, other := range m.s.reports {
		if other.InternshipID == r.InternshipID {
			return repository.ErrDuplicate
		}
	}
	if r.ReportID == "" {
		r.ReportID = m.s.newID()
	}
	stamp(&r.BaseModel)
	initVersion(&r.VersionedModel)
	row := *r
	row.Internship, row.Versions = nil, nil
	m.s.reports[r.ReportID] = row
	return nil
}

// versionsOf returns the versions of a report by number with their comments.
func (s *memStore) versionsOf(reportID string) []model.ReportVersion {
	var list []model.ReportVersion
	for _, v := range s.versions {
		if v.ReportID == reportID {
			v.Comments = s.commentsOf(v.VersionID)
			list = append(list, v)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].VersionNumber < list[j].VersionNumber })
	return list
}

func (s *memStore) commentsOf(versionID string) []model.ReviewComment {
	var ids []string
	for id, c := range s.comments {
		if c.VersionID == versionID {
			ids = append(ids, id)
		}
	}
	s.sortByOrder(ids)
	list := make([]model.ReviewComment, 0, len(ids))
	for _, id := range ids {
		list = append(list, s.comments[id])
	}
	return list
}

func (m *mockReportRepo) load(r model.Report) *model.Report {
	if in, ok := m.s.internships[r.InternshipID]; ok {
		r.Internship = &in
	}
	r.Versions = m.s.versionsOf(r.ReportID)
	return &r
}

func (m *mockReportRepo) GetByID(_ context.Context, id string) (*model.Report, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.reports[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m.load(r), nil
}

func (m *mockReportRepo) GetByInternship(_ context.Context, internshipID string) (*model.Report, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.reports {
		if r.InternshipID == internshipID {
			r := r
			return &r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReportRepo) ListByStudent(_ context.Context, studentID string) ([]model.Report, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var ids []string
	for id, r := range m.s.reports {
		if r.StudentID == studentID {
			ids = append(ids, id)
		}
	}
	m.s.sortByOrder(ids)
	list := make([]model.Report, 0, len(ids))
	for _, id := range ids {
		list = append(list, *m.load(m.s.reports[id]))
	}
	return list, nil
}

func (m *mockReportRepo) GetForUpdate(_ context.Context, id string) (*model.Report, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.reports[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &r, nil
}

func (m *mockReportRepo) UpdateFields(_ context.Context, id string, fields map[string]interface{}) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.reports[id]
	if !ok {
		return repository.ErrNotMatched
	}
	if err := applyFields(&r, fields); err != nil {
		return err
	}
	r.Version++
	m.s.reports[id] = r
	return nil
}

func (m *mockReportRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.reports[id]
	if !ok || r.IsFinal {
		return repository.ErrNotMatched
	}
	for vid, v := range m.s.versions {
		if v.ReportID != id {
			continue
		}
		for cid, c := range m.s.comments {
			if c.VersionID == vid {
				delete(m.s.comments, cid)
			}
		}
		delete(m.s.versions, vid)
	}
	delete(m.s.reports, id)
	return nil
}

func (m *mockReportRepo) CountByFinal(_ context.Context) (int64, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var final, notFinal int64
	for _, r := range m.s.reports {
		if r.IsFinal {
			final++
		} else {
			notFinal++
		}
	}
	return final, notFinal, nil
}

func (m *mockReportRepo) AverageGrade(_ context.Context) (*float64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var sum float64
	var n int
	for _, r := range m.s.reports {
		if r.FinalGrade != nil {
			sum += *r.FinalGrade
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	avg := sum / float64(n)
	return &avg, nil
}

// ── Mock ReportVersionRepository ──

type mockVersionRepo struct{ s *memStore }

func (m *mockVersionRepo) Create(_ context.Context, v *model.ReportVersion) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, other := range m.s.versions {
		if other.ReportID == v.ReportID && other.VersionNumber == v.VersionNumber {
			return repository.ErrDuplicate
		}
	}
	if v.VersionID == "" {
		v.VersionID = m.s.newID()
	}
	stamp(&v.BaseModel)
	row := *v
	row.Report, row.Comments = nil, nil
	m.s.versions[v.VersionID] = row
	return nil
}

func (m *mockVersionRepo) GetByID(_ context.Context, id string) (*model.ReportVersion, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	v, ok := m.s.versions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if r, ok := m.s.reports[v.ReportID]; ok {
		v.Report = &r
	}
	v.Comments = m.s.commentsOf(id)
	return &v, nil
}

func (m *mockVersionRepo) MaxVersionNumber(_ context.Context, reportID string) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	last := 0
	for _, v := range m.s.versions {
		if v.ReportID == reportID && v.VersionNumber > last {
			last = v.VersionNumber
		}
	}
	return last, nil
}

func (m *mockVersionRepo) CountByStatus(_ context.Context, reportID string, status model.VersionStatus) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, v := range m.s.versions {
		if v.ReportID == reportID && v.Status == status {
			n++
		}
	}
	return n, nil
}

// UpdateIfStatus also enforces the one-final-version-per-report index.
func (m *mockVersionRepo) UpdateIfStatus(_ context.Context, id string, status model.VersionStatus, fields map[string]interface{}) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	v, ok := m.s.versions[id]
	if !ok || v.Status != status {
		return repository.ErrNotMatched
	}
	if err := applyFields(&v, fields); err != nil {
		return err
	}
	if v.IsFinal {
		for oid, other := range m.s.versions {
			if oid != id && other.ReportID == v.ReportID && other.IsFinal {
				return repository.ErrDuplicate
			}
		}
	}
	m.s.versions[id] = v
	return nil
}

func (m *mockVersionRepo) ClearFinal(_ context.Context, reportID, keepID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, v := range m.s.versions {
		if v.ReportID == reportID && id != keepID && v.IsFinal {
			v.IsFinal = false
			m.s.versions[id] = v
		}
	}
	return nil
}

func (m *mockVersionRepo) ListPendingForTeacher(_ context.Context, teacherID string) ([]model.ReportVersion, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var list []model.ReportVersion
	for _, v := range m.s.versions {
		if v.Status != model.VersionPending {
			continue
		}
		r, ok := m.s.reports[v.ReportID]
		if !ok {
			continue
		}
		if in, ok := m.s.internships[r.InternshipID]; ok && in.IsSupervisedBy(teacherID) {
			v.Report = &r
			list = append(list, v)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i].SubmittedAt, list[j].SubmittedAt
		return a != nil && b != nil && a.Before(*b)
	})
	return list, nil
}

// ── Mock CommentRepository ──

type mockCommentRepo struct{ s *memStore }

func (m *mockCommentRepo) Create(_ context.Context, c *model.ReviewComment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c.CommentID == "" {
		c.CommentID = m.s.newID()
	}
	stamp(&c.BaseModel)
	m.s.comments[c.CommentID] = *c
	return nil
}

func (m *mockCommentRepo) GetByID(_ context.Context, id string) (*model.ReviewComment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.comments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (m *mockCommentRepo) Resolve(_ context.Context, id string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.comments[id]
	if !ok || c.IsResolved {
		return repository.ErrNotMatched
	}
	c.IsResolved = true
	c.ResolvedAt = &at
	m.s.comments[id] = c
	return nil
}

// ── Mock SoutenanceRepository ──

type mockSoutenanceRepo struct{ s *memStore }

// overlapping reports whether a planned soutenance other than excludeID
// holds roomID or one of teacherIDs during [start, end).
func (m *mockSoutenanceRepo) overlapping(roomID string, teacherIDs []string, start, end time.Time, excludeID string) []model.Soutenance {
	var ids []string
	for id, sout := range m.s.soutenances {
		if id == excludeID || sout.Status != model.SoutenancePlanned || !sout.Overlaps(start, end) {
			continue
		}
		hit := sout.RoomID == roomID
		for _, j := range m.s.juries[id] {
			for _, t := range teacherIDs {
				if j.TeacherID == t {
					hit = true
				}
			}
		}
		if hit {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.s.soutenances[ids[i]].StartsAt.Before(m.s.soutenances[ids[j]].StartsAt)
	})
	list := make([]model.Soutenance, 0, len(ids))
	for _, id := range ids {
		sout := m.s.soutenances[id]
		sout.Jury = append([]model.SoutenanceJury(nil), m.s.juries[id]...)
		list = append(list, sout)
	}
	return list
}

func (m *mockSoutenanceRepo) storeJury(sout *model.Soutenance) {
	rows := make([]model.SoutenanceJury, len(sout.Jury))
	for i, j := range sout.Jury {
		j.SoutenanceID = sout.SoutenanceID
		j.StartsAt, j.EndsAt, j.Status = sout.StartsAt, sout.EndsAt, sout.Status
		j.Teacher = nil
		rows[i] = j
		sout.Jury[i].SoutenanceID = sout.SoutenanceID
	}
	m.s.juries[sout.SoutenanceID] = rows
}

func (m *mockSoutenanceRepo) Create(_ context.Context, sout *model.Soutenance) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, other := range m.s.soutenances {
		if other.InternshipID == sout.InternshipID {
			return repository.ErrDuplicate
		}
	}
	if len(m.overlapping(sout.RoomID, sout.JuryIDs(), sout.StartsAt, sout.EndsAt, "")) > 0 {
		return repository.ErrOverlap
	}
	if sout.SoutenanceID == "" {
		sout.SoutenanceID = m.s.newID()
	}
	stamp(&sout.BaseModel)
	initVersion(&sout.VersionedModel)
	row := *sout
	row.Internship, row.Room, row.Jury = nil, nil, nil
	m.s.soutenances[sout.SoutenanceID] = row
	m.storeJury(sout)
	return nil
}

func (m *mockSoutenanceRepo) load(sout model.Soutenance) *model.Soutenance {
	if in, ok := m.s.internships[sout.InternshipID]; ok {
		in.Student = m.s.userPtr(in.StudentID)
		sout.Internship = &in
	}
	if r, ok := m.s.rooms[sout.RoomID]; ok {
		sout.Room = &r
	}
	sout.Jury = nil
	for _, j := range m.s.juries[sout.SoutenanceID] {
		j.Teacher = m.s.userPtr(j.TeacherID)
		sout.Jury = append(sout.Jury, j)
	}
	sort.Slice(sout.Jury, func(i, j int) bool { return sout.Jury[i].Position < sout.Jury[j].Position })
	return &sout
}

func (m *mockSoutenanceRepo) GetByID(_ context.Context, id string) (*model.Soutenance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sout, ok := m.s.soutenances[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m.load(sout), nil
}

func (m *mockSoutenanceRepo) GetForUpdate(_ context.Context, id string) (*model.Soutenance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sout, ok := m.s.soutenances[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	sout.Jury = append([]model.SoutenanceJury(nil), m.s.juries[id]...)
	return &sout, nil
}

func (m *mockSoutenanceRepo) GetByInternship(_ context.Context, internshipID string) (*model.Soutenance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, sout := range m.s.soutenances {
		if sout.InternshipID == internshipID {
			sout := sout
			return &sout, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSoutenanceRepo) List(_ context.Context, f repository.SoutenanceFilter) ([]model.Soutenance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var list []model.Soutenance
	for id, sout := range m.s.soutenances {
		if f.Status != "" && sout.Status != f.Status {
			continue
		}
		if f.StudentID != "" && m.s.internships[sout.InternshipID].StudentID != f.StudentID {
			continue
		}
		if f.TeacherID != "" {
			seated := false
			for _, j := range m.s.juries[id] {
				seated = seated || j.TeacherID == f.TeacherID
			}
			if !seated {
				continue
			}
		}
		list = append(list, *m.load(sout))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartsAt.Before(list[j].StartsAt) })
	return list, nil
}

func (m *mockSoutenanceRepo) FindConflicts(_ context.Context, roomID string, teacherIDs []string, start, end time.Time, excludeID string) ([]model.Soutenance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.overlapping(roomID, teacherIDs, start, end, excludeID), nil
}

func (m *mockSoutenanceRepo) Update(_ context.Context, sout *model.Soutenance) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.soutenances[sout.SoutenanceID]
	if !ok || cur.Version != sout.Version || cur.Status != model.SoutenancePlanned {
		return repository.ErrNotMatched
	}
	if len(m.overlapping(sout.RoomID, sout.JuryIDs(), sout.StartsAt, sout.EndsAt, sout.SoutenanceID)) > 0 {
		return repository.ErrOverlap
	}
	cur.RoomID, cur.StartsAt, cur.EndsAt = sout.RoomID, sout.StartsAt, sout.EndsAt
	cur.UpdatedBy = sout.UpdatedBy
	cur.Version++
	m.s.soutenances[sout.SoutenanceID] = cur
	sout.Version = cur.Version
	m.storeJury(sout)
	return nil
}

func (m *mockSoutenanceRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.soutenances[id]; !ok {
		return repository.ErrNotMatched
	}
	delete(m.s.soutenances, id)
	delete(m.s.juries, id)
	return nil
}

func (m *mockSoutenanceRepo) Complete(_ context.Context, id string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sout, ok := m.s.soutenances[id]
	if !ok || sout.Status != model.SoutenancePlanned {
		return repository.ErrNotMatched
	}
	sout.Status = model.SoutenanceDone
	sout.CompletedAt = &at
	sout.Version++
	m.s.soutenances[id] = sout
	if m.s.failJuryUpdate != nil {
		return m.s.failJuryUpdate
	}
	for i := range m.s.juries[id] {
		m.s.juries[id][i].Status = model.SoutenanceDone
	}
	return nil
}

func (m *mockSoutenanceRepo) ListDue(_ context.Context, now time.Time) ([]model.Soutenance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var list []model.Soutenance
	for _, sout := range m.s.soutenances {
		if sout.Status == model.SoutenancePlanned && !sout.EndsAt.After(now) {
			list = append(list, *m.load(sout))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].EndsAt.Before(list[j].EndsAt) })
	return list, nil
}

func (m *mockSoutenanceRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make(map[string]int64)
	for _, sout := range m.s.soutenances {
		out[string(sout.Status)]++
	}
	return out, nil
}

func (m *mockSoutenanceRepo) CountPlannedByRoom(_ context.Context, roomID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, sout := range m.s.soutenances {
		if sout.RoomID == roomID && sout.Status == model.SoutenancePlanned {
			n++
		}
	}
	return n, nil
}

// ── Mock RoomRepository ──

type mockRoomRepo struct{ s *memStore }

func (m *mockRoomRepo) nameTaken(name, exceptID string) bool {
	for id, r := range m.s.rooms {
		if id != exceptID && r.Name == name {
			return true
		}
	}
	return false
}

func (m *mockRoomRepo) Create(_ context.Context, r *model.Room) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.nameTaken(r.Name, "") {
		return repository.ErrDuplicate
	}
	if r.RoomID == "" {
		r.RoomID = m.s.newID()
	}
	stamp(&r.BaseModel)
	m.s.rooms[r.RoomID] = *r
	return nil
}

func (m *mockRoomRepo) GetByID(_ context.Context, id string) (*model.Room, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.rooms[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &r, nil
}

func (m *mockRoomRepo) GetForUpdate(ctx context.Context, id string) (*model.Room, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRoomRepo) List(_ context.Context, onlyAvailable bool) ([]model.Room, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var list []model.Room
	for _, r := range m.s.rooms {
		if !onlyAvailable || r.IsAvailable {
			list = append(list, r)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Building != list[j].Building {
			return list[i].Building < list[j].Building
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func (m *mockRoomRepo) Update(_ context.Context, r *model.Room) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.nameTaken(r.Name, r.RoomID) {
		return repository.ErrDuplicate
	}
	stamp(&r.BaseModel)
	m.s.rooms[r.RoomID] = *r
	return nil
}

func (m *mockRoomRepo) Delete(_ context.Context, id string, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.rooms[id]; !ok {
		return repository.ErrNotMatched
	}
	delete(m.s.rooms, id)
	return nil
}

func (m *mockRoomRepo) CountByAvailability(_ context.Context) (int64, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var available, unavailable int64
	for _, r := range m.s.rooms {
		if r.IsAvailable {
			available++
		} else {
			unavailable++
		}
	}
	return available, unavailable, nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct{ s *memStore }

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if n.NotificationID == "" {
		n.NotificationID = m.s.newID()
	}
	stamp(&n.BaseModel)
	m.s.notifications[n.NotificationID] = *n
	return nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var ids []string
	for id, n := range m.s.notifications {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			ids = append(ids, id)
		}
	}
	m.s.sortByOrder(ids)
	// newest first
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	total := int64(len(ids))
	if offset >= len(ids) {
		return []model.Notification{}, total, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	list := make([]model.Notification, 0, len(ids))
	for _, id := range ids {
		list = append(list, m.s.notifications[id])
	}
	return list, total, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id, userID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n, ok := m.s.notifications[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotMatched
	}
	n.IsRead = true
	m.s.notifications[id] = n
	return nil
}

func (m *mockNotificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var changed int64
	for id, n := range m.s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			m.s.notifications[id] = n
			changed++
		}
	}
	return changed, nil
}

func (m *mockNotificationRepo) CountUnread(_ context.Context, userID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, row := range m.s.notifications {
		if row.UserID == userID && !row.IsRead {
			n++
		}
	}
	return n, nil
}

// ── Notifier ──

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Notify(_ context.Context, events ...Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

// to returns the events addressed to userID of the given type.
func (r *recordingNotifier) to(userID, typ string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.UserID == userID && ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// ── Storage ──

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failPut error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) Put(_ context.Context, dir, filename string, r io.Reader, contentType string) (*storage.Object, error) {
	if m.failPut != nil {
		return nil, m.failPut
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	key := storage.BuildKey(dir, filename)
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return &storage.Object{Key: key, URL: m.URL(key), ContentType: contentType, Size: int64(len(data))}, nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memStorage) URL(key string) string { return "http://files.test/" + key }

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func upload(name, content string) *Upload {
	return &Upload{
		Filename:    name,
		ContentType: "application/pdf",
		Size:        int64(len(content)),
		Body:        bytes.NewBufferString(content),
	}
}

// ── Scorer ──

type stubScorer struct {
	result *matcher.Result
	err    error
	calls  int
}

func (s *stubScorer) Score(_ context.Context, _ matcher.Request) (*matcher.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// ── Test environment ──

// testEnv wires the workflow services on top of one memStore.
type testEnv struct {
	cfg   *config.Config
	store *memStore
	repo  *repository.Repository
	notes *recordingNotifier
	files *memStorage
	base  *base
	now   time.Time
}

func newTestEnv() *testEnv {
	cfg := &config.Config{}
	cfg.Database.Timezone = "UTC"
	cfg.Mail.AppName = "PFE Management"
	cfg.Workflow = config.WorkflowConfig{
		GradeRequiresFinal: true,
		SoutenanceDuration: time.Hour,
	}

	store := newMemStore()
	env := &testEnv{
		cfg:   cfg,
		store: store,
		repo:  store.repository(),
		notes: &recordingNotifier{},
		files: newMemStorage(),
		now:   time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	env.base = newBase(cfg, env.repo, env.notes, env.files, nil, zap.NewNop())
	env.base.now = func() time.Time { return env.now }
	return env
}

func as(u *model.User) authz.Principal {
	return authz.Principal{UserID: u.UserID, Role: authz.Role(u.Role)}
}

func assertKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error of kind %v, got nil", kind)
	}
	if got := apperrors.KindOf(err); got != kind {
		t.Fatalf("expected kind %v, got %v (%v)", kind, got, err)
	}
}
