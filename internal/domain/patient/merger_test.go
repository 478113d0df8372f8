package patient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type refRow struct {
	collection string
	patientID  uuid.UUID
}

type mockRepo struct {
	patients map[uuid.UUID]*Patient
	refs     []*refRow
	notes    map[uuid.UUID][]*Note

	// failOn makes ReassignPatientRefs fail for one collection.
	failOn string
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		patients: make(map[uuid.UUID]*Patient),
		notes:    make(map[uuid.UUID][]*Note),
	}
}

func (m *mockRepo) addPatient(createdAt time.Time) *Patient {
	p := &Patient{
		ID:        uuid.New(),
		FirstName: "Teva",
		LastName:  "Tehaamoana",
		DN:        "1234567",
		CreatedAt: createdAt,
	}
	m.patients[p.ID] = p
	return p
}

func (m *mockRepo) addRef(collection string, patientID uuid.UUID) {
	m.refs = append(m.refs, &refRow{collection: collection, patientID: patientID})
}

func (m *mockRepo) countRefs(collection string, patientID uuid.UUID) int {
	n := 0
	for _, r := range m.refs {
		if r.collection == collection && r.patientID == patientID {
			n++
		}
	}
	return n
}

func (m *mockRepo) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Patient, error) {
	var out []*Patient
	for _, id := range ids {
		if p, ok := m.patients[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) Update(ctx context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := m.patients[id]; ok {
			delete(m.patients, id)
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.patients {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepo) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	return m.List(ctx, limit, offset)
}

func (m *mockRepo) ReassignPatientRefs(ctx context.Context, collection string, fromIDs []uuid.UUID, toID uuid.UUID) (int64, error) {
	if m.failOn == collection {
		return 0, fmt.Errorf("connection reset")
	}
	from := make(map[uuid.UUID]bool, len(fromIDs))
	for _, id := range fromIDs {
		from[id] = true
	}
	var n int64
	for _, r := range m.refs {
		if r.collection == collection && from[r.patientID] {
			r.patientID = toID
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) AddNote(ctx context.Context, n *Note) error {
	n.ID = uuid.New()
	m.notes[n.PatientID] = append(m.notes[n.PatientID], n)
	return nil
}

func (m *mockRepo) ListNotes(ctx context.Context, patientID uuid.UUID) ([]*Note, error) {
	return m.notes[patientID], nil
}

func TestMergeSurvivorIsEarliestCreated(t *testing.T) {
	repo := newMockRepo()
	old := repo.addPatient(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	young := repo.addPatient(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	res, err := NewMerger(repo, zerolog.Nop()).Merge(context.Background(), []uuid.UUID{young.ID, old.ID}, Composite{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.Survivor.ID != old.ID {
		t.Errorf("survivor = %s, want earliest-created %s", res.Survivor.ID, old.ID)
	}
	if _, ok := repo.patients[young.ID]; ok {
		t.Error("absorbed patient still present")
	}
	if res.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", res.Deleted)
	}
}

func TestMergeReassignsAllCollections(t *testing.T) {
	repo := newMockRepo()
	survivor := repo.addPatient(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	dup := repo.addPatient(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))

	repo.addRef(CollectionClaims, dup.ID)
	repo.addRef(CollectionClaims, dup.ID)
	repo.addRef(CollectionClaims, dup.ID)
	repo.addRef(CollectionNotes, dup.ID)

	res, err := NewMerger(repo, zerolog.Nop()).Merge(context.Background(), []uuid.UUID{survivor.ID, dup.ID}, Composite{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.Reassigned[CollectionClaims] != 3 {
		t.Errorf("claims reassigned = %d, want 3", res.Reassigned[CollectionClaims])
	}
	if res.Reassigned[CollectionNotes] != 1 {
		t.Errorf("notes reassigned = %d, want 1", res.Reassigned[CollectionNotes])
	}
	if res.Reassigned[CollectionInvoices] != 0 || res.Reassigned[CollectionPrescriptions] != 0 {
		t.Error("expected zero reassignments for empty collections")
	}
	if repo.countRefs(CollectionClaims, survivor.ID) != 3 {
		t.Error("claim refs do not point at the survivor")
	}
}

func TestMergeAppliesComposite(t *testing.T) {
	repo := newMockRepo()
	survivor := repo.addPatient(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	dup := repo.addPatient(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))

	name := "Moana"
	dn := "7654321"
	res, err := NewMerger(repo, zerolog.Nop()).Merge(context.Background(), []uuid.UUID{survivor.ID, dup.ID},
		Composite{FirstName: &name, DN: &dn})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.Survivor.FirstName != "Moana" || res.Survivor.DN != "7654321" {
		t.Errorf("composite not applied: %+v", res.Survivor)
	}
	if res.Survivor.LastName != "Tehaamoana" {
		t.Error("untouched field changed")
	}
}

func TestMergeRejectsInvalidCompositeDN(t *testing.T) {
	repo := newMockRepo()
	a := repo.addPatient(time.Now())
	b := repo.addPatient(time.Now())

	bad := "12345"
	if _, err := NewMerger(repo, zerolog.Nop()).Merge(context.Background(), []uuid.UUID{a.ID, b.ID}, Composite{DN: &bad}); err == nil {
		t.Fatal("expected DN validation error")
	}
}

func TestMergeNeedsTwoPatients(t *testing.T) {
	repo := newMockRepo()
	a := repo.addPatient(time.Now())
	if _, err := NewMerger(repo, zerolog.Nop()).Merge(context.Background(), []uuid.UUID{a.ID}, Composite{}); err == nil {
		t.Fatal("expected error for single-patient merge")
	}
}

func TestMergeUnknownPatientFails(t *testing.T) {
	repo := newMockRepo()
	a := repo.addPatient(time.Now())
	if _, err := NewMerger(repo, zerolog.Nop()).Merge(context.Background(), []uuid.UUID{a.ID, uuid.New()}, Composite{}); err == nil {
		t.Fatal("expected error for unknown patient id")
	}
}

func TestMergePartialFailureKeepsDuplicates(t *testing.T) {
	repo := newMockRepo()
	survivor := repo.addPatient(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	dup := repo.addPatient(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	repo.addRef(CollectionClaims, dup.ID)
	repo.addRef(CollectionPrescriptions, dup.ID)
	repo.failOn = CollectionPrescriptions

	_, err := NewMerger(repo, zerolog.Nop()).Merge(context.Background(), []uuid.UUID{survivor.ID, dup.ID}, Composite{})
	var partial *PartialMergeFailure
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialMergeFailure, got %v", err)
	}
	if partial.Failed != CollectionPrescriptions {
		t.Errorf("failed collection = %q, want prescriptions", partial.Failed)
	}
	if partial.Completed[CollectionClaims] != 1 {
		t.Errorf("completed claims = %d, want 1", partial.Completed[CollectionClaims])
	}
	if _, ok := repo.patients[dup.ID]; !ok {
		t.Error("duplicate deleted despite partial failure")
	}
}

func TestMergeRetryAfterPartialFailure(t *testing.T) {
	repo := newMockRepo()
	survivor := repo.addPatient(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	dup := repo.addPatient(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	repo.addRef(CollectionClaims, dup.ID)
	repo.addRef(CollectionNotes, dup.ID)
	repo.failOn = CollectionNotes

	merger := NewMerger(repo, zerolog.Nop())
	if _, err := merger.Merge(context.Background(), []uuid.UUID{survivor.ID, dup.ID}, Composite{}); err == nil {
		t.Fatal("expected partial failure on first attempt")
	}

	repo.failOn = ""
	res, err := merger.Merge(context.Background(), []uuid.UUID{survivor.ID, dup.ID}, Composite{})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	// Claims moved on the first pass, so the retry finds nothing there.
	if res.Reassigned[CollectionClaims] != 0 {
		t.Errorf("claims reassigned on retry = %d, want 0", res.Reassigned[CollectionClaims])
	}
	if res.Reassigned[CollectionNotes] != 1 {
		t.Errorf("notes reassigned on retry = %d, want 1", res.Reassigned[CollectionNotes])
	}
	if _, ok := repo.patients[dup.ID]; ok {
		t.Error("duplicate still present after successful retry")
	}
}

func TestSurvivorTieBreakIsStable(t *testing.T) {
	ts := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	a := &Patient{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CreatedAt: ts}
	b := &Patient{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), CreatedAt: ts}

	if got := resolveSurvivor([]*Patient{b, a}); got.ID != a.ID {
		t.Errorf("survivor = %s, want lexically smallest id on tie", got.ID)
	}
	if got := resolveSurvivor([]*Patient{a, b}); got.ID != a.ID {
		t.Error("tie-break depends on input order")
	}
}

func TestValidateDN(t *testing.T) {
	cases := []struct {
		dn    string
		valid bool
	}{
		{"1234567", true},
		{"0000000", true},
		{"123456", false},
		{"12345678", false},
		{"12a4567", false},
		{"", false},
		{" 1234567", false},
	}
	for _, tc := range cases {
		err := ValidateDN(tc.dn)
		if tc.valid && err != nil {
			t.Errorf("ValidateDN(%q) = %v, want nil", tc.dn, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("ValidateDN(%q) = nil, want error", tc.dn)
		}
	}
}

func TestMergeAppliesInsuredComposite(t *testing.T) {
	repo := newMockRepo()
	survivor := repo.addPatient(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	stale := "1111111"
	survivor.InsuredDN = &stale
	dup := repo.addPatient(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))

	insuredFirst := "Hina"
	insuredLast := "Teriipaia"
	insuredDN := "9999999"
	insuredBirth := time.Date(1975, 4, 12, 0, 0, 0, 0, time.UTC)
	res, err := NewMerger(repo, zerolog.Nop()).Merge(context.Background(), []uuid.UUID{survivor.ID, dup.ID},
		Composite{
			InsuredFirstName: &insuredFirst,
			InsuredLastName:  &insuredLast,
			InsuredDN:        &insuredDN,
			InsuredBirthDate: &insuredBirth,
		})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	s := res.Survivor
	if s.InsuredDN == nil || *s.InsuredDN != "9999999" {
		t.Errorf("insured DN = %v, want 9999999", s.InsuredDN)
	}
	if s.InsuredFirstName == nil || *s.InsuredFirstName != "Hina" {
		t.Errorf("insured first name = %v, want Hina", s.InsuredFirstName)
	}
	if s.InsuredLastName == nil || *s.InsuredLastName != "Teriipaia" {
		t.Errorf("insured last name = %v, want Teriipaia", s.InsuredLastName)
	}
	if s.InsuredBirthDate == nil || !s.InsuredBirthDate.Equal(insuredBirth) {
		t.Errorf("insured birth date = %v, want %v", s.InsuredBirthDate, insuredBirth)
	}
}

func TestMergeRejectsInvalidInsuredDN(t *testing.T) {
	repo := newMockRepo()
	a := repo.addPatient(time.Now())
	b := repo.addPatient(time.Now())

	bad := "99"
	if _, err := NewMerger(repo, zerolog.Nop()).Merge(context.Background(), []uuid.UUID{a.ID, b.ID}, Composite{InsuredDN: &bad}); err == nil {
		t.Fatal("expected insured DN validation error")
	}
}

func TestMergeThreePatients(t *testing.T) {
	repo := newMockRepo()
	survivor := repo.addPatient(time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC))
	dupA := repo.addPatient(time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC))
	dupB := repo.addPatient(time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC))

	repo.addRef(CollectionClaims, dupA.ID)
	repo.addRef(CollectionInvoices, dupB.ID)
	repo.addRef(CollectionNotes, dupB.ID)

	res, err := NewMerger(repo, zerolog.Nop()).Merge(context.Background(),
		[]uuid.UUID{dupB.ID, survivor.ID, dupA.ID}, Composite{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.Survivor.ID != survivor.ID {
		t.Errorf("survivor = %s, want %s", res.Survivor.ID, survivor.ID)
	}
	if res.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", res.Deleted)
	}
	if res.Reassigned[CollectionClaims] != 1 || res.Reassigned[CollectionInvoices] != 1 || res.Reassigned[CollectionNotes] != 1 {
		t.Errorf("reassigned = %v, want one row per collection", res.Reassigned)
	}
	for _, id := range []uuid.UUID{dupA.ID, dupB.ID} {
		if _, ok := repo.patients[id]; ok {
			t.Errorf("duplicate %s still present after merge", id)
		}
	}
	if repo.countRefs(CollectionClaims, survivor.ID) != 1 || repo.countRefs(CollectionInvoices, survivor.ID) != 1 {
		t.Error("reassigned rows do not point at the survivor")
	}
}
