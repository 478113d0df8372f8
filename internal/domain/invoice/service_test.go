package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type mockRepo struct {
	invoices map[uuid.UUID]*Invoice
}

func newMockRepo() *mockRepo {
	return &mockRepo{invoices: make(map[uuid.UUID]*Invoice)}
}

func (m *mockRepo) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	inv.CreatedAt = time.Now()
	for i, act := range inv.Acts {
		act.ID = uuid.New()
		act.InvoiceID = inv.ID
		act.Position = i + 1
	}
	m.invoices[inv.ID] = inv
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return inv, nil
}

func (m *mockRepo) Update(ctx context.Context, inv *Invoice) error {
	if _, ok := m.invoices[inv.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.invoices[inv.ID] = inv
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.invoices, id)
	return nil
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	var out []*Invoice
	for _, inv := range m.invoices {
		if inv.PatientID == patientID {
			out = append(out, inv)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*Invoice, int, error) {
	var out []*Invoice
	for _, inv := range m.invoices {
		out = append(out, inv)
	}
	return out, len(out), nil
}

func validAct() *OrthopedicAct {
	return &OrthopedicAct{
		LPPRCode:     "2140455",
		Label:        "semelles orthopediques",
		Quantity:     1,
		LPPRBaseRate: 2800,
		AppliedRate:  70,
		Regime:       RegimeMaladie,
		Total:        2800,
		InsurerShare: 1960,
		PatientShare: 840,
	}
}

func newTestService(repo Repository) *Service {
	return NewService(repo, nil, 5*time.Second)
}

func TestCreateSumsActTotals(t *testing.T) {
	svc := newTestService(newMockRepo())
	a1 := validAct()
	a2 := validAct()
	a2.Total, a2.InsurerShare, a2.PatientShare = 1200, 1200, 0
	a2.AppliedRate = 100
	a2.Regime = RegimeLongueMaladie

	inv := &Invoice{
		PatientID:   uuid.New(),
		InvoiceDate: time.Now(),
		Acts:        []*OrthopedicAct{a1, a2},
	}
	out, err := svc.Create(context.Background(), inv)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if out.TotalAmount != 4000 {
		t.Errorf("total = %v, want 4000", out.TotalAmount)
	}
}

func TestCreateRejectsShareDrift(t *testing.T) {
	svc := newTestService(newMockRepo())
	bad := validAct()
	bad.PatientShare = 800 // 1960 + 800 != 2800

	inv := &Invoice{
		PatientID:   uuid.New(),
		InvoiceDate: time.Now(),
		Acts:        []*OrthopedicAct{bad},
	}
	if _, err := svc.Create(context.Background(), inv); err == nil {
		t.Fatal("expected share validation error, got nil")
	}
}

func TestCreateAcceptsShareWithinTolerance(t *testing.T) {
	svc := newTestService(newMockRepo())
	act := validAct()
	act.InsurerShare = 1960.004
	act.PatientShare = 840.004

	inv := &Invoice{
		PatientID:   uuid.New(),
		InvoiceDate: time.Now(),
		Acts:        []*OrthopedicAct{act},
	}
	if _, err := svc.Create(context.Background(), inv); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMockRepo())

	zeroQty := validAct()
	zeroQty.Quantity = 0
	badRegime := validAct()
	badRegime.Regime = "invalide"
	badRate := validAct()
	badRate.Regime = RegimeMaternite
	badRate.AppliedRate = 70

	cases := []struct {
		name string
		inv  *Invoice
	}{
		{"missing patient", &Invoice{InvoiceDate: time.Now()}},
		{"missing date", &Invoice{PatientID: uuid.New()}},
		{"zero quantity", &Invoice{PatientID: uuid.New(), InvoiceDate: time.Now(), Acts: []*OrthopedicAct{zeroQty}}},
		{"unknown regime", &Invoice{PatientID: uuid.New(), InvoiceDate: time.Now(), Acts: []*OrthopedicAct{badRegime}}},
		{"rate not allowed for regime", &Invoice{PatientID: uuid.New(), InvoiceDate: time.Now(), Acts: []*OrthopedicAct{badRate}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.inv); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidateActsReportsAllViolations(t *testing.T) {
	bad1 := validAct()
	bad1.ID = uuid.New()
	bad1.PatientShare = 0
	good := validAct()
	bad2 := validAct()
	bad2.ID = uuid.New()
	bad2.InsurerShare = 0

	violations := ValidateActs([]*OrthopedicAct{bad1, good, bad2})
	if len(violations) != 2 {
		t.Fatalf("got %d violations, want 2", len(violations))
	}
	if violations[0].ActID != bad1.ID || violations[1].ActID != bad2.ID {
		t.Error("violations do not carry the offending act identities")
	}
}

func TestRecomputeBestEffortOverInvalidActs(t *testing.T) {
	bad := validAct()
	bad.PatientShare = 0
	good := validAct()

	inv := &Invoice{Acts: []*OrthopedicAct{bad, good}}
	Recompute(inv)
	if inv.TotalAmount != 5600 {
		t.Errorf("total = %v, want 5600 including the invalid act", inv.TotalAmount)
	}
}

func TestRecomputeEmptyActs(t *testing.T) {
	inv := &Invoice{TotalAmount: 123}
	Recompute(inv)
	if inv.TotalAmount != 0 {
		t.Errorf("total = %v, want 0", inv.TotalAmount)
	}
}

func TestGetRecomputesStaleTotal(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	inv := &Invoice{
		PatientID:   uuid.New(),
		InvoiceDate: time.Now(),
		Acts:        []*OrthopedicAct{validAct()},
	}
	if _, err := svc.Create(context.Background(), inv); err != nil {
		t.Fatalf("Create: %v", err)
	}
	repo.invoices[inv.ID].TotalAmount = 1

	out, err := svc.GetByID(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if out.TotalAmount != 2800 {
		t.Errorf("total = %v, want 2800 after recompute", out.TotalAmount)
	}
}

type mockDetacher struct {
	detached []uuid.UUID
}

func (m *mockDetacher) DetachInvoice(ctx context.Context, id uuid.UUID) error {
	m.detached = append(m.detached, id)
	return nil
}

func TestDeleteDetachesFromBatch(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	det := &mockDetacher{}
	svc.SetDetacher(det)

	inv := &Invoice{
		PatientID:   uuid.New(),
		InvoiceDate: time.Now(),
		Acts:        []*OrthopedicAct{validAct()},
	}
	if _, err := svc.Create(context.Background(), inv); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(context.Background(), inv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(det.detached) != 1 || det.detached[0] != inv.ID {
		t.Errorf("detacher not invoked: %v", det.detached)
	}
}

func TestCreateIgnoresClientBatchMembership(t *testing.T) {
	svc := newTestService(newMockRepo())

	stray := uuid.New()
	inv := &Invoice{
		PatientID:   uuid.New(),
		InvoiceDate: time.Now(),
		BordereauID: &stray,
		Acts:        []*OrthopedicAct{validAct()},
	}
	out, err := svc.Create(context.Background(), inv)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if out.BordereauID != nil {
		t.Errorf("bordereau_id = %v, want nil on create", *out.BordereauID)
	}
}
