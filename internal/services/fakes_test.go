package services

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rentora/backend/internal/models"
	"github.com/rentora/backend/internal/repositories"
	"github.com/rentora/backend/internal/stripe"
)

// In-memory stores mirroring the repository semantics, including the
// lock-scoped admission checks, so concurrency invariants can be exercised
// without a database.

type fakeListingStore struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*models.Listing
}

func newFakeListingStore() *fakeListingStore {
	return &fakeListingStore{listings: make(map[uuid.UUID]*models.Listing)}
}

func (f *fakeListingStore) Create(_ context.Context, l *models.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.ID = uuid.New()
	l.CreatedAt = time.Now()
	l.UpdatedAt = l.CreatedAt
	cp := *l
	f.listings[l.ID] = &cp
	return nil
}

func (f *fakeListingStore) GetByID(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *l
	return &cp, nil
}

func (f *fakeListingStore) List(_ context.Context, fl repositories.ListingFilter) ([]models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Listing
	for _, l := range f.listings {
		if fl.OwnerUserID != nil && l.OwnerUserID != *fl.OwnerUserID {
			continue
		}
		if fl.Status != nil && l.Status != *fl.Status {
			continue
		}
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeListingStore) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return pgx.ErrNoRows
	}
	l.Status = status
	l.UpdatedAt = time.Now()
	return nil
}

func (f *fakeListingStore) UpdateExpiresAt(_ context.Context, id uuid.UUID, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return pgx.ErrNoRows
	}
	l.ExpiresAt = expiresAt
	l.UpdatedAt = time.Now()
	return nil
}

func (f *fakeListingStore) GetExpiredActive(_ context.Context) ([]models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Listing
	now := time.Now()
	for _, l := range f.listings {
		if l.Status == models.ListingStatusActive && l.ExpiresAt != nil && l.ExpiresAt.Before(now) {
			out = append(out, *l)
		}
	}
	return out, nil
}

type fakeTransactionStore struct {
	mu  sync.Mutex
	txs map[uuid.UUID]*models.RentalTransaction
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{txs: make(map[uuid.UUID]*models.RentalTransaction)}
}

func (f *fakeTransactionStore) CreateIfNoActive(_ context.Context, t *models.RentalTransaction) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.txs {
		if existing.ListingID == t.ListingID && existing.SeekerUserID == t.SeekerUserID &&
			!models.IsTerminalTxStatus(existing.Status) {
			return false, nil
		}
	}
	t.ID = uuid.New()
	t.StartedAt = time.Now()
	t.CreatedAt = t.StartedAt
	t.UpdatedAt = t.StartedAt
	cp := *t
	f.txs[t.ID] = &cp
	return true, nil
}

func (f *fakeTransactionStore) GetByID(_ context.Context, id uuid.UUID) (*models.RentalTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.txs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTransactionStore) List(_ context.Context, fl repositories.TransactionFilter) ([]models.RentalTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RentalTransaction
	for _, t := range f.txs {
		if fl.ListingID != nil && t.ListingID != *fl.ListingID {
			continue
		}
		if fl.SeekerUserID != nil && t.SeekerUserID != *fl.SeekerUserID {
			continue
		}
		if fl.LandlordUserID != nil && t.LandlordUserID != *fl.LandlordUserID {
			continue
		}
		if fl.Status != nil && t.Status != *fl.Status {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTransactionStore) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.txs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	if models.IsTerminalTxStatus(status) {
		now := time.Now()
		t.CompletedAt = &now
	}
	return nil
}

func (f *fakeTransactionStore) GetTimedOut(_ context.Context, status string, timeoutSeconds int) ([]models.RentalTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-time.Duration(timeoutSeconds) * time.Second)
	var out []models.RentalTransaction
	for _, t := range f.txs {
		if t.Status == status && t.UpdatedAt.Before(cutoff) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTransactionStore) setUpdatedAt(id uuid.UUID, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.txs[id]; ok {
		t.UpdatedAt = at
	}
}

type fakeContractStore struct {
	mu        sync.Mutex
	contracts map[uuid.UUID]*models.Contract
	sigs      map[uuid.UUID][]models.Signature
}

func newFakeContractStore() *fakeContractStore {
	return &fakeContractStore{
		contracts: make(map[uuid.UUID]*models.Contract),
		sigs:      make(map[uuid.UUID][]models.Signature),
	}
}

func (f *fakeContractStore) Create(_ context.Context, c *models.Contract) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	f.contracts[c.ID] = &cp
	return nil
}

func (f *fakeContractStore) GetByID(_ context.Context, id uuid.UUID) (*models.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contracts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f *fakeContractStore) GetLatest(_ context.Context, txID uuid.UUID) (*models.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.Contract
	for _, c := range f.contracts {
		if c.TransactionID != txID {
			continue
		}
		if latest == nil || c.Version > latest.Version {
			latest = c
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeContractStore) ListByTransaction(_ context.Context, txID uuid.UUID) ([]models.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Contract
	for _, c := range f.contracts {
		if c.TransactionID == txID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeContractStore) GetMaxVersion(_ context.Context, txID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, c := range f.contracts {
		if c.TransactionID == txID && c.Version > max {
			max = c.Version
		}
	}
	return max, nil
}

func (f *fakeContractStore) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contracts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	return nil
}

func (f *fakeContractStore) CreateSignature(_ context.Context, s *models.Signature) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.sigs[s.ContractID] {
		if existing.UserID == s.UserID {
			return repositories.ErrDuplicateSignature
		}
	}
	s.ID = uuid.New()
	s.SignedAt = time.Now()
	f.sigs[s.ContractID] = append(f.sigs[s.ContractID], *s)
	return nil
}

func (f *fakeContractStore) ListSignatures(_ context.Context, contractID uuid.UUID) ([]models.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Signature(nil), f.sigs[contractID]...), nil
}

type fakePaymentStore struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*models.Payment
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{payments: make(map[uuid.UUID]*models.Payment)}
}

func (f *fakePaymentStore) Create(_ context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakePaymentStore) GetByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (f *fakePaymentStore) GetBySessionRef(_ context.Context, ref string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ProviderSessionRef != nil && *p.ProviderSessionRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakePaymentStore) GetByIntentRef(_ context.Context, ref string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ProviderIntentRef != nil && *p.ProviderIntentRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakePaymentStore) ListByTransaction(_ context.Context, txID uuid.UUID) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if p.TransactionID == txID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.Status = status
	return nil
}

func (f *fakePaymentStore) UpdateStatusIfPending(_ context.Context, id uuid.UUID, status string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return false, nil
	}
	if p.Status != models.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	return true, nil
}

func (f *fakePaymentStore) SetSessionRefs(_ context.Context, id uuid.UUID, sessionRef, intentRef *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if sessionRef != nil {
		p.ProviderSessionRef = sessionRef
	}
	if intentRef != nil {
		p.ProviderIntentRef = intentRef
	}
	return nil
}

func (f *fakePaymentStore) SetIntentRef(_ context.Context, id uuid.UUID, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if p.ProviderIntentRef == nil {
		p.ProviderIntentRef = &ref
	}
	return nil
}

func (f *fakePaymentStore) SetReceiptRef(_ context.Context, id uuid.UUID, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.ReceiptRef = &ref
	return nil
}

func (f *fakePaymentStore) HasActiveDeposit(_ context.Context, txID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.TransactionID == txID && p.Type == models.PaymentTypeDeposit && p.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

type fakeViewingStore struct {
	mu       sync.Mutex
	slots    map[uuid.UUID]*models.ViewingSlot
	requests map[uuid.UUID]*models.ViewingRequest
}

func newFakeViewingStore() *fakeViewingStore {
	return &fakeViewingStore{
		slots:    make(map[uuid.UUID]*models.ViewingSlot),
		requests: make(map[uuid.UUID]*models.ViewingRequest),
	}
}

func (f *fakeViewingStore) CreateSlot(_ context.Context, s *models.ViewingSlot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	f.slots[s.ID] = &cp
	return nil
}

func (f *fakeViewingStore) GetSlot(_ context.Context, id uuid.UUID) (*models.ViewingSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeViewingStore) ListSlotsByListing(_ context.Context, listingID uuid.UUID) ([]models.ViewingSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ViewingSlot
	for _, s := range f.slots {
		if s.ListingID == listingID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeViewingStore) activeCountLocked(slotID uuid.UUID) int {
	n := 0
	for _, r := range f.requests {
		if r.SlotID == slotID && r.IsActiveRequest() {
			n++
		}
	}
	return n
}

func (f *fakeViewingStore) CreateRequestGuarded(_ context.Context, req *models.ViewingRequest, capacity int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activeCountLocked(req.SlotID) >= capacity {
		return false, nil
	}
	req.ID = uuid.New()
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	cp := *req
	f.requests[req.ID] = &cp
	return true, nil
}

func (f *fakeViewingStore) ConfirmGuarded(_ context.Context, requestID, slotID uuid.UUID, capacity int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	confirmed := 0
	for _, r := range f.requests {
		if r.SlotID == slotID && r.Status == models.ViewingStatusConfirmed && r.ID != requestID {
			confirmed++
		}
	}
	if confirmed >= capacity {
		return false, nil
	}
	r, ok := f.requests[requestID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	r.Status = models.ViewingStatusConfirmed
	r.CancelledBy = nil
	return true, nil
}

func (f *fakeViewingStore) GetRequest(_ context.Context, id uuid.UUID) (*models.ViewingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (f *fakeViewingStore) UpdateRequestStatus(_ context.Context, id uuid.UUID, status string, cancelledBy *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return pgx.ErrNoRows
	}
	r.Status = status
	r.CancelledBy = cancelledBy
	return nil
}

func (f *fakeViewingStore) ListRequests(_ context.Context, fl repositories.ViewingRequestFilter) ([]models.ViewingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ViewingRequest
	for _, r := range f.requests {
		if fl.SlotID != nil && r.SlotID != *fl.SlotID {
			continue
		}
		if fl.SeekerID != nil && r.SeekerID != *fl.SeekerID {
			continue
		}
		if fl.Status != nil && r.Status != *fl.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeViewingStore) CountActiveRequests(_ context.Context, slotID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeCountLocked(slotID), nil
}

func (f *fakeViewingStore) UpdateSlotGuarded(_ context.Context, s *models.ViewingSlot) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.Capacity < f.activeCountLocked(s.ID) {
		return false, nil
	}
	existing, ok := f.slots[s.ID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	*existing = *s
	return true, nil
}

func (f *fakeViewingStore) DeleteSlotGuarded(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activeCountLocked(id) > 0 {
		return false, nil
	}
	delete(f.slots, id)
	return true, nil
}

func (f *fakeViewingStore) SweepPastRequested(_ context.Context) ([]models.ViewingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	system := models.CancelledBySystem
	now := time.Now()
	var out []models.ViewingRequest
	for _, r := range f.requests {
		if r.Status == models.ViewingStatusRequested && r.ScheduledAt.Before(now) {
			r.Status = models.ViewingStatusCancelled
			r.CancelledBy = &system
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (f *fakeAudit) Log(_ context.Context, entry models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

type notification struct {
	UserID    uuid.UUID
	EventType string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (f *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, eventType string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification{UserID: userID, EventType: eventType})
}

func (f *fakeNotifier) countOf(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.EventType == eventType {
			n++
		}
	}
	return n
}

func (f *fakeNotifier) recipientsOf(eventType string) []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, s := range f.sent {
		if s.EventType == eventType {
			ids = append(ids, s.UserID)
		}
	}
	return ids
}

type fakeCheckout struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (f *fakeCheckout) CreateCheckoutSession(_ context.Context, p stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, context.DeadlineExceeded
	}
	return &stripe.CheckoutSession{
		ID:            "cs_test_" + p.Metadata["payment_id"],
		URL:           "https://checkout.example/s/" + p.Metadata["payment_id"],
		PaymentIntent: "pi_test_" + p.Metadata["payment_id"],
	}, nil
}

type memArtifacts struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{blobs: make(map[string][]byte)}
}

func (m *memArtifacts) Put(ref string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[ref] = data
	return nil
}

func (m *memArtifacts) Exists(ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[ref]
	return ok, nil
}

func (m *memArtifacts) OpenStream(ref string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[ref]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemDeduper() *memDeduper {
	return &memDeduper{seen: make(map[string]bool)}
}

func (m *memDeduper) Seen(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[eventID], nil
}

func (m *memDeduper) Mark(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[eventID] = true
	return nil
}
