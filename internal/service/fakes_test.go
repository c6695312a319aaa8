package service

import (
	"context"
	"sync"
	"time"

	"credit-service/internal/gateway"
	"credit-service/internal/models"
	"credit-service/internal/store"
)

// memStore is an in-memory stand-in for the Postgres store. It keeps the
// same contract the real store guarantees: one mutex plays the role of
// the row locks, so every ApplyEntry*, CompletePaymentTx and
// SettleMeetingTx call is an atomic check-and-write.
type memStore struct {
	mu              sync.Mutex
	accounts        map[int64]*models.Account
	transactions    []models.Transaction
	payments        map[int64]*models.Payment
	meetings        map[int64]*models.Meeting
	processedEvents map[string]bool
	nextTxID        int64
	nextPaymentID   int64
	nextMeetingID   int64
}

func newMemStore() *memStore {
	return &memStore{
		accounts:        make(map[int64]*models.Account),
		payments:        make(map[int64]*models.Payment),
		meetings:        make(map[int64]*models.Meeting),
		processedEvents: make(map[string]bool),
	}
}

func (m *memStore) GetOrCreateAccount(ctx context.Context, userID, signupBonus int64) (*models.Account, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if acct, ok := m.accounts[userID]; ok {
		copy := *acct
		return &copy, false, nil
	}

	acct := &models.Account{ID: userID, UserID: userID, CreatedAt: time.Now()}
	m.accounts[userID] = acct
	if signupBonus > 0 {
		if _, err := m.applyEntryLocked(store.EntryParams{
			UserID:      userID,
			Amount:      signupBonus,
			Kind:        models.KindBonus,
			Description: "Signup bonus",
		}); err != nil {
			return nil, false, err
		}
	}
	copy := *acct
	return &copy, true, nil
}

func (m *memStore) GetAccountByUserID(ctx context.Context, userID int64) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[userID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	copy := *acct
	return &copy, nil
}

// applyEntryLocked mirrors the store's single write path: balance
// precondition, balance write, lifetime counters and the transaction row
// all under the lock.
func (m *memStore) applyEntryLocked(p store.EntryParams) (*models.Transaction, error) {
	acct, ok := m.accounts[p.UserID]
	if !ok {
		acct = &models.Account{ID: p.UserID, UserID: p.UserID, CreatedAt: time.Now()}
		m.accounts[p.UserID] = acct
	}

	newBalance := acct.Balance + p.Amount
	if newBalance < 0 {
		return nil, models.ErrInsufficientBalance
	}

	acct.Balance = newBalance
	if p.Kind != models.KindRefund {
		if p.Amount > 0 {
			acct.LifetimeEarned += p.Amount
		} else {
			acct.LifetimeSpent += -p.Amount
		}
	}

	m.nextTxID++
	entry := models.Transaction{
		ID:            m.nextTxID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Kind:          p.Kind,
		BalanceAfter:  newBalance,
		Description:   p.Description,
		ReferenceType: p.ReferenceType,
		ReferenceID:   p.ReferenceID,
		CreatedAt:     time.Now(),
	}
	m.transactions = append(m.transactions, entry)
	return &entry, nil
}

func (m *memStore) ApplyEntry(ctx context.Context, p store.EntryParams) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyEntryLocked(p)
}

func (m *memStore) ApplyEntryPair(ctx context.Context, debit, credit store.EntryParams) (*models.Transaction, *models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[debit.UserID]
	if !ok || acct.Balance+debit.Amount < 0 {
		return nil, nil, models.ErrInsufficientBalance
	}

	debitEntry, err := m.applyEntryLocked(debit)
	if err != nil {
		return nil, nil, err
	}
	creditEntry, err := m.applyEntryLocked(credit)
	if err != nil {
		return nil, nil, err
	}
	return debitEntry, creditEntry, nil
}

func (m *memStore) ListTransactions(ctx context.Context, userID int64, f store.TransactionFilter) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Transaction
	for i := len(m.transactions) - 1; i >= 0; i-- {
		tx := m.transactions[i]
		if tx.UserID != userID {
			continue
		}
		if f.Kind != "" && tx.Kind != f.Kind {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (m *memStore) SumTransactions(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sum int64
	for _, tx := range m.transactions {
		if tx.UserID == userID {
			sum += tx.Amount
		}
	}
	return sum, nil
}

func (m *memStore) LatestTransaction(ctx context.Context, userID int64) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.transactions) - 1; i >= 0; i-- {
		if m.transactions[i].UserID == userID {
			tx := m.transactions[i]
			return &tx, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextPaymentID++
	payment.ID = m.nextPaymentID
	payment.CreatedAt = time.Now()
	copy := *payment
	m.payments[payment.ID] = &copy
	return nil
}

func (m *memStore) GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	copy := *p
	return &copy, nil
}

func (m *memStore) ListPaymentsForUser(ctx context.Context, userID int64) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Payment
	for _, p := range m.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) CompletePaymentTx(ctx context.Context, paymentID int64, gatewayRef string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[paymentID]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	if p.Status == models.PaymentStatusCompleted {
		copy := *p
		return &copy, nil
	}
	if p.Status != models.PaymentStatusPending {
		return nil, models.ErrInvalidTransition
	}

	refID := p.ID
	if _, err := m.applyEntryLocked(store.EntryParams{
		UserID:        p.UserID,
		Amount:        p.CreditsRequested,
		Kind:          models.KindPurchase,
		Description:   "Credit purchase",
		ReferenceType: models.ReferencePayment,
		ReferenceID:   &refID,
	}); err != nil {
		return nil, err
	}

	p.Status = models.PaymentStatusCompleted
	p.GatewayReference = gatewayRef
	copy := *p
	return &copy, nil
}

func (m *memStore) FailPayment(ctx context.Context, paymentID int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[paymentID]
	if !ok {
		return models.ErrPaymentNotFound
	}
	if p.Status == models.PaymentStatusFailed {
		return nil
	}
	if p.Status != models.PaymentStatusPending {
		return models.ErrInvalidTransition
	}
	p.Status = models.PaymentStatusFailed
	p.FailureReason = reason
	return nil
}

func (m *memStore) RefundPaymentTx(ctx context.Context, paymentID int64) (*models.Payment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[paymentID]
	if !ok {
		return nil, false, models.ErrPaymentNotFound
	}
	if p.Status == models.PaymentStatusRefunded {
		copy := *p
		return &copy, false, nil
	}
	if p.Status != models.PaymentStatusCompleted {
		return nil, false, models.ErrInvalidTransition
	}

	clawedBack := true
	refID := p.ID
	if _, err := m.applyEntryLocked(store.EntryParams{
		UserID:        p.UserID,
		Amount:        -p.CreditsRequested,
		Kind:          models.KindRefund,
		Description:   "Refund clawback",
		ReferenceType: models.ReferencePayment,
		ReferenceID:   &refID,
	}); err != nil {
		if err != models.ErrInsufficientBalance {
			return nil, false, err
		}
		clawedBack = false
	}

	p.Status = models.PaymentStatusRefunded
	copy := *p
	return &copy, clawedBack, nil
}

func (m *memStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processedEvents[eventID], nil
}

func (m *memStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processedEvents[eventID] = true
	return nil
}

func (m *memStore) CreateMeeting(ctx context.Context, meeting *models.Meeting) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextMeetingID++
	meeting.ID = m.nextMeetingID
	meeting.CreatedAt = time.Now()
	copy := *meeting
	m.meetings[meeting.ID] = &copy
	return nil
}

func (m *memStore) GetMeetingByID(ctx context.Context, id int64) (*models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mt, ok := m.meetings[id]
	if !ok {
		return nil, models.ErrMeetingNotFound
	}
	copy := *mt
	return &copy, nil
}

func (m *memStore) ListMeetingsForUser(ctx context.Context, userID int64, status string) ([]models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Meeting
	for _, mt := range m.meetings {
		if mt.RequesterID != userID && mt.ExpertID != userID {
			continue
		}
		if status != "" && mt.Status != status {
			continue
		}
		out = append(out, *mt)
	}
	return out, nil
}

func (m *memStore) UpdateMeetingStatus(ctx context.Context, meetingID int64, from []string, to string) (*models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mt, ok := m.meetings[meetingID]
	if !ok {
		return nil, models.ErrMeetingNotFound
	}
	for _, f := range from {
		if mt.Status == f {
			mt.Status = to
			copy := *mt
			return &copy, nil
		}
	}
	return nil, models.ErrInvalidTransition
}

func (m *memStore) SettleMeetingTx(ctx context.Context, meetingID, cost int64) (*models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mt, ok := m.meetings[meetingID]
	if !ok {
		return nil, models.ErrMeetingNotFound
	}
	if mt.Status == models.MeetingStatusCompleted {
		copy := *mt
		return &copy, nil
	}
	if mt.Status != models.MeetingStatusConfirmed {
		return nil, models.ErrInvalidTransition
	}

	settled := false
	for _, tx := range m.transactions {
		if tx.Kind == models.KindBookingSpend &&
			tx.ReferenceType == models.ReferenceMeeting &&
			tx.ReferenceID != nil && *tx.ReferenceID == meetingID {
			settled = true
			break
		}
	}

	if !settled {
		refID := meetingID
		if _, err := m.applyEntryLocked(store.EntryParams{
			UserID:        mt.RequesterID,
			Amount:        -cost,
			Kind:          models.KindBookingSpend,
			Description:   "Meeting settlement",
			ReferenceType: models.ReferenceMeeting,
			ReferenceID:   &refID,
		}); err != nil {
			return nil, err
		}
		if _, err := m.applyEntryLocked(store.EntryParams{
			UserID:        mt.ExpertID,
			Amount:        cost,
			Kind:          models.KindBookingEarn,
			Description:   "Meeting settlement",
			ReferenceType: models.ReferenceMeeting,
			ReferenceID:   &refID,
		}); err != nil {
			return nil, err
		}
	}

	mt.Status = models.MeetingStatusCompleted
	copy := *mt
	return &copy, nil
}

// noopNotifier swallows events and counts publishes by type.
type noopNotifier struct {
	mu        sync.Mutex
	published map[string]int
}

func newNoopNotifier() *noopNotifier {
	return &noopNotifier{published: make(map[string]int)}
}

func (n *noopNotifier) record(eventType string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published[eventType]++
}

func (n *noopNotifier) count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.published[eventType]
}

func (n *noopNotifier) PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	n.record(event.EventType)
	return nil
}

func (n *noopNotifier) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	n.record(event.EventType)
	return nil
}

func (n *noopNotifier) PublishPaymentRefunded(ctx context.Context, event *models.PaymentRefundedEvent) error {
	n.record(event.EventType)
	return nil
}

func (n *noopNotifier) PublishMeetingRequested(ctx context.Context, event *models.MeetingRequestedEvent) error {
	n.record(event.EventType)
	return nil
}

func (n *noopNotifier) PublishMeetingConfirmed(ctx context.Context, event *models.MeetingConfirmedEvent) error {
	n.record(event.EventType)
	return nil
}

func (n *noopNotifier) PublishMeetingCancelled(ctx context.Context, event *models.MeetingCancelledEvent) error {
	n.record(event.EventType)
	return nil
}

func (n *noopNotifier) PublishMeetingCompleted(ctx context.Context, event *models.MeetingCompletedEvent) error {
	n.record(event.EventType)
	return nil
}

func (n *noopNotifier) PublishCreditsAdjusted(ctx context.Context, event *models.CreditsAdjustedEvent) error {
	n.record(event.EventType)
	return nil
}

// stubGateway approves or declines every charge according to its fields.
type stubGateway struct {
	declineErr error
	refundErr  error
	charges    int
	refunds    int
}

func (g *stubGateway) AuthorizeCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	g.charges++
	if g.declineErr != nil {
		return nil, g.declineErr
	}
	return &gateway.ChargeResult{Reference: "ch_stub_1"}, nil
}

func (g *stubGateway) RefundCharge(ctx context.Context, reference string, amountCents int64) error {
	g.refunds++
	return g.refundErr
}

// fakeLocker grants every lock and records the traffic.
type fakeLocker struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquired++
	return "token", true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released++
	return nil
}
