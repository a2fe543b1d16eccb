package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/escrow-ledger/internal/config"
	"github.com/javajoker/escrow-ledger/internal/database"
	"github.com/javajoker/escrow-ledger/internal/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType, key string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return p.err
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type fakeGateway struct {
	confirmation *GatewayConfirmation
	confirmErr   error
	refundErr    error
	refunds      []decimal.Decimal
}

func (g *fakeGateway) Confirm(ctx context.Context, reference string) (*GatewayConfirmation, error) {
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	return g.confirmation, nil
}

func (g *fakeGateway) Refund(ctx context.Context, reference string, amount decimal.Decimal, reason string) error {
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, amount)
	return nil
}

var errGatewayDown = errors.New("gateway unavailable")

// ledgerSuite gives every test a fresh in-memory database, a fixed clock and
// the full set of ledger services.
type ledgerSuite struct {
	suite.Suite
	ctx     context.Context
	db      *gorm.DB
	cfg     *config.Config
	clock   time.Time
	events  *recordingPublisher
	gateway *fakeGateway
	adminID uuid.UUID

	fees      *FeeService
	escrow    *EscrowService
	release   *ReleaseService
	clearance *ClearanceService
	cashouts  *CashoutService
	disputes  *DisputeService
	wallets   *WalletService
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Payment: config.PaymentConfig{
			PlatformFeePercent: 10,
			MinimumCashout:     10,
			Currency:           "USD",
		},
		Ledger: config.LedgerConfig{
			SystemActorID:    uuid.MustParse(config.DefaultSystemActorID),
			ClearanceDays:    7,
			ClearanceByType:  map[string]int{},
			ExportMaxRecords: 1000,
		},
		Scheduler: config.SchedulerConfig{
			WorkerPoolSize: 4,
			MaxAttempts:    2,
		},
		Storage: config.StorageConfig{ExportsFolder: "exports"},
	}
}

func (s *ledgerSuite) SetupTest() {
	db, err := database.OpenInMemory()
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.db = db
	s.cfg = testConfig()
	s.clock = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.events = &recordingPublisher{}
	s.gateway = &fakeGateway{}
	s.adminID = uuid.New()

	collaborations := NewCollaborationReader(db)
	s.fees = NewFeeService(db, s.cfg)
	s.fees.now = s.now
	s.escrow = NewEscrowService(db, s.cfg, s.gateway, s.events)
	s.escrow.now = s.now
	s.disputes = NewDisputeService(db, s.cfg, collaborations, s.events)
	s.disputes.now = s.now
	s.release = NewReleaseService(db, s.cfg, s.fees, collaborations, s.disputes, s.events)
	s.release.now = s.now
	s.clearance = NewClearanceService(db, s.cfg, s.events)
	s.clearance.now = s.now
	s.clearance.backoff = time.Millisecond
	s.cashouts = NewCashoutService(db, s.cfg, s.fees, s.events)
	s.cashouts.now = s.now
	s.wallets = NewWalletService(db, s.cfg, s.events)
	s.wallets.now = s.now
}

func (s *ledgerSuite) TearDownTest() {
	database.Close(s.db)
}

func (s *ledgerSuite) now() time.Time {
	return s.clock
}

func (s *ledgerSuite) advance(d time.Duration) {
	s.clock = s.clock.Add(d)
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func (s *ledgerSuite) createCollaboration(brandID, creatorID uuid.UUID, status models.CollaborationStatus) *models.Collaboration {
	collaboration := &models.Collaboration{
		BrandID:   brandID,
		CreatorID: creatorID,
		Title:     "Spring campaign",
		Status:    status,
	}
	s.Require().NoError(s.db.Create(collaboration).Error)
	return collaboration
}

func (s *ledgerSuite) createPayment(collaboration *models.Collaboration, amount string) *models.Payment {
	payment := &models.Payment{
		BrandID:          collaboration.BrandID,
		CollaborationID:  &collaboration.ID,
		PaymentType:      models.PaymentTypeCollaboration,
		Amount:           dec(amount),
		Currency:         "USD",
		PaymentMethod:    "bank_transfer",
		GatewayReference: "pi_" + uuid.NewString(),
		Status:           models.PaymentStatusPending,
		EscrowStatus:     models.EscrowStatusNone,
	}
	s.Require().NoError(s.db.Create(payment).Error)
	return payment
}

// escrowedCollaboration creates a completed collaboration whose payment is
// verified and held in escrow.
func (s *ledgerSuite) escrowedCollaboration(creatorID uuid.UUID, amount string) (*models.Collaboration, *models.Payment) {
	collaboration := s.createCollaboration(uuid.New(), creatorID, models.CollaborationStatusCompleted)
	payment := s.createPayment(collaboration, amount)

	verified, err := s.escrow.VerifyPayment(s.ctx, payment.ID, &s.adminID, &VerifyPaymentRequest{
		Amount: dec(amount),
		Method: "bank_transfer",
	})
	s.Require().NoError(err)
	return collaboration, verified
}

// availableFunds releases and clears a collaboration so its net amount is
// available for cashout.
func (s *ledgerSuite) availableFunds(creatorID uuid.UUID, amount string) *models.WalletTransaction {
	collaboration, _ := s.escrowedCollaboration(creatorID, amount)

	transaction, err := s.release.ReleaseEscrowToWallet(s.ctx, collaboration.ID, nil)
	s.Require().NoError(err)

	s.advance(8 * 24 * time.Hour)
	_, err = s.clearance.ClearPendingTransactions(s.ctx)
	s.Require().NoError(err)

	return s.reloadTransaction(transaction.ID)
}

func (s *ledgerSuite) reloadWallet(id uuid.UUID) *models.Wallet {
	var wallet models.Wallet
	s.Require().NoError(s.db.First(&wallet, "id = ?", id).Error)
	return &wallet
}

func (s *ledgerSuite) reloadTransaction(id uuid.UUID) *models.WalletTransaction {
	var transaction models.WalletTransaction
	s.Require().NoError(s.db.First(&transaction, "id = ?", id).Error)
	return &transaction
}

func (s *ledgerSuite) reloadPayment(id uuid.UUID) *models.Payment {
	var payment models.Payment
	s.Require().NoError(s.db.First(&payment, "id = ?", id).Error)
	return &payment
}

func (s *ledgerSuite) assertDecimal(expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	s.True(dec(expected).Equal(actual), "expected %s, got %s %v", expected, actual.String(), msgAndArgs)
}

func (s *ledgerSuite) assertBalanced(walletID uuid.UUID) {
	reconciliation, err := s.wallets.ReconcileWallet(s.ctx, walletID)
	s.Require().NoError(err)
	s.True(reconciliation.Balanced, "wallet %s is out of balance: %+v", walletID, reconciliation)
}
