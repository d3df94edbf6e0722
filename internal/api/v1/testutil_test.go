package v1_test

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veilgate/veilgate/internal/domain"
	"github.com/veilgate/veilgate/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers — inject tenant/user/role into context for DoCtx
// ---------------------------------------------------------------------------

func tenantCtx(tenantID uuid.UUID) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyTenantID, tenantID)
	return ctx
}

func roleCtx(tenantID uuid.UUID, role string) context.Context {
	ctx := tenantCtx(tenantID)
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, uuid.New())
	ctx = context.WithValue(ctx, middleware.ContextKeyUserRole, role)
	return ctx
}

func ownerCtx(tenantID uuid.UUID) context.Context {
	return roleCtx(tenantID, middleware.RoleOwner)
}

func reviewerCtx(tenantID uuid.UUID) context.Context {
	return roleCtx(tenantID, middleware.RoleReviewer)
}

func adminCtx() context.Context {
	return roleCtx(uuid.Nil, middleware.RoleAdmin)
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	tenants  domain.TenantRepository
	users    domain.UserRepository
	botUsers domain.BotUserRepository
	flags    domain.FlagRepository
	cards    domain.CardRepository
	ledger   domain.LedgerRepository
	receipts domain.ReceiptRepository
	audit    domain.AuditRepository
}

func (m *mockDataStore) Tenants() domain.TenantRepository   { return m.tenants }
func (m *mockDataStore) Users() domain.UserRepository       { return m.users }
func (m *mockDataStore) BotUsers() domain.BotUserRepository { return m.botUsers }
func (m *mockDataStore) Flags() domain.FlagRepository       { return m.flags }
func (m *mockDataStore) Cards() domain.CardRepository       { return m.cards }
func (m *mockDataStore) Ledger() domain.LedgerRepository    { return m.ledger }
func (m *mockDataStore) Receipts() domain.ReceiptRepository { return m.receipts }
func (m *mockDataStore) Audit() domain.AuditRepository      { return m.audit }

// ---------------------------------------------------------------------------
// Mock TenantRepository
// ---------------------------------------------------------------------------

type mockTenantRepo struct {
	createFunc        func(ctx context.Context, t *domain.Tenant, flags []*domain.FeatureFlag, configs []*domain.TenantConfig) error
	getByIDFunc       func(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	getByBotTokenFunc func(ctx context.Context, token string) (*domain.Tenant, error)
	updateFunc        func(ctx context.Context, t *domain.Tenant) error
	updateStatusFunc  func(ctx context.Context, id uuid.UUID, status domain.TenantStatus) error
	listPaginatedFunc func(ctx context.Context, limit, offset int) ([]*domain.Tenant, error)
}

func (m *mockTenantRepo) Create(ctx context.Context, t *domain.Tenant, flags []*domain.FeatureFlag, configs []*domain.TenantConfig) error {
	return m.createFunc(ctx, t, flags, configs)
}

func (m *mockTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockTenantRepo) GetByBotToken(ctx context.Context, token string) (*domain.Tenant, error) {
	return m.getByBotTokenFunc(ctx, token)
}

func (m *mockTenantRepo) Update(ctx context.Context, t *domain.Tenant) error {
	return m.updateFunc(ctx, t)
}

func (m *mockTenantRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TenantStatus) error {
	return m.updateStatusFunc(ctx, id, status)
}

func (m *mockTenantRepo) ListPaginated(ctx context.Context, limit, offset int) ([]*domain.Tenant, error) {
	return m.listPaginatedFunc(ctx, limit, offset)
}

// ---------------------------------------------------------------------------
// Mock CardRepository
// ---------------------------------------------------------------------------

type mockCardRepo struct {
	createFunc        func(ctx context.Context, c *domain.PaymentCard) error
	getByIDFunc       func(ctx context.Context, tenantID, id uuid.UUID) (*domain.PaymentCard, error)
	listActiveFunc    func(ctx context.Context, tenantID uuid.UUID) ([]*domain.PaymentCard, error)
	listFunc          func(ctx context.Context, tenantID uuid.UUID) ([]*domain.PaymentCard, error)
	updateFunc        func(ctx context.Context, c *domain.PaymentCard) error
	setActiveFunc     func(ctx context.Context, tenantID, id uuid.UUID, active bool) error
	recordUseFunc     func(ctx context.Context, tenantID, id uuid.UUID) error
	recordOutcomeFunc func(ctx context.Context, tenantID, id uuid.UUID, success bool) error
}

func (m *mockCardRepo) Create(ctx context.Context, c *domain.PaymentCard) error {
	return m.createFunc(ctx, c)
}

func (m *mockCardRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.PaymentCard, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockCardRepo) ListActive(ctx context.Context, tenantID uuid.UUID) ([]*domain.PaymentCard, error) {
	return m.listActiveFunc(ctx, tenantID)
}

func (m *mockCardRepo) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.PaymentCard, error) {
	return m.listFunc(ctx, tenantID)
}

func (m *mockCardRepo) Update(ctx context.Context, c *domain.PaymentCard) error {
	return m.updateFunc(ctx, c)
}

func (m *mockCardRepo) SetActive(ctx context.Context, tenantID, id uuid.UUID, active bool) error {
	return m.setActiveFunc(ctx, tenantID, id, active)
}

func (m *mockCardRepo) RecordUse(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.recordUseFunc(ctx, tenantID, id)
}

func (m *mockCardRepo) RecordOutcome(ctx context.Context, tenantID, id uuid.UUID, success bool) error {
	return m.recordOutcomeFunc(ctx, tenantID, id, success)
}

// ---------------------------------------------------------------------------
// Mock BotUserRepository
// ---------------------------------------------------------------------------

type mockBotUserRepo struct {
	createFunc          func(ctx context.Context, u *domain.BotUser) error
	getByIDFunc         func(ctx context.Context, tenantID, id uuid.UUID) (*domain.BotUser, error)
	getByExternalIDFunc func(ctx context.Context, tenantID uuid.UUID, externalID int64) (*domain.BotUser, error)
	updateFunc          func(ctx context.Context, u *domain.BotUser) error
	listPaginatedFunc   func(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.BotUser, error)
	countByTenantFunc   func(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

func (m *mockBotUserRepo) Create(ctx context.Context, u *domain.BotUser) error {
	return m.createFunc(ctx, u)
}

func (m *mockBotUserRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.BotUser, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockBotUserRepo) GetByExternalID(ctx context.Context, tenantID uuid.UUID, externalID int64) (*domain.BotUser, error) {
	return m.getByExternalIDFunc(ctx, tenantID, externalID)
}

func (m *mockBotUserRepo) Update(ctx context.Context, u *domain.BotUser) error {
	return m.updateFunc(ctx, u)
}

func (m *mockBotUserRepo) ListPaginated(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.BotUser, error) {
	return m.listPaginatedFunc(ctx, tenantID, limit, offset)
}

func (m *mockBotUserRepo) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return m.countByTenantFunc(ctx, tenantID)
}

// ---------------------------------------------------------------------------
// Mock ReceiptRepository
// ---------------------------------------------------------------------------

type mockReceiptRepo struct {
	createFunc             func(ctx context.Context, r *domain.Receipt) error
	getByIDFunc            func(ctx context.Context, tenantID, id uuid.UUID) (*domain.Receipt, error)
	getByTrackingCodeFunc  func(ctx context.Context, tenantID uuid.UUID, code string) (*domain.Receipt, error)
	getByAuthorityFunc     func(ctx context.Context, authority string) (*domain.Receipt, error)
	listByStatusFunc       func(ctx context.Context, tenantID uuid.UUID, status domain.ReceiptStatus, limit, offset int) ([]*domain.Receipt, error)
	approveFunc            func(ctx context.Context, tenantID, id, reviewerID uuid.UUID, note string) (*domain.Receipt, *domain.LedgerEntry, error)
	rejectFunc             func(ctx context.Context, tenantID, id, reviewerID uuid.UUID, note string) (*domain.Receipt, error)
	setNeedsReconcileFunc  func(ctx context.Context, tenantID, id uuid.UUID, needs bool) error
	listNeedsReconcileFunc func(ctx context.Context, limit int) ([]*domain.Receipt, error)
}

func (m *mockReceiptRepo) Create(ctx context.Context, r *domain.Receipt) error {
	return m.createFunc(ctx, r)
}

func (m *mockReceiptRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Receipt, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockReceiptRepo) GetByTrackingCode(ctx context.Context, tenantID uuid.UUID, code string) (*domain.Receipt, error) {
	return m.getByTrackingCodeFunc(ctx, tenantID, code)
}

func (m *mockReceiptRepo) GetByAuthority(ctx context.Context, authority string) (*domain.Receipt, error) {
	return m.getByAuthorityFunc(ctx, authority)
}

func (m *mockReceiptRepo) ListByStatus(ctx context.Context, tenantID uuid.UUID, status domain.ReceiptStatus, limit, offset int) ([]*domain.Receipt, error) {
	return m.listByStatusFunc(ctx, tenantID, status, limit, offset)
}

func (m *mockReceiptRepo) Approve(ctx context.Context, tenantID, id, reviewerID uuid.UUID, note string) (*domain.Receipt, *domain.LedgerEntry, error) {
	return m.approveFunc(ctx, tenantID, id, reviewerID, note)
}

func (m *mockReceiptRepo) Reject(ctx context.Context, tenantID, id, reviewerID uuid.UUID, note string) (*domain.Receipt, error) {
	return m.rejectFunc(ctx, tenantID, id, reviewerID, note)
}

func (m *mockReceiptRepo) SetNeedsReconcile(ctx context.Context, tenantID, id uuid.UUID, needs bool) error {
	return m.setNeedsReconcileFunc(ctx, tenantID, id, needs)
}

func (m *mockReceiptRepo) ListNeedsReconcile(ctx context.Context, limit int) ([]*domain.Receipt, error) {
	return m.listNeedsReconcileFunc(ctx, limit)
}

// ---------------------------------------------------------------------------
// Mock AuditRepository
// ---------------------------------------------------------------------------

type mockAuditRepo struct {
	recordFunc       func(ctx context.Context, entry *domain.AuditEntry) error
	listByTenantFunc func(ctx context.Context, targetTenantID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error)
	listByActorFunc  func(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error)
}

func (m *mockAuditRepo) Record(ctx context.Context, entry *domain.AuditEntry) error {
	return m.recordFunc(ctx, entry)
}

func (m *mockAuditRepo) ListByTenant(ctx context.Context, targetTenantID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error) {
	return m.listByTenantFunc(ctx, targetTenantID, limit, offset)
}

func (m *mockAuditRepo) ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error) {
	return m.listByActorFunc(ctx, actorID, limit, offset)
}

// ---------------------------------------------------------------------------
// Mock services
// ---------------------------------------------------------------------------

type mockAuthService struct {
	registerFunc       func(ctx context.Context, tenantID uuid.UUID, email, password, name string) (*domain.User, error)
	loginFunc          func(ctx context.Context, tenantID uuid.UUID, email, password string) (string, string, error)
	refreshTokenFunc   func(ctx context.Context, refreshToken string) (string, error)
	generateAPIKeyFunc func(ctx context.Context, tenantID, userID uuid.UUID, name string, expiresAt *time.Time) (string, *domain.APIKey, error)
}

func (m *mockAuthService) Register(ctx context.Context, tenantID uuid.UUID, email, password, name string) (*domain.User, error) {
	return m.registerFunc(ctx, tenantID, email, password, name)
}

func (m *mockAuthService) Login(ctx context.Context, tenantID uuid.UUID, email, password string) (string, string, error) {
	return m.loginFunc(ctx, tenantID, email, password)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return m.refreshTokenFunc(ctx, refreshToken)
}

func (m *mockAuthService) GenerateAPIKey(ctx context.Context, tenantID, userID uuid.UUID, name string, expiresAt *time.Time) (string, *domain.APIKey, error) {
	return m.generateAPIKeyFunc(ctx, tenantID, userID, name, expiresAt)
}

type mockFlagService struct {
	isEnabledFunc  func(ctx context.Context, tenantID uuid.UUID, key string) (bool, error)
	flagConfigFunc func(ctx context.Context, tenantID uuid.UUID, key string) (map[string]any, error)
	valueFunc      func(ctx context.Context, tenantID uuid.UUID, key string) (map[string]any, error)
	setFlagsFunc   func(ctx context.Context, tenantID uuid.UUID, toSet []*domain.FeatureFlag) error
	setConfigsFunc func(ctx context.Context, tenantID uuid.UUID, toSet []*domain.TenantConfig) error
}

func (m *mockFlagService) IsEnabled(ctx context.Context, tenantID uuid.UUID, key string) (bool, error) {
	return m.isEnabledFunc(ctx, tenantID, key)
}

func (m *mockFlagService) FlagConfig(ctx context.Context, tenantID uuid.UUID, key string) (map[string]any, error) {
	return m.flagConfigFunc(ctx, tenantID, key)
}

func (m *mockFlagService) Value(ctx context.Context, tenantID uuid.UUID, key string) (map[string]any, error) {
	return m.valueFunc(ctx, tenantID, key)
}

func (m *mockFlagService) SetFlags(ctx context.Context, tenantID uuid.UUID, toSet []*domain.FeatureFlag) error {
	return m.setFlagsFunc(ctx, tenantID, toSet)
}

func (m *mockFlagService) SetConfigs(ctx context.Context, tenantID uuid.UUID, toSet []*domain.TenantConfig) error {
	return m.setConfigsFunc(ctx, tenantID, toSet)
}

type mockPaymentService struct {
	submitReceiptFunc func(ctx context.Context, tenantID, userID uuid.UUID, cardID *uuid.UUID, amount int64, trackingCode string) (*domain.Receipt, error)
	approveFunc       func(ctx context.Context, tenantID, receiptID, reviewerID uuid.UUID, note string) (*domain.Receipt, *domain.LedgerEntry, error)
	rejectFunc        func(ctx context.Context, tenantID, receiptID, reviewerID uuid.UUID, note string) (*domain.Receipt, error)
}

func (m *mockPaymentService) SubmitReceipt(ctx context.Context, tenantID, userID uuid.UUID, cardID *uuid.UUID, amount int64, trackingCode string) (*domain.Receipt, error) {
	return m.submitReceiptFunc(ctx, tenantID, userID, cardID, amount, trackingCode)
}

func (m *mockPaymentService) Approve(ctx context.Context, tenantID, receiptID, reviewerID uuid.UUID, note string) (*domain.Receipt, *domain.LedgerEntry, error) {
	return m.approveFunc(ctx, tenantID, receiptID, reviewerID, note)
}

func (m *mockPaymentService) Reject(ctx context.Context, tenantID, receiptID, reviewerID uuid.UUID, note string) (*domain.Receipt, error) {
	return m.rejectFunc(ctx, tenantID, receiptID, reviewerID, note)
}

type mockWalletService struct {
	creditFunc  func(ctx context.Context, tenantID, userID uuid.UUID, amount int64, refKind, refID, note string) (*domain.LedgerEntry, error)
	debitFunc   func(ctx context.Context, tenantID, userID uuid.UUID, amount int64, refKind, refID, note string) (*domain.LedgerEntry, error)
	balanceFunc func(ctx context.Context, tenantID, userID uuid.UUID) (int64, error)
	historyFunc func(ctx context.Context, tenantID, userID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error)
}

func (m *mockWalletService) Credit(ctx context.Context, tenantID, userID uuid.UUID, amount int64, refKind, refID, note string) (*domain.LedgerEntry, error) {
	return m.creditFunc(ctx, tenantID, userID, amount, refKind, refID, note)
}

func (m *mockWalletService) Debit(ctx context.Context, tenantID, userID uuid.UUID, amount int64, refKind, refID, note string) (*domain.LedgerEntry, error) {
	return m.debitFunc(ctx, tenantID, userID, amount, refKind, refID, note)
}

func (m *mockWalletService) Balance(ctx context.Context, tenantID, userID uuid.UUID) (int64, error) {
	return m.balanceFunc(ctx, tenantID, userID)
}

func (m *mockWalletService) History(ctx context.Context, tenantID, userID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	return m.historyFunc(ctx, tenantID, userID, limit, offset)
}

type mockCardSelector struct {
	nextFunc func(ctx context.Context, tenantID uuid.UUID) (*domain.PaymentCard, error)
}

func (m *mockCardSelector) Next(ctx context.Context, tenantID uuid.UUID) (*domain.PaymentCard, error) {
	return m.nextFunc(ctx, tenantID)
}
