package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veilgate/veilgate/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	pool     *pgxpool.Pool
	tenants  *TenantRepo
	users    *UserRepo
	botUsers *BotUserRepo
	flags    *FlagRepo
	cards    *CardRepo
	ledger   *LedgerRepo
	receipts *ReceiptRepo
	audit    *AuditRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:     pool,
		tenants:  NewTenantRepo(pool),
		users:    NewUserRepo(pool),
		botUsers: NewBotUserRepo(pool),
		flags:    NewFlagRepo(pool),
		cards:    NewCardRepo(pool),
		ledger:   NewLedgerRepo(pool),
		receipts: NewReceiptRepo(pool),
		audit:    NewAuditRepo(pool),
	}, nil
}

// Migrate applies the embedded schema. Statements are idempotent
// (CREATE TABLE IF NOT EXISTS) so this is safe to run at every startup.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("postgres.Migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Tenants() domain.TenantRepository   { return s.tenants }
func (s *Store) Users() domain.UserRepository       { return s.users }
func (s *Store) BotUsers() domain.BotUserRepository { return s.botUsers }
func (s *Store) Flags() domain.FlagRepository       { return s.flags }
func (s *Store) Cards() domain.CardRepository       { return s.cards }
func (s *Store) Ledger() domain.LedgerRepository    { return s.ledger }
func (s *Store) Receipts() domain.ReceiptRepository { return s.receipts }
func (s *Store) Audit() domain.AuditRepository      { return s.audit }
