package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Store struct {
	db *DB
}

type DB struct {
	raw *sql.DB
}

type Tx struct {
	raw *sql.Tx
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.raw.ExecContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.raw.QueryContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.raw.QueryRowContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := db.raw.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{raw: tx}, nil
}

func (db *DB) Close() error {
	return db.raw.Close()
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.raw.ExecContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return tx.raw.QueryContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.raw.QueryRowContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (tx *Tx) Commit() error {
	return tx.raw.Commit()
}

func (tx *Tx) Rollback() error {
	return tx.raw.Rollback()
}

func rebindPostgresPlaceholders(query string) string {
	var out strings.Builder
	out.Grow(len(query) + 16)

	arg := 1
	inSingleQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if ch == '\'' {
			out.WriteByte(ch)
			if inSingleQuote {
				// SQL escape: two single quotes inside a string literal.
				if i+1 < len(query) && query[i+1] == '\'' {
					out.WriteByte(query[i+1])
					i++
					continue
				}
				inSingleQuote = false
			} else {
				inSingleQuote = true
			}
			continue
		}

		if ch == '?' && !inSingleQuote {
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(arg))
			arg++
			continue
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func NewStore(dbDSN string) (*Store, error) {
	db, err := sql.Open("pgx", dbDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetConnMaxIdleTime(30 * time.Second)
	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &Store{db: &DB{raw: db}}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS vault_snapshots (
			vault TEXT NOT NULL,
			slot BIGINT NOT NULL,
			total_deposited_balance TEXT NOT NULL,
			total_shares TEXT NOT NULL,
			share_price TEXT NOT NULL,
			tvl_usd TEXT NOT NULL,
			deposits_paused INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (vault, slot)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_vault_snapshots_updated ON vault_snapshots(vault, updated_at DESC);`,
		`CREATE TABLE IF NOT EXISTS standalone_balances (
			vault TEXT NOT NULL,
			standalone TEXT NOT NULL,
			slot BIGINT NOT NULL,
			program_type TEXT NOT NULL,
			deposited_balance TEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (vault, standalone, slot)
		);`,
		`CREATE TABLE IF NOT EXISTS rebalance_transitions (
			vault TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			vault_a TEXT NOT NULL,
			vault_b TEXT NOT NULL,
			removal_amount TEXT NOT NULL,
			supply_amount TEXT NOT NULL,
			last_completion_ts BIGINT NOT NULL,
			slot BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS price_ticks (
			feed_id TEXT NOT NULL,
			publish_time BIGINT NOT NULL,
			price TEXT NOT NULL,
			conf TEXT NOT NULL,
			expo INTEGER NOT NULL,
			received_at BIGINT NOT NULL,
			PRIMARY KEY (feed_id, publish_time)
		);`,
	}

	for _, statement := range ddl {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type VaultSnapshotInput struct {
	Vault                 string
	Slot                  uint64
	TotalDepositedBalance uint64
	TotalShares           uint64
	SharePrice            string
	TVLUSD                string
	DepositsPaused        bool
	RawJSON               string
	UpdatedAt             int64
}

type StandaloneBalanceInput struct {
	Vault            string
	Standalone       string
	Slot             uint64
	ProgramType      string
	DepositedBalance uint64
	UpdatedAt        int64
}

type RebalanceTransitionInput struct {
	Vault            string
	State            string
	VaultA           string
	VaultB           string
	RemovalAmount    uint64
	SupplyAmount     uint64
	LastCompletionTS int64
	Slot             uint64
	UpdatedAt        int64
}

type PriceTickInput struct {
	FeedID      string
	PublishTime int64
	Price       string
	Conf        string
	Expo        int32
	ReceivedAt  int64
}

func (s *Store) InsertVaultSnapshot(ctx context.Context, tx *Tx, in VaultSnapshotInput) error {
	depositsPaused := 0
	if in.DepositsPaused {
		depositsPaused = 1
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vault_snapshots (
			vault, slot, total_deposited_balance, total_shares,
			share_price, tvl_usd, deposits_paused, raw_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (vault, slot) DO UPDATE SET
			total_deposited_balance = EXCLUDED.total_deposited_balance,
			total_shares = EXCLUDED.total_shares,
			share_price = EXCLUDED.share_price,
			tvl_usd = EXCLUDED.tvl_usd,
			deposits_paused = EXCLUDED.deposits_paused,
			raw_json = EXCLUDED.raw_json,
			updated_at = EXCLUDED.updated_at
	`,
		in.Vault, int64(in.Slot),
		strconv.FormatUint(in.TotalDepositedBalance, 10),
		strconv.FormatUint(in.TotalShares, 10),
		in.SharePrice, in.TVLUSD, depositsPaused, in.RawJSON, in.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert vault snapshot: %w", err)
	}
	return nil
}

func (s *Store) InsertStandaloneBalance(ctx context.Context, tx *Tx, in StandaloneBalanceInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO standalone_balances (
			vault, standalone, slot, program_type, deposited_balance, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (vault, standalone, slot) DO UPDATE SET
			program_type = EXCLUDED.program_type,
			deposited_balance = EXCLUDED.deposited_balance,
			updated_at = EXCLUDED.updated_at
	`,
		in.Vault, in.Standalone, int64(in.Slot), in.ProgramType,
		strconv.FormatUint(in.DepositedBalance, 10), in.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert standalone balance: %w", err)
	}
	return nil
}

func (s *Store) UpsertRebalanceTransition(ctx context.Context, tx *Tx, in RebalanceTransitionInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO rebalance_transitions (
			vault, state, vault_a, vault_b, removal_amount, supply_amount,
			last_completion_ts, slot, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (vault) DO UPDATE SET
			state = EXCLUDED.state,
			vault_a = EXCLUDED.vault_a,
			vault_b = EXCLUDED.vault_b,
			removal_amount = EXCLUDED.removal_amount,
			supply_amount = EXCLUDED.supply_amount,
			last_completion_ts = EXCLUDED.last_completion_ts,
			slot = EXCLUDED.slot,
			updated_at = EXCLUDED.updated_at
	`,
		in.Vault, in.State, in.VaultA, in.VaultB,
		strconv.FormatUint(in.RemovalAmount, 10),
		strconv.FormatUint(in.SupplyAmount, 10),
		in.LastCompletionTS, int64(in.Slot), in.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert rebalance transition: %w", err)
	}
	return nil
}

func (s *Store) InsertPriceTick(ctx context.Context, in PriceTickInput) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_ticks (feed_id, publish_time, price, conf, expo, received_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (feed_id, publish_time) DO NOTHING
	`,
		in.FeedID, in.PublishTime, in.Price, in.Conf, in.Expo, in.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert price tick: %w", err)
	}
	return nil
}

// VaultSnapshotRow is the latest stored view of one vault.
type VaultSnapshotRow struct {
	Vault                 string
	Slot                  int64
	TotalDepositedBalance string
	TotalShares           string
	SharePrice            string
	TVLUSD                string
	DepositsPaused        bool
	UpdatedAt             int64
}

func (s *Store) LatestVaultSnapshot(ctx context.Context, vault string) (*VaultSnapshotRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT vault, slot, total_deposited_balance, total_shares,
			share_price, tvl_usd, deposits_paused, updated_at
		FROM vault_snapshots
		WHERE vault = ?
		ORDER BY slot DESC
		LIMIT 1
	`, vault)

	var out VaultSnapshotRow
	var depositsPaused int
	if err := row.Scan(
		&out.Vault, &out.Slot, &out.TotalDepositedBalance, &out.TotalShares,
		&out.SharePrice, &out.TVLUSD, &depositsPaused, &out.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest vault snapshot: %w", err)
	}
	out.DepositsPaused = depositsPaused != 0
	return &out, nil
}
