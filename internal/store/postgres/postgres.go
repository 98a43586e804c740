// Package postgres is a Store on PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
	"github.com/dvloznov/budget-tracker/internal/store/migrations"
)

// Store implements store.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Connect opens a pool for url and checks the connection.
func Connect(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("Connect: creating pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("Connect: ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies pending embedded postgres migrations.
func (s *Store) Migrate(ctx context.Context, appliedBy string) ([]migrations.Migration, error) {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			checksum   TEXT,
			applied_by TEXT
		)`); err != nil {
		return nil, fmt.Errorf("Migrate: ensure schema_migrations: %w", err)
	}

	all, err := migrations.Load(migrations.Postgres, nil)
	if err != nil {
		return nil, fmt.Errorf("Migrate: %w", err)
	}
	applied, err := s.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	pending := migrations.Pending(all, applied)
	for _, m := range pending {
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return fmt.Errorf("executing: %w", err)
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name, checksum, applied_by) VALUES ($1, $2, $3, $4)`,
				m.Version, m.Name, m.Checksum, appliedBy)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("Migrate: %s: %w", m.Filename, err)
		}
	}
	return pending, nil
}

// AppliedMigrations lists recorded migrations in version order.
func (s *Store) AppliedMigrations(ctx context.Context) ([]migrations.AppliedMigration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT version, name, applied_at, COALESCE(checksum, ''), COALESCE(applied_by, '')
		FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("AppliedMigrations: query: %w", err)
	}
	defer rows.Close()

	var out []migrations.AppliedMigration
	for rows.Next() {
		var am migrations.AppliedMigration
		if err := rows.Scan(&am.Version, &am.Name, &am.AppliedAt, &am.Checksum, &am.AppliedBy); err != nil {
			return nil, fmt.Errorf("AppliedMigrations: scan: %w", err)
		}
		out = append(out, am)
	}
	return out, rows.Err()
}

func (s *Store) FetchFingerprints(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = store.DefaultFingerprintLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT hash FROM transactions
		WHERE user_id = $1
		ORDER BY datum DESC, created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("FetchFingerprints: query: %w", err)
	}
	hashes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("FetchFingerprints: collect: %w", err)
	}
	return hashes, nil
}

const insertTransactionSQL = `
	INSERT INTO transactions (
		id, user_id, datum, bedrag, naam_tegenpartij, omschrijving, categorie_id,
		is_confirmed, is_lopende_rekening, hash, ai_name, ai_reasoning, ai_confidence, ai_category
	) VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (user_id, hash) DO NOTHING
	RETURNING id`

func (s *Store) InsertTransactions(ctx context.Context, userID string, txs []*domain.Transaction) (domain.InsertResult, error) {
	res := domain.InsertResult{Errors: []string{}}
	if len(txs) == 0 {
		return res, nil
	}

	batch := &pgx.Batch{}
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = uuid.NewString()
		batch.Queue(insertTransactionSQL,
			ids[i], userID, tx.Date, tx.Amount.StringFixed(2),
			store.NullString(tx.Counterparty), store.NullString(tx.Description), store.NullString(tx.CategoryID),
			tx.Confirmed, tx.RecurringHold, tx.Fingerprint,
			store.NullString(tx.AISuggestedName), store.NullString(tx.AIRationale), tx.AIConfidence, store.NullString(tx.AISuggestedCategory))
	}

	br := s.pool.SendBatch(ctx, batch)
	for i, tx := range txs {
		var id string
		err := br.QueryRow().Scan(&id)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			res.Skipped++
		case err != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", i+1, err))
		default:
			tx.ID = id
			tx.UserID = userID
			res.Success++
		}
	}
	if err := br.Close(); err != nil && res.Success == 0 && len(res.Errors) == 0 {
		return res, fmt.Errorf("InsertTransactions: batch: %w", err)
	}
	return res, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, userID, id string, upd domain.TransactionUpdate) error {
	query, args, ok := updateStatement(userID, id, upd)
	if !ok {
		return nil
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("UpdateTransaction: transaction %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("DeleteTransaction: transaction %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteAllTransactions(ctx context.Context, userID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("DeleteAllTransactions: exec: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// transactionQuery builds the filtered select for QueryTransactions.
func transactionQuery(userID string, filter domain.TransactionFilter) (string, []any) {
	where := []string{"t.user_id = $1"}
	args := []any{userID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.From != nil {
		add("t.datum >= $%d", domain.Date(*filter.From))
	}
	if filter.To != nil {
		add("t.datum <= $%d", domain.Date(*filter.To))
	}
	if filter.CategoryID != "" {
		add("t.categorie_id = $%d", filter.CategoryID)
	}
	if filter.Confirmed != nil {
		add("t.is_confirmed = $%d", *filter.Confirmed)
	}

	query := `
		SELECT t.id, t.user_id, t.datum, t.bedrag::text,
			COALESCE(t.naam_tegenpartij, ''), COALESCE(t.omschrijving, ''), COALESCE(t.categorie_id, ''),
			COALESCE(c.name, ''), t.is_confirmed, t.is_lopende_rekening, t.hash,
			COALESCE(t.ai_name, ''), COALESCE(t.ai_reasoning, ''), t.ai_confidence, COALESCE(t.ai_category, ''),
			t.updated_at
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.categorie_id AND c.user_id = t.user_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY t.datum DESC, t.created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

// updateStatement builds the UPDATE for a transaction; ok is false when nothing changes.
func updateStatement(userID, id string, upd domain.TransactionUpdate) (query string, args []any, ok bool) {
	assignments := store.Assignments(upd)
	if len(assignments) == 0 {
		return "", nil, false
	}

	sets := make([]string, 0, len(assignments)+1)
	args = make([]any, 0, len(assignments)+2)
	for i, a := range assignments {
		sets = append(sets, fmt.Sprintf("%s = $%d", a.Column, i+1))
		args = append(args, a.Value)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id, userID)

	query = fmt.Sprintf(`UPDATE transactions SET %s WHERE id = $%d AND user_id = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))
	return query, args, true
}

func (s *Store) QueryTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	query, args := transactionQuery(userID, filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactions: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		var (
			tx     domain.Transaction
			bedrag string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Date, &bedrag,
			&tx.Counterparty, &tx.Description, &tx.CategoryID,
			&tx.Category, &tx.Confirmed, &tx.RecurringHold, &tx.Fingerprint,
			&tx.AISuggestedName, &tx.AIRationale, &tx.AIConfidence, &tx.AISuggestedCategory,
			&tx.UpdatedAt); err != nil {
			return nil, fmt.Errorf("QueryTransactions: scan: %w", err)
		}
		if tx.Amount, err = decimal.NewFromString(bedrag); err != nil {
			return nil, fmt.Errorf("QueryTransactions: bedrag %q: %w", bedrag, err)
		}
		tx.Date = domain.Date(tx.Date)
		out = append(out, &tx)
	}
	return out, rows.Err()
}

func (s *Store) ConfirmTransactions(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions SET is_confirmed = TRUE, updated_at = now()
		WHERE user_id = $1 AND id = ANY($2) AND NOT is_confirmed`, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("ConfirmTransactions: exec: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, color, budget_percentage::text, rules
		FROM categories WHERE user_id = $1
		ORDER BY created_at, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var (
			c     domain.Category
			pct   string
			rules []byte
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &pct, &rules); err != nil {
			return nil, fmt.Errorf("ListCategories: scan: %w", err)
		}
		if c.BudgetPercentage, err = decimal.NewFromString(pct); err != nil {
			return nil, fmt.Errorf("ListCategories: budget_percentage %q: %w", pct, err)
		}
		if err := json.Unmarshal(rules, &c.Rules); err != nil {
			return nil, fmt.Errorf("ListCategories: rules of %q: %w", c.Name, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpsertCategory(ctx context.Context, c *domain.Category) (string, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return "", fmt.Errorf("UpsertCategory: name is required")
	}
	rules, err := json.Marshal(c.Rules)
	if err != nil {
		return "", fmt.Errorf("UpsertCategory: encoding rules: %w", err)
	}
	color := c.Color
	if color == "" {
		color = domain.DefaultColor
	}

	// the no-op update makes RETURNING yield the existing row's id
	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO categories (id, user_id, name, color, budget_percentage, rules)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6::jsonb)
		ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		uuid.NewString(), c.UserID, name, color, c.BudgetPercentage.String(), string(rules)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("UpsertCategory: %w", err)
	}
	c.ID = id
	return id, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	rules, err := json.Marshal(c.Rules)
	if err != nil {
		return fmt.Errorf("UpdateCategory: encoding rules: %w", err)
	}
	return s.execCategory(ctx, "UpdateCategory", c.ID, `
		UPDATE categories SET name = $1, color = $2, budget_percentage = $3::text::numeric, rules = $4::jsonb
		WHERE id = $5 AND user_id = $6`,
		c.Name, c.Color, c.BudgetPercentage.String(), string(rules), c.ID, c.UserID)
}

func (s *Store) UpdateCategoryRules(ctx context.Context, userID, id string, rules domain.Rules) error {
	data, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("UpdateCategoryRules: encoding rules: %w", err)
	}
	return s.execCategory(ctx, "UpdateCategoryRules", id,
		`UPDATE categories SET rules = $1::jsonb WHERE id = $2 AND user_id = $3`, string(data), id, userID)
}

func (s *Store) UpdateCategoryPercentage(ctx context.Context, userID, id string, pct decimal.Decimal) error {
	return s.execCategory(ctx, "UpdateCategoryPercentage", id,
		`UPDATE categories SET budget_percentage = $1::text::numeric WHERE id = $2 AND user_id = $3`, pct.String(), id, userID)
}

func (s *Store) DeleteCategory(ctx context.Context, userID, id string) error {
	return s.execCategory(ctx, "DeleteCategory", id,
		`DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, userID)
}

func (s *Store) execCategory(ctx context.Context, op, id, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: category %s: %w", op, id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) GetPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	p := domain.Preferences{UserID: userID}
	var (
		goal string
		upd  time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT investment_goal_percentage::text, updated_at FROM user_preferences WHERE user_id = $1`, userID).Scan(&goal, &upd)
	if errors.Is(err, pgx.ErrNoRows) {
		p.InvestmentGoalPercentage = decimal.NewFromInt(store.DefaultInvestmentGoal)
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("GetPreferences: query: %w", err)
	}
	if p.InvestmentGoalPercentage, err = decimal.NewFromString(goal); err != nil {
		return p, fmt.Errorf("GetPreferences: goal %q: %w", goal, err)
	}
	p.UpdatedAt = upd
	return p, nil
}

func (s *Store) UpsertPreferences(ctx context.Context, p domain.Preferences) error {
	if p.UserID == "" {
		return fmt.Errorf("UpsertPreferences: user id is required")
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO user_preferences (user_id, investment_goal_percentage, updated_at)
		VALUES ($1, $2::text::numeric, now())
		ON CONFLICT (user_id) DO UPDATE SET
			investment_goal_percentage = EXCLUDED.investment_goal_percentage,
			updated_at = now()`,
		p.UserID, p.InvestmentGoalPercentage.String()); err != nil {
		return fmt.Errorf("UpsertPreferences: exec: %w", err)
	}
	return nil
}
