// Package sqlite is a single-file Store backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
	"github.com/dvloznov/budget-tracker/internal/store/migrations"
)

const timeLayout = time.RFC3339Nano

// Store implements store.Store on a SQLite database file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("Open: open db: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if _, err := s.Migrate(ctx, "sqlite-store"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the embedded sqlite migrations not yet recorded in
// schema_migrations and returns the ones it applied.
func (s *Store) Migrate(ctx context.Context, appliedBy string) ([]migrations.Migration, error) {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			checksum   TEXT,
			applied_by TEXT
		)`); err != nil {
		return nil, fmt.Errorf("Migrate: ensure schema_migrations: %w", err)
	}

	all, err := migrations.Load(migrations.SQLite, nil)
	if err != nil {
		return nil, fmt.Errorf("Migrate: %w", err)
	}
	applied, err := s.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	var done []migrations.Migration
	for _, m := range migrations.Pending(all, applied) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return done, fmt.Errorf("Migrate: begin %s: %w", m.Filename, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return done, fmt.Errorf("Migrate: executing %s: %w", m.Filename, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, applied_at, checksum, applied_by) VALUES (?, ?, ?, ?, ?)`,
			m.Version, m.Name, s.now().UTC().Format(timeLayout), m.Checksum, appliedBy); err != nil {
			_ = tx.Rollback()
			return done, fmt.Errorf("Migrate: recording %s: %w", m.Filename, err)
		}
		if err := tx.Commit(); err != nil {
			return done, fmt.Errorf("Migrate: commit %s: %w", m.Filename, err)
		}
		done = append(done, m)
	}
	return done, nil
}

// AppliedMigrations lists recorded migrations in version order.
func (s *Store) AppliedMigrations(ctx context.Context) ([]migrations.AppliedMigration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, name, applied_at, COALESCE(checksum, ''), COALESCE(applied_by, '') FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("AppliedMigrations: query: %w", err)
	}
	defer rows.Close()

	var out []migrations.AppliedMigration
	for rows.Next() {
		var am migrations.AppliedMigration
		var appliedAt string
		if err := rows.Scan(&am.Version, &am.Name, &appliedAt, &am.Checksum, &am.AppliedBy); err != nil {
			return nil, fmt.Errorf("AppliedMigrations: scan: %w", err)
		}
		am.AppliedAt, _ = time.Parse(timeLayout, appliedAt)
		out = append(out, am)
	}
	return out, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) stamp() string { return s.now().UTC().Format(timeLayout) }

func (s *Store) FetchFingerprints(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = store.DefaultFingerprintLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash FROM transactions
		WHERE user_id = ?
		ORDER BY datum DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("FetchFingerprints: query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("FetchFingerprints: scan: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) InsertTransactions(ctx context.Context, userID string, txs []*domain.Transaction) (domain.InsertResult, error) {
	res := domain.InsertResult{Errors: []string{}}
	if len(txs) == 0 {
		return res, nil
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("InsertTransactions: begin: %w", err)
	}
	stmt, err := dbtx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, user_id, datum, bedrag, naam_tegenpartij, omschrijving, categorie_id,
			is_confirmed, is_lopende_rekening, hash, ai_name, ai_reasoning, ai_confidence, ai_category, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, hash) DO NOTHING`)
	if err != nil {
		_ = dbtx.Rollback()
		return res, fmt.Errorf("InsertTransactions: prepare: %w", err)
	}
	defer stmt.Close()

	now := s.stamp()
	for i, tx := range txs {
		id := uuid.NewString()
		var conf any
		if tx.AIConfidence != nil {
			conf = *tx.AIConfidence
		}
		r, err := stmt.ExecContext(ctx,
			id, userID, tx.DateString(), tx.Amount.StringFixed(2),
			store.NullString(tx.Counterparty), store.NullString(tx.Description), store.NullString(tx.CategoryID),
			tx.Confirmed, tx.RecurringHold, tx.Fingerprint,
			store.NullString(tx.AISuggestedName), store.NullString(tx.AIRationale), conf, store.NullString(tx.AISuggestedCategory),
			now)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		if n, _ := r.RowsAffected(); n == 0 {
			res.Skipped++
			continue
		}
		tx.ID = id
		tx.UserID = userID
		res.Success++
	}

	if err := dbtx.Commit(); err != nil {
		return domain.InsertResult{}, fmt.Errorf("InsertTransactions: commit: %w", err)
	}
	return res, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, userID, id string, upd domain.TransactionUpdate) error {
	assignments := store.Assignments(upd)
	if len(assignments) == 0 {
		return nil
	}

	sets := make([]string, 0, len(assignments)+1)
	args := make([]any, 0, len(assignments)+3)
	for _, a := range assignments {
		sets = append(sets, a.Column+" = ?")
		args = append(args, a.Value)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.stamp(), id, userID)

	r, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: exec: %w", err)
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return fmt.Errorf("UpdateTransaction: transaction %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	r, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: exec: %w", err)
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return fmt.Errorf("DeleteTransaction: transaction %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteAllTransactions(ctx context.Context, userID string) (int, error) {
	r, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("DeleteAllTransactions: exec: %w", err)
	}
	n, _ := r.RowsAffected()
	return int(n), nil
}

func (s *Store) QueryTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	where := []string{"t.user_id = ?"}
	args := []any{userID}
	if filter.From != nil {
		where = append(where, "t.datum >= ?")
		args = append(args, filter.From.Format(domain.DateLayout))
	}
	if filter.To != nil {
		where = append(where, "t.datum <= ?")
		args = append(args, filter.To.Format(domain.DateLayout))
	}
	if filter.CategoryID != "" {
		where = append(where, "t.categorie_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.Confirmed != nil {
		where = append(where, "t.is_confirmed = ?")
		args = append(args, *filter.Confirmed)
	}

	q := `
		SELECT t.id, t.user_id, t.datum, t.bedrag,
			COALESCE(t.naam_tegenpartij, ''), COALESCE(t.omschrijving, ''), COALESCE(t.categorie_id, ''),
			COALESCE(c.name, ''), t.is_confirmed, t.is_lopende_rekening, t.hash,
			COALESCE(t.ai_name, ''), COALESCE(t.ai_reasoning, ''), t.ai_confidence, COALESCE(t.ai_category, ''),
			t.updated_at
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.categorie_id AND c.user_id = t.user_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY t.datum DESC, t.rowid DESC`
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactions: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		var (
			tx                 domain.Transaction
			datum, bedrag, upd string
			conf               sql.NullFloat64
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &datum, &bedrag,
			&tx.Counterparty, &tx.Description, &tx.CategoryID,
			&tx.Category, &tx.Confirmed, &tx.RecurringHold, &tx.Fingerprint,
			&tx.AISuggestedName, &tx.AIRationale, &conf, &tx.AISuggestedCategory,
			&upd); err != nil {
			return nil, fmt.Errorf("QueryTransactions: scan: %w", err)
		}
		if tx.Date, err = time.Parse(domain.DateLayout, datum); err != nil {
			return nil, fmt.Errorf("QueryTransactions: datum %q: %w", datum, err)
		}
		if tx.Amount, err = decimal.NewFromString(bedrag); err != nil {
			return nil, fmt.Errorf("QueryTransactions: bedrag %q: %w", bedrag, err)
		}
		if conf.Valid {
			v := conf.Float64
			tx.AIConfidence = &v
		}
		tx.UpdatedAt, _ = time.Parse(timeLayout, upd)
		out = append(out, &tx)
	}
	return out, rows.Err()
}

func (s *Store) ConfirmTransactions(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := []any{s.stamp(), userID}
	for _, id := range ids {
		args = append(args, id)
	}
	r, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET is_confirmed = 1, updated_at = ?
		WHERE user_id = ? AND is_confirmed = 0 AND id IN (?`+strings.Repeat(", ?", len(ids)-1)+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("ConfirmTransactions: exec: %w", err)
	}
	n, _ := r.RowsAffected()
	return int(n), nil
}

func (s *Store) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, color, budget_percentage, rules
		FROM categories WHERE user_id = ?
		ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		var pct, rules string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &pct, &rules); err != nil {
			return nil, fmt.Errorf("ListCategories: scan: %w", err)
		}
		if c.BudgetPercentage, err = decimal.NewFromString(pct); err != nil {
			return nil, fmt.Errorf("ListCategories: budget_percentage %q: %w", pct, err)
		}
		if err := json.Unmarshal([]byte(rules), &c.Rules); err != nil {
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

	var existing string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE user_id = ? AND name = ?`, c.UserID, name).Scan(&existing)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("UpsertCategory: lookup: %w", err)
	}

	rules, err := json.Marshal(c.Rules)
	if err != nil {
		return "", fmt.Errorf("UpsertCategory: encoding rules: %w", err)
	}
	color := c.Color
	if color == "" {
		color = domain.DefaultColor
	}

	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, color, budget_percentage, rules, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, c.UserID, name, color, c.BudgetPercentage.String(), string(rules), s.stamp()); err != nil {
		return "", fmt.Errorf("UpsertCategory: insert: %w", err)
	}
	c.ID = id
	return id, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	rules, err := json.Marshal(c.Rules)
	if err != nil {
		return fmt.Errorf("UpdateCategory: encoding rules: %w", err)
	}
	return s.execCategory(ctx, "UpdateCategory", `
		UPDATE categories SET name = ?, color = ?, budget_percentage = ?, rules = ?
		WHERE id = ? AND user_id = ?`,
		c.ID, c.Name, c.Color, c.BudgetPercentage.String(), string(rules), c.ID, c.UserID)
}

func (s *Store) UpdateCategoryRules(ctx context.Context, userID, id string, rules domain.Rules) error {
	data, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("UpdateCategoryRules: encoding rules: %w", err)
	}
	return s.execCategory(ctx, "UpdateCategoryRules",
		`UPDATE categories SET rules = ? WHERE id = ? AND user_id = ?`, id, string(data), id, userID)
}

func (s *Store) UpdateCategoryPercentage(ctx context.Context, userID, id string, pct decimal.Decimal) error {
	return s.execCategory(ctx, "UpdateCategoryPercentage",
		`UPDATE categories SET budget_percentage = ? WHERE id = ? AND user_id = ?`, id, pct.String(), id, userID)
}

func (s *Store) DeleteCategory(ctx context.Context, userID, id string) error {
	return s.execCategory(ctx, "DeleteCategory",
		`DELETE FROM categories WHERE id = ? AND user_id = ?`, id, id, userID)
}

func (s *Store) execCategory(ctx context.Context, op, query, id string, args ...any) error {
	r, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: category %s: %w", op, id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) GetPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	p := domain.Preferences{UserID: userID}
	var goal, upd string
	err := s.db.QueryRowContext(ctx,
		`SELECT investment_goal_percentage, updated_at FROM user_preferences WHERE user_id = ?`, userID).Scan(&goal, &upd)
	if errors.Is(err, sql.ErrNoRows) {
		p.InvestmentGoalPercentage = decimal.NewFromInt(store.DefaultInvestmentGoal)
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("GetPreferences: query: %w", err)
	}
	if p.InvestmentGoalPercentage, err = decimal.NewFromString(goal); err != nil {
		return p, fmt.Errorf("GetPreferences: goal %q: %w", goal, err)
	}
	p.UpdatedAt, _ = time.Parse(timeLayout, upd)
	return p, nil
}

func (s *Store) UpsertPreferences(ctx context.Context, p domain.Preferences) error {
	if p.UserID == "" {
		return fmt.Errorf("UpsertPreferences: user id is required")
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, investment_goal_percentage, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			investment_goal_percentage = excluded.investment_goal_percentage,
			updated_at = excluded.updated_at`,
		p.UserID, p.InvestmentGoalPercentage.String(), s.stamp()); err != nil {
		return fmt.Errorf("UpsertPreferences: exec: %w", err)
	}
	return nil
}
