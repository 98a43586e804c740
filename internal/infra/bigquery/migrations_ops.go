package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budget-tracker/internal/store/migrations"
)

// EnsureSchemaMigrationsTableWithClient creates the schema_migrations table if it doesn't exist.
func EnsureSchemaMigrationsTableWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) error {
	q := client.Query(`
		CREATE TABLE IF NOT EXISTS ` + ds.Table(migrationsTable) + ` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`)
	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("EnsureSchemaMigrationsTable: %w", err)
	}
	return nil
}

// AppliedMigrationsWithClient retrieves the already applied migrations.
func AppliedMigrationsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]migrations.AppliedMigration, error) {
	q := client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + ds.Table(migrationsTable) + `
		ORDER BY version ASC
	`)
	it, err := q.Read(ctx)
	if err != nil {
		// If table doesn't exist yet, return empty list
		if strings.Contains(err.Error(), "Not found") {
			return []migrations.AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("AppliedMigrations: query read: %w", err)
	}

	var applied []migrations.AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("AppliedMigrations: iter next: %w", err)
		}

		applied = append(applied, migrations.AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

// ApplyMigrationWithClient executes one migration and records it in schema_migrations.
// BigQuery has no multi-statement DDL transactions, so a failure between the
// two steps leaves the migration applied but unrecorded; every migration uses
// IF NOT EXISTS so rerunning it is safe.
func ApplyMigrationWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, m migrations.Migration, appliedBy string) error {
	if _, err := runDML(ctx, client.Query(m.SQL)); err != nil {
		return fmt.Errorf("ApplyMigration %s: executing: %w", m.Filename, err)
	}

	q := client.Query(`
		INSERT INTO ` + ds.Table(migrationsTable) + `
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	}
	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("ApplyMigration %s: recording: %w", m.Filename, err)
	}
	return nil
}
