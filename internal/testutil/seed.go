package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedCollection inserts a collection and returns its id.
func SeedCollection(t TestingTB, db *sql.DB, name string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id string
	if err := db.QueryRowContext(ctx,
		`INSERT INTO collections (collection_name) VALUES ($1) RETURNING id::text`, name,
	).Scan(&id); err != nil {
		t.Fatalf("seed collection %s: %v", name, err)
	}
	return id
}

// SeedCompanies inserts n companies and returns their ids in ascending order.
func SeedCompanies(t TestingTB, db *sql.DB, n int) []int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, `
		INSERT INTO companies (company_name)
		SELECT 'Company ' || g FROM generate_series(1, $1) AS g
		RETURNING id`, n)
	if err != nil {
		t.Fatalf("seed companies: %v", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, n)
	for rows.Next() {
		var id int64
		if scanErr := rows.Scan(&id); scanErr != nil {
			t.Fatalf("scan company id: %v", scanErr)
		}
		ids = append(ids, id)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		t.Fatalf("iterate company ids: %v", rowsErr)
	}
	return ids
}

// SeedMemberships adds the given companies to a collection.
func SeedMemberships(t TestingTB, db *sql.DB, collectionID string, companyIDs []int64) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, id := range companyIDs {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO collection_memberships (collection_id, company_id) VALUES ($1, $2)`,
			collectionID, id,
		); err != nil {
			t.Fatalf("seed membership %s/%d: %v", collectionID, id, err)
		}
	}
}

// CountMemberships returns the number of rows for the collection and the number of distinct companies.
func CountMemberships(t TestingTB, db *sql.DB, collectionID string) (rows, distinct int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.QueryRowContext(ctx, `
		SELECT count(*), count(DISTINCT company_id)
		FROM collection_memberships WHERE collection_id = $1`, collectionID,
	).Scan(&rows, &distinct); err != nil {
		t.Fatal(fmt.Errorf("count memberships: %w", err))
	}
	return rows, distinct
}
