package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Migrate up
	err := MigrateUp(db)
	if err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Verify tables were created
	tables := []string{"articles", "revisions", "operations", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Fresh database should need migration
	err := CheckDBMigrationStatus(db)
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}

	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}

	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}

	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestRevisionsCascadeWithArticle(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO articles (id, name, region, added_at) VALUES ('a-1', 'Go', 'en', datetime('now'))`); err != nil {
		t.Fatalf("inserting article: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO revisions (article_id, user_name, edited_at, size) VALUES ('a-1', 'alice', datetime('now'), 10)`); err != nil {
		t.Fatalf("inserting revision: %v", err)
	}

	if _, err := db.Exec(`DELETE FROM articles WHERE id = 'a-1'`); err != nil {
		t.Fatalf("deleting article: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM revisions`).Scan(&count); err != nil {
		t.Fatalf("counting revisions: %v", err)
	}
	if count != 0 {
		t.Errorf("revisions after article delete = %d, want 0", count)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Try to insert a revision for a non-existent article (should fail due to FK constraint)
	_, err := db.Exec(`
		INSERT INTO revisions (article_id, user_name, edited_at, size)
		VALUES ('missing', 'alice', datetime('now'), 1)
	`)

	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_RevisionIdentityUnique(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO articles (id, name, region, added_at) VALUES ('a-1', 'Go', 'en', datetime('now'))`); err != nil {
		t.Fatalf("inserting article: %v", err)
	}

	insert := `INSERT INTO revisions (article_id, user_name, edited_at, size) VALUES ('a-1', 'alice', '2024-01-15 10:30:00+00:00', 10)`
	if _, err := db.Exec(insert); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.Exec(insert); err == nil {
		t.Error("Expected primary key violation for duplicate (user, timestamp), but insert succeeded")
	}
}

func TestSchema_ArticleUniquePerRegion(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO articles (id, name, region, added_at) VALUES ('a-1', 'Go', 'en', datetime('now'))`); err != nil {
		t.Fatalf("inserting article: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO articles (id, name, region, added_at) VALUES ('a-2', 'Go', 'nl', datetime('now'))`); err != nil {
		t.Errorf("same name on another region should be allowed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO articles (id, name, region, added_at) VALUES ('a-3', 'Go', 'en', datetime('now'))`); err == nil {
		t.Error("Expected unique constraint violation for duplicate (name, region), but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every pooled connection would get its own empty in-memory database.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	return db
}

func TestGetStatus(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	latest, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if latest != 2 {
		t.Errorf("LatestVersion() = %d, want 2", latest)
	}

	st, err := GetStatus(db)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if st.Current != 0 || st.UpToDate() {
		t.Errorf("fresh GetStatus() = %+v, want Current=0 and not up to date", st)
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	st, err = GetStatus(db)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if st.Current != latest || !st.UpToDate() {
		t.Errorf("migrated GetStatus() = %+v, want Current=%d and up to date", st, latest)
	}
}
