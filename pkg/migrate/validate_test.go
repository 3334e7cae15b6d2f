package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateMigrationRejectsMalformedFiles(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing up",
			content: "-- +goose Down\nDROP TABLE t;\n",
			wantErr: "missing \"-- +goose Up\"",
		},
		{
			name:    "missing down",
			content: "-- +goose Up\nCREATE TABLE t (id TEXT);\n",
			wantErr: "missing \"-- +goose Down\"",
		},
		{
			name:    "down before up",
			content: "-- +goose Down\nDROP TABLE t;\n-- +goose Up\nCREATE TABLE t (id TEXT);\n",
			wantErr: "Down section before Up",
		},
		{
			name:    "unclosed statement block",
			content: "-- +goose Up\n-- +goose StatementBegin\nCREATE TABLE t (id TEXT);\n-- +goose Down\n",
			wantErr: "unclosed StatementBegin",
		},
		{
			name:    "end without begin",
			content: "-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n",
			wantErr: "StatementEnd without StatementBegin",
		},
		{
			name:    "nested statement block",
			content: "-- +goose Up\n-- +goose StatementBegin\n-- +goose StatementBegin\n-- +goose StatementEnd\n-- +goose StatementEnd\n-- +goose Down\n",
			wantErr: "nested StatementBegin",
		},
		{
			name:    "postgres-only serial column",
			content: "-- +goose Up\nCREATE TABLE t (id SERIAL PRIMARY KEY);\n-- +goose Down\nDROP TABLE t;\n",
			wantErr: "only the postgres dialect",
		},
		{
			name:    "sqlite-only autoincrement",
			content: "-- +goose Up\nCREATE TABLE t (id INTEGER PRIMARY KEY AUTOINCREMENT);\n-- +goose Down\nDROP TABLE t;\n",
			wantErr: "only the sqlite dialect",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateMigration("20260301120000_sample.sql", tc.content)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tc.wantErr, err)
			}
		})
	}
}

func TestValidateMigrationIgnoresKeywordsInComments(t *testing.T) {
	content := "-- no SERIAL here, and serial_number is just a column\n" +
		"-- +goose Up\nCREATE TABLE t (serial_number TEXT);\n-- +goose Down\nDROP TABLE t;\n"
	if err := validateMigration("20260301120000_sample.sql", content); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDirRejectsBadFilenamesAndDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	valid := "-- +goose Up\nCREATE TABLE t (id TEXT);\n-- +goose Down\nDROP TABLE t;\n"
	writeMigration(t, dir, "20260301120000_first.sql", valid)

	writeMigration(t, dir, "not_a_migration.sql", valid)
	if err := ValidateDir(dir); err == nil || !strings.Contains(err.Error(), "invalid migration filename") {
		t.Fatalf("expected filename error, got %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "not_a_migration.sql")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	writeMigration(t, dir, "20260301120000_second.sql", valid)
	if err := ValidateDir(dir); err == nil || !strings.Contains(err.Error(), "duplicate migration version") {
		t.Fatalf("expected duplicate version error, got %v", err)
	}
}

func TestCreateSQLMigrationEmitsValidSkeleton(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Retention Column!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if base := filepath.Base(path); !strings.HasSuffix(base, "_add_retention_column.sql") {
		t.Fatalf("unexpected filename %q", base)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("skeleton fails validation: %v", err)
	}
}

func TestCreateSQLMigrationRejectsUnusableNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"", "!!!"} {
		if _, err := CreateSQLMigration(dir, name); err == nil {
			t.Fatalf("expected error for name %q", name)
		}
	}
}

func writeMigration(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
