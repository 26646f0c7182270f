package database

import (
	"io/fs"
	"strings"
	"testing"
)

func TestPgx5URL(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "postgres://u:p@db:5432/modeldrop?sslmode=disable", want: "pgx5://u:p@db:5432/modeldrop?sslmode=disable"},
		{in: "postgresql://u@localhost/x", want: "pgx5://u@localhost/x"},
		{in: "mysql://u@localhost/x", wantErr: true},
		{in: "host=db port=5433 user=md password=secret dbname=models sslmode=disable", want: "pgx5://md:secret@db:5433/models?sslmode=disable"},
		{in: "host=db user=md dbname=models sslmode=require", want: "pgx5://md@db:5432/models?sslmode=require"},
		{in: "host=/var/run/postgresql user=md dbname=models sslmode=disable", want: "pgx5://md@/models?host=%2Fvar%2Frun%2Fpostgresql&port=5432&sslmode=disable"},
		{in: "host=db port=notaport user=md", wantErr: true},
	}
	for _, tc := range cases {
		got, err := pgx5URL(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("pgx5URL(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("pgx5URL(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("pgx5URL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	if up == 0 || up != down {
		t.Fatalf("expected paired migrations, got %d up / %d down", up, down)
	}
	data, err := fs.ReadFile(migrationsFS, "migrations/000001_create_assets.up.sql")
	if err != nil {
		t.Fatalf("read first migration: %v", err)
	}
	if !strings.Contains(string(data), "UNIQUE (resource_path)") {
		t.Fatal("assets migration must enforce resource_path uniqueness")
	}
}
