package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/pavelanni/examscore/internal/model"
)

func memoryStore(t *testing.T) appStore {
	t.Helper()
	v := viper.New()
	v.Set("store", "sqlite")
	v.Set("db", ":memory:")
	db, err := openStore(context.Background(), v)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenStoreRejectsUnknownBackend(t *testing.T) {
	v := viper.New()
	v.Set("store", "postgres")
	if _, err := openStore(context.Background(), v); err == nil {
		t.Fatal("expected error for unknown store")
	}
}

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	db := memoryStore(t)

	if err := seedAdmin(ctx, db, "admin@example.com", ""); err == nil {
		t.Fatal("expected error without a password on an empty store")
	}
	if err := seedAdmin(ctx, db, "admin@example.com", "s3cret"); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	u, err := db.GetUserByEmail(ctx, "admin@example.com")
	if err != nil || u == nil {
		t.Fatalf("admin not created: %v", err)
	}
	if u.Role != model.UserRoleAdmin || !u.Active {
		t.Errorf("unexpected admin %+v", u)
	}

	// A populated store needs no password and is left alone.
	if err := seedAdmin(ctx, db, "other@example.com", ""); err != nil {
		t.Fatalf("second seedAdmin: %v", err)
	}
	if n, _ := db.UserCount(ctx); n != 1 {
		t.Errorf("user count = %d, want 1", n)
	}
}

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := writeOutput(path, map[string]int{"passCount": 2}); err != nil {
		t.Fatalf("writeOutput: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got["passCount"] != 2 {
		t.Errorf("got %v", got)
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"serve", "import", "stats", "results"} {
		if _, _, err := root.Find([]string{name}); err != nil {
			t.Errorf("missing subcommand %s: %v", name, err)
		}
	}
	if root.Flags().Lookup("jwt-secret") == nil {
		t.Error("serve flags are not registered on root")
	}
}
