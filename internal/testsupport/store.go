package testsupport

import (
	"testing"

	"walkeryt/internal/config"
	"walkeryt/internal/runstore"
)

// MustOpenStore opens the run store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
