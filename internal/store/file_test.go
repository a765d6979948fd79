package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

func openTestRegistry(t *testing.T, dir string) Registry {
	t.Helper()
	reg, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "subs.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	return reg
}

func TestFileRegistryRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := openTestRegistry(t, t.TempDir())
	defer reg.Close()

	if err := reg.Subscribe(ctx, 10, 100); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := reg.Subscribe(ctx, 20, 200); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	active, err := reg.IsActive(ctx, 10)
	if err != nil || !active {
		t.Fatalf("IsActive(10) = %v, %v", active, err)
	}

	if err := reg.Unsubscribe(ctx, 10); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	active, err = reg.IsActive(ctx, 10)
	if err != nil || active {
		t.Fatalf("IsActive after unsubscribe = %v, %v", active, err)
	}

	ids, err := reg.ActiveChatIDs(ctx)
	if err != nil {
		t.Fatalf("ActiveChatIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != 200 {
		t.Fatalf("ActiveChatIDs = %v, want [200]", ids)
	}
}

func TestFileRegistryResubscribeRestores(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := openTestRegistry(t, t.TempDir())
	defer reg.Close()

	if err := reg.Subscribe(ctx, 10, 100); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := reg.Unsubscribe(ctx, 10); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	// Re-subscribing from a new chat must reactivate with the new chat id.
	if err := reg.Subscribe(ctx, 10, 101); err != nil {
		t.Fatalf("Subscribe again: %v", err)
	}

	ids, err := reg.ActiveChatIDs(ctx)
	if err != nil {
		t.Fatalf("ActiveChatIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != 101 {
		t.Fatalf("ActiveChatIDs = %v, want [101]", ids)
	}
}

func TestFileRegistrySurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	reg := openTestRegistry(t, dir)
	if err := reg.Subscribe(ctx, 1, 11); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := reg.Subscribe(ctx, 2, 22); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := reg.Unsubscribe(ctx, 1); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reg = openTestRegistry(t, dir)
	defer reg.Close()

	ids, err := reg.ActiveChatIDs(ctx)
	if err != nil {
		t.Fatalf("ActiveChatIDs after reopen: %v", err)
	}
	if len(ids) != 1 || ids[0] != 22 {
		t.Fatalf("ActiveChatIDs after reopen = %v, want [22]", ids)
	}
	active, err := reg.IsActive(ctx, 1)
	if err != nil || active {
		t.Fatalf("unsubscribe must survive reopen: %v, %v", active, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenFileRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
}
