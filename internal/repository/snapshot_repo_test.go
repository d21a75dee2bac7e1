package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nmedina/skulens/internal/config"
	"github.com/nmedina/skulens/internal/domain"
)

func testDB(t *testing.T) *SnapshotRepository {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	return NewSnapshotRepository(db)
}

func TestSnapshotListOrdersMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	repo := testDB(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// Appended out of creation order on purpose: List must sort by the
	// recorded timestamps, not by insertion order.
	for _, snap := range []domain.Snapshot{
		{VersionID: "v-b", CreatedAt: base.Add(1 * time.Minute), StorageKey: "snapshots/v-b.bin"},
		{VersionID: "v-c", CreatedAt: base.Add(2 * time.Minute), StorageKey: "snapshots/v-c.bin"},
		{VersionID: "v-a", CreatedAt: base, StorageKey: "snapshots/v-a.bin"},
	} {
		snap := snap
		if err := repo.Append(ctx, &snap); err != nil {
			t.Fatalf("Append(%s) error = %v", snap.VersionID, err)
		}
	}

	snaps, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := make([]string, len(snaps))
	for i, s := range snaps {
		got[i] = s.VersionID
	}
	want := []string{"v-c", "v-b", "v-a"}
	if len(got) != len(want) {
		t.Fatalf("List() returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List() returned %v, want %v", got, want)
		}
	}
}

func TestSnapshotListBreaksTimestampTiesByVersionID(t *testing.T) {
	ctx := context.Background()
	repo := testDB(t)

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"v-1", "v-2"} {
		snap := domain.Snapshot{VersionID: id, CreatedAt: at, StorageKey: "snapshots/" + id + ".bin"}
		if err := repo.Append(ctx, &snap); err != nil {
			t.Fatalf("Append(%s) error = %v", id, err)
		}
	}

	snaps, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snaps) != 2 || snaps[0].VersionID != "v-2" || snaps[1].VersionID != "v-1" {
		t.Errorf("List() = %+v, want v-2 before v-1 on equal timestamps", snaps)
	}
}

func TestSnapshotAppendMovesHead(t *testing.T) {
	ctx := context.Background()
	repo := testDB(t)

	head, err := repo.Head(ctx)
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if head != "" {
		t.Errorf("Head() = %q on an empty index, want \"\"", head)
	}

	for _, id := range []string{"v-1", "v-2"} {
		snap := domain.Snapshot{VersionID: id, CreatedAt: time.Now().UTC(), StorageKey: "snapshots/" + id + ".bin"}
		if err := repo.Append(ctx, &snap); err != nil {
			t.Fatalf("Append(%s) error = %v", id, err)
		}
	}
	if head, _ = repo.Head(ctx); head != "v-2" {
		t.Errorf("Head() = %q after appends, want v-2", head)
	}

	if err := repo.SetHead(ctx, "v-1"); err != nil {
		t.Fatalf("SetHead() error = %v", err)
	}
	if head, _ = repo.Head(ctx); head != "v-1" {
		t.Errorf("Head() = %q after SetHead, want v-1", head)
	}
}

func TestSnapshotGetUnknownVersion(t *testing.T) {
	repo := testDB(t)
	if _, err := repo.Get(context.Background(), "v-missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
