// Package archive persists feature store snapshots as immutable blobs in
// object storage and tracks them through an append-only index. Snapshots are
// never rewritten: every commit produces a new version, and the head pointer
// is the only mutable piece of state.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nmedina/skulens/internal/domain"
	"github.com/nmedina/skulens/internal/logger"
	"github.com/nmedina/skulens/internal/storage"
)

// Index records snapshot metadata and the head pointer. Implemented by
// repository.SnapshotRepository; kept as an interface so archive tests can
// run against an in-memory fake.
type Index interface {
	Append(ctx context.Context, snap *domain.Snapshot) error
	SetHead(ctx context.Context, versionID string) error
	Head(ctx context.Context) (string, error)
	Get(ctx context.Context, versionID string) (*domain.Snapshot, error)
	List(ctx context.Context) ([]domain.Snapshot, error)
}

// Archive stores snapshot blobs and their index entries.
type Archive struct {
	blobs  storage.ObjectStorage
	index  Index
	prefix string
	log    *logger.Logger
}

// New creates an Archive writing blobs under the given key prefix.
func New(blobs storage.ObjectStorage, index Index, prefix string, log *logger.Logger) *Archive {
	if prefix == "" {
		prefix = "snapshots"
	}
	return &Archive{
		blobs:  blobs,
		index:  index,
		prefix: strings.TrimSuffix(prefix, "/"),
		log:    log.WithField(logger.FieldComponent, "archive"),
	}
}

// NewVersionID returns a fresh snapshot version identifier. IDs sort
// lexicographically by creation time; the uuid fragment breaks ties between
// snapshots committed in the same second.
func NewVersionID() string {
	ts := time.Now().UTC().Format("20060102T150405")
	return "v" + ts + "-" + uuid.NewString()[:8]
}

// Commit uploads an encoded snapshot blob and appends it to the index,
// advancing the head pointer. The blob is uploaded before the index row is
// written, so a failure between the two leaves an orphaned blob but never a
// dangling index entry.
//
// Parameters:
//   - ctx: request context
//   - versionID: identifier from NewVersionID
//   - blob: encoded snapshot bytes
//   - checksum: hex CRC of the blob contents
//   - productCount: number of products captured in the snapshot
//
// Returns:
//   - *domain.Snapshot: the recorded snapshot metadata
//   - error: upload or index failure
func (a *Archive) Commit(ctx context.Context, versionID string, blob []byte, checksum string, productCount int) (*domain.Snapshot, error) {
	key := a.key(versionID)
	if err := a.blobs.Upload(ctx, key, bytes.NewReader(blob), int64(len(blob)), "application/octet-stream"); err != nil {
		return nil, fmt.Errorf("upload snapshot %s: %w", versionID, err)
	}

	snap := &domain.Snapshot{
		VersionID:    versionID,
		CreatedAt:    time.Now().UTC(),
		StorageKey:   key,
		ProductCount: productCount,
		ByteSize:     int64(len(blob)),
		Checksum:     checksum,
	}
	if err := a.index.Append(ctx, snap); err != nil {
		return nil, fmt.Errorf("index snapshot %s: %w", versionID, err)
	}

	a.log.WithFields(logger.Fields{
		logger.FieldVersionID: versionID,
		logger.FieldCount:     productCount,
		"bytes":               snap.ByteSize,
	}).Info("Snapshot committed")
	return snap, nil
}

// Fetch returns the snapshot metadata and blob for a version.
// Returns domain.ErrNotFound when the version is not indexed.
func (a *Archive) Fetch(ctx context.Context, versionID string) (*domain.Snapshot, []byte, error) {
	snap, err := a.index.Get(ctx, versionID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := a.blobs.Download(ctx, snap.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("download snapshot %s: %w", versionID, err)
	}
	defer rc.Close()
	blob, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot %s: %w", versionID, err)
	}
	return snap, blob, nil
}

// Head returns the current head version ID, or "" when no snapshot exists.
func (a *Archive) Head(ctx context.Context) (string, error) {
	return a.index.Head(ctx)
}

// Promote moves the head pointer to an existing version without writing a
// new snapshot. Used by restore.
func (a *Archive) Promote(ctx context.Context, versionID string) error {
	if _, err := a.index.Get(ctx, versionID); err != nil {
		return err
	}
	if err := a.index.SetHead(ctx, versionID); err != nil {
		return fmt.Errorf("promote %s: %w", versionID, err)
	}
	a.log.WithField(logger.FieldVersionID, versionID).Info("Head promoted")
	return nil
}

// List returns all snapshots, most recent first.
func (a *Archive) List(ctx context.Context) ([]domain.Snapshot, error) {
	return a.index.List(ctx)
}

func (a *Archive) key(versionID string) string {
	return a.prefix + "/" + versionID + ".bin"
}
