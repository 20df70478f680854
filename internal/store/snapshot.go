package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	lerrors "github.com/arkilian/rangelookup/internal/errors"
	"github.com/arkilian/rangelookup/internal/storage"
)

// OpenSnapshot opens a published SQLite index snapshot read-only. The object
// is downloaded into cacheDir unless a non-empty copy is already there.
func OpenSnapshot(ctx context.Context, objects storage.ObjectStorage, objectPath, cacheDir string) (*SQLiteStore, error) {
	localPath := filepath.Join(cacheDir, filepath.FromSlash(objectPath))

	if info, err := os.Stat(localPath); err != nil || info.Size() == 0 {
		if err := objects.Download(ctx, objectPath, localPath); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				return nil, lerrors.NewStoreError(lerrors.CodeSnapshotFetchFailed, "snapshot not published: "+objectPath, err).
					WithDetails(map[string]interface{}{"object": objectPath})
			}
			return nil, lerrors.NewStoreError(lerrors.CodeSnapshotFetchFailed, "fetch snapshot: "+objectPath, err).
				WithDetails(map[string]interface{}{"object": objectPath})
		}
	}

	return OpenSQLiteStoreReadOnly(localPath)
}
