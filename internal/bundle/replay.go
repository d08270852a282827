package bundle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/distribox/distribox/internal/blobpool"
	"github.com/distribox/distribox/internal/detector"
	"github.com/distribox/distribox/internal/history"
)

// replayToWorkingTree performs the single filesystem mutation a merge
// replay action implies, with the detector's mute flag held for the
// duration of just this syscall (§4.C3/§9) so the resulting filesystem
// notification does not re-enter the detector pipeline.
func replayToWorkingTree(root string, pool *blobpool.Pool, mute *detector.Mute, action history.ReplayAction) error {
	if action.Kind == history.ReplayNone {
		return nil
	}

	return mute.Do(func() error {
		switch action.Kind {
		case history.ReplayMkdir:
			return os.MkdirAll(abs(root, action.Path), dirPerms)
		case history.ReplayWriteEmpty:
			return writeEmpty(abs(root, action.Path))
		case history.ReplayCopyBlob:
			if !pool.Exists(action.SHA1) {
				return fmt.Errorf("%w: blob %s referenced by merge not present in pool", ErrIntegrity, action.SHA1)
			}

			return pool.CopyTo(action.SHA1, abs(root, action.Path))
		case history.ReplayMove:
			return move(abs(root, action.FromPath), abs(root, action.Path))
		case history.ReplayRmdir:
			return os.RemoveAll(abs(root, action.Path))
		case history.ReplayUnlink:
			err := os.Remove(abs(root, action.Path))
			if err != nil && os.IsNotExist(err) {
				return nil
			}

			return err
		default:
			return fmt.Errorf("bundle: unknown replay action kind %v", action.Kind)
		}
	})
}

func abs(root, relPath string) string {
	return filepath.Join(root, filepath.FromSlash(relPath))
}

func writeEmpty(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return fmt.Errorf("bundle: creating parent dir for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerms)
	if err != nil {
		return fmt.Errorf("bundle: creating empty file %s: %w", path, err)
	}

	return f.Close()
}

func move(from, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), dirPerms); err != nil {
		return fmt.Errorf("bundle: creating parent dir for %s: %w", to, err)
	}

	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("bundle: moving %s to %s: %w", from, to, err)
	}

	return nil
}
