package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// acquireLock takes an exclusive advisory lock on the store by creating a
// sidecar .lock file with O_EXCL. A second run against the same store fails
// fast instead of racing the backup+rename sequence. The returned function
// releases the lock.
func acquireLock(storePath string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
		return nil, err
	}
	lockPath := storePath + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("store is locked by another run (%s)", lockPath)
		}
		return nil, err
	}
	fmt.Fprintf(f, "pid=%d time=%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	f.Close()

	return func() { os.Remove(lockPath) }, nil
}

// backupFile copies src to a sibling named <base>_<YYMMDD>.<ext>, appending
// _<n> when a backup for the same day already exists. Returns the backup
// path.
func backupFile(src string, now time.Time) (string, error) {
	dir := filepath.Dir(src)
	ext := filepath.Ext(src)
	base := strings.TrimSuffix(filepath.Base(src), ext)
	stamp := now.Format("060102")

	candidate := filepath.Join(dir, base+"_"+stamp+ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			break
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%s_%d%s", base, stamp, n, ext))
	}

	if err := copyFile(src, candidate); err != nil {
		return "", err
	}
	return candidate, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
