package snapshot

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/filex"
)

// Reader loads the snapshot at a fixed path and caches it until the file
// changes.
type Reader struct {
	path string

	mu      sync.Mutex
	cached  *Snapshot
	modTime time.Time
	size    int64
}

func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Path returns the snapshot location.
func (r *Reader) Path() string { return r.path }

// Load returns the current snapshot, reusing the cached copy when the file's
// modification time and size are unchanged.
func (r *Reader) Load() (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fi, err := os.Stat(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		r.cached = nil
		return nil, common.ErrSnapshotMissing
	}
	if err != nil {
		return nil, err
	}

	if r.cached != nil && fi.ModTime().Equal(r.modTime) && fi.Size() == r.size {
		return r.cached, nil
	}

	s, err := Load(r.path)
	if err != nil {
		r.cached = nil
		return nil, err
	}
	r.cached, r.modTime, r.size = s, fi.ModTime(), fi.Size()
	return s, nil
}

// Invalidate drops the cached snapshot.
func (r *Reader) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}

// Remove deletes the snapshot file and drops the cache. Used when a new
// export starts so no stale snapshot outlives a cancelled run.
func (r *Reader) Remove() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
	return filex.RemoveIfExists(r.path)
}
