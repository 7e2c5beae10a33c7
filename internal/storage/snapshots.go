package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// SnapshotStore archives data exports on the local filesystem, one file per
// export, newest first on listing. It is a convenience trail, not a backup
// system; the database remains the source of truth.
type SnapshotStore struct{ base string }

func NewSnapshotStore(base string) (*SnapshotStore, error) {
	if base == "" {
		base = "./data/snapshots"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &SnapshotStore{base: base}, nil
}

type SnapshotInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Save writes a snapshot under the given name and returns the name.
func (s *SnapshotStore) Save(name string, r io.Reader) (string, error) {
	if name == "" {
		return "", errors.New("empty snapshot name")
	}
	dst := filepath.Join(s.base, filepath.Base(name))
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return filepath.Base(name), nil
}

func (s *SnapshotStore) List() ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, err
	}
	out := []SnapshotInfo{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, SnapshotInfo{
			Name:      e.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *SnapshotStore) Open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.base, filepath.Base(name)))
}
