// Package checkpoint stores named snapshots on disk as snappy-compressed
// JSON blobs.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

const (
	BestName = "best.pt"
	LastName = "last.pt"

	DefaultMaxSize = 64 * datasize.MB
)

var (
	ErrNotFound = errors.New("checkpoint not found")
	ErrCorrupt  = errors.New("checkpoint corrupt or incompatible")
)

type FileStore struct {
	Dir     string
	MaxSize datasize.ByteSize
}

func NewFileStore(dir string, maxSize datasize.ByteSize) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create checkpoint dir %s", dir)
	}
	if maxSize == 0 {
		maxSize = DefaultMaxSize
	}
	return &FileStore{Dir: dir, MaxSize: maxSize}, nil
}

func (s *FileStore) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Save writes v under name. The file is replaced atomically.
func (s *FileStore) Save(name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode checkpoint")
	}
	blob := snappy.Encode(nil, payload)
	if s.MaxSize > 0 && uint64(len(blob)) > s.MaxSize.Bytes() {
		return errors.Errorf("checkpoint %s is %s, limit %s", name,
			datasize.ByteSize(len(blob)).HumanReadable(), s.MaxSize.HumanReadable())
	}

	tmp, err := os.CreateTemp(s.Dir, name+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp checkpoint")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write checkpoint")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close checkpoint")
	}
	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return errors.Wrap(err, "publish checkpoint")
	}
	return nil
}

// Load decodes the checkpoint called name into v. A missing file yields
// ErrNotFound; anything unreadable yields ErrCorrupt.
func (s *FileStore) Load(name string, v any) error {
	path := s.Path(name)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(ErrNotFound, path)
	}
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	if s.MaxSize > 0 && uint64(info.Size()) > s.MaxSize.Bytes() {
		return errors.Wrapf(ErrCorrupt, "%s: %s exceeds limit %s", path,
			datasize.ByteSize(info.Size()).HumanReadable(), s.MaxSize.HumanReadable())
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	payload, err := snappy.Decode(nil, blob)
	if err != nil {
		return errors.Wrapf(ErrCorrupt, "%s: %v", path, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.Wrapf(ErrCorrupt, "%s: %v", path, err)
	}
	return nil
}

// Size reports the on-disk size of a checkpoint.
func (s *FileStore) Size(name string) (datasize.ByteSize, error) {
	info, err := os.Stat(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return 0, errors.Wrap(ErrNotFound, s.Path(name))
	}
	if err != nil {
		return 0, err
	}
	return datasize.ByteSize(info.Size()), nil
}
