package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func init() {
	Register("local", func(args map[string]string) (Store, error) {
		dir := args["dir"]
		if dir == "" {
			return nil, fmt.Errorf("local blob store dir is required")
		}
		return NewLocalStore(dir)
	})
}

// LocalStore keeps blobs as files named by their content identifier.
// Suited to single-node deployments and tests.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StoreError{Op: "init", Err: err}
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Put(_ context.Context, data []byte) (string, error) {
	cid := ContentID(data)
	path := filepath.Join(s.dir, cid)
	if _, err := os.Stat(path); err == nil {
		// Content-addressed: the blob is already there.
		return cid, nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", &StoreError{Op: "put", CID: cid, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", &StoreError{Op: "put", CID: cid, Err: err}
	}
	return cid, nil
}

func (s *LocalStore) Get(_ context.Context, cid string) ([]byte, error) {
	if strings.ContainsAny(cid, "/\\") {
		return nil, &StoreError{Op: "get", CID: cid, Err: fmt.Errorf("invalid content id")}
	}
	data, err := os.ReadFile(filepath.Join(s.dir, cid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &StoreError{Op: "get", CID: cid, Err: ErrNotFound}
		}
		return nil, &StoreError{Op: "get", CID: cid, Err: err}
	}
	return data, nil
}
