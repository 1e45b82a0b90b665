package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	shell "github.com/ipfs/go-ipfs-api"

	apperrors "github.com/aqmesh/station-api/pkg/errors"
)

// shellAPI is the slice of go-ipfs-api the store needs. Tests
// substitute a fake to exercise chunked streams and decode failures.
type shellAPI interface {
	Add(r io.Reader, options ...shell.AddOpts) (string, error)
	Cat(path string) (io.ReadCloser, error)
}

// IPFSStore talks to an IPFS node over its HTTP API. The shell does
// not thread contexts through Add/Cat; the node client's transport
// timeout applies instead.
type IPFSStore struct {
	sh shellAPI
}

func NewIPFSStore(apiURL string) *IPFSStore {
	return &IPFSStore{sh: shell.NewShell(apiURL)}
}

func (s *IPFSStore) Put(_ context.Context, v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", apperrors.NewStoreWrite(err)
	}
	contentID, err := s.sh.Add(bytes.NewReader(data))
	if err != nil {
		return "", apperrors.NewStoreWrite(err)
	}
	return contentID, nil
}

func (s *IPFSStore) Get(_ context.Context, contentID string, out interface{}) error {
	reader, err := s.sh.Cat(contentID)
	if err != nil {
		return apperrors.NewFetch(contentID, err)
	}
	defer reader.Close()

	// The read may arrive chunked; drain it fully before decoding.
	data, err := io.ReadAll(reader)
	if err != nil {
		return apperrors.NewFetch(contentID, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.NewFetch(contentID, err)
	}
	return nil
}
