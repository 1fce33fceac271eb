// Package storage stores the files uploaded for file fields.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
)

// File is an uploaded file.
type File struct {
	Name string
	Size int64
	open func() (io.ReadCloser, error)
}

// Open returns the content of the file.
func (f *File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, errors.New("storage: file has no content")
	}
	return f.open()
}

// FromHeader returns the file of a multipart form upload.
func FromHeader(h *multipart.FileHeader) *File {
	return &File{
		Name: h.Filename,
		Size: h.Size,
		open: func() (io.ReadCloser, error) { return h.Open() },
	}
}

// FromBytes returns a file holding b.
func FromBytes(name string, b []byte) *File {
	return &File{
		Name: name,
		Size: int64(len(b)),
		open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(b)), nil },
	}
}

// Storage stores files on named disks. The empty disk name selects the
// default disk.
type Storage interface {
	// Store writes f under folder and returns its storage-relative path.
	Store(ctx context.Context, f *File, folder, disk string) (string, error)
	// Delete removes the file at path. Deleting a missing file is not an
	// error.
	Delete(ctx context.Context, path, disk string) error
	// URL returns the public location of path.
	URL(path, disk string) string
}

// Relative returns the storage-relative path of a location returned by
// URL. Locations without the URL prefix are returned unchanged.
func Relative(s Storage, location, disk string) string {
	return strings.TrimPrefix(location, s.URL("", disk))
}

// Disks dispatches to a storage per disk name.
type Disks map[string]Storage

func (d Disks) disk(name string) (Storage, error) {
	s, ok := d[name]
	if !ok {
		return nil, fmt.Errorf("storage: unknown disk %q", name)
	}
	return s, nil
}

// Store implements Storage.
func (d Disks) Store(ctx context.Context, f *File, folder, disk string) (string, error) {
	s, err := d.disk(disk)
	if err != nil {
		return "", err
	}
	return s.Store(ctx, f, folder, disk)
}

// Delete implements Storage.
func (d Disks) Delete(ctx context.Context, path, disk string) error {
	s, err := d.disk(disk)
	if err != nil {
		return err
	}
	return s.Delete(ctx, path, disk)
}

// URL implements Storage. Paths of unknown disks are returned unchanged.
func (d Disks) URL(path, disk string) string {
	s, err := d.disk(disk)
	if err != nil {
		return path
	}
	return s.URL(path, disk)
}

var _ Storage = Disks(nil)
