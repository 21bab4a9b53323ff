package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
)

var ErrArchiveNotFound = errors.New("project file not found")

// ArchiveStore holds submitted bundle archives by file name.
type ArchiveStore interface {
	// Put stores r under name and returns the number of bytes written.
	Put(ctx context.Context, name string, r io.Reader, size int64) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
	Names(ctx context.Context) ([]string, error)
}

type countingReader struct {
	r     io.Reader
	bytes int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.bytes += int64(n)
	return n, err
}

// LocalArchiveStore keeps archives as files in one directory.
type LocalArchiveStore struct {
	dir string
}

func NewLocalArchiveStore(dir string) *LocalArchiveStore {
	return &LocalArchiveStore{dir: dir}
}

func (s *LocalArchiveStore) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

func (s *LocalArchiveStore) Put(_ context.Context, name string, r io.Reader, _ int64) (int64, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, errors.Wrap(err, "create submissions directory")
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return 0, errors.Wrap(err, "create temporary file")
	}
	cr := &countingReader{r: r}
	_, err = io.Copy(tmp, cr)
	tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return 0, errors.Wrap(err, "write archive")
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		os.Remove(tmp.Name())
		return 0, errors.Wrap(err, "store archive")
	}
	return cr.bytes, nil
}

func (s *LocalArchiveStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(ErrArchiveNotFound, name)
	}
	return f, err
}

func (s *LocalArchiveStore) Exists(_ context.Context, name string) (bool, error) {
	info, err := os.Stat(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (s *LocalArchiveStore) Delete(_ context.Context, name string) error {
	err := os.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalArchiveStore) Names(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// MinioArchiveStore keeps archives as objects under a prefix of a bucket.
type MinioArchiveStore struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioArchiveStore(client *minio.Client, bucket, prefix string) *MinioArchiveStore {
	return &MinioArchiveStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *MinioArchiveStore) key(name string) string {
	return s.prefix + "/" + filepath.Base(name)
}

func (s *MinioArchiveStore) Put(ctx context.Context, name string, r io.Reader, size int64) (int64, error) {
	cr := &countingReader{r: r}
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), cr, size,
		minio.PutObjectOptions{ContentType: "application/zip"})
	if err != nil {
		return 0, errors.Wrap(err, "failed to upload to MinIO")
	}
	return cr.bytes, nil
}

func (s *MinioArchiveStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if ok, err := s.Exists(ctx, name); err != nil {
		return nil, err
	} else if !ok {
		return nil, errors.Wrap(ErrArchiveNotFound, name)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "get archive from MinIO")
	}
	return obj, nil
}

func (s *MinioArchiveStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.key(name), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, errors.Wrap(err, "stat archive")
	}
	return true, nil
}

func (s *MinioArchiveStore) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	return errors.Wrap(err, "remove archive")
}

func (s *MinioArchiveStore) Names(ctx context.Context) ([]string, error) {
	names := []string{}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix + "/"}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, "list archives")
		}
		names = append(names, strings.TrimPrefix(obj.Key, s.prefix+"/"))
	}
	sort.Strings(names)
	return names, nil
}
