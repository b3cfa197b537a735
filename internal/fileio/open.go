// Package fileio opens input paths that may live on local disk or in Google
// Cloud Storage (gs://bucket/object).
package fileio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
)

const gsPrefix = "gs://"

var ErrInvalidPath = errors.New("invalid path")

// Reader for a google storage object; closing it also closes the client
type gsReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *gsReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func IsGS(path string) bool {
	return strings.HasPrefix(path, gsPrefix)
}

// Splits gs://bucket/object into its bucket and object names
func SplitGSPath(path string) (bucket, object string, err error) {
	parts := strings.SplitN(strings.TrimPrefix(path, gsPrefix), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w, expected gs://bucket/object but got %s", ErrInvalidPath, path)
	}
	return parts[0], parts[1], nil
}

// Opens a local file, or a google storage object when path starts with gs://
// (default application credentials are used).
func Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if !IsGS(path) {
		return os.Open(path)
	}
	bucket, object, err := SplitGSPath(path)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating storage client for %s: %w", path, err)
	}
	rdr, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	return &gsReader{Reader: rdr, client: client}, nil
}

// Reads the whole file at path
func ReadFile(ctx context.Context, path string) ([]byte, error) {
	if !IsGS(path) {
		return os.ReadFile(path)
	}
	rdr, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()
	return io.ReadAll(rdr)
}
