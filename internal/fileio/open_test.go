package fileio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSplitGSPath(t *testing.T) {
	testCases := []struct {
		name        string
		path        string
		bucket      string
		object      string
		expectedErr error
	}{
		{name: "basic", path: "gs://bucket/dir/file.mdist", bucket: "bucket", object: "dir/file.mdist"},
		{name: "no object", path: "gs://bucket", expectedErr: ErrInvalidPath},
		{name: "empty object", path: "gs://bucket/", expectedErr: ErrInvalidPath},
		{name: "no bucket", path: "gs:///file", expectedErr: ErrInvalidPath},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			bucket, object, err := SplitGSPath(test.path)
			if !errors.Is(err, test.expectedErr) {
				t.Fatalf("unexpected error %v", err)
			}
			if bucket != test.bucket || object != test.object {
				t.Errorf("got (%s, %s), expected (%s, %s)", bucket, object, test.bucket, test.object)
			}
		})
	}
}

func TestReadLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	if err := os.WriteFile(path, []byte("a b\n"), 0644); err != nil {
		t.Fatal(err)
	}
	data, err := ReadFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a b\n" {
		t.Errorf("read %q", data)
	}
	if _, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
