package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fitlytics/fitlytics/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var ErrBlobNotFound = errors.New("blob not found")

// DiskStore keeps photo blobs on the local filesystem under a single
// root directory. Blob names are relative paths like
// "42/2024/03/20240315080000_a1b2c3d4_front.jpg".
type DiskStore struct {
	rootPath string
}

func NewDiskStore(rootPath string) (*DiskStore, error) {
	if rootPath == "" {
		return nil, errors.New("root path cannot be empty")
	}
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("create root dir: %w", err)
	}
	return &DiskStore{
		rootPath: rootPath,
	}, nil
}

// blobPath resolves a blob name to an absolute path, rejecting names
// that escape the root directory.
func (ds *DiskStore) blobPath(blobName string) (string, error) {
	cleaned := filepath.Clean(blobName)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid blob name: %s", blobName)
	}
	return path.Join(ds.rootPath, cleaned), nil
}

func (ds *DiskStore) Save(ctx context.Context, blobName string, src io.Reader) (_ int64, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("blob.name", blobName))

	blobPath, err := ds.blobPath(blobName)
	if err != nil {
		return -1, err
	}

	if err := os.MkdirAll(path.Dir(blobPath), 0o755); err != nil {
		return -1, err
	}

	if _, err := os.Stat(blobPath); err == nil {
		return -1, fmt.Errorf("blob already exists: %s", blobName)
	}

	dst, err := os.Create(blobPath)
	if err != nil {
		return -1, err
	}
	defer dst.Close()

	written, err := io.Copy(dst, src)
	if err != nil {
		return -1, err
	}

	log.Debugf("disk store: saved blob %s [%d bytes]", blobName, written)
	span.SetAttributes(attribute.Int64("blob.size", written))

	return written, nil
}

func (ds *DiskStore) Open(ctx context.Context, blobName string) (_ io.ReadCloser, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.open")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("blob.name", blobName))

	blobPath, err := ds.blobPath(blobName)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(blobPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return f, nil
}

func (ds *DiskStore) Delete(ctx context.Context, blobName string) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("blob.name", blobName))

	blobPath, err := ds.blobPath(blobName)
	if err != nil {
		return err
	}

	if err := os.Remove(blobPath); err != nil {
		if os.IsNotExist(err) {
			return ErrBlobNotFound
		}
		return err
	}

	log.Debugf("disk store: deleted blob %s", blobName)
	return nil
}
