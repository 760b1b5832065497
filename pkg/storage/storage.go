// Package storage reads reference data from and archives batch reports to
// Azure Blob Storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/lifecycle"
)

// System is a flat key space of blobs. Keys are slash-separated relative
// paths without "." or ".." segments.
type System interface {
	// Start makes startup wait on the container existing, creating it if needed.
	Start(lc *lifecycle.Coordinator) error
	// Upload writes reader to key, replacing any existing blob.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Download opens the blob at key; the caller closes it. A missing blob
	// wraps ErrNotFound.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Exists reports whether a blob is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// ReadAll downloads the blob at key into memory.
func ReadAll(ctx context.Context, s System, key string) ([]byte, error) {
	r, err := s.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

type container struct {
	client *azblob.Client
	name   string
	logger *slog.Logger
}

// New builds an Azure-backed System from cfg. The connection string is
// parsed here; the service is first contacted by the Start hook.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &container{
		client: client,
		name:   cfg.ContainerName,
		logger: logger.With("system", "storage", "container", cfg.ContainerName),
	}, nil
}

func (c *container) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup("storage", func(ctx context.Context) error {
		_, err := c.client.CreateContainer(ctx, c.name, nil)
		switch {
		case err == nil:
			c.logger.Info("storage container created")
		case bloberror.HasCode(err, bloberror.ContainerAlreadyExists):
			c.logger.Info("storage container ready")
		default:
			c.logger.Error("storage container unavailable", "error", err)
			return fmt.Errorf("create container %s: %w", c.name, err)
		}
		return nil
	})
	return nil
}

func (c *container) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	_, err := c.client.UploadStream(ctx, c.name, key, reader, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}

	c.logger.DebugContext(ctx, "blob uploaded", "key", key, "content_type", contentType)
	return nil
}

func (c *container) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b, err := c.blob(key)
	if err != nil {
		return nil, err
	}

	resp, err := b.DownloadStream(ctx, nil)
	if err != nil {
		return nil, c.mapError("download", key, err)
	}
	return resp.Body, nil
}

func (c *container) Exists(ctx context.Context, key string) (bool, error) {
	b, err := c.blob(key)
	if err != nil {
		return false, err
	}

	_, err = b.GetProperties(ctx, nil)
	switch {
	case err == nil:
		return true, nil
	case missing(err):
		return false, nil
	}
	return false, c.mapError("check", key, err)
}

func (c *container) blob(key string) (*blob.Client, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return c.client.ServiceClient().NewContainerClient(c.name).NewBlobClient(key), nil
}

func (c *container) mapError(op, key string, err error) error {
	if missing(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("%s blob %s: %w", op, key, err)
}

func missing(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound)
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	for part := range strings.SplitSeq(key, "/") {
		if part == "." || part == ".." {
			return fmt.Errorf("%w: %s", ErrInvalidKey, key)
		}
	}
	return nil
}
