package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSConfig captures the parameters required to archive into GCS.
type GCSConfig struct {
	Bucket string
	Prefix string
}

// GCS writes crawl-result artifacts to a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS creates a GCS-backed archive.
func NewGCS(client *storage.Client, cfg GCSConfig) (*GCS, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCS{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// PutObject uploads data under the configured prefix and returns a gs:// URI.
func (g *GCS) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	object := path
	if g.prefix != "" {
		object = g.prefix + "/" + path
	}
	writer := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, object), nil
}
