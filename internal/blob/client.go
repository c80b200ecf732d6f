// Package blob wraps the S3-compatible object store holding file uploads,
// note image attachments, and avatars.
package blob

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	BucketUserFiles  = "user-files"
	BucketNoteImages = "notes-images"
	BucketAvatars    = "avatars"
	BucketDefault    = "notes"
)

type Client struct {
	mc *minio.Client
}

func New(endpoint, accessKey, secretKey string, useSSL bool) (*Client, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}
	return &Client{mc: mc}, nil
}

// EnsureBuckets creates the product buckets if missing. Called once at
// startup.
func (c *Client) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{BucketUserFiles, BucketNoteImages, BucketAvatars, BucketDefault} {
		exists, err := c.mc.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if exists {
			continue
		}
		if err := c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		log.Printf("blob: created bucket %s", bucket)
	}
	return nil
}

func (c *Client) Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	_, err := c.mc.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (c *Client) Remove(ctx context.Context, bucket, key string) error {
	if err := c.mc.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// SignedURL returns a time-limited download URL for a private object.
func (c *Client) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	signed, err := c.mc.PresignedGetObject(ctx, bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return signed.String(), nil
}

// PublicURL builds the unauthenticated URL for objects in public buckets
// (avatars, note images).
func (c *Client) PublicURL(bucket, key string) string {
	endpoint := c.mc.EndpointURL()
	return fmt.Sprintf("%s://%s/%s/%s", endpoint.Scheme, endpoint.Host, bucket, url.PathEscape(key))
}
