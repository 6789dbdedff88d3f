package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"printshop/internal/certificate"
	"printshop/internal/config"
	"printshop/internal/metrics"
	"printshop/internal/queue"
)

// ObjectStore is where archived reports end up.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	URL(ctx context.Context, key string) (string, error)
}

// Bucket stores reports in a MinIO/S3 bucket.
type Bucket struct {
	client *minio.Client
	bucket string
	region string
	urlTTL time.Duration
}

// NewBucket creates a MinIO client from the config.
func NewBucket(cfg config.App) (*Bucket, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Bucket{client: client, bucket: cfg.ReportBucket, region: cfg.S3Region, urlTTL: cfg.ReportURLTTL}, nil
}

// EnsureBucket creates the report bucket if it is missing.
func (b *Bucket) EnsureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", b.bucket, err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: b.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", b.bucket, err)
	}
	return nil
}

func (b *Bucket) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return fmt.Errorf("upload report: %w", err)
	}
	return nil
}

// URL returns a presigned GET link valid for the configured TTL.
func (b *Bucket) URL(ctx context.Context, key string) (string, error) {
	u, err := b.client.PresignedGetObject(ctx, b.bucket, key, b.urlTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign report: %w", err)
	}
	return u.String(), nil
}

// ObjectKey names an archived report.
func ObjectKey(id string, generatedAt time.Time) string {
	return fmt.Sprintf("reports/%s/%s.pdf", id, generatedAt.UTC().Format("20060102T150405Z"))
}

// Verifier is the part of the certificate service archiving depends on.
type Verifier interface {
	Verify(ctx context.Context, raw string) (certificate.Result, error)
}

// Archivist re-verifies a certificate, renders the report and stores it.
// It runs in the background worker, so the archived copy reflects the record
// at the time the task is processed.
type Archivist struct {
	verifier Verifier
	renderer *Renderer
	store    ObjectStore
	now      func() time.Time
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewArchivist(v Verifier, r *Renderer, store ObjectStore, log *zap.Logger, m *metrics.Metrics) *Archivist {
	if log == nil {
		log = zap.NewNop()
	}
	return &Archivist{
		verifier: v,
		renderer: r,
		store:    store,
		now:      time.Now,
		log:      log.With(zap.String("component", "report-archive")),
		metrics:  m,
	}
}

// Archived describes a stored report.
type Archived struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

// Archive stores the current report for id and returns where it went.
func (a *Archivist) Archive(ctx context.Context, id string) (Archived, error) {
	res, err := a.verifier.Verify(ctx, id)
	if err != nil {
		a.metrics.ReportArchived(false)
		return Archived{}, err
	}
	generatedAt := a.now()
	data, err := a.renderer.Render(res, generatedAt)
	a.metrics.ReportRendered(err == nil)
	if err != nil {
		a.metrics.ReportArchived(false)
		return Archived{}, err
	}
	key := ObjectKey(res.ID, generatedAt)
	if err := a.store.Put(ctx, key, data); err != nil {
		a.metrics.ReportArchived(false)
		return Archived{}, err
	}
	a.metrics.ReportArchived(true)

	out := Archived{Key: key}
	if link, err := a.store.URL(ctx, key); err != nil {
		a.log.Warn("presign failed", zap.String("key", key), zap.Error(err))
	} else {
		out.URL = link
	}
	a.log.Info("report archived", zap.String("id", res.ID), zap.String("key", key), zap.Int("bytes", len(data)))
	return out, nil
}

// HandleMessage processes a queue.TypeArchiveReport message.
func (a *Archivist) HandleMessage(ctx context.Context, msg queue.Message) error {
	var p queue.ArchivePayload
	if err := json.Unmarshal(msg.Body, &p); err != nil {
		return fmt.Errorf("decode archive payload: %w", err)
	}
	if p.CertificateID == "" {
		return fmt.Errorf("archive payload without certificate id")
	}
	_, err := a.Archive(ctx, p.CertificateID)
	return err
}
