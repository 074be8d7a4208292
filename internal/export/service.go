package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// downloadURLTTL is how long a generated delivery download link stays valid.
const downloadURLTTL = 24 * time.Hour

// Service uploads rendered delivery files to MinIO. A nil Service is valid
// and means exports are disabled; Upload then reports that with an error the
// caller logs and ignores.
type Service struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

// NewMinIOService creates the export storage service, or nil when MinIO is
// not configured.
func NewMinIOService(cfg config.StorageConfig, log *logger.Logger) (*Service, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Service{
		client: client,
		bucket: cfg.GetMinioBucketDeliveries(),
		log:    log.WithComponent("export"),
	}, nil
}

// Enabled reports whether exports are configured.
func (s *Service) Enabled() bool {
	return s != nil && s.client != nil
}

// EnsureBucketExists creates the deliveries bucket if needed.
func (s *Service) EnsureBucketExists(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Upload stores a rendered delivery CSV and returns a presigned download URL.
func (s *Service) Upload(ctx context.Context, deliveryID uuid.UUID, data []byte) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("export storage disabled")
	}

	objectName := fmt.Sprintf("%s/%s.csv", time.Now().UTC().Format("2006/01"), deliveryID)
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/csv"})
	if err != nil {
		return "", fmt.Errorf("upload delivery export: %w", err)
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, downloadURLTTL, nil)
	if err != nil {
		return "", fmt.Errorf("presign delivery export: %w", err)
	}

	s.log.Info("delivery export uploaded", "delivery_id", deliveryID, "object", objectName, "bytes", len(data))
	return presigned.String(), nil
}
