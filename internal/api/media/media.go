package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/greenbasket/garden-backend/config"
)

// callTimeout bounds every image-store round trip; a timeout surfaces to the
// caller as an upload failure.
const callTimeout = 10 * time.Second

// StoredImage identifies an uploaded image in the external store.
type StoredImage struct {
	StoreID string `json:"store_id"`
	URL     string `json:"url"`
}

// ImageStore is the contract for the external avatar/image host. Uploads
// normalize to a compressed web format with automatic quality.
type ImageStore interface {
	Store(ctx context.Context, data []byte, folder, name string) (*StoredImage, error)
	Delete(ctx context.Context, storeID string) error
}

var _ ImageStore = (*CloudinaryStore)(nil)

type CloudinaryStore struct {
	client *cloudinary.Cloudinary
	logger *slog.Logger
}

func NewCloudinaryStore(cfg config.ImageStoreConfig, logger *slog.Logger) (*CloudinaryStore, error) {
	client, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image store client: %w", err)
	}
	return &CloudinaryStore{
		client: client,
		logger: logger,
	}, nil
}

// Store uploads raw image bytes, converting to webp with automatic quality.
// An empty name lets the store derive its own identifier.
func (s *CloudinaryStore) Store(ctx context.Context, data []byte, folder, name string) (*StoredImage, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	params := uploader.UploadParams{
		Folder:         folder,
		ResourceType:   "image",
		Format:         "webp",
		Transformation: "q_auto",
	}
	if name != "" {
		params.PublicID = name
	}

	result, err := s.client.Upload.Upload(ctx, bytes.NewReader(data), params)
	if err != nil {
		return nil, fmt.Errorf("image upload failed: %w", err)
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("image upload failed: %s", result.Error.Message)
	}

	s.logger.DebugContext(ctx, "Image stored",
		slog.String("store_id", result.PublicID),
		slog.String("folder", folder),
	)
	return &StoredImage{
		StoreID: result.PublicID,
		URL:     result.SecureURL,
	}, nil
}

// Delete removes an image by its store identifier.
func (s *CloudinaryStore) Delete(ctx context.Context, storeID string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: storeID})
	if err != nil {
		return fmt.Errorf("image delete failed: %w", err)
	}
	if result.Result != "ok" && result.Result != "not found" {
		return fmt.Errorf("image delete failed: %s", result.Result)
	}
	return nil
}
