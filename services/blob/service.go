package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/upb/azure-ai-gateway/config"
	"github.com/upb/azure-ai-gateway/services"
	"go.uber.org/zap"
)

const serviceName = "blob_storage"

const defaultContentType = "application/octet-stream"

// Service wraps the Azure Blob Storage SDK client for a single container
type Service struct {
	client     *azblob.Client
	sharedKey  *azblob.SharedKeyCredential
	container  string
	serviceURL string
	logger     *zap.Logger
}

// NewService creates the blob service. A non-nil token credential switches
// from shared-key to Entra ID auth; SAS generation then becomes unavailable
// because it needs the account key.
func NewService(cfg config.StorageConfig, cred azcore.TokenCredential, logger *zap.Logger) (*Service, error) {
	serviceURL := cfg.BlobServiceURL()

	svc := &Service{
		container:  cfg.Container,
		serviceURL: strings.TrimSuffix(serviceURL, "/"),
		logger:     logger,
	}

	if cred != nil {
		client, err := azblob.NewClient(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create blob client: %w", err)
		}
		svc.client = client
		return svc, nil
	}

	sharedKey, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, sharedKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	svc.client = client
	svc.sharedKey = sharedKey
	return svc, nil
}

// Container returns the configured container name
func (s *Service) Container() string {
	return s.container
}

// EnsureContainer creates the container when it does not exist yet
func (s *Service) EnsureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return services.NewExternal(serviceName, "failed to create container", 0, err)
	}
	return nil
}

// BlobInfo describes one stored blob
type BlobInfo struct {
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Size         int64      `json:"size"`
	ContentType  string     `json:"contentType,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// Upload stores the reader's content under the given blob name
func (s *Service) Upload(ctx context.Context, name, contentType string, body io.Reader) (*BlobInfo, error) {
	if name == "" {
		return nil, services.ErrInvalidInput
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	counted := &countingReader{inner: body}
	_, err := s.client.UploadStream(ctx, s.container, name, counted, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return nil, s.wrapError("upload failed", err)
	}

	s.logger.Debug("blob uploaded",
		zap.String("name", name),
		zap.Int64("size", counted.n))

	return &BlobInfo{
		Name:        name,
		URL:         s.BlobURL(name),
		Size:        counted.n,
		ContentType: contentType,
	}, nil
}

// UploadText stores a UTF-8 string as a blob
func (s *Service) UploadText(ctx context.Context, name, contentType, content string) (*BlobInfo, error) {
	if content == "" {
		return nil, services.ErrEmptyContent
	}
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	return s.Upload(ctx, name, contentType, strings.NewReader(content))
}

// Download streams a blob's content. Callers own the returned body.
func (s *Service) Download(ctx context.Context, name string) (io.ReadCloser, *BlobInfo, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		return nil, nil, s.wrapError("download failed", err)
	}

	info := &BlobInfo{
		Name: name,
		URL:  s.BlobURL(name),
	}
	if resp.ContentType != nil {
		info.ContentType = *resp.ContentType
	}
	if resp.ContentLength != nil {
		info.Size = *resp.ContentLength
	}
	if resp.LastModified != nil {
		info.LastModified = resp.LastModified
	}

	return resp.Body, info, nil
}

// List returns metadata for every blob in the container
func (s *Service) List(ctx context.Context) ([]BlobInfo, error) {
	blobs := []BlobInfo{}

	pager := s.client.NewListBlobsFlatPager(s.container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, s.wrapError("list failed", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			info := BlobInfo{
				Name: *item.Name,
				URL:  s.BlobURL(*item.Name),
			}
			if props := item.Properties; props != nil {
				if props.ContentLength != nil {
					info.Size = *props.ContentLength
				}
				if props.ContentType != nil {
					info.ContentType = *props.ContentType
				}
				if props.LastModified != nil {
					info.LastModified = props.LastModified
				}
			}
			blobs = append(blobs, info)
		}
	}

	return blobs, nil
}

// Delete removes a blob; unknown blobs map to a not-found domain error
func (s *Service) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, name, nil)
	if err != nil {
		return s.wrapError("delete failed", err)
	}
	return nil
}

// SASInfo is a generated shared access signature URL
type SASInfo struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// GenerateSAS creates a read-only SAS URL for one blob. The signature is
// computed locally from the account key; no service call is made.
func (s *Service) GenerateSAS(name string, validFor time.Duration) (*SASInfo, error) {
	if s.sharedKey == nil {
		return nil, services.ErrSASUnavailable
	}
	if validFor <= 0 {
		validFor = time.Hour
	}

	now := time.Now().UTC()
	expiry := now.Add(validFor)

	values := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     now.Add(-5 * time.Minute), // clock skew allowance
		ExpiryTime:    expiry,
		Permissions:   (&sas.BlobPermissions{Read: true}).String(),
		ContainerName: s.container,
		BlobName:      name,
	}

	params, err := values.SignWithSharedKey(s.sharedKey)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeInternal,
			"failed to sign SAS", err)
	}

	return &SASInfo{
		URL:       fmt.Sprintf("%s?%s", s.BlobURL(name), params.Encode()),
		ExpiresAt: expiry,
	}, nil
}

// BlobURL returns the unauthenticated URL of a blob
func (s *Service) BlobURL(name string) string {
	return fmt.Sprintf("%s/%s/%s", s.serviceURL, s.container, url.PathEscape(name))
}

// wrapError maps SDK errors to domain errors
func (s *Service) wrapError(message string, err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return services.ErrBlobNotFound
	}
	if bloberror.HasCode(err, bloberror.ContainerNotFound) {
		return services.NewNotFound("container", err)
	}
	return services.NewExternal(serviceName, message, 0, err)
}

// countingReader tracks how many bytes passed through an upload
type countingReader struct {
	inner io.Reader
	n     int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	r.n += int64(n)
	return n, err
}
