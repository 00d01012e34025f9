package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/storypilot/scheduler/internal/models"
	"github.com/storypilot/scheduler/internal/transfer"
)

type MediaService interface {
	Upload(ctx context.Context, userID int64, file *multipart.FileHeader) (*transfer.MediaUploadResponse, error)
}

type mediaService struct {
	r2 R2Service
}

func NewMediaService(r2 R2Service) MediaService {
	return &mediaService{r2: r2}
}

// Maps accepted container formats to the content type posts carry.
var allowedTypes = map[string]string{
	"mp4":  models.ContentTypeVideo,
	"mov":  models.ContentTypeVideo,
	"jpg":  models.ContentTypeImage,
	"jpeg": models.ContentTypeImage,
	"png":  models.ContentTypeImage,
}

func (s *mediaService) Upload(ctx context.Context, userID int64, file *multipart.FileHeader) (*transfer.MediaUploadResponse, error) {
	if file == nil {
		err := errors.New("no file provided")
		slog.Info(err.Error())
		return nil, err
	}

	fileContent, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer fileContent.Close()

	fileBytes, err := io.ReadAll(fileContent)
	if err != nil {
		return nil, fmt.Errorf("error reading file content: %w", err)
	}

	fileKind, err := filetype.Match(fileBytes)
	if err != nil || fileKind == types.Unknown {
		return nil, errors.New("unsupported file type")
	}

	contentType, ok := allowedTypes[fileKind.Extension]
	if !ok {
		return nil, fmt.Errorf("file type %s is not allowed", fileKind.Extension)
	}

	key, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if err := s.r2.Upload(ctx, key, fileBytes, fileKind.MIME.Value); err != nil {
		return nil, fmt.Errorf("error uploading file: %w", err)
	}

	return &transfer.MediaUploadResponse{
		URL:         s.r2.PublicURL(key),
		ContentType: contentType,
	}, nil
}
