package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"

	cfg "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/pkg/utils"
)

var ErrUnsupportedMediaType = errors.New("unsupported media type")

// Extensions X accepts as tweet attachments.
var allowedMediaExtensions = map[string]bool{
	"jpg":  true,
	"png":  true,
	"gif":  true,
	"webp": true,
	"mp4":  true,
}

// AssetService stores uploaded media on Cloudflare R2 and records it, so the
// resulting public URLs can be referenced from CSV media_urls columns.
type AssetService interface {
	Upload(ctx context.Context, fileName string, data []byte) (*models.MediaAsset, error)
	List(ctx context.Context) ([]*models.MediaAsset, error)
}

type assetService struct {
	config cfg.Config
	repo   repository.MediaAssetRepository
}

func NewAssetService(config cfg.Config, repo repository.MediaAssetRepository) AssetService {
	return &assetService{config: config, repo: repo}
}

func (s *assetService) r2Client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.config.R2.AccessKey, s.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.config.R2.AccountID))
	}), nil
}

func (s *assetService) Upload(ctx context.Context, fileName string, data []byte) (*models.MediaAsset, error) {
	kind, err := filetype.Match(data)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	if kind == filetype.Unknown || !allowedMediaExtensions[kind.Extension] {
		return nil, ErrUnsupportedMediaType
	}

	key, err := utils.NewAssetKey()
	if err != nil {
		return nil, err
	}
	key = key + "." + kind.Extension

	client, err := s.r2Client(ctx)
	if err != nil {
		return nil, err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(kind.MIME.Value),
	})
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}

	asset := &models.MediaAsset{
		FileName: fileName,
		FileType: kind.MIME.Value,
		FileSize: int64(len(data)),
		FileURL:  strings.TrimSuffix(s.config.R2.PublicURL, "/") + "/" + key,
	}

	id, err := s.repo.Create(ctx, asset)
	if err != nil {
		return nil, err
	}
	asset.ID = id

	slog.Info("media asset uploaded", "asset_id", id, "key", key, "size", asset.FileSize)
	return asset, nil
}

func (s *assetService) List(ctx context.Context) ([]*models.MediaAsset, error) {
	return s.repo.List(ctx)
}
