package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/marmos91/sharegate/pkg/store/blob"
	blobFs "github.com/marmos91/sharegate/pkg/store/blob/fs"
	blobMemory "github.com/marmos91/sharegate/pkg/store/blob/memory"
	blobS3 "github.com/marmos91/sharegate/pkg/store/blob/s3"
	"github.com/marmos91/sharegate/pkg/store/share"
	shareBadger "github.com/marmos91/sharegate/pkg/store/share/badger"
	shareMemory "github.com/marmos91/sharegate/pkg/store/share/memory"
)

// CreateShareStore creates a share-link store based on configuration.
//
// This factory uses the Type field to determine which implementation to
// create, then decodes the type-specific configuration from the corresponding
// map and passes it to the store's constructor.
//
// Supported types:
//   - "memory": in-memory store, lost on restart
//   - "badger": durable BadgerDB store
func CreateShareStore(ctx context.Context, cfg *SharesConfig, log *zap.Logger) (share.Store, error) {
	switch cfg.Type {
	case "memory":
		return shareMemory.NewMemoryShareStore(), nil
	case "badger":
		var storeCfg shareBadger.BadgerShareStoreConfig
		if err := mapstructure.Decode(cfg.Badger, &storeCfg); err != nil {
			return nil, fmt.Errorf("failed to decode badger share store config: %w", err)
		}
		store, err := shareBadger.NewBadgerShareStore(ctx, storeCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create badger share store: %w", err)
		}
		log.Info("badger share store initialized",
			zap.String("db_path", storeCfg.DBPath),
			zap.Bool("in_memory", storeCfg.InMemory))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown share store type: %q", cfg.Type)
	}
}

// CreateBlobStore creates the blob store holding served and uploaded files.
//
// Supported types:
//   - "filesystem": local directory (the served root)
//   - "memory": in-memory, for tests and ephemeral deployments
//   - "s3": Amazon S3 or S3-compatible storage
func CreateBlobStore(ctx context.Context, cfg *UploadConfig, log *zap.Logger) (blob.BlobStore, error) {
	switch cfg.Type {
	case "filesystem":
		var storeCfg blobFs.FSBlobStoreConfig
		if err := mapstructure.Decode(cfg.Filesystem, &storeCfg); err != nil {
			return nil, fmt.Errorf("failed to decode filesystem blob store config: %w", err)
		}
		store, err := blobFs.NewFSBlobStore(storeCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem blob store: %w", err)
		}
		log.Info("filesystem blob store initialized", zap.String("path", store.Root()))
		return store, nil
	case "memory":
		return blobMemory.NewMemoryBlobStore(), nil
	case "s3":
		return createS3BlobStore(ctx, cfg.S3, log)
	default:
		return nil, fmt.Errorf("unknown blob store type: %q", cfg.Type)
	}
}

// createS3BlobStore builds the AWS client and S3 blob store.
func createS3BlobStore(ctx context.Context, options map[string]any, log *zap.Logger) (blob.BlobStore, error) {
	type S3BlobStoreOptions struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var storeCfg S3BlobStoreOptions
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 blob store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 blob store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 blob store: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	// Custom endpoint for MinIO, Localstack, Cubbit DS3, etc.
	if storeCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               storeCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default credential chain
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for compatibility with MinIO/Localstack
		if storeCfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	store, err := blobS3.NewS3BlobStore(ctx, blobS3.S3BlobStoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 blob store: %w", err)
	}

	log.Info("S3 blob store initialized",
		zap.String("bucket", storeCfg.Bucket),
		zap.String("region", storeCfg.Region),
		zap.String("key_prefix", storeCfg.KeyPrefix))

	return store, nil
}
