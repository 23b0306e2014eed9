package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewStoreFromDefaultConfig creates a Store using the ambient AWS
// configuration (environment, shared config files, instance role).
func NewStoreFromDefaultConfig(ctx context.Context, bucket, rootPrefix string, optFns ...func(*config.LoadOptions) error) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, err
	}
	return NewStore(s3.NewFromConfig(cfg), bucket, rootPrefix), nil
}

// NewCommitStoreFromDefaultConfig creates a CommitStore using the
// ambient AWS configuration for both S3 and DynamoDB.
func NewCommitStoreFromDefaultConfig(ctx context.Context, bucket, rootPrefix, tableName, baseURI string, optFns ...func(*config.LoadOptions) error) (*CommitStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, err
	}
	store := NewStore(s3.NewFromConfig(cfg), bucket, rootPrefix)
	return NewCommitStore(store, dynamodb.NewFromConfig(cfg), tableName, baseURI), nil
}
