package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewFromEnv creates a Store using AWS configuration resolved from the
// environment (credentials chain, region, profile).
func NewFromEnv(ctx context.Context, bucket, rootPrefix string, optFns ...func(o *Options)) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	return NewStore(s3.NewFromConfig(cfg), bucket, rootPrefix, optFns...), nil
}

// NewDDBCommitStoreFromEnv creates a DDBCommitStore with both clients
// resolved from the environment. baseURI should be "s3://bucket/prefix".
func NewDDBCommitStoreFromEnv(ctx context.Context, bucket, rootPrefix, tableName string, optFns ...func(o *Options)) (*DDBCommitStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	inner := NewStore(s3.NewFromConfig(cfg), bucket, rootPrefix, optFns...)
	baseURI := fmt.Sprintf("s3://%s/%s", bucket, rootPrefix)

	return NewDDBCommitStore(inner, dynamodb.NewFromConfig(cfg), tableName, baseURI), nil
}
