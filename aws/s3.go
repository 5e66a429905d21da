// Package aws connects the screenshot store to S3 compatible object storage
package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type S3Client struct {
	C      *s3.Client
	Bucket string
}

type Options struct {
	AccessKey       string
	SecretAccessKey string
	Region          string
	Bucket          string
	// Endpoint overrides the AWS endpoint, for MinIO and friends
	Endpoint string
}

// NewS3 creates the client and makes sure the bucket exists
func NewS3(ctx context.Context, o Options) (*S3Client, error) {
	if o.Bucket == "" {
		return nil, errors.New("no bucket provided")
	}

	client, err := NewClient(ctx, o.AccessKey, o.SecretAccessKey, func(so *s3.Options) {
		so.Region = o.Region
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	})
	if err != nil {
		return nil, err
	}

	if err := CheckBucket(ctx, client, o.Bucket); err != nil {
		return nil, err
	}

	return &S3Client{
		C:      client,
		Bucket: o.Bucket,
	}, nil
}

// NewClient builds an s3 client from static credentials
func NewClient(ctx context.Context, accessKey, secretKey string, optFns ...func(*s3.Options)) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config, %w", err)
	}

	return s3.NewFromConfig(cfg, optFns...), nil
}

// CheckBucket fails when bucket doesn't exist or isn't reachable
func CheckBucket(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return fmt.Errorf("bucket '%s' does not exist", bucket)
			}
		}

		return fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return nil
}

// Uploader returns a multipart uploader for the client
func (c *S3Client) Uploader() *manager.Uploader {
	return manager.NewUploader(c.C)
}
