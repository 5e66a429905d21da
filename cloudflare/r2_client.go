// Package cloudflare provides the Cloudflare R2 storage client
package cloudflare

import (
	"context"
	"errors"
	"fmt"

	awsclient "github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/aws"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Options struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Endpoint is the S3 API endpoint of an R2 account
func Endpoint(accountID string) string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
}

// NewR2 creates an R2 client and makes sure the bucket exists. R2 speaks the
// S3 API so the result is the same client type the AWS backend uses
func NewR2(ctx context.Context, o Options) (*awsclient.S3Client, error) {
	if o.AccountID == "" || o.Bucket == "" {
		return nil, errors.New("no account ID or bucket provided")
	}

	client, err := awsclient.NewClient(ctx, o.AccessKeyID, o.SecretAccessKey, func(so *s3.Options) {
		so.BaseEndpoint = aws.String(Endpoint(o.AccountID))
		so.Region = "auto"
	})
	if err != nil {
		return nil, err
	}

	if err := awsclient.CheckBucket(ctx, client, o.Bucket); err != nil {
		return nil, err
	}

	return &awsclient.S3Client{
		C:      client,
		Bucket: o.Bucket,
	}, nil
}
