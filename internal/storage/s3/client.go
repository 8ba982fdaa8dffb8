package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"capture-service/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

const (
	emptyAWSSessionToken = ""
	listBatchSize        = 1000

	errFailedCreateAWSSessionFmt          = "failed to create AWS session: %w"
	errFailedGeneratePresignedUploadFmt   = "failed to generate presigned upload URL: %w"
	errFailedGeneratePresignedDownloadFmt = "failed to generate presigned download URL: %w"
	errFailedListObjectsFmt               = "failed to list objects: %w"
	errFailedDeletePrefixObjectsFmt       = "failed to delete objects under prefix: %w"
	errFailedGetObjectFmt                 = "failed to get object: %w"
)

// Client wraps S3 access for a single bucket. It holds no mutable state;
// presigning is a pure signing operation over the session credentials and
// the clock.
type Client struct {
	svc    *s3.S3
	bucket string
}

func NewClient(cfg *config.AWSConfig) (*Client, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			emptyAWSSessionToken,
		),
	}

	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf(errFailedCreateAWSSessionFmt, err)
	}

	return &Client{
		svc:    s3.New(sess),
		bucket: cfg.Bucket,
	}, nil
}

func (c *Client) PresignUpload(ctx context.Context, objectKey, contentType string, expiry time.Duration) (string, error) {
	req, _ := c.svc.PutObjectRequest(&s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	})
	req.SetContext(ctx)

	url, err := req.Presign(expiry)
	if err != nil {
		return "", fmt.Errorf(errFailedGeneratePresignedUploadFmt, err)
	}

	return url, nil
}

func (c *Client) PresignDownload(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	req, _ := c.svc.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	req.SetContext(ctx)

	url, err := req.Presign(expiry)
	if err != nil {
		return "", fmt.Errorf(errFailedGeneratePresignedDownloadFmt, err)
	}

	return url, nil
}

func (c *Client) GetObject(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	out, err := c.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf(errFailedGetObjectFmt, err)
	}

	return out.Body, nil
}

// ListKeys returns all object keys under the prefix, following pagination
// to the end. Any listing error is returned rather than a partial result.
func (c *Client) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var continuation *string

	for {
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			MaxKeys:           aws.Int64(listBatchSize),
			ContinuationToken: continuation,
		}

		result, err := c.svc.ListObjectsV2WithContext(ctx, input)
		if err != nil {
			return nil, fmt.Errorf(errFailedListObjectsFmt, err)
		}

		for _, obj := range result.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}

		if !aws.BoolValue(result.IsTruncated) {
			break
		}
		continuation = result.NextContinuationToken
	}

	return keys, nil
}

// DeletePrefix removes every object under the prefix in batches.
func (c *Client) DeletePrefix(ctx context.Context, prefix string) error {
	var continuation *string

	for {
		result, err := c.svc.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			MaxKeys:           aws.Int64(listBatchSize),
			ContinuationToken: continuation,
		})
		if err != nil {
			return fmt.Errorf(errFailedListObjectsFmt, err)
		}

		if len(result.Contents) == 0 {
			return nil
		}

		var objectsToDelete []*s3.ObjectIdentifier
		for _, obj := range result.Contents {
			objectsToDelete = append(objectsToDelete, &s3.ObjectIdentifier{
				Key: obj.Key,
			})
		}

		_, err = c.svc.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &s3.Delete{
				Objects: objectsToDelete,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf(errFailedDeletePrefixObjectsFmt, err)
		}

		if !aws.BoolValue(result.IsTruncated) {
			return nil
		}
		continuation = result.NextContinuationToken
	}
}
