package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"lumina/internal/services"
)

const defaultS3MaxKeys = 1000

// S3Provider stores blobs in any S3-compatible object store.
type S3Provider struct {
	cfg     S3Config
	client  *s3.Client
	presign *s3.PresignClient
}

// NewS3Provider validates the config and constructs the SDK client. No
// network round trip happens here; credential problems surface on first use.
func NewS3Provider(ctx context.Context, cfg S3Config) (*S3Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "s3", "load aws config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Provider{
		cfg:     cfg,
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

func (p *S3Provider) keyFor(key string) string {
	prefix := strings.Trim(p.cfg.Prefix, "/")
	if prefix == "" {
		return cleanKey(key)
	}
	return prefix + "/" + cleanKey(key)
}

func (p *S3Provider) Create(ctx context.Context, key string, data []byte, contentType string) (*Object, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(p.cfg.Bucket),
		Key:           aws.String(p.keyFor(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	result, err := p.client.PutObject(ctx, input)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "s3", fmt.Sprintf("put %s", key), err)
	}

	now := time.Now().UTC()
	return &Object{
		Key:          cleanKey(key),
		Size:         int64(len(data)),
		ETag:         trimETag(aws.ToString(result.ETag)),
		LastModified: &now,
	}, nil
}

func (p *S3Provider) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(p.keyFor(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "s3", fmt.Sprintf("get %s", key), err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "s3", fmt.Sprintf("read %s", key), err)
	}
	return data, nil
}

func (p *S3Provider) Delete(ctx context.Context, key string) error {
	// DeleteObject succeeds for absent keys, matching the idempotent
	// contract without a prior existence check.
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(p.keyFor(key)),
	})
	if err != nil {
		return services.Wrap(services.ErrProviderUnavailable, "storage", "s3", fmt.Sprintf("delete %s", key), err)
	}
	return nil
}

func (p *S3Provider) GetPublicURL(key string) string {
	if p.cfg.CDNURL != "" {
		return joinURL(p.cfg.CDNURL, p.cfg.Prefix, cleanKey(key))
	}
	if p.cfg.Endpoint != "" {
		if p.cfg.ForcePathStyle {
			return joinURL(p.cfg.Endpoint, p.cfg.Bucket, p.cfg.Prefix, cleanKey(key))
		}
		return joinURL(bucketHost(p.cfg.Endpoint, p.cfg.Bucket), p.cfg.Prefix, cleanKey(key))
	}
	region := p.cfg.Region
	if region == "" || region == "auto" {
		region = "us-east-1"
	}
	return joinURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", p.cfg.Bucket, region), p.cfg.Prefix, cleanKey(key))
}

func (p *S3Provider) GetFileMeta(ctx context.Context, key string) (*Object, error) {
	result, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(p.keyFor(key)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "s3", fmt.Sprintf("head %s", key), err)
	}

	obj := &Object{
		Key:          cleanKey(key),
		Size:         aws.ToInt64(result.ContentLength),
		ETag:         trimETag(aws.ToString(result.ETag)),
		LastModified: result.LastModified,
	}
	return obj, nil
}

func (p *S3Provider) ListAll(ctx context.Context) ([]Object, error) {
	maxKeys := p.cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = defaultS3MaxKeys
	}
	prefix := strings.Trim(p.cfg.Prefix, "/")

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.cfg.Bucket),
		MaxKeys: aws.Int32(maxKeys),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix + "/")
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(p.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "s3", "list bucket", err)
		}
		for _, item := range page.Contents {
			key := aws.ToString(item.Key)
			if prefix != "" {
				key = strings.TrimPrefix(key, prefix+"/")
			}
			objects = append(objects, Object{
				Key:          key,
				Size:         aws.ToInt64(item.Size),
				ETag:         trimETag(aws.ToString(item.ETag)),
				LastModified: item.LastModified,
			})
		}
	}
	return objects, nil
}

func (p *S3Provider) ListImages(ctx context.Context) ([]Object, error) {
	objects, err := p.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterImages(objects), nil
}

// GetSignedURL implements the Signer capability using SDK presigning.
func (p *S3Provider) GetSignedURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	if expiresIn <= 0 {
		expiresIn = 15 * time.Minute
	}
	request, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(p.keyFor(key)),
	}, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", services.Wrap(services.ErrProviderUnavailable, "storage", "s3", fmt.Sprintf("presign %s", key), err)
	}
	return request.URL, nil
}

func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}

func bucketHost(endpoint, bucket string) string {
	rest, found := strings.CutPrefix(endpoint, "https://")
	scheme := "https://"
	if !found {
		if rest, found = strings.CutPrefix(endpoint, "http://"); found {
			scheme = "http://"
		} else {
			rest = endpoint
		}
	}
	return scheme + bucket + "." + rest
}
