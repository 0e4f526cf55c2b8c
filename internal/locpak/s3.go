package locpak

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// ChannelClient wraps the S3 client for an S3-compatible package channel
// (Cloudflare R2, MinIO, AWS).
type ChannelClient struct {
	Client *s3.Client
	Bucket string
}

// NewChannelClient initializes the channel client from configuration values.
func NewChannelClient(cfg *Config) (*ChannelClient, error) {
	endpoint := cfg.Values["LOCPAK_S3_ENDPOINT"]
	accessKey := cfg.Values["LOCPAK_S3_ACCESS_KEY"]
	secretKey := cfg.Values["LOCPAK_S3_SECRET_KEY"]
	bucket := cfg.Values["LOCPAK_S3_BUCKET"]

	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, fmt.Errorf("channel credentials missing in configuration (LOCPAK_S3_ENDPOINT, LOCPAK_S3_ACCESS_KEY, LOCPAK_S3_SECRET_KEY, LOCPAK_S3_BUCKET)")
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: endpoint}, nil
	})

	options := []func(*config.LoadOptions) error{
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		config.WithRegion("auto"),
	}

	if Debug {
		options = append(options, config.WithClientLogMode(aws.LogSigning|aws.LogRetries|aws.LogRequest|aws.LogResponse))
	}

	awsCfg, err := config.LoadDefaultConfig(context.TODO(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &ChannelClient{
		Client: client,
		Bucket: bucket,
	}, nil
}

func channelContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".conda"):
		return "application/zip"
	case strings.HasSuffix(key, ".tar.bz2"):
		return "application/x-tar"
	default:
		return "application/octet-stream"
	}
}

// DownloadFile fetches an object from the channel bucket.
func (c *ChannelClient) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	output, err := c.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer output.Body.Close()

	return io.ReadAll(output.Body)
}

// UploadFile uploads a byte payload to the channel bucket.
func (c *ChannelClient) UploadFile(ctx context.Context, key string, body []byte) error {
	_, err := c.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(channelContentType(key)),
	})
	return err
}

// UploadLocalFile uploads a file from disk, with a byte progress bar when
// stdout is a terminal.
func (c *ChannelClient) UploadLocalFile(ctx context.Context, key, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	var body io.Reader = file
	if term.IsTerminal(int(os.Stdout.Fd())) {
		bar := progressbar.DefaultBytes(stat.Size(), filepath.Base(filePath))
		body = io.TeeReader(file, bar)
	}

	_, err = c.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(stat.Size()),
		ContentType:   aws.String(channelContentType(key)),
	})
	return err
}

// DeleteFile removes an object from the channel bucket.
func (c *ChannelClient) DeleteFile(ctx context.Context, key string) error {
	_, err := c.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	})
	return err
}

// ChannelObject represents metadata for an object in the bucket.
type ChannelObject struct {
	Key  string
	Size int64
}

// ListObjects returns the objects in the bucket with the given prefix.
func (c *ChannelClient) ListObjects(ctx context.Context, prefix string) ([]ChannelObject, error) {
	var objects []ChannelObject
	paginator := s3.NewListObjectsV2Paginator(c.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.Bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			objects = append(objects, ChannelObject{
				Key:  *obj.Key,
				Size: *obj.Size,
			})
		}
	}
	return objects, nil
}
