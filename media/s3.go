package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang/glog"
	"github.com/pborman/uuid"
)

// IS3Client is the part of the S3 client the uploader uses.
type IS3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Region  string
	Bucket  string
	Prefix  string
	BaseURL string // public URL of the bucket, defaults to the virtual-hosted style URL
	MaxSize int    // max decoded image bytes
}

type S3Uploader struct {
	client IS3Client
	conf   S3Config
	newKey func(ext string) string
}

var _ Uploader = (*S3Uploader)(nil)

// NewS3Client loads the AWS credentials from the default chain.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func NewS3Uploader(client IS3Client, conf S3Config) *S3Uploader {
	if conf.BaseURL == "" {
		conf.BaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", conf.Bucket, conf.Region)
	}
	conf.BaseURL = strings.TrimRight(conf.BaseURL, "/")
	conf.Prefix = strings.Trim(conf.Prefix, "/")
	u := &S3Uploader{client: client, conf: conf}
	u.newKey = func(ext string) string {
		name := uuid.New() + "." + ext
		if u.conf.Prefix == "" {
			return name
		}
		return u.conf.Prefix + "/" + name
	}
	return u
}

func (u *S3Uploader) Upload(ctx context.Context, dataURL string) (string, error) {
	img, err := DecodeDataURL(dataURL, u.conf.MaxSize)
	if err != nil {
		return "", err
	}
	key := u.newKey(img.Ext())
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.conf.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(img.Data),
		ContentType:   aws.String(img.MimeType),
		ContentLength: aws.Int64(int64(len(img.Data))),
	})
	if err != nil {
		uploadFailures.Inc()
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	uploads.Inc()
	uploadBytes.Add(float64(len(img.Data)))
	glog.V(5).Infof("Upload(): stored %d bytes at %s", len(img.Data), key)
	return u.conf.BaseURL + "/" + key, nil
}
