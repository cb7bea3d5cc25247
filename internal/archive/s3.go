// Package archive keeps a copy of every committed beneficiary upload in S3
// so coordinators can audit what was imported.
package archive

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ignite/beneficiary-import/internal/config"
)

// objectAPI is the part of *s3.Client the archiver uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Archiver stores uploads under <prefix>/<formation>/<yyyy>/<mm>/<dd>/.
type S3Archiver struct {
	client objectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Archiver builds an archiver from config using the default AWS
// credential chain, or the configured shared profile.
func NewS3Archiver(ctx context.Context, cfg config.ArchiveConfig) (*S3Archiver, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("archive: s3_bucket is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if profile := cfg.GetAWSProfile(); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load AWS config")
	}
	return newS3Archiver(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix), nil
}

func newS3Archiver(client objectAPI, bucket, prefix string) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Archive uploads content and returns its object key.
func (a *S3Archiver) Archive(ctx context.Context, formationID, fileName string, content []byte) (string, error) {
	key := path.Join(a.prefix, formationID, a.now().UTC().Format("2006/01/02"),
		uuid.New().String()+"-"+safeName(fileName))

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(mimetype.Detect(content).String()),
		Metadata: map[string]string{
			"formation-id":  formationID,
			"original-name": fileName,
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "put s3://%s/%s", a.bucket, key)
	}
	return key, nil
}

// Ping checks that the bucket exists and is reachable with the current
// credentials.
func (a *S3Archiver) Ping(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	return errors.Wrapf(err, "head bucket %s", a.bucket)
}

// Bucket returns the destination bucket name.
func (a *S3Archiver) Bucket() string { return a.bucket }

// safeName keeps the base name and replaces characters that are awkward in
// object keys.
func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
