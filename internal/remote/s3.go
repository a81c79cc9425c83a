package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"wp-guardian/internal/config"
)

// S3Store is the Store implementation over an Amazon S3 bucket. Objects
// live under the configured directory prefix.
type S3Store struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3Store creates a store over the configured bucket and directory.
func NewS3Store(cfg config.S3Config, dir string) (*S3Store, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKey,
			cfg.SecretKey,
			"", // token
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		client: s3.New(sess),
		bucket: cfg.Bucket,
		prefix: normalizePrefix(dir),
	}, nil
}

func normalizePrefix(dir string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return ""
	}
	return dir + "/"
}

// Upload streams the local file into the bucket under the directory
// prefix.
func (s *S3Store) Upload(ctx context.Context, localPath, name string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", localPath, err)
	}
	defer file.Close()

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", name, err)
	}
	return nil
}

// List returns the object names under the directory prefix, sorted
// ascending.
func (s *S3Store) List(ctx context.Context) ([]string, error) {
	var names []string

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}
	err := s.client.ListObjectsV2PagesWithContext(ctx, input,
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				key := aws.StringValue(obj.Key)
				name := path.Base(key)
				if name != "" && name != "." {
					names = append(names, name)
				}
			}
			return true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list S3 objects: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// Fetch downloads the named object to localPath.
func (s *S3Store) Fetch(ctx context.Context, name, localPath string) error {
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
	})
	if err != nil {
		return fmt.Errorf("failed to fetch %s from S3: %w", name, err)
	}
	defer result.Body.Close()

	file, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", localPath, err)
	}
	if _, err := io.Copy(file, result.Body); err != nil {
		file.Close()
		os.Remove(localPath)
		return fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	return file.Close()
}

// Delete removes the named objects in one batch request.
func (s *S3Store) Delete(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	objects := make([]*s3.ObjectIdentifier, 0, len(names))
	for _, name := range names {
		objects = append(objects, &s3.ObjectIdentifier{
			Key: aws.String(s.prefix + name),
		})
	}

	_, err := s.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &s3.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete S3 objects: %w", err)
	}
	return nil
}
