package services

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// BlobStore uploads PDFs to S3-compatible storage and issues presigned read
// URLs. A nil BlobStore means storage is unconfigured and PDF bytes live in
// the database instead.
type BlobStore struct {
	client *s3.S3
	bucket string
}

// NewBlobStore builds the store from S3_* environment variables, returning
// nil (not an error) when storage is not configured.
func NewBlobStore() (*BlobStore, error) {
	region := os.Getenv("S3_REGION")
	endpoint := os.Getenv("S3_ENDPOINT")
	accessKey := os.Getenv("S3_ACCESS_KEY")
	secretKey := os.Getenv("S3_SECRET_KEY")
	bucket := os.Getenv("S3_BUCKET")

	if region == "" || accessKey == "" || secretKey == "" || bucket == "" {
		log.Println("Blob storage not configured; PDFs will be stored in the database")
		return nil, nil
	}

	cfg := &aws.Config{
		Region:           aws.String(region),
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &BlobStore{client: s3.New(sess), bucket: bucket}, nil
}

// Put uploads the PDF under the given key.
func (b *BlobStore) Put(key string, data []byte) error {
	_, err := b.client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}
	log.Printf("File stored at s3://%s/%s", b.bucket, key)
	return nil
}

// PresignGet returns a time-limited download URL for the key.
func (b *BlobStore) PresignGet(key string, expiry time.Duration) (string, error) {
	req, _ := b.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(expiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign S3 URL: %w", err)
	}
	return url, nil
}
