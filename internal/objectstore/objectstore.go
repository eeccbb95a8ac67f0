/*
Copyright 2026 The Perkeep Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package objectstore wraps the S3-compatible multipart upload API used by
// the Upload Orchestrator, Download Coordinator, Bulk Archiver and Reaper.
// It is grounded on Perkeep's pkg/blobserver/s3, which already talks to
// S3-compatible endpoints via github.com/aws/aws-sdk-go's service/s3 and
// s3iface packages rather than a hand-rolled signer.
package objectstore

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

func credentialsFromStatic(accessKeyID, secretAccessKey string) *credentials.Credentials {
	return credentials.NewStaticCredentials(accessKeyID, secretAccessKey, "")
}

// DownloadURLTTL and UploadPartURLTTL match the documented TTL defaults.
const (
	DownloadURLTTL   = 5 * time.Minute
	UploadPartURLTTL = time.Hour
)

// Client is the object-store surface the core depends on.
type Client struct {
	S3     s3iface.S3API
	Bucket string
}

// Config configures New.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// New constructs a Client against an S3-compatible endpoint, the same way
// Perkeep's s3.newFromConfig builds an *s3.S3 from a jsonconfig.Obj,
// except configuration here comes from internal/config.
func New(cfg Config) (*Client, error) {
	awsCfg := aws.NewConfig().
		WithRegion(cfg.Region).
		WithS3ForcePathStyle(cfg.ForcePathStyle)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		awsCfg = awsCfg.WithCredentials(
			credentialsFromStatic(cfg.AccessKeyID, cfg.SecretAccessKey))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}
	return &Client{S3: s3.New(sess), Bucket: cfg.Bucket}, nil
}

// BlobKey derives the object key for a newly uploaded file:
// "{roomId}/{fileId}_{filename}".
func BlobKey(roomID, fileID, filename string) string {
	return roomID + "/" + fileID + "_" + filename
}

// InitiateMultipart starts a multipart upload and returns its uploadId.
func (c *Client) InitiateMultipart(ctx context.Context, key, contentType string) (uploadID string, err error) {
	out, err := c.S3.CreateMultipartUploadWithContext(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(c.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.UploadId), nil
}

// SignPartURLs returns one presigned PUT URL per partNumber, each valid for
// UploadPartURLTTL.
func (c *Client) SignPartURLs(ctx context.Context, key, uploadID string, partNumbers []int64) ([]string, error) {
	urls := make([]string, len(partNumbers))
	for i, pn := range partNumbers {
		req, _ := c.S3.UploadPartRequest(&s3.UploadPartInput{
			Bucket:     aws.String(c.Bucket),
			Key:        aws.String(key),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int64(pn),
		})
		req.SetContext(ctx)
		url, err := req.Presign(UploadPartURLTTL)
		if err != nil {
			return nil, err
		}
		urls[i] = url
	}
	return urls, nil
}

// CompletedPart mirrors the client-reported (partNumber, etag) pairs.
type CompletedPart struct {
	PartNumber int64
	ETag       string
}

// CompleteMultipart finalizes the upload.
func (c *Client) CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	completed := make([]*s3.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = &s3.CompletedPart{PartNumber: aws.Int64(p.PartNumber), ETag: aws.String(p.ETag)}
	}
	_, err := c.S3.CompleteMultipartUploadWithContext(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(c.Bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &s3.CompletedMultipartUpload{Parts: completed},
	})
	return err
}

// AbortMultipart aborts the upload; a missing handle is treated as success.
func (c *Client) AbortMultipart(ctx context.Context, key, uploadID string) error {
	_, err := c.S3.AbortMultipartUploadWithContext(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if isNotFound(err) {
		return nil
	}
	return err
}

// StaleUpload describes a multipart upload the reaper may need to abort.
type StaleUpload struct {
	Key       string
	UploadID  string
	Initiated time.Time
}

// ListStaleUploads lists in-progress multipart uploads initiated before
// olderThan.
func (c *Client) ListStaleUploads(ctx context.Context, olderThan time.Time) ([]StaleUpload, error) {
	var stale []StaleUpload
	err := c.S3.ListMultipartUploadsPagesWithContext(ctx, &s3.ListMultipartUploadsInput{
		Bucket: aws.String(c.Bucket),
	}, func(out *s3.ListMultipartUploadsOutput, lastPage bool) bool {
		for _, u := range out.Uploads {
			if u.Initiated != nil && u.Initiated.Before(olderThan) {
				stale = append(stale, StaleUpload{
					Key:       aws.StringValue(u.Key),
					UploadID:  aws.StringValue(u.UploadId),
					Initiated: *u.Initiated,
				})
			}
		}
		return true
	})
	return stale, err
}

// PresignPut signs a single-shot PUT URL.
func (c *Client) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, _ := c.S3.PutObjectRequest(&s3.PutObjectInput{
		Bucket:      aws.String(c.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	req.SetContext(ctx)
	return req.Presign(ttl)
}

// PresignGet signs a GET URL for download or preview, valid for
// DownloadURLTTL unless overridden.
func (c *Client) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, _ := c.S3.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	})
	req.SetContext(ctx)
	return req.Presign(ttl)
}

// Get streams an object's bytes, used by the Bulk Archiver and preview proxy.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := c.S3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// Delete removes a single object; a missing object is not an error,
// since compensating deletes in the burn saga are best-effort.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.S3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return nil
	}
	return err
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if aerr, ok := err.(awsRequestFailure); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchUpload, "NotFound":
			return true
		}
	}
	return false
}

// awsRequestFailure is the subset of awserr.Error this package needs,
// declared locally to avoid importing aws/awserr just for a type switch.
type awsRequestFailure interface {
	Code() string
}
