package uploader

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/savaki/gox/slicex"
	errs "github.com/savaki/site-deployer/internal/errors"
	"github.com/savaki/site-deployer/internal/utils"
)

// maxDeleteBatch is the DeleteObjects per-request key limit
const maxDeleteBatch = 1000

// S3API abstracts the S3 listing and delete operations for testing
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Uploader abstracts manager.Uploader for testing
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// BucketSyncerInput configures a BucketSyncer
type BucketSyncerInput struct {
	Bucket       string
	Prefix       string
	CacheControl string
	Delete       bool // remove remote keys that no longer exist locally
	DryRun       bool
	Concurrency  int
}

// BucketSyncer mirrors a directory into a bucket with the S3 API
type BucketSyncer struct {
	client   S3API
	uploader Uploader
	input    BucketSyncerInput
}

type localFile struct {
	path string
	size int64
}

type remoteObject struct {
	size int64
	etag string
}

// NewBucketSyncer creates a BucketSyncer backed by client
func NewBucketSyncer(client *s3.Client, input BucketSyncerInput) *BucketSyncer {
	return NewBucketSyncerWithDeps(client, manager.NewUploader(client), input)
}

// NewBucketSyncerWithDeps creates a BucketSyncer with injected dependencies (for testing)
func NewBucketSyncerWithDeps(client S3API, uploader Uploader, input BucketSyncerInput) *BucketSyncer {
	input.Prefix = NormalizePrefix(input.Prefix)
	if input.Concurrency < 1 {
		input.Concurrency = 1
	}
	return &BucketSyncer{
		client:   client,
		uploader: uploader,
		input:    input,
	}
}

// Sync uploads new and modified files under dir and, when enabled, deletes
// remote objects that have no local counterpart.
func (b *BucketSyncer) Sync(ctx context.Context, dir string) (*SyncResult, error) {
	logger := zerolog.Ctx(ctx)

	local, err := b.listLocal(dir)
	if err != nil {
		return nil, err
	}

	remote, err := b.listRemote(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("bucket", b.input.Bucket).
		Str("prefix", b.input.Prefix).
		Int("local", len(local)).
		Int("remote", len(remote)).
		Msg("Comparing local files with bucket")

	added, removed, common := slicex.Diff(sortedKeys(local), sortedKeys(remote))

	result := &SyncResult{Listed: true, Uploaded: added}
	for _, key := range common {
		same, err := isUnchanged(local[key], remote[key])
		if err != nil {
			return nil, err
		}
		if same {
			result.Unchanged = append(result.Unchanged, key)
		} else {
			result.Uploaded = append(result.Uploaded, key)
		}
	}
	slices.Sort(result.Uploaded)
	if b.input.Delete {
		result.Deleted = removed
	}

	if b.input.DryRun {
		for _, key := range result.Uploaded {
			logger.Info().Str("key", key).Msg("(dry run) would upload")
		}
		for _, key := range result.Deleted {
			logger.Info().Str("key", key).Msg("(dry run) would delete")
		}
		return result, nil
	}

	if err := b.upload(ctx, local, result.Uploaded); err != nil {
		return nil, err
	}
	if err := b.delete(ctx, result.Deleted); err != nil {
		return nil, err
	}

	logger.Info().
		Int("uploaded", len(result.Uploaded)).
		Int("deleted", len(result.Deleted)).
		Int("unchanged", len(result.Unchanged)).
		Msg("Bucket sync completed")

	return result, nil
}

func (b *BucketSyncer) listLocal(dir string) (map[string]localFile, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", errs.ErrBuildDirNotFound, dir)
	}

	files := map[string]localFile{}
	if err := b.walk(dir, b.input.Prefix, files, map[string]bool{}); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	return files, nil
}

// walk adds every regular file below root to files under keyPrefix. Symlinks
// to files and directories are followed; visited stops link cycles.
func (b *BucketSyncer) walk(root, keyPrefix string, files map[string]localFile, visited map[string]bool) error {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return err
	}
	if visited[resolved] {
		return nil
	}
	visited[resolved] = true

	return filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}
		key := keyPrefix + filepath.ToSlash(rel)

		if d.Type()&fs.ModeSymlink != 0 {
			if target, err := os.Stat(path); err == nil && target.IsDir() {
				return b.walk(path, key+"/", files, visited)
			}
		}

		info, ok, err := utils.RegularFile(path, d)
		if err != nil || !ok {
			return err
		}
		files[key] = localFile{path: path, size: info.Size()}
		return nil
	})
}

func (b *BucketSyncer) listRemote(ctx context.Context) (map[string]remoteObject, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.input.Bucket),
	}
	if b.input.Prefix != "" {
		input.Prefix = aws.String(b.input.Prefix)
	}

	objects := map[string]remoteObject{}
	paginator := s3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", b.input.Bucket, b.input.Prefix, err)
		}
		for _, object := range page.Contents {
			objects[aws.ToString(object.Key)] = remoteObject{
				size: aws.ToInt64(object.Size),
				etag: strings.Trim(aws.ToString(object.ETag), `"`),
			}
		}
	}
	return objects, nil
}

func (b *BucketSyncer) upload(ctx context.Context, local map[string]localFile, keys []string) error {
	logger := zerolog.Ctx(ctx)

	var uploaded atomic.Int64
	callback := func(ctx context.Context, key string) (string, error) {
		file := local[key]
		contentType := ContentType(file.path)
		if err := b.uploadFile(ctx, key, file.path, contentType); err != nil {
			return "", err
		}

		logger.Info().
			Str("key", key).
			Str("content_type", contentType).
			Int64("progress", uploaded.Add(1)).
			Int("total", len(keys)).
			Msg("Uploaded object")
		return key, nil
	}

	_, err := slicex.MapConcurrent(callback).
		Concurrency(b.input.Concurrency).
		CollectErrors().
		DoValues(ctx, keys...)
	return err
}

func (b *BucketSyncer) uploadFile(ctx context.Context, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.input.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	}
	if b.input.CacheControl != "" {
		input.CacheControl = aws.String(b.input.CacheControl)
	}

	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s to s3://%s/%s: %w", path, b.input.Bucket, key, err)
	}
	return nil
}

func (b *BucketSyncer) delete(ctx context.Context, keys []string) error {
	logger := zerolog.Ctx(ctx)

	for _, batch := range slicex.Chunk(keys, maxDeleteBatch) {
		identifiers := make([]s3types.ObjectIdentifier, 0, len(batch))
		for _, key := range batch {
			identifiers = append(identifiers, s3types.ObjectIdentifier{Key: aws.String(key)})
		}

		output, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.input.Bucket),
			Delete: &s3types.Delete{
				Objects: identifiers,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects from s3://%s: %w", b.input.Bucket, err)
		}
		if len(output.Errors) > 0 {
			first := output.Errors[0]
			return fmt.Errorf("failed to delete %d object(s) from s3://%s, first %s: %s %s",
				len(output.Errors), b.input.Bucket, aws.ToString(first.Key), aws.ToString(first.Code), aws.ToString(first.Message))
		}

		for _, key := range batch {
			logger.Info().Str("key", key).Msg("Deleted object")
		}
	}
	return nil
}

// isUnchanged reports whether the remote object already holds file's content.
// Multipart ETags (containing "-") are not content hashes and always compare as changed.
func isUnchanged(file localFile, object remoteObject) (bool, error) {
	if object.size != file.size || object.etag == "" || strings.Contains(object.etag, "-") {
		return false, nil
	}

	sum, err := md5File(file.path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(sum, object.etag), nil
}

func md5File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
