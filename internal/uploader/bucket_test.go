package uploader

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	errs "github.com/savaki/site-deployer/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations

type mockS3Client struct {
	listObjectsV2Func func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	deleteObjectsFunc func(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

func (m *mockS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if m.listObjectsV2Func != nil {
		return m.listObjectsV2Func(ctx, params, optFns...)
	}
	return &s3.ListObjectsV2Output{}, nil
}

func (m *mockS3Client) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if m.deleteObjectsFunc != nil {
		return m.deleteObjectsFunc(ctx, params, optFns...)
	}
	return nil, errors.New("deleteObjectsFunc not set")
}

type uploadedObject struct {
	contentType  string
	cacheControl string
	body         string
}

type mockUploader struct {
	mu       sync.Mutex
	uploads  map[string]uploadedObject
	failKeys map[string]error
}

func (m *mockUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	key := aws.ToString(input.Key)
	if err, ok := m.failKeys[key]; ok {
		return nil, err
	}

	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploads == nil {
		m.uploads = map[string]uploadedObject{}
	}
	m.uploads[key] = uploadedObject{
		contentType:  aws.ToString(input.ContentType),
		cacheControl: aws.ToString(input.CacheControl),
		body:         string(body),
	}
	return &manager.UploadOutput{Key: input.Key}, nil
}

// fakeBucket is an in-memory bucket behind mockS3Client and mockUploader
type fakeBucket struct {
	objects map[string]s3types.Object
	deleted []string
}

func (f *fakeBucket) client() *mockS3Client {
	return &mockS3Client{
		listObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			var contents []s3types.Object
			for _, key := range slices.Sorted(maps.Keys(f.objects)) {
				if params.Prefix != nil && !hasPrefix(key, *params.Prefix) {
					continue
				}
				contents = append(contents, f.objects[key])
			}
			return &s3.ListObjectsV2Output{Contents: contents, IsTruncated: aws.Bool(false)}, nil
		},
		deleteObjectsFunc: func(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
			for _, id := range params.Delete.Objects {
				f.deleted = append(f.deleted, aws.ToString(id.Key))
				delete(f.objects, aws.ToString(id.Key))
			}
			return &s3.DeleteObjectsOutput{}, nil
		},
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func remoteObjectFor(key, content string) s3types.Object {
	sum := md5.Sum([]byte(content))
	return s3types.Object{
		Key:  aws.String(key),
		Size: aws.Int64(int64(len(content))),
		ETag: aws.String(`"` + hex.EncodeToString(sum[:]) + `"`),
	}
}

func testContext() context.Context {
	logger := zerolog.New(io.Discard)
	return logger.WithContext(context.Background())
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestBucketSyncer_Mirror(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"index.html":   "<html>20240101T000000</html>",
		"css/site.css": "body{margin:0}",
		"img/logo.png": "\x89PNG",
	})

	bucket := &fakeBucket{objects: map[string]s3types.Object{
		"index.html":   remoteObjectFor("index.html", "<html>20240101T000000</html>"),
		"css/site.css": remoteObjectFor("css/site.css", "body{margin:1px}"),
		"old.html":     remoteObjectFor("old.html", "stale"),
	}}
	uploader := &mockUploader{}

	syncer := NewBucketSyncerWithDeps(bucket.client(), uploader, BucketSyncerInput{
		Bucket:       "example.net",
		Delete:       true,
		Concurrency:  2,
		CacheControl: "max-age=300",
	})

	result, err := syncer.Sync(testContext(), dir)
	require.NoError(t, err)

	assert.True(t, result.Listed)
	assert.Equal(t, []string{"css/site.css", "img/logo.png"}, result.Uploaded)
	assert.Equal(t, []string{"old.html"}, result.Deleted)
	assert.Equal(t, []string{"index.html"}, result.Unchanged)
	assert.Equal(t, []string{"old.html"}, bucket.deleted)

	require.Len(t, uploader.uploads, 2)
	assert.Equal(t, "text/css; charset=utf-8", uploader.uploads["css/site.css"].contentType)
	assert.Equal(t, "body{margin:0}", uploader.uploads["css/site.css"].body)
	assert.Equal(t, "image/png", uploader.uploads["img/logo.png"].contentType)
	assert.Equal(t, "max-age=300", uploader.uploads["img/logo.png"].cacheControl)

	// remote key set now equals the local relative path set
	remote := map[string]bool{}
	for key := range bucket.objects {
		remote[key] = true
	}
	for key := range uploader.uploads {
		remote[key] = true
	}
	assert.ElementsMatch(t,
		[]string{"index.html", "css/site.css", "img/logo.png"},
		slices.Collect(maps.Keys(remote)))
}

func TestBucketSyncer_FollowsSymlinks(t *testing.T) {
	outside := writeTree(t, map[string]string{
		"app.js":          "console.log(1)",
		"shared/logo.svg": "<svg/>",
	})

	dir := writeTree(t, map[string]string{"index.html": "<html></html>"})
	require.NoError(t, os.Symlink(filepath.Join(outside, "app.js"), filepath.Join(dir, "app.js")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "shared"), filepath.Join(dir, "assets")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "missing.js"), filepath.Join(dir, "dangling.js")))
	require.NoError(t, os.Symlink(dir, filepath.Join(dir, "loop")))

	bucket := &fakeBucket{objects: map[string]s3types.Object{
		"index.html":      remoteObjectFor("index.html", "<html></html>"),
		"app.js":          remoteObjectFor("app.js", "console.log(1)"),
		"assets/logo.svg": remoteObjectFor("assets/logo.svg", "<svg></svg>"),
	}}
	uploader := &mockUploader{}

	syncer := NewBucketSyncerWithDeps(bucket.client(), uploader, BucketSyncerInput{
		Bucket: "example.net",
		Delete: true,
	})

	result, err := syncer.Sync(testContext(), dir)
	require.NoError(t, err)
	assert.Empty(t, result.Deleted)
	assert.Empty(t, bucket.deleted)
	assert.Equal(t, []string{"app.js", "index.html"}, result.Unchanged)
	assert.Equal(t, []string{"assets/logo.svg"}, result.Uploaded)
	assert.Equal(t, "<svg/>", uploader.uploads["assets/logo.svg"].body)
}

func TestBucketSyncer_Prefix(t *testing.T) {
	dir := writeTree(t, map[string]string{"index.html": "new"})

	bucket := &fakeBucket{objects: map[string]s3types.Object{
		"v2/old.html":    remoteObjectFor("v2/old.html", "old"),
		"other/keep.txt": remoteObjectFor("other/keep.txt", "keep"),
	}}
	uploader := &mockUploader{}

	syncer := NewBucketSyncerWithDeps(bucket.client(), uploader, BucketSyncerInput{
		Bucket: "example.net",
		Prefix: "/v2",
		Delete: true,
	})

	result, err := syncer.Sync(testContext(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"v2/index.html"}, result.Uploaded)
	assert.Equal(t, []string{"v2/old.html"}, result.Deleted)
	assert.Contains(t, bucket.objects, "other/keep.txt")
	assert.Contains(t, uploader.uploads, "v2/index.html")
}

func TestBucketSyncer_DryRun(t *testing.T) {
	dir := writeTree(t, map[string]string{"index.html": "new"})

	client := &mockS3Client{
		listObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			return &s3.ListObjectsV2Output{Contents: []s3types.Object{remoteObjectFor("gone.html", "x")}}, nil
		},
	}
	uploader := &mockUploader{}

	syncer := NewBucketSyncerWithDeps(client, uploader, BucketSyncerInput{
		Bucket: "example.net",
		Delete: true,
		DryRun: true,
	})

	result, err := syncer.Sync(testContext(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html"}, result.Uploaded)
	assert.Equal(t, []string{"gone.html"}, result.Deleted)
	assert.Empty(t, uploader.uploads)
}

func TestBucketSyncer_DeleteDisabled(t *testing.T) {
	dir := writeTree(t, map[string]string{"index.html": "new"})

	bucket := &fakeBucket{objects: map[string]s3types.Object{
		"old.html": remoteObjectFor("old.html", "old"),
	}}

	syncer := NewBucketSyncerWithDeps(bucket.client(), &mockUploader{}, BucketSyncerInput{
		Bucket: "example.net",
	})

	result, err := syncer.Sync(testContext(), dir)
	require.NoError(t, err)
	assert.Empty(t, result.Deleted)
	assert.Empty(t, bucket.deleted)
}

func TestBucketSyncer_Pagination(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.html": "a", "b.html": "b"})

	var calls int
	client := &mockS3Client{
		listObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			calls++
			if params.ContinuationToken == nil {
				return &s3.ListObjectsV2Output{
					Contents:              []s3types.Object{remoteObjectFor("a.html", "a")},
					IsTruncated:           aws.Bool(true),
					NextContinuationToken: aws.String("page-2"),
				}, nil
			}
			assert.Equal(t, "page-2", aws.ToString(params.ContinuationToken))
			return &s3.ListObjectsV2Output{
				Contents:    []s3types.Object{remoteObjectFor("b.html", "b")},
				IsTruncated: aws.Bool(false),
			}, nil
		},
	}

	syncer := NewBucketSyncerWithDeps(client, &mockUploader{}, BucketSyncerInput{Bucket: "example.net", Delete: true})

	result, err := syncer.Sync(testContext(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"a.html", "b.html"}, result.Unchanged)
	assert.Empty(t, result.Uploaded)
}

func TestBucketSyncer_MultipartETagUploads(t *testing.T) {
	dir := writeTree(t, map[string]string{"big.bin": "data"})

	client := &mockS3Client{
		listObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			return &s3.ListObjectsV2Output{Contents: []s3types.Object{{
				Key:  aws.String("big.bin"),
				Size: aws.Int64(4),
				ETag: aws.String(`"d41d8cd98f00b204e9800998ecf8427e-2"`),
			}}}, nil
		},
	}

	syncer := NewBucketSyncerWithDeps(client, &mockUploader{}, BucketSyncerInput{Bucket: "example.net"})

	result, err := syncer.Sync(testContext(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"big.bin"}, result.Uploaded)
}

func TestBucketSyncer_Errors(t *testing.T) {
	t.Run("missing build directory", func(t *testing.T) {
		syncer := NewBucketSyncerWithDeps(&mockS3Client{}, &mockUploader{}, BucketSyncerInput{Bucket: "example.net"})
		_, err := syncer.Sync(testContext(), filepath.Join(t.TempDir(), "build"))
		assert.True(t, errors.Is(err, errs.ErrBuildDirNotFound))
	})

	t.Run("list failure", func(t *testing.T) {
		listErr := errors.New("access denied")
		client := &mockS3Client{
			listObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
				return nil, listErr
			},
		}
		syncer := NewBucketSyncerWithDeps(client, &mockUploader{}, BucketSyncerInput{Bucket: "example.net"})

		_, err := syncer.Sync(testContext(), writeTree(t, map[string]string{"index.html": "x"}))
		assert.True(t, errors.Is(err, listErr))
	})

	t.Run("upload failure", func(t *testing.T) {
		uploadErr := errors.New("slow down")
		uploader := &mockUploader{failKeys: map[string]error{"index.html": uploadErr}}
		syncer := NewBucketSyncerWithDeps(&mockS3Client{}, uploader, BucketSyncerInput{Bucket: "example.net"})

		_, err := syncer.Sync(testContext(), writeTree(t, map[string]string{"index.html": "x"}))
		assert.True(t, errors.Is(err, uploadErr))
	})

	t.Run("every upload failure is reported", func(t *testing.T) {
		htmlErr := errors.New("slow down")
		cssErr := errors.New("access denied")
		uploader := &mockUploader{failKeys: map[string]error{
			"index.html":   htmlErr,
			"css/site.css": cssErr,
		}}
		syncer := NewBucketSyncerWithDeps(&mockS3Client{}, uploader, BucketSyncerInput{Bucket: "example.net", Concurrency: 4})

		_, err := syncer.Sync(testContext(), writeTree(t, map[string]string{
			"index.html":   "x",
			"css/site.css": "y",
			"img/logo.png": "z",
		}))
		assert.True(t, errors.Is(err, htmlErr))
		assert.True(t, errors.Is(err, cssErr))
		assert.Contains(t, uploader.uploads, "img/logo.png")
	})

	t.Run("partial delete failure", func(t *testing.T) {
		client := &mockS3Client{
			listObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
				return &s3.ListObjectsV2Output{Contents: []s3types.Object{remoteObjectFor("old.html", "x")}}, nil
			},
			deleteObjectsFunc: func(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
				return &s3.DeleteObjectsOutput{Errors: []s3types.Error{{
					Key:     aws.String("old.html"),
					Code:    aws.String("AccessDenied"),
					Message: aws.String("Access Denied"),
				}}}, nil
			},
		}
		syncer := NewBucketSyncerWithDeps(client, &mockUploader{}, BucketSyncerInput{Bucket: "example.net", Delete: true})

		_, err := syncer.Sync(testContext(), writeTree(t, map[string]string{"index.html": "x"}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AccessDenied")
	})
}

func TestBucketSyncer_DeleteBatches(t *testing.T) {
	var contents []s3types.Object
	for i := 0; i < maxDeleteBatch+5; i++ {
		key := "stale/" + hex.EncodeToString([]byte{byte(i >> 8), byte(i)}) + ".html"
		contents = append(contents, remoteObjectFor(key, "x"))
	}

	var batches []int
	client := &mockS3Client{
		listObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			return &s3.ListObjectsV2Output{Contents: contents}, nil
		},
		deleteObjectsFunc: func(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
			batches = append(batches, len(params.Delete.Objects))
			return &s3.DeleteObjectsOutput{}, nil
		},
	}
	syncer := NewBucketSyncerWithDeps(client, &mockUploader{}, BucketSyncerInput{Bucket: "example.net", Delete: true})

	result, err := syncer.Sync(testContext(), writeTree(t, map[string]string{"index.html": "x"}))
	require.NoError(t, err)
	assert.Len(t, result.Deleted, maxDeleteBatch+5)
	assert.Equal(t, []int{maxDeleteBatch, 5}, batches)
}
