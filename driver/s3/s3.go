package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/gobeaver/diskkit"
)

// API is the subset of *s3.Client used by the adapter.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObjectAcl(ctx context.Context, params *s3.GetObjectAclInput, optFns ...func(*s3.Options)) (*s3.GetObjectAclOutput, error)
	PutObjectAcl(ctx context.Context, params *s3.PutObjectAclInput, optFns ...func(*s3.Options)) (*s3.PutObjectAclOutput, error)
}

var _ API = (*s3.Client)(nil)

// Adapter provides an S3 implementation of diskkit.Adapter
type Adapter struct {
	client     API
	bucket     string
	prefixer   *diskkit.PathPrefixer
	visibility *VisibilityConverter
	detector   diskkit.MimeTypeDetector
}

var _ diskkit.Adapter = (*Adapter)(nil)

// AdapterOption is a function that configures Adapter
type AdapterOption func(*Adapter)

// WithPrefix sets the key prefix every path is stored under
func WithPrefix(prefix string) AdapterOption {
	return func(a *Adapter) {
		a.prefixer = diskkit.NewPathPrefixer(strings.Trim(prefix, "/"), "/")
	}
}

// WithDefaultVisibility sets the visibility of writes that specify none
func WithDefaultVisibility(visibility diskkit.Visibility) AdapterOption {
	return func(a *Adapter) {
		a.visibility = NewVisibilityConverter(visibility)
	}
}

// WithMimeTypeDetector sets the detector used when no content type is given
func WithMimeTypeDetector(detector diskkit.MimeTypeDetector) AdapterOption {
	return func(a *Adapter) {
		if detector != nil {
			a.detector = detector
		}
	}
}

// New creates a new S3 adapter
func New(client API, bucket string, options ...AdapterOption) *Adapter {
	adapter := &Adapter{
		client:     client,
		bucket:     bucket,
		prefixer:   diskkit.NewPathPrefixer("", "/"),
		visibility: NewVisibilityConverter(diskkit.Private),
		detector:   diskkit.DefaultMimeTypeDetector{},
	}

	for _, option := range options {
		option(adapter)
	}

	return adapter
}

// Bucket returns the bucket name
func (a *Adapter) Bucket() string {
	return a.bucket
}

func (a *Adapter) key(path string) string {
	return a.prefixer.PrefixPath(path)
}

func (a *Adapter) dirKey(path string) string {
	key := a.prefixer.PrefixDirectoryPath(path)
	if key == "/" {
		return ""
	}
	return key
}

// FileExists implements diskkit.Adapter
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, mapS3Error("fileexists", path, err)
	}
	return true, nil
}

// DirectoryExists implements diskkit.Adapter. A directory exists when any
// object is stored below it.
func (a *Adapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	resp, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(a.bucket),
		Prefix:  aws.String(a.dirKey(path)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, mapS3Error("directoryexists", path, err)
	}
	return len(resp.Contents) > 0 || len(resp.CommonPrefixes) > 0, nil
}

// Read implements diskkit.Adapter
func (a *Adapter) Read(ctx context.Context, path string) ([]byte, error) {
	rc, err := a.ReadStream(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, mapS3Error("read", path, err)
	}
	return data, nil
}

// ReadStream implements diskkit.Adapter
func (a *Adapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(path)),
	})
	if err != nil {
		return nil, mapS3Error("read", path, err)
	}
	return resp.Body, nil
}

// Write implements diskkit.Adapter
func (a *Adapter) Write(ctx context.Context, path string, contents []byte, opts *diskkit.Options) error {
	return a.put(ctx, "write", path, bytes.NewReader(contents), int64(len(contents)), opts)
}

// WriteStream implements diskkit.Adapter. Seekable readers are streamed,
// anything else is buffered since PutObject needs a content length.
func (a *Adapter) WriteStream(ctx context.Context, path string, r io.Reader, opts *diskkit.Options) error {
	var body io.Reader
	var contentLength int64 = -1

	switch v := r.(type) {
	case *bytes.Reader:
		contentLength = int64(v.Len())
		body = v
	case *strings.Reader:
		contentLength = int64(v.Len())
		body = v
	case *os.File:
		if info, err := v.Stat(); err == nil {
			pos, _ := v.Seek(0, io.SeekCurrent)
			contentLength = info.Size() - pos
		}
		body = v
	default:
		data, err := io.ReadAll(r)
		if err != nil {
			return mapS3Error("writestream", path, err)
		}
		contentLength = int64(len(data))
		body = bytes.NewReader(data)
	}

	return a.put(ctx, "writestream", path, body, contentLength, opts)
}

func (a *Adapter) put(ctx context.Context, op, path string, body io.Reader, contentLength int64, opts *diskkit.Options) error {
	if opts == nil {
		opts = &diskkit.Options{}
	}

	contentType := opts.ContentType
	if contentType == "" {
		var head []byte
		if rs, ok := body.(io.ReadSeeker); ok {
			head = make([]byte, 512)
			n, _ := io.ReadFull(rs, head)
			head = head[:n]
			if _, err := rs.Seek(-int64(n), io.SeekCurrent); err != nil {
				return mapS3Error(op, path, err)
			}
		}
		contentType = a.detector.DetectMimeType(path, head)
	}

	visibility := opts.Visibility
	if visibility == "" {
		visibility = a.visibility.DefaultVisibility()
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(path)),
		Body:   body,
		ACL:    a.visibility.ACL(visibility),
	}
	if contentLength >= 0 {
		input.ContentLength = aws.Int64(contentLength)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	if _, err := a.client.PutObject(ctx, input); err != nil {
		return mapS3Error(op, path, err)
	}
	return nil
}

// Delete implements diskkit.Adapter
func (a *Adapter) Delete(ctx context.Context, path string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(path)),
	})
	if err != nil && !isNotFound(err) {
		return mapS3Error("delete", path, err)
	}
	return nil
}

// DeleteDirectory implements diskkit.Adapter by deleting every object
// below path, one page at a time.
func (a *Adapter) DeleteDirectory(ctx context.Context, path string) error {
	if strings.Trim(path, "/") == "" {
		return &diskkit.PathError{Op: "deletedirectory", Path: path, Err: diskkit.ErrNotAllowed}
	}
	prefix := a.dirKey(path)

	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return mapS3Error("deletedirectory", path, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, len(page.Contents))
		for i, obj := range page.Contents {
			objects[i] = types.ObjectIdentifier{Key: obj.Key}
		}
		_, err = a.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(a.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return mapS3Error("deletedirectory", path, err)
		}
	}
	return nil
}

// CreateDirectory implements diskkit.Adapter with an empty marker object
// whose key ends with a slash.
func (a *Adapter) CreateDirectory(ctx context.Context, path string, opts *diskkit.Options) error {
	if opts == nil {
		opts = &diskkit.Options{}
	}
	visibility := opts.Visibility
	if visibility == "" {
		visibility = opts.DirectoryVisibility
	}
	if visibility == "" {
		visibility = a.visibility.DefaultVisibility()
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(a.dirKey(path)),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
		ContentType:   aws.String("application/x-directory"),
		ACL:           a.visibility.ACL(visibility),
	})
	if err != nil {
		return mapS3Error("createdirectory", path, err)
	}
	return nil
}

// SetVisibility implements diskkit.Adapter
func (a *Adapter) SetVisibility(ctx context.Context, path string, visibility diskkit.Visibility) error {
	_, err := a.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(path)),
		ACL:    a.visibility.ACL(visibility),
	})
	if err != nil {
		return mapS3Error("setvisibility", path, err)
	}
	return nil
}

// Visibility implements diskkit.Adapter
func (a *Adapter) Visibility(ctx context.Context, path string) (*diskkit.FileAttributes, error) {
	resp, err := a.client.GetObjectAcl(ctx, &s3.GetObjectAclInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(path)),
	})
	if err != nil {
		return nil, mapS3Error("visibility", path, err)
	}
	return diskkit.NewFileAttributes(path).WithVisibility(a.visibility.FromGrants(resp.Grants)), nil
}

// MimeType implements diskkit.Adapter
func (a *Adapter) MimeType(ctx context.Context, path string) (*diskkit.FileAttributes, error) {
	attrs, err := a.head(ctx, "mimetype", path)
	if err != nil {
		return nil, err
	}
	if attrs.MimeType() == "" {
		return nil, &diskkit.PathError{Op: "mimetype", Path: path, Err: diskkit.ErrUnknownMimeType}
	}
	return attrs, nil
}

// LastModified implements diskkit.Adapter
func (a *Adapter) LastModified(ctx context.Context, path string) (*diskkit.FileAttributes, error) {
	return a.head(ctx, "lastmodified", path)
}

// FileSize implements diskkit.Adapter
func (a *Adapter) FileSize(ctx context.Context, path string) (*diskkit.FileAttributes, error) {
	return a.head(ctx, "filesize", path)
}

func (a *Adapter) head(ctx context.Context, op, path string) (*diskkit.FileAttributes, error) {
	resp, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(path)),
	})
	if err != nil {
		return nil, mapS3Error(op, path, err)
	}

	attrs := diskkit.NewFileAttributes(path).
		WithSize(aws.ToInt64(resp.ContentLength)).
		WithMimeType(aws.ToString(resp.ContentType))
	if resp.LastModified != nil {
		attrs = attrs.WithLastModified(resp.LastModified.Unix())
	}
	return attrs, nil
}

// ListContents implements diskkit.Adapter. Shallow listings use the "/"
// delimiter and report common prefixes as directories.
func (a *Adapter) ListContents(ctx context.Context, path string, deep bool) iter.Seq2[diskkit.StorageAttributes, error] {
	return func(yield func(diskkit.StorageAttributes, error) bool) {
		listPrefix := a.dirKey(path)
		input := &s3.ListObjectsV2Input{
			Bucket: aws.String(a.bucket),
			Prefix: aws.String(listPrefix),
		}
		if !deep {
			input.Delimiter = aws.String("/")
		}

		paginator := s3.NewListObjectsV2Paginator(a.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(nil, mapS3Error("listcontents", path, err))
				return
			}

			for _, p := range page.CommonPrefixes {
				rel, err := a.prefixer.StripPrefix(aws.ToString(p.Prefix))
				if err != nil || rel == "" {
					continue
				}
				if !yield(diskkit.NewDirectoryAttributes(rel), nil) {
					return
				}
			}

			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				if key == listPrefix {
					continue
				}
				rel, err := a.prefixer.StripPrefix(key)
				if err != nil {
					continue
				}

				var attrs diskkit.StorageAttributes
				if strings.HasSuffix(key, "/") {
					dir := diskkit.NewDirectoryAttributes(rel)
					if obj.LastModified != nil {
						dir = dir.WithLastModified(obj.LastModified.Unix())
					}
					attrs = dir
				} else {
					file := diskkit.NewFileAttributes(rel).WithSize(aws.ToInt64(obj.Size))
					if obj.LastModified != nil {
						file = file.WithLastModified(obj.LastModified.Unix())
					}
					attrs = file
				}
				if !yield(attrs, nil) {
					return
				}
			}
		}
	}
}

// Copy implements diskkit.Adapter using the native CopyObject API.
func (a *Adapter) Copy(ctx context.Context, source, destination string, opts *diskkit.Options) error {
	if opts == nil {
		opts = &diskkit.Options{}
	}

	visibility := opts.Visibility
	if visibility == "" {
		attrs, err := a.Visibility(ctx, source)
		if err != nil {
			return err
		}
		visibility = attrs.Visibility()
	}

	_, err := a.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(a.bucket),
		CopySource: aws.String(fmt.Sprintf("%s/%s", a.bucket, a.key(source))),
		Key:        aws.String(a.key(destination)),
		ACL:        a.visibility.ACL(visibility),
	})
	if err != nil {
		return mapS3Error("copy", source, err)
	}
	return nil
}

// Move implements diskkit.Adapter. S3 has no rename, so this is copy and
// delete.
func (a *Adapter) Move(ctx context.Context, source, destination string, opts *diskkit.Options) error {
	if source == destination {
		return nil
	}
	if err := a.Copy(ctx, source, destination, opts); err != nil {
		return err
	}

	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(source)),
	})
	if err != nil {
		return mapS3Error("move", source, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

// mapS3Error maps S3 errors to diskkit errors
func mapS3Error(op, path string, err error) error {
	if isNotFound(err) {
		return &diskkit.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: %w", diskkit.ErrNotExist, err)}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden":
			return &diskkit.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: %w", diskkit.ErrPermission, err)}
		}
	}

	return diskkit.WrapPathErr(op, path, err)
}
