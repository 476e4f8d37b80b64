// Package s3 implements a remote account stored in an S3 bucket, or in any
// S3-compatible object store.
//
// Folders are zero-byte objects whose key ends in a slash. Folders that only
// exist implicitly, as the prefix of other keys, are listed too. Node IDs are
// object keys, except for the root, whose ID is the account's prefix (or "/"
// for a whole bucket).
package s3

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/remote-mirror/pkg/errors"
	"github.com/sidkik/remote-mirror/pkg/remote"
	"github.com/sidkik/remote-mirror/pkg/version"
)

// maxDeleteBatch is the most keys a single DeleteObjects request accepts.
const maxDeleteBatch = 1000

// API is the subset of the S3 API used by the Client. It's satisfied by
// *s3.Client.
type API interface {
	HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Config describes how to reach the bucket.
type Config struct {
	Bucket string
	Prefix string
	Region string

	// Endpoint is only needed for S3-compatible stores such as MinIO.
	Endpoint string
}

// Client is a remote account stored in an S3 bucket.
type Client struct {
	config Config
	prefix string
	api    API
}

// New returns a client for the bucket. The connection is set up by Login.
func New(config Config) *Client {
	return &Client{config: config, prefix: normalizePrefix(config.Prefix)}
}

// NewWithAPI returns a client that uses `api` rather than connecting to S3.
func NewWithAPI(api API, bucket, prefix string) *Client {
	return &Client{
		config: Config{Bucket: bucket, Prefix: prefix},
		prefix: normalizePrefix(prefix),
		api:    api,
	}
}

// Login connects to S3 and checks that the bucket is accessible. The
// username and password are used as the access key ID and secret access key.
// If they're empty, the default AWS credential chain is used instead.
func (c *Client) Login(ctx context.Context, creds remote.Credentials) error {
	if c.api == nil {
		api, err := c.connect(ctx, creds)
		if err != nil {
			return err
		}
		c.api = api
	}

	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.config.Bucket)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "NotFound", "NoSuchBucket":
				return errors.NewFriendlyError("Bucket %q does not exist", c.config.Bucket)
			case "Forbidden", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
				return errors.NewFriendlyError("Access to bucket %q was denied. "+
					"Check the account's access key and secret key.", c.config.Bucket)
			}
		}
		return errors.WithContext(err, "head bucket")
	}
	return nil
}

func (c *Client) connect(ctx context.Context, creds remote.Credentials) (API, error) {
	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithAppID(version.UserAgent()),
	}
	if c.config.Region != "" {
		opts = append(opts, awsConfig.WithRegion(c.config.Region))
	}

	if creds.Username != "" || creds.Password != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.Username, creds.Password, "")))
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.WithContext(err, "load aws config")
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.config.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.config.Endpoint)
			// Most S3-compatible stores don't support virtual-hosted buckets.
			o.UsePathStyle = true
		}
	}), nil
}

// ListNodes lists every object under the account's prefix.
func (c *Client) ListNodes(ctx context.Context) ([]remote.Node, error) {
	if err := c.checkLoggedIn(); err != nil {
		return nil, err
	}

	nodes := []remote.Node{{ID: c.rootID(), Kind: remote.Root}}
	seenFolders := map[string]bool{}
	addFolder := func(key string) {
		if seenFolders[key] {
			return
		}
		seenFolders[key] = true
		nodes = append(nodes, c.node(key, remote.Folder, 0))
	}

	err := c.listKeys(ctx, c.prefix, func(obj types.Object) {
		key := aws.ToString(obj.Key)
		if key == c.prefix {
			return
		}

		// Synthesize the folders that only exist as part of other keys, so
		// that parents are always listed.
		rel := strings.TrimPrefix(key, c.prefix)
		for i, r := range rel {
			if r == '/' && i < len(rel)-1 {
				addFolder(c.prefix + rel[:i+1])
			}
		}

		if strings.HasSuffix(key, "/") {
			addFolder(key)
			return
		}
		nodes = append(nodes, c.node(key, remote.File, aws.ToInt64(obj.Size)))
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// Upload puts a new object into the parent folder.
func (c *Client) Upload(ctx context.Context, r io.Reader, name string, parent remote.Node,
	size int64, progress remote.ProgressFunc) (remote.Node, error) {
	if err := c.checkLoggedIn(); err != nil {
		return remote.Node{}, err
	}

	key, err := c.childKey(parent, name)
	if err != nil {
		return remote.Node{}, err
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.Bucket),
		Key:           aws.String(key),
		Body:          remote.NewProgressReader(r, size, progress),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return remote.Node{}, errors.WithContext(err, "put object")
	}
	return c.node(key, remote.File, size), nil
}

// CreateFolder puts a folder marker object into the parent folder.
func (c *Client) CreateFolder(ctx context.Context, name string, parent remote.Node) (remote.Node, error) {
	if err := c.checkLoggedIn(); err != nil {
		return remote.Node{}, err
	}

	key, err := c.childKey(parent, name)
	if err != nil {
		return remote.Node{}, err
	}
	key += "/"

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return remote.Node{}, errors.WithContext(err, "put folder marker")
	}
	return c.node(key, remote.Folder, 0), nil
}

// Delete removes the object, or every object under the folder. S3 buckets
// don't have a trash, so only permanent deletes are supported.
func (c *Client) Delete(ctx context.Context, node remote.Node, permanent bool) error {
	if err := c.checkLoggedIn(); err != nil {
		return err
	}

	if !permanent {
		return errors.New("s3 accounts only support permanent deletes")
	}

	switch node.Kind {
	case remote.File:
		_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.config.Bucket),
			Key:    aws.String(node.ID),
		})
		return errors.WithContext(err, "delete object")
	case remote.Folder:
		return c.deleteFolder(ctx, node.ID)
	default:
		return errors.New("cannot delete %s node %q", node.Kind, node.ID)
	}
}

func (c *Client) deleteFolder(ctx context.Context, folderKey string) error {
	// The folder marker is listed along with the folder's contents, if it
	// exists.
	var keys []string
	err := c.listKeys(ctx, folderKey, func(obj types.Object) {
		keys = append(keys, aws.ToString(obj.Key))
	})
	if err != nil {
		return err
	}

	for len(keys) > 0 {
		batch := keys
		if len(batch) > maxDeleteBatch {
			batch = keys[:maxDeleteBatch]
		}
		keys = keys[len(batch):]

		objects := make([]types.ObjectIdentifier, 0, len(batch))
		for _, key := range batch {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}

		result, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.config.Bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return errors.WithContext(err, "delete objects")
		}

		for _, deleteErr := range result.Errors {
			log.WithFields(log.Fields{
				"key":  aws.ToString(deleteErr.Key),
				"code": aws.ToString(deleteErr.Code),
			}).Warn(aws.ToString(deleteErr.Message))
		}
		if len(result.Errors) != 0 {
			return errors.New("failed to delete %d objects in %q", len(result.Errors), folderKey)
		}
	}
	return nil
}

func (c *Client) listKeys(ctx context.Context, prefix string, fn func(types.Object)) error {
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.config.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return errors.WithContext(err, "list objects")
		}

		for _, obj := range page.Contents {
			fn(obj)
		}
	}
	return nil
}

func (c *Client) checkLoggedIn() error {
	if c.api == nil {
		return errors.New("not logged in")
	}
	return nil
}

func (c *Client) childKey(parent remote.Node, name string) (string, error) {
	if name == "" || strings.Contains(name, "/") {
		return "", errors.New("invalid name %q", name)
	}

	switch parent.Kind {
	case remote.Root:
		return c.prefix + name, nil
	case remote.Folder:
		return parent.ID + name, nil
	default:
		return "", errors.New("cannot create %q in %s node %q", name, parent.Kind, parent.ID)
	}
}

func (c *Client) node(key string, kind remote.Kind, size int64) remote.Node {
	return remote.Node{
		ID:       key,
		ParentID: c.parentID(key),
		Name:     path.Base(key),
		Kind:     kind,
		Size:     size,
	}
}

func (c *Client) parentID(key string) string {
	trimmed := strings.TrimSuffix(key, "/")
	parent := trimmed[:strings.LastIndex(trimmed, "/")+1]
	if len(parent) <= len(c.prefix) {
		return c.rootID()
	}
	return parent
}

func (c *Client) rootID() string {
	if c.prefix == "" {
		return "/"
	}
	return c.prefix
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
