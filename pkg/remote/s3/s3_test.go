package s3

import (
	"context"
	"io/ioutil"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/remote-mirror/pkg/errors"
	"github.com/sidkik/remote-mirror/pkg/remote"
)

func TestLogin(t *testing.T) {
	api := newFakeAPI()
	assert.NoError(t, NewWithAPI(api, "bucket", "").Login(context.Background(), remote.Credentials{}))

	api.headErr = &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
	err := NewWithAPI(api, "bucket", "").Login(context.Background(), remote.Credentials{})
	assert.Equal(t, `Bucket "bucket" does not exist`, errors.GetPrintableMessage(err))

	api.headErr = assert.AnError
	err = NewWithAPI(api, "bucket", "").Login(context.Background(), remote.Credentials{})
	assert.EqualError(t, err, "head bucket: "+assert.AnError.Error())
}

func TestNotLoggedIn(t *testing.T) {
	_, err := New(Config{Bucket: "bucket"}).ListNodes(context.Background())
	assert.EqualError(t, err, "not logged in")
}

func TestListNodes(t *testing.T) {
	api := newFakeAPI()
	api.pageSize = 2
	api.put("backup/", "")
	api.put("backup/a_[[2016-1-1-0-0-0]].txt", "aaa")
	api.put("backup/implicit/deep/b_[[2016-1-1-0-0-0]].txt", "b")
	api.put("backup/photos/", "")
	api.put("other/ignored", "x")

	nodes, err := NewWithAPI(api, "bucket", "/backup/").ListNodes(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []remote.Node{
		{ID: "backup/", Kind: remote.Root},
		{ID: "backup/a_[[2016-1-1-0-0-0]].txt", ParentID: "backup/",
			Name: "a_[[2016-1-1-0-0-0]].txt", Kind: remote.File, Size: 3},
		{ID: "backup/implicit/", ParentID: "backup/", Name: "implicit", Kind: remote.Folder},
		{ID: "backup/implicit/deep/", ParentID: "backup/implicit/", Name: "deep", Kind: remote.Folder},
		{ID: "backup/implicit/deep/b_[[2016-1-1-0-0-0]].txt", ParentID: "backup/implicit/deep/",
			Name: "b_[[2016-1-1-0-0-0]].txt", Kind: remote.File, Size: 1},
		{ID: "backup/photos/", ParentID: "backup/", Name: "photos", Kind: remote.Folder},
	}, nodes)
}

func TestCreateAndUpload(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	client := NewWithAPI(api, "bucket", "")
	root := remote.Node{ID: "/", Kind: remote.Root}

	folder, err := client.CreateFolder(ctx, "Photos", root)
	assert.NoError(t, err)
	assert.Equal(t, remote.Node{ID: "Photos/", ParentID: "/", Name: "Photos", Kind: remote.Folder}, folder)

	var last float64
	file, err := client.Upload(ctx, strings.NewReader("contents"), "beach.jpeg", folder, 8,
		func(percent float64) { last = percent })
	assert.NoError(t, err)
	assert.Equal(t, remote.Node{ID: "Photos/beach.jpeg", ParentID: "Photos/",
		Name: "beach.jpeg", Kind: remote.File, Size: 8}, file)
	assert.Equal(t, float64(100), last)
	assert.Equal(t, map[string]string{"Photos/": "", "Photos/beach.jpeg": "contents"}, api.objects)

	nodes, err := client.ListNodes(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []remote.Node{root, folder, file}, nodes)

	_, err = client.Upload(ctx, strings.NewReader(""), "child", file, 0, nil)
	assert.Error(t, err)

	api.putErr = assert.AnError
	_, err = client.CreateFolder(ctx, "Other", root)
	assert.EqualError(t, err, "put folder marker: "+assert.AnError.Error())
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.pageSize = 1
	for i := 0; i < 3; i++ {
		api.put("old/"+strconv.Itoa(i), "")
	}
	api.put("old/", "")
	api.put("older", "")
	api.put("keep", "")

	client := NewWithAPI(api, "bucket", "")
	assert.EqualError(t, client.Delete(ctx, remote.Node{ID: "keep", Kind: remote.File}, false),
		"s3 accounts only support permanent deletes")

	assert.NoError(t, client.Delete(ctx, remote.Node{ID: "old/", Kind: remote.Folder}, true))
	assert.Equal(t, map[string]string{"older": "", "keep": ""}, api.objects)

	assert.NoError(t, client.Delete(ctx, remote.Node{ID: "keep", Kind: remote.File}, true))
	assert.Equal(t, map[string]string{"older": ""}, api.objects)

	assert.Error(t, client.Delete(ctx, remote.Node{ID: "/", Kind: remote.Root}, true))
}

func TestDeleteFolderErrors(t *testing.T) {
	api := newFakeAPI()
	api.put("old/file", "")
	api.failDelete = map[string]bool{"old/file": true}

	err := NewWithAPI(api, "bucket", "").Delete(context.Background(),
		remote.Node{ID: "old/", Kind: remote.Folder}, true)
	assert.EqualError(t, err, `failed to delete 1 objects in "old/"`)
}

func TestParentID(t *testing.T) {
	client := NewWithAPI(nil, "bucket", "a/b")
	assert.Equal(t, "a/b/", client.parentID("a/b/c"))
	assert.Equal(t, "a/b/", client.parentID("a/b/c/"))
	assert.Equal(t, "a/b/c/", client.parentID("a/b/c/d"))

	client = NewWithAPI(nil, "bucket", "")
	assert.Equal(t, "/", client.parentID("c"))
	assert.Equal(t, "c/", client.parentID("c/d/"))
}

// fakeAPI is an in-memory bucket.
type fakeAPI struct {
	objects    map[string]string
	pageSize   int
	headErr    error
	putErr     error
	failDelete map[string]bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: map[string]string{}}
}

func (api *fakeAPI) put(key, contents string) {
	api.objects[key] = contents
}

func (api *fakeAPI) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (
	*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, api.headErr
}

func (api *fakeAPI) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input,
	_ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for key := range api.objects {
		if strings.HasPrefix(key, aws.ToString(input.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	start := 0
	if input.ContinuationToken != nil {
		start, _ = strconv.Atoi(*input.ContinuationToken)
	}

	end := len(keys)
	if api.pageSize > 0 && start+api.pageSize < end {
		end = start + api.pageSize
	}

	output := &s3.ListObjectsV2Output{}
	for _, key := range keys[start:end] {
		output.Contents = append(output.Contents, types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(api.objects[key]))),
		})
	}

	if end < len(keys) {
		output.IsTruncated = aws.Bool(true)
		output.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return output, nil
}

func (api *fakeAPI) PutObject(_ context.Context, input *s3.PutObjectInput,
	_ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if api.putErr != nil {
		return nil, api.putErr
	}

	contents, err := ioutil.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	api.objects[aws.ToString(input.Key)] = string(contents)
	return &s3.PutObjectOutput{}, nil
}

func (api *fakeAPI) DeleteObject(_ context.Context, input *s3.DeleteObjectInput,
	_ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(api.objects, aws.ToString(input.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (api *fakeAPI) DeleteObjects(_ context.Context, input *s3.DeleteObjectsInput,
	_ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	output := &s3.DeleteObjectsOutput{}
	for _, obj := range input.Delete.Objects {
		key := aws.ToString(obj.Key)
		if api.failDelete[key] {
			output.Errors = append(output.Errors, types.Error{
				Key:     obj.Key,
				Code:    aws.String("AccessDenied"),
				Message: aws.String("Access Denied"),
			})
			continue
		}
		delete(api.objects, key)
	}
	return output, nil
}

var _ API = &fakeAPI{}
var _ API = &s3.Client{}

func TestFakeAPIPaginates(t *testing.T) {
	api := newFakeAPI()
	api.pageSize = 1
	api.put("a", "")
	api.put("b", "")

	var keys []string
	require.NoError(t, NewWithAPI(api, "bucket", "").listKeys(context.Background(), "",
		func(obj types.Object) { keys = append(keys, aws.ToString(obj.Key)) }))
	assert.Equal(t, []string{"a", "b"}, keys)
}
