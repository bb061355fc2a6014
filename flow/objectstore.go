package flow

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/tencentyun/cos-go-sdk-v5"

	"github.com/flowkit/flowkit/log"
)

// objectStore is the Tencent Cloud Object Storage-backed alternative to the
// shared-filesystem sync directory (flow/sync.go): pushing a node uploads
// its dumped data and conf as objects instead of (or in addition to)
// copying them into a shared mount, so an agent with no access to the
// session's filesystem can still exchange results over a bucket both sides
// can reach. Grounded on the teacher's artifact/tcos/service.go, which
// builds the same cos.Client from a bucket URL plus secret ID/key.
type objectStore struct {
	client *cos.Client
}

func newObjectStore(bucketURL, secretID, secretKey string) (*objectStore, error) {
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, wrapFlowError(err, "object store: parse bucket URL")
	}
	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{SecretID: secretID, SecretKey: secretKey},
	})
	return &objectStore{client: client}, nil
}

// objectKey builds a slash-separated bucket key for a node's dumped file,
// independent of the local filesystem's path separator.
func objectKey(nodePath, slug, ext string) string {
	return path.Join(nodePath, slug+ext)
}

func (o *objectStore) put(key string, data []byte) error {
	_, err := o.client.Object.Put(context.Background(), key, bytes.NewReader(data), nil)
	return err
}

func (o *objectStore) get(key string) ([]byte, error) {
	resp, err := o.client.Object.Get(context.Background(), key, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (o *objectStore) exists(key string) bool {
	_, err := o.client.Object.Head(context.Background(), key, nil)
	if err != nil {
		if !cos.IsNotFoundError(err) {
			log.Default.Warnf("object store: head %s: %v", key, err)
		}
		return false
	}
	return true
}
