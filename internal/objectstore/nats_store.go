// Package objectstore provides a NATS JetStream implementation of core.ObjectStore
// for uploaded documents, generated audio and images.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const headerContentType = "Content-Type"

// ErrNotFound is returned when a key is absent from the bucket.
var ErrNotFound = errors.New("object not found")

// NatsObjectStore implements the core.ObjectStore interface using NATS JetStream.
type NatsObjectStore struct {
	bucket string
	store  jetstream.ObjectStore
}

// New creates the bucket, or binds to it when it already exists.
func New(ctx context.Context, natsConnection *nats.Conn, bucketName string) (*NatsObjectStore, error) {
	js, err := jetstream.New(natsConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Voice service storage for the %s bucket.", bucketName),
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = js.ObjectStore(ctx, bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsObjectStore{bucket: bucketName, store: store}, nil
}

// Download retrieves an object and the content type it was stored with.
func (n *NatsObjectStore) Download(ctx context.Context, key string) (*core.Object, error) {
	info, err := n.store.GetInfo(ctx, key)
	if err != nil {
		return nil, n.wrapLookupErr(key, err)
	}

	data, err := n.store.GetBytes(ctx, key)
	if err != nil {
		return nil, n.wrapLookupErr(key, err)
	}

	obj := &core.Object{Key: key, Data: data}
	if info.Headers != nil {
		obj.ContentType = info.Headers.Get(headerContentType)
	}

	return obj, nil
}

// Upload saves an object, replacing any previous object under the same key.
func (n *NatsObjectStore) Upload(ctx context.Context, obj core.Object) error {
	meta := jetstream.ObjectMeta{Name: obj.Key}

	if obj.ContentType != "" {
		meta.Headers = nats.Header{}
		meta.Headers.Set(headerContentType, obj.ContentType)
	}

	_, err := n.store.Put(ctx, meta, bytes.NewReader(obj.Data))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", obj.Key, n.bucket, err)
	}

	return nil
}

// Delete removes an object. Deleting a missing key returns ErrNotFound.
func (n *NatsObjectStore) Delete(ctx context.Context, key string) error {
	err := n.store.Delete(ctx, key)
	if err != nil {
		return n.wrapLookupErr(key, err)
	}

	return nil
}

func (n *NatsObjectStore) wrapLookupErr(key string, err error) error {
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return fmt.Errorf("%w: '%s' in bucket '%s'", ErrNotFound, key, n.bucket)
	}

	return fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
}
