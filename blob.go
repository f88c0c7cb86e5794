package gridset

import (
	"context"
	"fmt"
	"io"

	"github.com/wgdzlh/gridset/log"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// 对象存储（file://、mem://，以及调用方注册的s3://、gs://等）
type BlobStore struct {
	bucket *blob.Bucket
	url    string
}

var _ Store = (*BlobStore)(nil)

func OpenBlobStore(ctx context.Context, url string) (*BlobStore, error) {
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		log.Error("BlobStore:open bucket failed", zap.String("url", url), zap.Error(err))
		return nil, err
	}
	return &BlobStore{bucket: b, url: url}, nil
}

func (s *BlobStore) Type() string { return BlobStoreType }

func (s *BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	return r, nil
}

// 写入失败时取消上下文，放弃本次对象写入
func (s *BlobStore) Put(ctx context.Context, key string, val io.Reader) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return
	}
	if _, err = io.Copy(w, val); err != nil {
		cancel()
		w.Close()
		return
	}
	err = w.Close()
	return
}

func (s *BlobStore) List(ctx context.Context, prefix string) (keys []string, err error) {
	it := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, e := it.Next(ctx)
		if e == io.EOF {
			return
		}
		if e != nil {
			err = e
			return
		}
		if !obj.IsDir {
			keys = append(keys, obj.Key)
		}
	}
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
