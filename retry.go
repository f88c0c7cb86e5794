package gridset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/wgdzlh/gridset/log"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// 在存储边界上对临时性故障做指数退避重试；NotFound不重试
type retryStore struct {
	Store
	retries    uint64
	newBackOff func() backoff.BackOff
	logTag     string
}

func WithRetry(s Store, retries uint64) Store {
	if retries == 0 {
		return s
	}
	return &retryStore{
		Store:      s,
		retries:    retries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logTag:     "RetryStore:",
	}
}

func (s *retryStore) do(ctx context.Context, op, key string, fn func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.retries), ctx)
	return backoff.RetryNotify(
		func() error {
			err := fn()
			if errors.Is(err, ErrNotFound) {
				return backoff.Permanent(err)
			}
			return err
		},
		b,
		func(err error, d time.Duration) {
			log.Warn(s.logTag+"retrying "+op, zap.String("key", key), zap.Duration("wait", d), zap.Error(err))
		},
	)
}

func (s *retryStore) Get(ctx context.Context, key string) (rc io.ReadCloser, err error) {
	err = s.do(ctx, "get", key, func() (e error) {
		rc, e = s.Store.Get(ctx, key)
		return
	})
	return
}

func (s *retryStore) Put(ctx context.Context, key string, val io.Reader) error {
	data, err := io.ReadAll(val)
	if err != nil {
		return err
	}
	return s.do(ctx, "put", key, func() error {
		return s.Store.Put(ctx, key, bytes.NewReader(data))
	})
}

func (s *retryStore) List(ctx context.Context, prefix string) (keys []string, err error) {
	err = s.do(ctx, "list", prefix, func() (e error) {
		keys, e = s.Store.List(ctx, prefix)
		return
	})
	return
}
