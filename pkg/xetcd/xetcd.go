// Package xetcd resolves service addresses (NATS, approval evaluator) from etcd.
package xetcd

import (
	"context"
	"errors"
	"time"

	"metaldesk/pkg/xlog"

	clientv3 "go.etcd.io/etcd/client/v3"
)

var ErrNotFound = errors.New("etcd key not found")

type Worker struct {
	Cli *clientv3.Client
}

var logger = xlog.GetLogger()

func New(urls []string) (w *Worker, err error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   urls,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return
	}

	return &Worker{Cli: cli}, nil
}

func (w *Worker) Get(ctx context.Context, k string) (v string, err error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)

	defer func() {
		if err != nil {
			logger.Errorf("xetcd Get k:%s failed with err:%s", k, err)
		} else {
			logger.Debugf("xetcd Get k:%s, v:%s", k, v)
		}
		cancel()
	}()

	r, err := w.Cli.Get(ctx, k)
	if err != nil {
		return
	}
	if len(r.Kvs) == 0 {
		err = ErrNotFound
		return
	}

	v = string(r.Kvs[0].Value)
	return
}

func (w *Worker) Put(ctx context.Context, k string, v string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err = w.Cli.Put(ctx, k, v)
	if err != nil {
		logger.Errorf("xetcd Put k:%s, v:%s failed with err:%s", k, v, err)
	}
	return
}

func (w *Worker) Close() error {
	return w.Cli.Close()
}

// Resolve returns configured when set, the etcd value of key otherwise.
func Resolve(ctx context.Context, w *Worker, configured, key string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if w == nil {
		return "", errors.New("no address configured and etcd disabled for " + key)
	}
	return w.Get(ctx, key)
}

const (
	KeyNatsService     = "metaldesk/nats_url"
	KeyApprovalService = "metaldesk/approval_grpc"
)
