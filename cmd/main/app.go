package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"metaldesk/pkg/api"
	"metaldesk/pkg/approval"
	"metaldesk/pkg/config"
	"metaldesk/pkg/filedb"
	"metaldesk/pkg/locker"
	"metaldesk/pkg/matching"
	"metaldesk/pkg/model"
	"metaldesk/pkg/store"
	"metaldesk/pkg/tickets"
	"metaldesk/pkg/xetcd"
	"metaldesk/pkg/xnats"

	"google.golang.org/grpc"
)

// journalPath is where order formations are journaled.
func journalPath() string {
	if p := config.Shared.Matching.JournalFile; p != "" {
		return p
	}
	return filepath.Join(config.Shared.DataDir, "filedb", "formation.log")
}

// openEtcd returns nil when etcd is disabled.
func openEtcd() (*xetcd.Worker, error) {
	if !config.Shared.Etcd.Main.Enable {
		return nil, nil
	}
	return xetcd.New([]string{config.Shared.Etcd.Main.Url})
}

func openStore() (store.Store, error) {
	if !config.Shared.MySQL.Main.Enabled {
		logger.Warningf("mysql disabled, tickets and orders live in memory")
		return store.NewMemory(), nil
	}
	db, err := model.OpenMySQL(config.Shared.MySQL.Main, config.Shared.IsDebug)
	if err != nil {
		return nil, err
	}
	return store.NewGorm(db), nil
}

func openLocker() locker.Locker {
	if !config.Shared.Redis.Main.Enabled {
		logger.Warningf("redis disabled, ticket locks are process local")
		return locker.NewLocal()
	}
	return locker.NewRedis(model.OpenRedis(config.Shared.Redis.Main), config.Shared.Matching.LockTTL())
}

// openEvaluator dials the remote evaluator when one is configured or registered, local rules otherwise.
func openEvaluator(ctx context.Context, etcd *xetcd.Worker) (approval.Evaluator, func(), error) {
	cfg := config.Shared.Approval
	target, err := xetcd.Resolve(ctx, etcd, cfg.GrpcTarget, xetcd.KeyApprovalService)
	if err != nil || target == "" {
		logger.Infof("approval rules evaluated locally")
		return approval.NewRules(cfg), func() {}, nil
	}
	client, err := approval.Dial(target, time.Duration(cfg.TimeoutMs)*time.Millisecond)
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("approval rules evaluated by %s", target)
	return client, func() { client.Close() }, nil
}

func openPublisher(ctx context.Context, etcd *xetcd.Worker) (xnats.Publisher, func(), error) {
	cfg := config.Shared.Nats
	if !cfg.Enabled {
		return xnats.Nop{}, func() {}, nil
	}
	url, err := xetcd.Resolve(ctx, etcd, cfg.Url, xetcd.KeyNatsService)
	if err != nil {
		return nil, nil, err
	}
	js, err := xnats.Connect(url, cfg.Stream)
	if err != nil {
		return nil, nil, err
	}
	return js, js.Close, nil
}

// startApi serves the desk over HTTP until SIGINT/SIGTERM.
func startApi() (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	etcd, err := openEtcd()
	if err != nil {
		return
	}
	if etcd != nil {
		defer etcd.Close()
	}

	st, err := openStore()
	if err != nil {
		return
	}
	ev, closeEv, err := openEvaluator(ctx, etcd)
	if err != nil {
		return
	}
	defer closeEv()
	pub, closePub, err := openPublisher(ctx, etcd)
	if err != nil {
		return
	}
	defer closePub()

	journal, err := filedb.New(journalPath())
	if err != nil {
		return
	}
	defer journal.Close()

	former := matching.NewFormer(st, openLocker(), journal, pub, config.Shared.Matching)
	optimizer := matching.NewOptimizer(st, former, config.Shared.Matching)
	h := api.NewHandler(st, tickets.New(st, ev), former, optimizer)

	srv := &http.Server{
		Addr:    config.Shared.HTTP.Addr,
		Handler: api.NewRouter(h),
	}
	go func() {
		logger.Infof("api listening on %s, formation mode %s", srv.Addr, former.Mode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("api server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("api shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// startApproval serves the local approval rules over gRPC and registers the address in etcd.
func startApproval() (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", config.Shared.Approval.Listen)
	if err != nil {
		return
	}
	s := grpc.NewServer()
	approval.RegisterServer(s, approval.NewRules(config.Shared.Approval))

	etcd, err := openEtcd()
	if err != nil {
		return
	}
	if etcd != nil {
		defer etcd.Close()
		if err = etcd.Put(ctx, xetcd.KeyApprovalService, advertised(lis.Addr().String())); err != nil {
			return
		}
	}

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()
	logger.Infof("approval listening on %s", lis.Addr())
	return s.Serve(lis)
}

// advertised replaces an unspecified listen host with the machine's hostname.
func advertised(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		if h, err := os.Hostname(); err == nil {
			host = h
		}
	}
	return net.JoinHostPort(host, port)
}

// runMigrate creates or updates the desk tables.
func runMigrate() (err error) {
	db, err := model.OpenMySQL(config.Shared.MySQL.Main, config.Shared.IsDebug)
	if err != nil {
		return
	}
	if err = model.Migrate(db); err != nil {
		return
	}
	logger.Infof("migrated tables %v", model.TableNames())
	return nil
}
