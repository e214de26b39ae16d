package main

import (
	"context"
	"fmt"
	"log/slog"
	"tabletd/internal/compactrpc"
	"tabletd/internal/config"
	"tabletd/internal/engine"
	"tabletd/pkg/cluster"
	"tabletd/pkg/configstore"
	"tabletd/pkg/metrics"
	"tabletd/pkg/rpc"
	"tabletd/pkg/store"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

type timeProvider struct{}

func (tp *timeProvider) Now() time.Time {
	return time.Now()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// high-level конфиг ноды (storage, sharding, replication и т.п.)
	cfg := config.Default()

	fmt.Printf("LSMDB starting (Lab 5 Sharding + ZK). DataDir=%s\n", cfg.Storage.DataDir)

	localAddr := os.Getenv("LSMDB_NODE_ADDR")
	if localAddr == "" {
		fmt.Println("LSMDB_NODE_ADDR is not set")
		os.Exit(1)
	}

	zkServersEnv := os.Getenv("ZK_SERVERS")
	if zkServersEnv == "" {
		fmt.Println("ZK_SERVERS is not set")
		os.Exit(1)
	}
	zkServers := strings.Split(zkServersEnv, ",")

	// --- ZooKeeper membership ---
	membership, err := cluster.NewZKMembership(zkServers, "/lsmdb", localAddr)
	if err != nil {
		fmt.Printf("Failed to connect to ZooKeeper: %v\n", err)
		os.Exit(1)
	}
	defer membership.Close()

	if err := membership.RegisterSelf(); err != nil {
		fmt.Printf("Failed to register node in ZooKeeper: %v\n", err)
		os.Exit(1)
	}

	// первичная сборка кольца по нодам (HashRing over nodes)
	ring, err := membership.BuildRing(100)
	if err != nil {
		fmt.Printf("Failed to build ring from ZooKeeper: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Initial ring nodes:", ring.ListNodes())

	// --- локальное LSM-хранилище (Store открывает собственный WAL внутри) ---
	db, err := store.New(cfg.Storage.DataDir, &timeProvider{})
	if err != nil {
		panic(err)
	}

	// --- Router с кольцом по нодам ---
	router := &cluster.Router{
		LocalAddr: localAddr,
		Ring:      ring,
		DB:        db,
		NewClient: func(target string) (cluster.Remote, error) {
			baseURL := "http://" + target
			return rpc.NewHTTPStore(baseURL), nil
		},
	}

	// watcher обновляет кольцо при изменении состава нод в ZK
	membership.RunWatch(ctx, router, 100)

	// --- HTTP-сервер поверх Router ---
	server := rpc.NewServer(router, "8080")
	if err := server.Start(); err != nil {
		fmt.Printf("Failed to start server: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("HTTP server is running on :8080 (with ZK-based sharding)")

	// --- Compaction scheduler over the local store ---
	compactionConfigPath := os.Getenv("COMPACTION_CONFIG")
	if compactionConfigPath == "" {
		compactionConfigPath = "compaction.yaml"
	}
	cfgStore, err := configstore.NewYAMLStore(compactionConfigPath)
	if err != nil {
		fmt.Printf("Failed to load compaction config: %v\n", err)
		os.Exit(1)
	}

	collector := metrics.NewLoggingCollector(slog.Default())
	eng, err := engine.Start(cfgStore, db, localAddr, "", collector, slog.Default())
	if err != nil {
		fmt.Printf("Failed to start compaction engine: %v\n", err)
		os.Exit(1)
	}

	compactionPort := os.Getenv("COMPACTION_RPC_PORT")
	rpcServer := compactrpc.NewServer(eng.Manager, eng.Tablets.ByExtent, compactionPort, slog.Default())
	if err := rpcServer.Start(); err != nil {
		fmt.Printf("Failed to start compaction RPC server: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Press Ctrl+C to stop...")

	<-ctx.Done()

	if err := rpcServer.Stop(); err != nil {
		fmt.Printf("Error stopping compaction RPC server: %v\n", err)
	}
	eng.Stop(context.Background())

	if err := server.Stop(); err != nil {
		fmt.Printf("Error stopping server: %v\n", err)
	}

	fmt.Println("LSMDB stopped")
	os.Exit(0)
}
