package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mmux-project/elasticmem/internal/blockstore"
	"github.com/mmux-project/elasticmem/internal/dirtree"
	"github.com/mmux-project/elasticmem/internal/leasepolicy"
	"github.com/mmux-project/elasticmem/internal/log_service"
	"github.com/mmux-project/elasticmem/internal/log_service/localdisc"
	"github.com/mmux-project/elasticmem/internal/log_service/zapservice"
	"github.com/mmux-project/elasticmem/internal/rpctransport"
	"github.com/mmux-project/elasticmem/internal/service"
	"github.com/mmux-project/elasticmem/internal/storageclient"
	"github.com/mmux-project/elasticmem/internal/workers"
)

type Config struct {
	NodeID        string `yaml:"node_id"`
	ListenAddress string `yaml:"listen_address"`

	Log struct {
		Backend string `yaml:"backend"` // "zap" or "localdisc"
		Dir     string `yaml:"dir"`
		Level   string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		Mode          string   `yaml:"mode"` // "remote" or "memory"
		Nodes         []string `yaml:"nodes"`
		BlockCapacity int      `yaml:"block_capacity"`
	} `yaml:"storage"`

	Workers struct {
		SyncPeriodMs  int `yaml:"sync_period_ms"`
		LeasePeriodMs int `yaml:"lease_period_ms"`
		SizePeriodMs  int `yaml:"size_period_ms"`
	} `yaml:"workers"`

	Etcd struct {
		Endpoints []string `yaml:"endpoints"`
	} `yaml:"etcd"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	config := Config{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	if config.NodeID == "" {
		config.NodeID = "directoryd"
	}
	if config.ListenAddress == "" {
		config.ListenAddress = ":9090"
	}
	if config.Storage.BlockCapacity <= 0 {
		config.Storage.BlockCapacity = 1024
	}
	if config.Workers.SyncPeriodMs <= 0 {
		config.Workers.SyncPeriodMs = 5000
	}
	if config.Workers.LeasePeriodMs <= 0 {
		config.Workers.LeasePeriodMs = 1000
	}
	if config.Workers.SizePeriodMs <= 0 {
		config.Workers.SizePeriodMs = 10000
	}
	return &config, nil
}

func newLogService(cfg *Config) (log_service.LogService, error) {
	switch cfg.Log.Backend {
	case "localdisc":
		dir := cfg.Log.Dir
		if dir == "" {
			dir = "./logs"
		}
		return localdisc.NewLocalDiscLogService(dir, cfg.NodeID, cfg.Log.Level)
	default:
		return zapservice.NewZapLogService(cfg.NodeID, "")
	}
}

func newStorageClient(cfg *Config, comm rpctransport.Communicator) (storageclient.StorageClient, error) {
	if cfg.Storage.Mode == "memory" {
		return storageclient.NewRecorder(0), nil
	}
	if len(cfg.Storage.Nodes) == 0 {
		return nil, fmt.Errorf("storage.nodes must list at least one storage node address")
	}

	nodes := cfg.Storage.Nodes
	resolve := func(block string) string {
		h := fnv.New32a()
		h.Write([]byte(block))
		return nodes[int(h.Sum32())%len(nodes)]
	}
	return storageclient.NewRemoteClient(comm, resolve), nil
}

func main() {
	configPath := "directoryd.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ls, err := newLogService(cfg)
	if err != nil {
		log.Fatalf("log service: %v", err)
	}

	comm := rpctransport.NewHTTPCommunicator(nil)
	storage, err := newStorageClient(cfg, comm)
	if err != nil {
		log.Fatalf("storage client: %v", err)
	}

	alloc := blockstore.NewInMemoryBlockAllocator(cfg.Storage.BlockCapacity)
	tree := dirtree.NewTree(alloc, storage, ls)

	ctx := context.Background()
	var policy leasepolicy.LeasePolicy = leasepolicy.Never{}
	var etcdPolicy *leasepolicy.EtcdLeasePolicy
	if len(cfg.Etcd.Endpoints) > 0 {
		etcdPolicy = leasepolicy.NewEtcdLeasePolicy(cfg.Etcd.Endpoints, ls)
		if err := etcdPolicy.Start(ctx); err != nil {
			log.Fatalf("lease policy: %v", err)
		}
		policy = etcdPolicy
	}

	syncWorker := workers.NewSyncWorker(tree, ls, time.Duration(cfg.Workers.SyncPeriodMs)*time.Millisecond)
	leaseWorker := workers.NewLeaseExpiryWorker(tree, policy, ls, time.Duration(cfg.Workers.LeasePeriodMs)*time.Millisecond)
	sizeTracker := workers.NewFileSizeTracker(tree, ls, time.Duration(cfg.Workers.SizePeriodMs)*time.Millisecond)

	syncWorker.Start()
	leaseWorker.Start()
	sizeTracker.Start()

	handler := service.NewDirectoryHandler(tree, ls)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: rpctransport.NewHTTPServer(handler, service.NewPayloadRegistry()),
	}

	go func() {
		ls.Info(log_service.LogEvent{Message: "Directory service listening", Metadata: map[string]any{"address": cfg.ListenAddress}})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	ls.Info(log_service.LogEvent{Message: "Shutting down directory service"})

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		ls.Warn(log_service.LogEvent{Message: "HTTP shutdown error", Metadata: map[string]any{"error": err.Error()}})
	}

	syncWorker.Stop()
	leaseWorker.Stop()
	sizeTracker.Stop()

	if etcdPolicy != nil {
		if err := etcdPolicy.Stop(shutdownCtx); err != nil {
			ls.Warn(log_service.LogEvent{Message: "Lease policy shutdown error", Metadata: map[string]any{"error": err.Error()}})
		}
	}
	_ = comm.Close()
}
