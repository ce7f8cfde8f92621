package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lyra126/crate/internal/clusterqueue"
	"github.com/Lyra126/crate/internal/config"
	"github.com/Lyra126/crate/internal/mapping"
	"github.com/Lyra126/crate/internal/mapping/indexregistry"
	"github.com/Lyra126/crate/internal/mapping/memmapper"
	"github.com/Lyra126/crate/internal/mappingservice"
	"github.com/Lyra126/crate/internal/metrics"
	"github.com/Lyra126/crate/internal/observability/logger"
)

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func main() {
	flagConfigPath := flag.String("config", "", "path to config.yaml (fallback: $CONFIG_PATH or configs/config.yaml)")
	flag.Parse()

	cfgPath := *flagConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" && fileExists("configs/config.yaml") {
		cfgPath = "configs/config.yaml"
	}

	var cfg *config.Config
	var err error
	if cfgPath == "" {
		cfg = config.Default()
	} else {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			panic(err)
		}
	}

	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, ServiceName: "mappingd"})
	defer logger.Sync()
	log := logger.Named("mappingd")

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatal("metrics registration failed", logger.Err(err))
	}

	factory := memmapper.Factory{}
	registry, err := indexregistry.New(512, factory)
	if err != nil {
		log.Fatal("index registry init failed", logger.Err(err))
	}

	refresh := &mapping.RefreshExecutor{Registry: registry}
	put := &mapping.PutMappingExecutor{Factory: factory, Resolver: mapping.DefaultIndexResolver{}}

	initial := mapping.ClusterState{
		Version: 0,
		Metadata: mapping.Metadata{
			Indices:   map[string]mapping.IndexMetadata{},
			Templates: map[string]mapping.IndexTemplateMetadata{},
		},
	}
	queue := clusterqueue.New(initial, cfg.Queue.BufferSize)
	defer queue.Close()

	_ = mappingservice.New(queue, refresh, put)

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Info("metrics endpoint listening", logger.Any("addr", cfg.Metrics.Addr))
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Error("metrics server stopped", logger.Err(err))
			}
		}()
	}

	log.Info("mappingd up", logger.Any("queue_buffer", cfg.Queue.BufferSize))
	select {}
}
