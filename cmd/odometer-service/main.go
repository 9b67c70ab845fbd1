package main

import (
	"flag"
	"fmt"

	"github.com/OdoTrack/OdoTrack/internal/common/config"
	"github.com/OdoTrack/OdoTrack/internal/common/logger"
	"github.com/OdoTrack/OdoTrack/internal/common/server"
	"github.com/OdoTrack/OdoTrack/internal/common/tracing"
	"github.com/OdoTrack/OdoTrack/internal/fleet"
	"github.com/OdoTrack/OdoTrack/internal/ledger"
)

var (
	configPath      = flag.String("config", "configs/odometer-service.json", "配置文件路径")
	configConsulKey = flag.String("config-consul-key", "", "从 Consul KV 加载配置的 key（为空则只用文件配置）")
)

func main() {
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 指定了 KV key 时改用 Consul 配置（Consul 地址取自文件配置）；
	// 拉取失败回落到文件配置。
	var kvErr error
	if *configConsulKey != "" {
		if kvCfg, err := config.LoadConfigFromConsulKV(cfg.Consul.Host, cfg.Consul.Port, *configConsulKey); err == nil {
			cfg = kvCfg
		} else {
			kvErr = err
		}
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Driver, cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	if kvErr != nil {
		log.Warnf("failed to load config from consul kv key=%s, using file config: %v", *configConsulKey, kvErr)
	} else if *configConsulKey != "" {
		log.Infof("config loaded from consul kv key=%s", *configConsulKey)
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 组装车队台账（内存存储；延迟公式缩放可由配置覆盖，便于演示环境）
	svc := fleet.NewService(
		fleet.NewStore(),
		log,
		fleet.WithDelayFunc(ledger.ScaledDelay(cfg.Ledger.WaitScaleMillis)),
	)
	api := fleet.NewHTTPServer(svc, log)

	// 启动统一的服务模板：gRPC 侧目前只有 health/reflection，
	// 业务面走 HTTP API。
	if err := server.Run(cfg, log,
		server.WithHTTPHandler(api.Handler()),
	); err != nil {
		log.Fatalf("odometer-service exited with error: %v", err)
	}
}
