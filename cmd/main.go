package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-connect-go/internal/api/handler"
	"social-connect-go/internal/api/router"
	"social-connect-go/internal/config"
	"social-connect-go/internal/constants"
	"social-connect-go/internal/ingest"
	appLogger "social-connect-go/internal/logger"
	"social-connect-go/internal/parser"
	"social-connect-go/internal/profile"
	"social-connect-go/internal/scraper"
	"social-connect-go/internal/storage"
	"social-connect-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app/server"
	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// declareEventQueue 声明事件队列并按配置的路由键绑定到事件交换机
func declareEventQueue(mq *storage.RabbitMQ, cfg *config.RabbitMQConfig) error {
	if err := mq.EnsureQueue(constants.ProfileEventsQueue, true); err != nil {
		return err
	}
	for _, key := range []string{cfg.ProfileUpdatedRoutingKey, cfg.DocumentIngestedRoutingKey} {
		if err := mq.BindQueue(constants.ProfileEventsQueue, key, cfg.ProfileEventsExchange); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	// .env 不存在时静默跳过，环境变量仅用于覆盖敏感配置
	_ = godotenv.Load()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}

	appLogger.Init(appLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	glog.SetLogger(hertzadapter.From(appLogger.Logger))
	glog.Info("配置与日志初始化成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing.ServiceName, cfg.Tracing.OTLPEndpoint, cfg.Tracing.SampleRatio)
		if err != nil {
			glog.Fatalf("初始化链路追踪失败: %v", err)
		}
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := shutdownTracing(shutdownCtx); err != nil {
				glog.Warnf("关闭链路追踪失败: %v", err)
			}
		}()
		glog.Info("链路追踪初始化成功")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	pdfExtractor, err := parser.NewEinoPDFTextExtractor(ctx,
		parser.WithParseTimeout(config.GetDuration(cfg.Upload.ParseTimeout, 30*time.Second)),
	)
	if err != nil {
		glog.Fatalf("创建PDF提取器失败: %v", err)
	}
	glog.Info("PDF提取器初始化成功")

	// Redis与RabbitMQ可能降级为nil，服务内部会判空跳过
	var viewCache profile.ViewCache
	if storageManager.Redis != nil {
		viewCache = storageManager.Redis
	}
	var profileEvents profile.EventPublisher
	var ingestEvents ingest.EventPublisher
	if storageManager.RabbitMQ != nil {
		profileEvents = storageManager.RabbitMQ
		ingestEvents = storageManager.RabbitMQ
		// 启动时声明事件队列并绑定路由键，消费者未就绪时事件不丢失
		if err := declareEventQueue(storageManager.RabbitMQ, &cfg.RabbitMQ); err != nil {
			glog.Warnf("声明事件队列失败: %v", err)
		}
	}
	var archiver ingest.DocumentArchiver
	if storageManager.MinIO != nil {
		archiver = storageManager.MinIO
	}

	profileService := profile.NewService(storageManager.MySQL, viewCache, profileEvents,
		profile.WithEventRoutingKey(cfg.RabbitMQ.ProfileUpdatedRoutingKey),
	)
	pdfService := ingest.NewPDFService(pdfExtractor, archiver, ingestEvents, &cfg.Upload,
		ingest.WithEventRoutingKey(cfg.RabbitMQ.DocumentIngestedRoutingKey),
	)
	githubClient := scraper.NewGitHubClient(&cfg.Scraper)
	glog.Info("业务服务初始化成功")

	profileHandler := handler.NewProfileHandler(profileService)
	uploadHandler := handler.NewUploadHandler(pdfService)
	scrapeHandler := handler.NewScrapeHandler(githubClient, profileService)

	serverOpts := []hzconfig.Option{
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(int(cfg.Upload.MaxFileSizeBytes) + 1<<20),
	}

	var h *server.Hertz
	if cfg.Tracing.Enabled {
		tracer, tracerCfg := hertztracing.NewServerTracer()
		h = server.New(append(serverOpts, tracer)...)
		h.Use(hertztracing.ServerMiddleware(tracerCfg))
	} else {
		h = server.New(serverOpts...)
	}

	router.RegisterRoutes(h, profileHandler, uploadHandler, scrapeHandler)
	glog.Info("HTTP路由注册成功")

	go func() {
		glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}
