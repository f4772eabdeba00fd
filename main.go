package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/asset-hub/internal/asset"
	"github.com/any-hub/asset-hub/internal/blobstore"
	"github.com/any-hub/asset-hub/internal/cache"
	"github.com/any-hub/asset-hub/internal/config"
	"github.com/any-hub/asset-hub/internal/imaging"
	"github.com/any-hub/asset-hub/internal/logging"
	"github.com/any-hub/asset-hub/internal/metrics"
	"github.com/any-hub/asset-hub/internal/server"
	"github.com/any-hub/asset-hub/internal/server/routes"
	"github.com/any-hub/asset-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["blob_store"] = cfg.BlobStore.Endpoint
		fields["auth_mode"] = cfg.BlobStore.AuthMode()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	svc, m, err := buildService(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化资源服务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["cache_dir"] = cfg.Global.CacheDir()
	fields["blob_store"] = cfg.BlobStore.Endpoint
	fields["auth_mode"] = cfg.BlobStore.AuthMode()
	fields["decoder"] = cfg.Global.Decoder
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, svc, m, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildService 按“磁盘缓存 → 对象存储 → 编解码器 → 指标 → Service”的顺序组装依赖，
// 整个进程只持有这一份实例。
func buildService(cfg *config.Config, logger *logrus.Logger) (*asset.Service, *metrics.Metrics, error) {
	disk, err := cache.NewDisk(cfg.Global.CacheDir(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("磁盘缓存: %w", err)
	}

	store, err := blobstore.NewHTTPStore(blobstore.HTTPOptions{
		Endpoint: cfg.BlobStore.Endpoint,
		Bucket:   cfg.BlobStore.Bucket,
		Token:    cfg.BlobStore.Token,
		Username: cfg.BlobStore.Username,
		Password: cfg.BlobStore.Password,
		Timeout:  cfg.Global.UpstreamTimeout.DurationValue(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("对象存储: %w", err)
	}

	decoder, err := imaging.NewDecoder(cfg.Global.Decoder)
	if err != nil {
		return nil, nil, err
	}

	m := metrics.New()
	svc, err := asset.NewService(asset.Options{
		Store:              store,
		Disk:               disk,
		Decoder:            decoder,
		Encoder:            imaging.JPEGEncoder{Quality: cfg.Global.JPEGQuality},
		MaxFetchBytes:      cfg.Global.MaxFetchBytes,
		PreloadConcurrency: cfg.Global.PreloadConcurrency,
		Logger:             logger,
		Metrics:            m,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, m, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("asset-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 ASSET_HUB_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ASSET_HUB_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, svc *asset.Service, m *metrics.Metrics, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Service:    svc,
		ListenPort: port,
		BodyLimit:  int(cfg.Global.MaxFetchBytes),
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticRoutes(app, svc, m)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
