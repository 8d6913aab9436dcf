package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/snw-hub/internal/cache"
	"github.com/any-hub/snw-hub/internal/client"
	"github.com/any-hub/snw-hub/internal/config"
	"github.com/any-hub/snw-hub/internal/fetch"
	"github.com/any-hub/snw-hub/internal/logging"
	"github.com/any-hub/snw-hub/internal/server"
	"github.com/any-hub/snw-hub/internal/snw"
	"github.com/any-hub/snw-hub/internal/transport"
	"github.com/any-hub/snw-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	role        string
	roleArgs    []string
}

var (
	stdIn  io.Reader = os.Stdin
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

const usage = "用法: snw-hub [-config path] [-check-config] [-version] <server|cache|client> [角色参数...]"

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, opts)
	stop()
	os.Exit(code)
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(ctx context.Context, opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}
	if opts.role == "" {
		fmt.Fprintln(stdErr, usage)
		return 2
	}

	role, err := config.ParseRole(opts.role)
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		return 2
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}
	if err := cfg.ApplyRoleArgs(role, opts.roleArgs); err != nil {
		fmt.Fprintf(stdErr, "角色参数无效: %v\n", err)
		return 2
	}
	if err := cfg.ValidateRole(role); err != nil {
		fmt.Fprintf(stdErr, "配置校验失败: %v\n", err)
		return 1
	}

	// 客户端的 stdout 留给交互提示
	console := stdOut
	if role == config.RoleClient {
		console = stdErr
	}
	logger, err := logging.InitLogger(cfg.Global, console)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["role"] = string(role)
	fields["protocol"] = cfg.Global.Protocol
	fields["storage"] = cfg.StoragePath(role)
	fields["version"] = version.Full()

	if opts.checkOnly {
		fields["action"] = "check_config"
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}
	logger.WithFields(fields).Info("配置加载完成")

	if err := runRole(ctx, role, cfg, logger); err != nil {
		logger.WithError(err).WithField("role", string(role)).Error("role_failed")
		fmt.Fprintf(stdErr, "%s 运行失败: %v\n", role, err)
		return 1
	}
	return 0
}

// runRole 按“存储目录 → 传输协议 → 角色服务”的顺序装配，直到 ctx 取消或客户端退出。
func runRole(ctx context.Context, role config.Role, cfg *config.Config, logger *logrus.Logger) error {
	store, err := cache.NewStore(cfg.StoragePath(role))
	if err != nil {
		return fmt.Errorf("初始化存储目录失败: %w", err)
	}

	roleLogger := logging.RoleLogger(logger, string(role), cfg.Global.Protocol)
	protocol, err := transport.New(cfg.Global.Protocol, protocolOptions(role, cfg, roleLogger))
	if err != nil {
		return err
	}

	switch role {
	case config.RoleServer:
		handler := server.NewOriginHandler(store, protocol, roleLogger)
		return serveRole(ctx, cfg, role, cfg.Server.ListenPort, cfg.Server.DiagnosticsPort, handler, store, nil, roleLogger)
	case config.RoleCache:
		upstream := fetch.NewUpstream(protocol, cfg.OriginEndpoint())
		resolver := fetch.NewResolver(store, upstream, roleLogger)
		handler := server.NewCacheHandler(resolver, protocol, roleLogger)
		cacheLogger := roleLogger.WithField("origin", upstream.Endpoint().String())
		return serveRole(ctx, cfg, role, cfg.Cache.ListenPort, cfg.Cache.DiagnosticsPort, handler, store, resolver.Stats(), cacheLogger)
	case config.RoleClient:
		return runClient(ctx, cfg, protocol, store, roleLogger)
	}
	return fmt.Errorf("未知角色: %s", role)
}

func protocolOptions(role config.Role, cfg *config.Config, logger logrus.FieldLogger) transport.Options {
	opts := transport.Options{
		Logger: logger,
		SNW:    snw.New(cfg.SNWPolicy(), logger),
		Dialer: transport.NewDialer(cfg.Transfer.DialTimeout.DurationValue()),
	}
	switch role {
	case config.RoleServer:
		opts.ReplyPort = cfg.Server.ReplyPort
	case config.RoleCache:
		opts.ReplyPort = cfg.Cache.ReplyPort
		opts.DataPort = cfg.Cache.DataPort
	case config.RoleClient:
		opts.DataPort = cfg.Client.DataPort
	}
	return opts
}

func serveRole(ctx context.Context, cfg *config.Config, role config.Role, port, diagPort int, handler server.Handler, store cache.Store, stats *fetch.Stats, logger logrus.FieldLogger) error {
	listener, err := server.NewListener(server.ListenerOptions{
		Logger:         logger,
		Handler:        handler,
		Role:           string(role),
		Protocol:       cfg.Global.Protocol,
		MaxConcurrent:  cfg.Global.MaxConcurrent,
		CommandTimeout: cfg.Transfer.CommandTimeout.DurationValue(),
	})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("监听控制端口失败: %w", err)
	}

	if diagPort > 0 {
		app, err := server.NewDiagnosticsApp(server.DiagnosticsOptions{
			Logger:   logger,
			Role:     string(role),
			Protocol: cfg.Global.Protocol,
			Origin:   originOf(role, cfg),
			Store:    store,
			Listener: listener,
			Stats:    stats,
		})
		if err != nil {
			ln.Close()
			return err
		}
		go func() {
			if err := server.ServeDiagnostics(ctx, app, diagPort, logger); err != nil {
				logger.WithError(err).Warn("diagnostics_stopped")
			}
		}()
	}

	logger.WithFields(logrus.Fields{
		"action":         "listen",
		"port":           port,
		"max_concurrent": cfg.Global.MaxConcurrent,
	}).Info("控制端口已就绪")
	return listener.Serve(ctx, ln)
}

// originOf 只有缓存角色才有回源地址。
func originOf(role config.Role, cfg *config.Config) string {
	if role != config.RoleCache {
		return ""
	}
	return cfg.OriginEndpoint().String()
}

func runClient(ctx context.Context, cfg *config.Config, protocol transport.Protocol, store cache.Store, logger logrus.FieldLogger) error {
	c, err := client.New(client.Options{
		Protocol: protocol,
		Server:   cfg.ServerEndpoint(),
		Cache:    cfg.CacheEndpoint(),
		Store:    store,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	console := client.NewConsole(c, stdIn, stdOut)
	done := make(chan error, 1)
	go func() { done <- console.Run(ctx) }()

	// 标准输入的阻塞读无法被打断，收到信号时直接返回
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
// 标志之后的第一个位置参数是角色，其余为角色参数。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet(version.Name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 SNW_HUB_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cliOptions{}, errors.New(usage)
		}
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("SNW_HUB_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	opts := cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}
	if rest := fs.Args(); len(rest) > 0 {
		opts.role = rest[0]
		opts.roleArgs = rest[1:]
	}
	return opts, nil
}
