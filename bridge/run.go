package bridge

import (
	"context"
	"fmt"

	"github.com/jessevdk/go-flags"
	"github.com/viant/mcp-protocol/schema"
	protoserver "github.com/viant/mcp-protocol/server"
	"github.com/viant/mcp/server"

	"github.com/samscarrow/lmstudio-bridge/config"
	"github.com/samscarrow/lmstudio-bridge/lmstudio"
	"github.com/samscarrow/lmstudio-bridge/logging"
)

// Version identifies the bridge implementation towards MCP clients.
const Version = "0.1.0"

// Options are the bridge command line options. Configuration file and
// environment settings apply first; flags override them.
type Options struct {
	Transport string `short:"t" long:"transport" description:"server transport" choice:"stdio" choice:"sse" choice:"streamable" default:"stdio"`
	Port      int    `short:"p" long:"port" description:"listen port for HTTP transports" default:"4981"`
	APIBase   string `short:"b" long:"api-base" description:"LM Studio API base URL"`
	LogLevel  string `long:"log-level" description:"log level" choice:"debug" choice:"info" choice:"warn" choice:"error"`
}

// Run parses args, wires the service and serves MCP over the selected
// transport until the transport shuts down.
func Run(args []string) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if options.APIBase != "" {
		cfg.APIBase = options.APIBase
	}
	if options.LogLevel != "" {
		cfg.Logging.Level = options.LogLevel
	}

	log := logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, false)

	pool := lmstudio.NewPool(lmstudio.PoolConfig{
		MaxConns:        cfg.Client.MaxConns,
		MaxConnsPerHost: cfg.Client.MaxConnsPerHost,
		IdleConnTimeout: cfg.Client.IdleConnTimeout,
		RequestTimeout:  cfg.Client.RequestTimeout,
		ConnectTimeout:  cfg.Client.ConnectTimeout,
	})
	defer pool.Close()

	client := lmstudio.NewClient(pool, func(o *lmstudio.Options) {
		o.BaseURL = cfg.APIBase
		o.Logger = log.WithComponent("lmstudio")
	})
	svc := New(client, log.WithComponent("bridge"))

	ctx := context.Background()
	newHandler := protoserver.WithDefaultHandler(ctx, func(h *protoserver.DefaultHandler) error {
		return svc.RegisterTools(h)
	})
	srv, err := server.New(
		server.WithNewHandler(newHandler),
		server.WithImplementation(schema.Implementation{Name: "lmstudio-bridge", Version: Version}),
	)
	if err != nil {
		return err
	}

	log.Info("starting LM Studio bridge transport=%s api_base=%s", options.Transport, cfg.APIBase)
	switch options.Transport {
	case "sse", "streamable":
		if options.Transport == "streamable" {
			srv.UseStreamableHTTP(true)
		}
		return srv.HTTP(ctx, fmt.Sprintf(":%d", options.Port)).ListenAndServe()
	default:
		return srv.Stdio(ctx).ListenAndServe()
	}
}
