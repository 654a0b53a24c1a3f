package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kasuganosora/odatacount/pkg/api"
	"github.com/kasuganosora/odatacount/pkg/config"
	"github.com/kasuganosora/odatacount/pkg/edm"
	"github.com/kasuganosora/odatacount/pkg/fixture"
	"github.com/kasuganosora/odatacount/pkg/query"
	"github.com/kasuganosora/odatacount/pkg/resource/seed"
	"github.com/kasuganosora/odatacount/pkg/uri"
	"github.com/kasuganosora/odatacount/server/httpapi"
	mcpserver "github.com/kasuganosora/odatacount/server/mcp"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *api.ZapLogger
)

var rootCmd = &cobra.Command{
	Use:   "odatacount",
	Short: "OData v4 service with $count support",
	Long: `odatacount serves an OData v4 model over HTTP and MCP. Every collection
(entity sets, navigations, collection properties and function results) supports
/$count with $filter, evaluated in storage where possible.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.LoadConfig(configPath)
		} else {
			cfg, configPath, err = config.LoadConfigOrDefault()
		}
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}

		logger, err = api.NewZapLogger(api.ParseLogLevel(cfg.Log.Level), cfg.Log.Format)
		if err != nil {
			return err
		}
		if configPath != "" {
			logger.Debug("配置文件: %s", configPath)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		return runServer(cmd.Context())
	},
}

var countCmd = &cobra.Command{
	Use:   "count <path>",
	Short: "Evaluate a $count request against the configured storage",
	Example: `  odatacount count 'DollarCountEntities/$count'
  odatacount count "DollarCountEntities(5)/StringCollectionProp/\$count?\$filter=\$it eq '2'"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		p, opts, err := parseRequest(a.model, args[0], cfg.Server.ServiceRoot, cfg.Query.MaxTop)
		if err != nil {
			return err
		}
		if !p.IsCount {
			return fmt.Errorf("%s does not end with /$count", args[0])
		}
		n, err := a.engine.Count(ctx, p, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Print the CSDL metadata document",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := fixture.Model()
		if err != nil {
			return err
		}
		return edm.WriteCSDL(cmd.OutOrStdout(), m)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close(ctx)
		return mcpserver.NewServer(a.engine, cfg, a.audit).ServeStdio()
	},
}

var exportSeedCmd = &cobra.Command{
	Use:   "export-seed <file.xlsx>",
	Short: "Write the built-in seed data as an Excel workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := fixture.Model()
		if err != nil {
			return err
		}
		if err := seed.WriteXLSX(m, fixture.Data(), args[0]); err != nil {
			return err
		}
		logger.Info("种子数据已导出: %s", args[0])
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (JSON or YAML); defaults to $"+config.EnvConfigPath+" or common locations")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Override the listen port")

	rootCmd.AddCommand(serveCmd, countCmd, metadataCmd, mcpCmd, exportSeedCmd)
}

func runServer(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	srv := httpapi.NewServer(a.engine, a.manager, cfg, logger, a.metrics, a.audit)
	if cfg.MCP.Enabled {
		srv.Mount(mcpserver.EndpointPath, mcpserver.NewServer(a.engine, cfg, a.audit).HTTPHandler())
		logger.Info("MCP 服务: %s", mcpserver.EndpointPath)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("服务器停止")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// parseRequest resolves a service-relative request such as "Set/$count?$filter=..."
func parseRequest(m *edm.Model, raw, serviceRoot string, maxTop int) (*uri.Path, *query.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid request: %w", err)
	}
	path := strings.TrimPrefix(strings.Trim(u.EscapedPath(), "/"), strings.Trim(serviceRoot, "/")+"/")
	p, err := uri.Parse(m, path, u.Query())
	if err != nil {
		return nil, nil, err
	}
	opts, err := query.ParseOptions(u.Query(), maxTop)
	if err != nil {
		return nil, nil, err
	}
	return p, opts, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
