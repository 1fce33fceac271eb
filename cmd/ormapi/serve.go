package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/api"
	"github.com/syssam/ormapi/compiler/gen"
	"github.com/syssam/ormapi/compiler/load"
	"github.com/syssam/ormapi/dialect/sql"
	"github.com/syssam/ormapi/exposure"
	"github.com/syssam/ormapi/mutation"
	"github.com/syssam/ormapi/storage"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the CRUD API of the inferred models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.config.Serve.Addr = addr
			}
			return serve(cmd.Context(), c.config, c.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overriding serve.addr")
	return cmd
}

func serve(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	drv, stats, err := cfg.Open(logger)
	if err != nil {
		return err
	}
	defer drv.Close()
	s, err := cfg.ReadSchema(ctx, drv)
	if err != nil {
		return err
	}
	g, err := cfg.Load(s, logger)
	if err != nil {
		return err
	}
	handler, err := newServer(cfg, g, stats, logger)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("serving api", "addr", srv.Addr, "prefix", cfg.Serve.Prefix, "models", len(g.Specs))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	q := stats.QueryStats().Snapshot()
	logger.Info("shutting down", "queries", q.Queries, "execs", q.Execs, "transactions", q.Transactions, "slow", q.SlowQueries)
	return srv.Shutdown(shutdown)
}

// newServer returns the handler of the API over the models of g. Reads and
// writes go through drv.
func newServer(cfg *Config, g *load.Graph, drv *sql.StatsDriver, logger *slog.Logger) (http.Handler, error) {
	registry, err := g.Registry()
	if err != nil {
		return nil, err
	}
	readOpts := []exposure.Option{exposure.WithLogger(logger)}
	writeOpts := []mutation.Option{mutation.WithLogger(logger)}
	if n := cfg.Query.MaxDepth; n > 0 {
		readOpts = append(readOpts, exposure.WithMaxDepth(n))
		writeOpts = append(writeOpts, mutation.WithMaxDepth(n))
	}
	if ttl, _ := cfg.cacheTTL(); ttl > 0 {
		readOpts = append(readOpts, exposure.WithCache(ormapi.NewMemoryCache(), ttl))
	}
	local := storage.NewLocal(cfg.resolve(cfg.Storage.Root), cfg.Storage.URLPrefix)
	disks := storage.Disks{"": local}
	if cfg.Storage.Disk != "" {
		disks[cfg.Storage.Disk] = local
	}
	writeOpts = append(writeOpts, mutation.WithStorage(disks))

	service := api.NewService(
		exposure.NewEngine(drv, registry, readOpts...),
		mutation.New(drv, registry, writeOpts...),
		api.WithServiceLogger(logger),
	)
	prefix := "/" + strings.Trim(cfg.Serve.Prefix, "/")
	h := api.NewHandler(service, registry, prefix,
		api.WithPerPage(cfg.Query.DefaultPerPage),
		api.WithHandlerLogger(logger),
	)
	doc, err := openapi(cfg, g, prefix)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("GET "+prefix+"/openapi.json", doc)
	mux.Handle(prefix+"/", h)
	if p := strings.TrimSuffix(cfg.Storage.URLPrefix, "/"); p != "" {
		mux.Handle("GET "+p+"/", http.StripPrefix(p, http.FileServer(http.Dir(cfg.resolve(cfg.Storage.Root)))))
	}
	return mux, nil
}

// openapi returns a handler serving the OpenAPI document of g.
func openapi(cfg *Config, g *load.Graph, prefix string) (http.Handler, error) {
	gcfg, err := gen.NewConfig(genOptions(cfg)...)
	if err != nil {
		return nil, err
	}
	doc, err := gen.Document(g, gcfg, prefix)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	}), nil
}
