package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/foomo/notion-mcp/config"
	"github.com/foomo/notion-mcp/mcp"
	"github.com/foomo/notion-mcp/notionapi"
	"github.com/foomo/notion-mcp/scrape"
	"github.com/foomo/notion-mcp/service"
	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Define command line flags
	configPath := flag.String("config", "config.yml", "Path to the YAML config file")
	httpAddr := flag.String("http", "", "HTTP server address (e.g., ':8080'), stdio when empty")
	pages := flag.String("pages", "", "Comma separated notion pages to list posts from")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.Server.HTTP = *httpAddr
	}
	if *pages != "" {
		cfg.Notion.Pages = strings.Split(*pages, ",")
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}

	clientOpts := []notionapi.Option{
		notionapi.WithHTTPClient(httpClient),
		notionapi.WithBaseURL(cfg.Notion.APIURL),
		notionapi.WithToken(cfg.Notion.Token),
		notionapi.WithRetry(cfg.Fetch.Attempts, cfg.Fetch.RetryDelay),
		notionapi.WithLogger(logger.Named("notionapi")),
	}
	if cfg.Cache.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis not reachable, cache errors will be logged", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		}
		cancel()
		clientOpts = append(clientOpts, notionapi.WithCache(notionapi.NewRedisCache(redisClient, cfg.Cache.Prefix), cfg.Cache.TTL))
	}

	var serviceOpts []service.Option
	if cfg.Notion.ScrapeFallback {
		fetcher := scrape.NewFetcher(httpClient, cfg.Notion.APIURL, cfg.Notion.Selector)
		serviceOpts = append(serviceOpts, service.WithFallback(fetcher), service.WithScraper(fetcher))
	}

	blog := service.NewService(service.Settings{
		Pages:         cfg.Notion.Pages,
		DefaultAuthor: cfg.Blog.Author,
		Concurrency:   cfg.Fetch.Concurrency,
	}, notionapi.NewClient(clientOpts...), logger.Named("service"), serviceOpts...)

	// Create MCP server using the extracted package
	s := mcp.NewServer(logger.Named("mcp"), httpClient, blog)

	if cfg.Server.HTTP == "" {
		logger.Info("starting MCP server in stdio mode")
		return server.ServeStdio(s)
	}

	handler := mcp.NewHTTPHandler(logger.Named("sse"), s, blog, cfg.Server.Endpoint, mcp.DefaultSSEServerConfig())
	defer handler.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTP,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("starting MCP server", zap.String("addr", cfg.Server.HTTP), zap.String("endpoint", cfg.Server.Endpoint))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
