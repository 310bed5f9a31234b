// Command indexer builds a vendor index offline and runs a smoke query
// against it, without starting the API server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/vendexa/vendex/engine/embed"
	"github.com/vendexa/vendex/engine/search"
	"github.com/vendexa/vendex/pkg/blob"
)

func main() {
	var (
		vendorsPath = flag.String("vendors", "./data/vendors.json", "vendor catalogue JSON file")
		indexName   = flag.String("index", "vendors", "index name")
		indexDir    = flag.String("dir", "./data/indexes", "local index directory")
		embedURL    = flag.String("embed-url", "https://api.cohere.com", "embedding API base URL")
		model       = flag.String("model", "embed-english-v3.0", "embedding model")
		upload      = flag.Bool("upload", false, "upload artifacts to the object store")
		smokeQuery  = flag.String("query", "cloud security vendor", "smoke query after build")
	)
	flag.Parse()
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	embedder := embed.NewFallback(logger, []string{"primary"},
		embed.NewClient(*embedURL, os.Getenv("COHERE_API_KEY"), *model, logger))

	store := blob.New(
		os.Getenv("S3_ENDPOINT"),
		os.Getenv("S3_ACCESS_KEY"),
		os.Getenv("S3_SECRET_KEY"),
		os.Getenv("S3_BUCKET"),
		os.Getenv("S3_PREFIX"),
		os.Getenv("S3_USE_SSL") != "false",
		logger,
	)

	svc := search.New(search.Deps{
		Embedder: embedder,
		Blob:     store,
		Logger:   logger,
	}, search.Options{
		BaseDir:     *indexDir,
		IndexName:   *indexName,
		VendorsPath: *vendorsPath,
	})

	resp, err := svc.BuildIndex(ctx, search.BuildRequest{
		IndexName:  *indexName,
		JSONPath:   *vendorsPath,
		SaveToBlob: *upload,
	})
	if err != nil {
		logger.Error("build failed", "err", err)
		os.Exit(1)
	}
	logger.Info("index built", "index", resp.IndexName, "indexed", resp.Indexed, "saved_blob", resp.SavedBlob)

	if *smokeQuery == "" {
		return
	}
	results, err := svc.Query(ctx, search.QueryRequest{Q: *smokeQuery, K: 3})
	if err != nil {
		logger.Error("smoke query failed", "err", err)
		os.Exit(1)
	}
	for i, r := range results {
		logger.Info("smoke result", "rank", i+1, "vendor_id", r.VendorID, "name", r.Name, "score", r.Score)
	}
}
