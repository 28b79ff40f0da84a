// Package main provides the kbvault CLI: contribute documents to an
// encrypted knowledge base and ask questions against it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/kbvault/internal/blobstore"
	"github.com/bull/kbvault/internal/chunk"
	"github.com/bull/kbvault/internal/config"
	"github.com/bull/kbvault/internal/embed"
	"github.com/bull/kbvault/internal/extract"
	"github.com/bull/kbvault/internal/guard"
	"github.com/bull/kbvault/internal/ingest"
	"github.com/bull/kbvault/internal/query"
	"github.com/bull/kbvault/internal/queue"
	"github.com/bull/kbvault/internal/schedule"
	"github.com/bull/kbvault/internal/snapshot"
	"github.com/bull/kbvault/internal/source"
	"github.com/bull/kbvault/internal/vector"
)

var (
	flagCorpus        string
	flagMediaType     string
	flagTopK          int
	flagMinSimilarity float64
	flagCaller        string
)

var rootCmd = &cobra.Command{
	Use:   "kbvault",
	Short: "Encrypted, content-addressed knowledge base with QA",
	Long: `kbvault ingests documents into a vetted knowledge base, persists it as
encrypted content-addressed snapshots, and answers questions from it.

Environment variables:
  OPENAI_API_KEY           OpenAI API key (required for embed/generate)
  KBVAULT_SNAPSHOT_SECRET  Secret for snapshot field encryption (required)
  KBVAULT_BLOB_STORE       Blob store type: local | s3 | memory (default local)
  KBVAULT_BLOB_DIR         Directory for the local blob store
  KBVAULT_S3_BUCKET        Bucket for the s3 blob store
  GITHUB_TOKEN             GitHub token for 'fetch' (optional)`,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Submit a document for ingestion and wait for the job to finish",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <owner/repo> <path>",
	Short: "Fetch a document from GitHub and submit it for ingestion",
	Args:  cobra.ExactArgs(2),
	RunE:  runFetch,
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question against a corpus",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Show ingestion jobs and queue stats for a corpus",
	Args:  cobra.NoArgs,
	RunE:  runJobs,
}

func init() {
	for _, cmd := range []*cobra.Command{ingestCmd, fetchCmd, queryCmd, jobsCmd} {
		cmd.Flags().StringVar(&flagCorpus, "corpus", "", "corpus identifier (required)")
		_ = cmd.MarkFlagRequired("corpus")
	}
	ingestCmd.Flags().StringVar(&flagMediaType, "media-type", "", "declared media type (default: derived from extension)")
	queryCmd.Flags().IntVar(&flagTopK, "top-k", 0, "number of chunks to retrieve")
	queryCmd.Flags().Float64Var(&flagMinSimilarity, "min-similarity", 0, "similarity floor for retrieved chunks")
	queryCmd.Flags().StringVar(&flagCaller, "caller", "cli", "caller identity for usage accounting")
	rootCmd.AddCommand(ingestCmd, fetchCmd, queryCmd, jobsCmd)
}

func main() {
	// Load .env if present (local development), ignore if missing.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the composition root: every component is constructed explicitly
// here and nowhere else.
type app struct {
	cfg       config.Config
	store     *vector.Store
	queue     *queue.Queue
	scheduler *schedule.CronScheduler
	query     *query.Service
	github    func(owner, repo string) (*source.GitHubSource, error)
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	blobs, err := blobstore.New(cfg.BlobStoreType, cfg.BlobStoreArgs())
	if err != nil {
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	cipher, err := snapshot.NewFieldCipher([]byte(cfg.SnapshotSecret))
	if err != nil {
		return nil, fmt.Errorf("init snapshot cipher: %w", err)
	}
	codec := snapshot.NewCodec(blobs, cipher, logger)
	store := vector.NewStore(codec, vector.NewMapResolver(), logger)

	backend := embed.WithLRUCache(
		embed.NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.GenerationModel),
		cfg.EmbedCacheSize, cfg.EmbedCacheTTL, logger,
	)
	embedder := embed.NewEmbedder(backend, cfg.BatchSize, cfg.BatchDelay, logger)

	g := guard.New(guard.Config{
		Threshold: cfg.GuardThreshold,
		OnError:   guard.Policy(cfg.GuardOnError),
	}, logger)

	pipeline := ingest.NewPipeline(
		extract.NewExtractor(cfg.MaxUploadBytes, logger),
		chunk.NewChunker(cfg.ChunkWindow, cfg.ChunkOverlap),
		embedder, g, store, logger,
	)
	q := queue.New(pipeline, cfg.JobRetention, logger)

	scheduler := schedule.NewCronScheduler(logger)
	if err := scheduler.AddJob(schedule.JobFunc("queue-tick", func(ctx context.Context) error {
		q.Drain(ctx)
		return nil
	}), "*/5 * * * * *"); err != nil {
		return nil, err
	}
	if err := scheduler.AddJob(schedule.JobFunc("job-sweep", func(context.Context) error {
		q.Sweep()
		return nil
	}), "0 0 * * * *"); err != nil {
		return nil, err
	}

	q.Start(ctx)
	scheduler.Start(ctx)

	return &app{
		cfg:       cfg,
		store:     store,
		queue:     q,
		scheduler: scheduler,
		query:     query.NewService(backend, store, cfg.GenerationModel, logger),
		github:    source.NewGitHubSource,
	}, nil
}

func (a *app) stop() {
	a.scheduler.Stop()
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.stop()

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	mediaType := flagMediaType
	if mediaType == "" {
		mediaType = mediaTypeForName(name)
	}

	return submitAndWait(ctx, app, queue.Submission{
		CorpusID:  flagCorpus,
		FileName:  name,
		MediaType: mediaType,
		Data:      data,
	})
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.stop()

	ownerRepo := strings.SplitN(args[0], "/", 2)
	if len(ownerRepo) != 2 {
		return fmt.Errorf("expected <owner/repo>, got %q", args[0])
	}
	src, err := app.github(ownerRepo[0], ownerRepo[1])
	if err != nil {
		return fmt.Errorf("init github source: %w", err)
	}

	fmt.Printf("Fetching %s from %s...\n", args[1], args[0])
	doc, err := src.Fetch(ctx, args[1])
	if err != nil {
		return err
	}

	return submitAndWait(ctx, app, queue.Submission{
		CorpusID:  flagCorpus,
		FileName:  doc.FileName,
		MediaType: doc.MediaType,
		Data:      doc.Data,
	})
}

// submitAndWait submits one job and polls its status until it reaches a
// terminal state. Ingestion outcomes are only ever visible through job
// status, even in the CLI.
func submitAndWait(ctx context.Context, app *app, sub queue.Submission) error {
	jobID, err := app.queue.Submit(sub)
	if err != nil {
		return err
	}
	fmt.Printf("Accepted: job %s\n", jobID)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	lastProgress := -1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		job, ok := app.queue.GetJob(jobID)
		if !ok {
			return fmt.Errorf("job %s vanished", jobID)
		}
		if job.Progress != lastProgress && !job.Status.Terminal() {
			fmt.Printf("  %s %d%%\n", job.Status, job.Progress)
			lastProgress = job.Progress
		}
		switch job.Status {
		case queue.StatusCompleted:
			fmt.Println()
			fmt.Println("Ingestion complete")
			fmt.Printf("  Chunks:     %d\n", job.Result.ChunkCount)
			fmt.Printf("  Similarity: %.4f\n", job.Result.AverageSimilarity)
			fmt.Printf("  Snapshot:   %s\n", job.Result.SnapshotCID)
			return nil
		case queue.StatusFailed:
			return errors.New(job.Error)
		}
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.stop()

	answer, err := app.query.Ask(ctx, flagCorpus, args[0], flagCaller, query.Options{
		TopK:          flagTopK,
		MinSimilarity: flagMinSimilarity,
	})
	if err != nil {
		return err
	}

	fmt.Println(answer.Answer)
	fmt.Println()
	fmt.Printf("  Sources: %d  Model: %s  Tokens: %d in / %d out  (%dms)\n",
		answer.Metadata.TotalSourcesFound,
		answer.Metadata.ModelUsed,
		answer.Metadata.TokenUsage.InputTokens,
		answer.Metadata.TokenUsage.OutputTokens,
		answer.Metadata.ProcessingTimeMs)
	return nil
}

func runJobs(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.stop()

	stats := app.queue.Stats()
	fmt.Printf("Queue: %d queued, %d processing, %d completed, %d failed\n",
		stats.Queued, stats.Processing, stats.Completed, stats.Failed)

	jobs := app.queue.GetJobsForTarget(flagCorpus)
	for _, job := range jobs {
		line := fmt.Sprintf("  %s  %-10s  %3d%%  %s", job.ID, job.Status, job.Progress, job.FileName)
		if job.Error != "" {
			line += "  error: " + job.Error
		}
		fmt.Println(line)
	}
	if len(jobs) == 0 {
		fmt.Println("  no jobs for corpus " + flagCorpus)
	}
	return nil
}

func mediaTypeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".pdf":
		return "application/pdf"
	default:
		return "text/plain"
	}
}
