package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"consensuscore/internal/config"
	"consensuscore/internal/contextinjector"
	"consensuscore/internal/curation"
	"consensuscore/internal/embedding"
	"consensuscore/internal/events"
	"consensuscore/internal/pipeline"
	"consensuscore/internal/precedent"
	"consensuscore/internal/preprocessor"
	"consensuscore/internal/quality"
	"consensuscore/internal/repofacts"
	"consensuscore/internal/retrieval"

	"consensuscore/internal/learner"
	"consensuscore/internal/store"
)

var repoRoot string

var runCmd = &cobra.Command{
	Use:   "run [question]",
	Short: "wire C1-C13 together and answer one question against an in-memory mock model gateway",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&repoRoot, "repo", "", "repository root the pre-processor explores (default: current directory)")
}

func runRun(cmd *cobra.Command, args []string) error {
	question := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		cfg.Store.DatabasePath = dbPath
	}
	if repoRoot == "" {
		repoRoot, _ = os.Getwd()
	}

	actor, err := store.NewActor(cfg.Store.DatabasePath, cfg.Store.QueueCapacity)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer actor.Close()

	ks, err := store.NewKnowledgeStore(ctx, actor)
	if err != nil {
		return fmt.Errorf("build knowledge store: %w", err)
	}

	embedder, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("build embedding engine: %w", err)
	}
	ks.AttachEmbedder(embedder)

	extractor := repofacts.NewExtractor(cfg.RepoFacts)
	facts, err := extractor.Extract(ctx, repoRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: repository fact extraction failed: %v\n", err)
		facts = &repofacts.Facts{}
	}

	sink := events.NewChannelSink(64)
	go logEvents(sink)

	lrn := learner.New(actor, embedder, cfg.Learner)
	if err := lrn.Warm(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: learner warm-up failed: %v\n", err)
	}

	prec := precedent.New(actor, cfg.Precedent)

	injector := contextinjector.NewInjector(ks, cfg.ContextInjector)
	injector.Learned = lrn

	profile, err := cfg.GetActiveProfile()
	if err != nil {
		return fmt.Errorf("get active profile: %w", err)
	}

	pl := pipeline.New(mockGateway{}, injector, cfg.Consensus.RetryPolicy, cfg.FactCheck.Tolerance)
	pl.Gate = quality.NewRegistry(nil)
	pl.Sink = sink
	pl.Learner = lrn
	pl.Recorder = store.NewConsensusRecorder(actor, profile.ID)
	pl.Curator = curation.New(ks)
	pl.SetFacts(facts)

	searcher := retrieval.NewSparseRetriever(retrieval.DefaultSparseRetrieverConfig(repoRoot))
	security := preprocessor.DefaultSecurityPolicy(repoRoot)

	pre := preprocessor.New(cfg.PreProcessor)
	pre.Searcher = searcher
	pre.Memory = lrn
	pre.Temporal = actor
	pre.Security = &security
	pre.Precedent = prec
	pre.Facts = facts
	pre.Sink = sink

	conversationID := uuid.NewString()

	preResult := pre.Process(ctx, conversationID, question, nil)
	if !preResult.RouteToConsensus {
		fmt.Println(preResult.DirectAnswer)
		return nil
	}

	result := pl.Run(ctx, conversationID, question, profile)
	if !result.Success {
		return fmt.Errorf("consensus pipeline failed: %s", result.Error)
	}

	fmt.Println(result.Answer)
	fmt.Fprintf(os.Stderr, "\n(%d stages, $%.4f, %s)\n", len(result.Stages), result.TotalCost, result.TotalDuration)
	return nil
}

func logEvents(sink *events.ChannelSink) {
	for e := range sink.Events() {
		fmt.Fprintf(os.Stderr, "[event] %s conversation=%s stage=%s\n", e.Kind, e.ConversationID, e.StageName)
	}
}
