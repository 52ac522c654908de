package cmd

import (
	"context"
	"fmt"

	"github.com/abhisek/boardprep/internal/chathistory"
	"github.com/abhisek/boardprep/internal/config"
	"github.com/abhisek/boardprep/internal/grader"
	"github.com/abhisek/boardprep/internal/llm"
	"github.com/abhisek/boardprep/internal/logger"
	"github.com/abhisek/boardprep/internal/question"
	"github.com/abhisek/boardprep/internal/server"
	"github.com/abhisek/boardprep/internal/sessioncache"
	"github.com/abhisek/boardprep/internal/store"
	"github.com/abhisek/boardprep/internal/tutor"
	"github.com/spf13/cobra"
)

// runtime holds what every command that talks to the tutor needs. Close
// releases everything in reverse order of acquisition.
type runtime struct {
	cfg   *config.Config
	log   *logger.Logger
	store *store.Store

	closers []func()
}

// openRuntime loads config, builds the logger and opens the store.
func openRuntime(cmd *cobra.Command) (*runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	rt := &runtime{cfg: cfg, log: log}
	rt.closers = append(rt.closers, log.Sync)

	dbPath, err := resolveDBPath(cmd, cfg.Store.Path)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.store = st
	rt.closers = append(rt.closers, func() { _ = st.Close() })
	log.Debug("store opened", "path", dbPath)

	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func (rt *runtime) provider(ctx context.Context) (llm.Provider, error) {
	p, err := llm.NewProviderFromEnv(ctx, rt.store.EventRepo(), rt.log)
	if err != nil {
		return nil, fmt.Errorf("LLM provider not configured: %w", err)
	}
	rt.log.Info("llm provider ready", "model", p.ModelID())
	return p, nil
}

// questions opens the configured question bank.
func (rt *runtime) questions(ctx context.Context) (question.Source, error) {
	answers := rt.store.AnswerRepo()
	switch rt.cfg.Questions.Source {
	case "mongo":
		client, err := question.ConnectMongo(ctx, rt.cfg.Questions.MongoURI)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = client.Disconnect(context.Background()) })
		return question.NewMongoSource(client, rt.cfg.Questions.MongoDatabase, answers), nil
	default:
		src, err := question.LoadFile(rt.cfg.Questions.File, answers)
		if err != nil {
			return nil, err
		}
		rt.log.Info("question bank loaded", "file", rt.cfg.Questions.File, "questions", src.Len())
		return src, nil
	}
}

// snapshots puts the configured cache in front of the SQLite snapshot table.
func (rt *runtime) snapshots(ctx context.Context) (server.SnapshotStore, error) {
	var cache sessioncache.Cache
	switch rt.cfg.Cache.Backend {
	case "redis":
		client, err := sessioncache.ConnectRedis(ctx, rt.cfg.Cache.RedisAddr, rt.cfg.Cache.RedisPassword, rt.cfg.Cache.RedisDB)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		cache = sessioncache.NewRedis(client, rt.cfg.Cache.TTL)
	default:
		cache = sessioncache.NewMemory(rt.cfg.Cache.TTL)
	}
	return sessioncache.NewReadThrough(cache, tutor.NewStoreSink(rt.store.SnapshotRepo()), rt.log), nil
}

func (rt *runtime) orchestrator(p llm.Provider) *tutor.Orchestrator {
	registry := tutor.NewRegistry(grader.New(p, grader.DefaultConfig(), rt.log))
	return tutor.NewOrchestrator(registry, p, tutor.DefaultOrchestratorConfig(), rt.log)
}

func (rt *runtime) chatConfig() chathistory.Config {
	cfg := chathistory.DefaultConfig()
	cfg.MaxWords = rt.cfg.Chat.MaxWords
	cfg.MaxContext = rt.cfg.Chat.MaxContext
	cfg.SummaryThreshold = rt.cfg.Chat.SummaryThreshold
	return cfg
}

func (rt *runtime) chatSystemPrompt() string {
	if rt.cfg.Chat.SystemPrompt != "" {
		return rt.cfg.Chat.SystemPrompt
	}
	return config.DefaultChatSystemPrompt
}
