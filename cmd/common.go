/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/valpere/dzerkalo/internal/arbiter"
	"github.com/valpere/dzerkalo/internal/cache"
	"github.com/valpere/dzerkalo/internal/embedding"
	"github.com/valpere/dzerkalo/internal/index"
	"github.com/valpere/dzerkalo/internal/ingest"
	"github.com/valpere/dzerkalo/internal/orchestrator"
	"github.com/valpere/dzerkalo/internal/store"
	"github.com/valpere/dzerkalo/internal/translator"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openStore() (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DB), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := store.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// sessionCache is the in-memory tier shared by this process's providers.
var sessionCache *cache.Memory

func logCacheStats() {
	if sessionCache == nil {
		return
	}
	st := sessionCache.Stats()
	log.WithField("hits", st.Hits).WithField("misses", st.Misses).WithField("entries", st.Entries).Info("translation cache")
}

// buildServices constructs every enabled provider behind a shared cache.
// With a store and cache.persist set, the cache writes through to sqlite.
func buildServices(db *store.Store) ([]translator.TranslationService, error) {
	front := cache.NewMemory(cfg.Cache.Size, cfg.Cache.TTL)
	sessionCache = front
	var c cache.Cache = front
	if db != nil && cfg.Cache.Persist {
		c = cache.NewLayered(front, db, log)
	}

	var list []translator.TranslationService
	for _, name := range cfg.EnabledProviders() {
		pc := cfg.Providers[name]
		svc, err := translator.New(name, pc)
		if err != nil {
			return nil, err
		}
		list = append(list, translator.NewClient(svc, c,
			translator.WithRateLimit(pc.RateLimit, pc.Burst),
			translator.WithLogger(log.WithField("provider", name)),
		))
	}

	if len(list) == 0 {
		return nil, fmt.Errorf("no providers enabled (set providers.<name>.enabled in the config)")
	}
	return list, nil
}

func buildJudge() arbiter.Judge {
	jc := cfg.Judge
	switch jc.Backend {
	case "ollama":
		return arbiter.NewOllamaJudge(jc.Model, jc.BaseURL, jc.Timeout)
	case "openrouter":
		key := jc.APIKey
		if key == "" {
			key = cfg.Providers["openrouter"].APIKey
		}
		return arbiter.NewOpenRouterJudge(key, jc.Model, jc.Timeout)
	default:
		key := jc.APIKey
		if key == "" {
			key = cfg.Providers["zhipu"].APIKey
		}
		return arbiter.NewZhipuJudge(key, jc.Model, jc.Timeout)
	}
}

// loadIndex builds the knowledge-base index from the configured files plus
// extra.
func loadIndex(ctx context.Context, extra []string) (*index.Index, error) {
	emb, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	ix := index.New(emb, index.WithLogger(log))

	files := append(append([]string{}, cfg.KB.Load...), extra...)
	if len(files) == 0 {
		return ix, nil
	}
	if err := embedding.Warm(ctx, emb, log); err != nil {
		return nil, err
	}

	parser := ingest.Parser{MaxChars: cfg.KB.MaxChars}
	for _, path := range files {
		records, err := parser.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load knowledge base: %w", err)
		}
		if err := ix.Append(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to index %s: %w", path, err)
		}
		log.WithField("file", path).Infof("loaded %d records", len(records))
	}
	return ix, nil
}

// historySink records every completed polish in the store.
type historySink struct {
	db *store.Store
}

func (h historySink) RecordPolish(ctx context.Context, res *orchestrator.PolishResult) error {
	return h.db.SavePolish(ctx, res.Record())
}

func buildOrchestrator(db *store.Store, ix *index.Index) (*orchestrator.Orchestrator, error) {
	services, err := buildServices(db)
	if err != nil {
		return nil, err
	}

	arb := arbiter.New(buildJudge(), arbiter.WithLogger(log))
	log.WithField("judge", arb.JudgeName()).Debug("judge ready")
	opts := []orchestrator.Option{orchestrator.WithLogger(log)}
	if ix != nil {
		opts = append(opts, orchestrator.WithRetriever(ix))
	}
	if db != nil {
		opts = append(opts, orchestrator.WithGlossary(db), orchestrator.WithHistory(historySink{db: db}))
	}
	return orchestrator.New(services, arb, cfg.Polish, opts...), nil
}
