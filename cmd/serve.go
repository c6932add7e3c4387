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
	"github.com/spf13/cobra"

	"github.com/valpere/dzerkalo/internal/answerer"
	"github.com/valpere/dzerkalo/internal/ingest"
	"github.com/valpere/dzerkalo/internal/server"
)

var (
	serveAddr string
	serveKB   []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the polishing API over HTTP",
	Long: `Start the HTTP server. Endpoints:

  GET  /healthz              liveness and knowledge-base size
  GET  /providers            configured providers
  POST /polish               polish text (JSON or form: text, provider, context)
  POST /polish-doc           polish an uploaded document and write a report
  GET  /download/:filename   fetch a written report
  POST /ask                  answer a question from the knowledge base
  GET  /kb                   knowledge-base sources
  POST /kb/upload            add an uploaded document to the knowledge base
  POST /kb/save              save the knowledge base as JSON
  POST /kb/query             most similar passages`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ix, err := loadIndex(ctx, serveKB)
		if err != nil {
			return err
		}
		orch, err := buildOrchestrator(db, ix)
		if err != nil {
			return err
		}

		gen := answerer.NewOllamaGenerator(cfg.Answer.Model, cfg.Answer.BaseURL, cfg.Answer.Timeout)
		deps := server.Dependencies{
			Polisher: orch,
			Index:    ix,
			Parser:   ingest.Parser{MaxChars: cfg.KB.MaxChars},
			Answerer: answerer.New(ix, gen, answerer.WithTopK(cfg.Polish.TopK), answerer.WithLogger(log)),
		}
		srv, err := server.New(server.Config{
			Mode:        cfg.Server.Mode,
			MaxUpload:   cfg.Server.MaxUpload,
			KBDir:       cfg.KB.Dir,
			PolishedDir: cfg.Server.PolishedDir,
		}, deps, server.WithLogger(log))
		if err != nil {
			return err
		}

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		log.WithField("providers", orch.Providers()).Info("providers ready")
		err = srv.Run(ctx, addr)
		logCacheStats()
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (default server.addr, :8080)")
	serveCmd.Flags().StringSliceVar(&serveKB, "kb", nil, "Extra knowledge-base files to load")
}
