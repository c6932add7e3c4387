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
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/valpere/dzerkalo/internal/config"
)

var version = "0.3.0"

var (
	cfgFile string
	cfg     *config.Config
)

var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "dzerkalo",
	Short: "Mirror-translation text polisher",
	Long: `A CLI application that polishes Chinese text by translating it into a pivot
language and back through several providers in parallel, then asks an LLM
judge whether each round trip improved on the original.

A local knowledge base supplies domain context to the providers and can
answer questions directly.

Supported providers: Youdao, Zhipu GLM, OpenRouter, Ollama, Google Translate,
MyMemory, Systran

Use "dzerkalo polish --help" for polishing options.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		flags := map[string]*pflag.Flag{
			"log.level":  cmd.Flags().Lookup("log-level"),
			"log.format": cmd.Flags().Lookup("log-format"),
			"db":         cmd.Flags().Lookup("db"),
		}
		loaded, err := config.Load(cfgFile, flags)
		if err != nil {
			return err
		}
		cfg = loaded
		return setupLogging(cfg.Log)
	},
}

func setupLogging(lc config.LogConfig) error {
	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	if lc.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./dzerkalo.yaml or $HOME/.dzerkalo.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text or json)")
	rootCmd.PersistentFlags().String("db", "", "Database path for cache, history, glossary and checkpoints")
}
