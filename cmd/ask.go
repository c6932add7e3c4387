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

	"github.com/spf13/cobra"

	"github.com/valpere/dzerkalo/internal/answerer"
)

var (
	askKB          []string
	askShowContext bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the knowledge base with a local model",
	Long: `Retrieve the passages most similar to the question and ask a local Ollama
model to answer from them.

Example:
  dzerkalo ask "什么是机器学习？" --kb notes.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		ix, err := loadIndex(ctx, askKB)
		if err != nil {
			return err
		}

		gen := answerer.NewOllamaGenerator(cfg.Answer.Model, cfg.Answer.BaseURL, cfg.Answer.Timeout)
		ans, err := answerer.New(ix, gen, answerer.WithTopK(cfg.Polish.TopK), answerer.WithLogger(log)).Ask(ctx, args[0])
		if err != nil {
			return err
		}

		if askShowContext {
			for i, c := range ans.Contexts {
				fmt.Printf("[%d] %s\n\n", i+1, c)
			}
		}
		fmt.Println(ans.Answer)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringSliceVar(&askKB, "kb", nil, "Extra knowledge-base files to load")
	askCmd.Flags().BoolVar(&askShowContext, "show-context", false, "Print the retrieved passages before the answer")
}
