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
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/dzerkalo/internal/translator"
)

var providersCheck bool

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List translation providers and their status",
	Long: `List every known provider and whether it is enabled in the config.
With --check, enabled providers are also probed for availability.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled := make(map[string]bool)
		for _, name := range cfg.EnabledProviders() {
			enabled[name] = true
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		header := "PROVIDER\tENABLED\tMODELS"
		if providersCheck {
			header += "\tSTATUS"
		}
		fmt.Fprintln(w, header)

		for _, name := range translator.Names() {
			line := fmt.Sprintf("%s\t%v\t%s", name, enabled[name], models(name))
			if providersCheck {
				line += "\t" + probe(cmd.Context(), name, enabled[name])
			}
			fmt.Fprintln(w, line)
		}
		return w.Flush()
	},
}

// models lists the model rotation of LLM-backed providers.
func models(name string) string {
	svc, err := translator.New(name, cfg.Providers[name])
	if err != nil {
		return "-"
	}
	m, ok := svc.(interface{ Models() []string })
	if !ok {
		return "-"
	}
	return strings.Join(m.Models(), ",")
}

func probe(ctx context.Context, name string, enabled bool) string {
	if !enabled {
		return "-"
	}
	svc, err := translator.New(name, cfg.Providers[name])
	if err != nil {
		return err.Error()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := svc.IsAvailable(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}

func init() {
	rootCmd.AddCommand(providersCmd)

	providersCmd.Flags().BoolVar(&providersCheck, "check", false, "Probe enabled providers for availability")
}
