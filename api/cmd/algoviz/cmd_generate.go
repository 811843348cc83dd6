package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"algo-viz/api/internal/pipeline"
)

var (
	genDomain  string
	genLLM     string
	genTimeout time.Duration
	genParse   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [text]",
	Short: "Run one request and print the response as JSON",
	Example: `  algoviz generate "Sort [5, 1, 4, 2, 8] with bubble sort"
  algoviz generate --domain cnn_param "5x5 input, 3x3 kernel"
  algoviz generate --parse-ir "7x7 input, kernel 3, stride 2, padding 1"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		timeout := genTimeout
		if timeout <= 0 {
			timeout = cfg.RequestTimeout
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		req := pipeline.Request{Text: strings.Join(args, " "), DomainHint: genDomain, LLMName: genLLM}
		var out any
		if genParse {
			out, err = a.pipe.ParseCNN(ctx, req)
		} else {
			out, err = a.pipe.Generate(ctx, req)
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	generateCmd.Flags().StringVar(&genDomain, "domain", "", "skip classification and use this domain label")
	generateCmd.Flags().StringVar(&genLLM, "llm", "", "engine to use (gpt|gemini); defaults to LLM_PROVIDER")
	generateCmd.Flags().DurationVar(&genTimeout, "timeout", 0, "overall deadline; defaults to REQUEST_TIMEOUT")
	generateCmd.Flags().BoolVar(&genParse, "parse-ir", false, "grid-only path: require a cnn_param request")
}
