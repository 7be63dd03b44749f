package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/victornm/geoquiz/internal/config"
	"github.com/victornm/geoquiz/internal/domain"
	"github.com/victornm/geoquiz/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Load .env failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the quiz over HTTP and gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	root := &cobra.Command{
		Use:          "geoquiz",
		Short:        "Adaptive geography quiz server",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.PersistentFlags().String("config", "", "Path to the config file (overrides CONFIG_PATH env var)")

	root.AddCommand(serve, newQuestionCmd())
	return root
}

func newQuestionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "question",
		Short: "Generate one question and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			flag, _ := cmd.Flags().GetString("difficulty")
			d := domain.Difficulty(flag)
			if !d.Valid() {
				return fmt.Errorf("unknown difficulty %q", flag)
			}

			g, err := server.NewGenerator(cmd.Context(), c)
			if err != nil {
				return err
			}

			res, err := g.Generate(cmd.Context(), d, nil)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"origin":   res.Origin,
				"attempts": res.Attempts,
				"question": res.Question,
			})
		},
	}
	cmd.Flags().String("difficulty", domain.DifficultyEasy.String(), "Difficulty of the question: easy, medium or hard")
	return cmd
}

func runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()

	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	s, err := server.Init(ctx, c)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- s.Start(ctx) }()

	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	s.Shutdown()
	return err
}

// loadConfig reads the file named by --config, then CONFIG_PATH. Without either the
// defaults and the environment are used.
func loadConfig(cmd *cobra.Command) (server.Config, error) {
	c := server.DefaultConfig()

	p, _ := cmd.Flags().GetString("config")
	if p == "" {
		p = os.Getenv("CONFIG_PATH")
	}

	err := config.Load(p, &c,
		config.WithEnvAlias("http.port", "PORT"),
		config.WithEnvAlias("llm.apikey", "GEMINI_API_KEY"),
		config.WithEnvAlias("places.apikey", "FOURSQUARE_API_KEY"),
	)
	if err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
