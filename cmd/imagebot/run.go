package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akarpov/imagebot/internal/backend"
	"github.com/akarpov/imagebot/internal/bot"
	"github.com/akarpov/imagebot/internal/bot/telegram"
	"github.com/akarpov/imagebot/internal/config"
	"github.com/akarpov/imagebot/internal/db"
	"github.com/akarpov/imagebot/internal/rag"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot",
	}
	cmd.AddCommand(newRunTelegramCmd())
	cmd.AddCommand(newRunCLICmd())
	return cmd
}

func newRunTelegramCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "telegram",
		Aliases: []string{"tg"},
		Short:   "Start the Telegram bot daemon",
		Long:    "Connects to the Telegram Bot API, listens for messages, and serves edits, generations, and chat until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTelegram(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func runTelegram(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	gormDB, err := db.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	adapter, err := telegram.New(telegram.AdapterOpts{BotToken: cfg.Telegram.Token})
	if err != nil {
		return err
	}
	client := backend.New(cfg.OpenAI.APIKey)

	var reindexer bot.Reindexer
	if cfg.RAG.ReindexCron != "" {
		store, err := rag.NewStore(gormDB, client, cfg.RAG.DataDir)
		if err != nil {
			return err
		}
		reindexer = store
	}

	daemon, err := bot.NewDaemon(bot.DaemonOpts{
		DB:        gormDB,
		Config:    cfg,
		Adapter:   adapter,
		Backend:   client,
		Reindexer: reindexer,
		Out:       cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return daemon.Run(ctx)
}

func newRunCLICmd() *cobra.Command {
	var model string
	var outPath string

	cmd := &cobra.Command{
		Use:   "cli",
		Short: "Edit or generate images interactively from the terminal",
		Long: "Reads image paths and an instruction from stdin, calls the backend\n" +
			"once, and writes the result next to the working directory. Repeats\n" +
			"until stdin closes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCLI(cmd, model, outPath)
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "gpt-image-1.5", "image model to use")
	cmd.Flags().StringVarP(&outPath, "output", "o", "output.png", "path for the resulting image")
	return cmd
}

func runCLI(cmd *cobra.Command, model, outPath string) error {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireOpenAI(); err != nil {
		return err
	}

	client := backend.New(cfg.OpenAI.APIKey)
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprintln(out, "Image paths (space separated, empty to generate from text only):")
		if !scanner.Scan() {
			break
		}
		paths := strings.Fields(scanner.Text())

		fmt.Fprintln(out, "Instruction:")
		if !scanner.Scan() {
			break
		}
		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			fmt.Fprintln(out, "Empty instruction, skipping.")
			continue
		}

		var result []byte
		if len(paths) == 0 {
			result, _, err = client.Generate(cmd.Context(), prompt, model)
		} else {
			var images [][]byte
			images, err = readImageFiles(paths)
			if err == nil {
				result, _, err = client.Edit(cmd.Context(), images, prompt, model)
			}
		}
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}

		if err := os.WriteFile(outPath, result, 0644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Fprintf(out, "Saved %s (%d bytes)\n", outPath, len(result))
	}
	return scanner.Err()
}

func readImageFiles(paths []string) ([][]byte, error) {
	images := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		images = append(images, data)
	}
	return images, nil
}
