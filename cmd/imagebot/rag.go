package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/akarpov/imagebot/internal/backend"
	"github.com/akarpov/imagebot/internal/config"
	"github.com/akarpov/imagebot/internal/db"
	"github.com/akarpov/imagebot/internal/rag"
)

func newRagCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Manage the document index",
		Long:  "Indexes the files of the data directory into SQLite and answers nearest-chunk queries against them.",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")

	cmd.AddCommand(newRagIndexCmd(&configPath))
	cmd.AddCommand(newRagListCmd(&configPath))
	cmd.AddCommand(newRagDeleteCmd(&configPath))
	cmd.AddCommand(newRagQueryCmd(&configPath))
	cmd.AddCommand(newRagChunksCmd(&configPath))
	return cmd
}

// ragStore builds the Store from config. Every rag subcommand starts here.
func ragStore(configPath string) (*rag.Store, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireOpenAI(); err != nil {
		return nil, nil, err
	}

	gormDB, err := db.Open(cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, nil, err
	}

	store, err := rag.NewStore(gormDB, backend.New(cfg.OpenAI.APIKey), cfg.RAG.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func newRagIndexCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Index every supported file in the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := ragStore(*configPath)
			if err != nil {
				return err
			}
			counts, err := store.Index(cmd.Context())
			if err != nil {
				return err
			}
			if len(counts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No supported files found")
				return nil
			}
			total := 0
			for source, n := range counts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks\n", source, n)
				total += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks from %d files\n", total, len(counts))
			return nil
		},
	}
}

func newRagListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexed sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := ragStore(*configPath)
			if err != nil {
				return err
			}
			infos, err := store.Sources()
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Index is empty")
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  (%d chunks)\n", info.Source, info.Chunks)
			}
			return nil
		},
	}
}

func newRagDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <source>",
		Short: "Remove a source from the index and the data directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := ragStore(*configPath)
			if err != nil {
				return err
			}
			n, err := store.DeleteSource(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%d chunks)\n", args[0], n)
			return nil
		},
	}
}

func newRagQueryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "query <text>...",
		Short: "Find the chunks nearest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := ragStore(*configPath)
			if err != nil {
				return err
			}
			results, err := store.Query(cmd.Context(), strings.Join(args, " "), cfg.RAG.TopN)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s#%d (distance %.3f)\n%s\n\n", i+1, r.Source, r.Seq, r.Distance, r.Content)
			}
			return nil
		},
	}
}

func newRagChunksCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chunks <source>",
		Short: "Print the stored chunks of one source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := ragStore(*configPath)
			if err != nil {
				return err
			}
			chunks, err := store.Chunks(args[0])
			if err != nil {
				return err
			}
			if len(chunks) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No chunks for %s\n", args[0])
				return nil
			}
			for _, c := range chunks {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s\n", c.Seq, c.Content)
			}
			return nil
		},
	}
}
