package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/notare-app/notare/config"
	"github.com/notare-app/notare/internal/ingest"
	"github.com/notare-app/notare/internal/search"
	srv "github.com/notare-app/notare/internal/server"
	"github.com/notare-app/notare/internal/store"
)

func main() {
	var root = &cobra.Command{Use: "notare"}

	root.AddCommand(serveCMD(), migrateCMD(), initCMD(), indexCMD(), searchCMD())
	_ = root.Execute()
}

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if serveAddr == "" {
				serveAddr = os.Getenv("NOTARE_HTTP_ADDR")
			}
			return srv.Run(cfgPath, serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}

func migrateCMD() *cobra.Command {
	var migDir string
	var direction string
	var steps int
	var cfgPath string

	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			dsn, err := cfg.Databases.Postgres.DSN()
			if err != nil {
				return err
			}
			return srv.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrateCmd.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrateCmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrateCmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	migrateCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return migrateCmd
}

// initCMD creates the search configuration row for a project so content can
// be indexed into it.
func initCMD() *cobra.Command {
	var cfgPath string
	var projectID string

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize search configuration for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project is required")
			}
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			st, indexer, _, err := buildServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.DB.Close()
			id, err := indexer.InitializeSearchConfig(ctx, projectID, search.ConfigOptions{})
			if err != nil {
				return err
			}
			fmt.Printf("search config %s created for project %s\n", id, projectID)
			return nil
		},
	}
	initCmd.Flags().StringVar(&projectID, "project", "", "project identifier")
	initCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return initCmd
}

// indexCMD indexes one file or URL into a project. URLs go through
// readability extraction; files are read as plain text.
func indexCMD() *cobra.Command {
	var cfgPath string
	var projectID string
	var sourceID string

	var indexCmd = &cobra.Command{
		Use:   "index [path-or-url]",
		Short: "Index a file or website into a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project is required")
			}
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			st, indexer, _, err := buildServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.DB.Close()

			target := args[0]
			var sourceType, content string
			if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
				page, err := ingest.NewWebsiteFetcher(30 * time.Second).Fetch(ctx, target)
				if err != nil {
					return err
				}
				sourceType = store.SourceTypeWebsite
				content = page.Text
				if sourceID == "" {
					sourceID = page.URL
				}
			} else {
				data, err := os.ReadFile(target)
				if err != nil {
					return err
				}
				sourceType = store.SourceTypeFile
				content = string(data)
				if sourceID == "" {
					sourceID = target
				}
			}
			if err := indexer.UpdateContent(ctx, sourceType, sourceID, projectID, content); err != nil {
				return err
			}
			fmt.Printf("indexed %s as %s/%s\n", target, sourceType, sourceID)
			return nil
		},
	}
	indexCmd.Flags().StringVar(&projectID, "project", "", "project identifier")
	indexCmd.Flags().StringVar(&sourceID, "source-id", "", "source identifier (defaults to path or URL)")
	indexCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return indexCmd
}

func searchCMD() *cobra.Command {
	var cfgPath string
	var projectID string
	var count int

	var searchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Run a vector search against indexed content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project is required")
			}
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			st, _, engine, err := buildServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.DB.Close()
			opts := search.DefaultOptions()
			if count > 0 {
				opts.MatchCount = count
			}
			results, err := engine.SearchContent(ctx, args[0], projectID, nil, opts)
			if err != nil {
				return err
			}
			for _, res := range results {
				fmt.Printf("%.3f  [%s/%s#%d]  %s\n", res.Similarity, res.SourceType, res.SourceID, res.ChunkIndex, truncate(res.Content, 120))
			}
			return nil
		},
	}
	searchCmd.Flags().StringVar(&projectID, "project", "", "project identifier")
	searchCmd.Flags().IntVar(&count, "count", 0, "max results")
	searchCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return searchCmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func buildServices(ctx context.Context, cfg *config.Config) (*store.Store, *search.Indexer, *search.Engine, error) {
	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		return nil, nil, nil, err
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	indexer, engine, err := srv.BuildSearchServices(cfg, st)
	if err != nil {
		st.DB.Close()
		return nil, nil, nil, err
	}
	return st, indexer, engine, nil
}
