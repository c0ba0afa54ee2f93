package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	blogpublisher "github.com/eringen/blogpublisher"
	"github.com/eringen/blogpublisher/backup"
	"github.com/eringen/blogpublisher/scaffold"
	"github.com/eringen/blogpublisher/store"
)

func newBackupCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "backup [path]",
		Short: "Export posts, tags, categories and settings to a JSON file",
		Long:  "Export posts, tags, categories and non-secret settings. Without a path the file is named backup_blog_publisher_<timestamp>.json.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cc.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			var path string
			if len(args) == 1 {
				path = args[0]
			}
			written, err := backup.WriteFile(cmd.Context(), s, path, time.Now())
			if err != nil {
				return err
			}
			cc.logger.Info("backup written", zap.String("path", written))
			fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %s\n", written)
			return nil
		},
	}
}

func newRestoreCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <path>",
		Short: "Import a JSON backup",
		Long:  "Import a JSON backup. Tags and categories are merged by name; posts are always appended.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cc.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := backup.ReadFile(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d posts, %d tags, %d categories, %d settings\n",
				res.Posts, res.Tags, res.Categories, res.Settings)
			return nil
		},
	}
}

func newSeedCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Add the default tags and categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cc.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			tags, categories, err := s.SeedDefaults(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d tags and %d categories\n", tags, categories)
			return nil
		},
	}
}

func newInfoCommand(cc *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show database location and content totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cc.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			stats, err := s.Stats(ctx)
			if err != nil {
				return err
			}
			info := blogpublisher.Info{
				Version:      blogpublisher.Version,
				DatabasePath: s.Path(),
				BlogType:     s.Settings().Get(ctx, store.KeyBlogType, ""),
				Stats:        stats,
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			rows := [][]string{
				{"Version", info.Version},
				{"Database", info.DatabasePath},
				{"Platform", valueOr(info.BlogType, "not configured")},
				{"Posts", strconv.Itoa(info.Total)},
				{"Published", strconv.Itoa(info.Published)},
				{"Drafts", strconv.Itoa(info.Drafts)},
				{"Tags", strconv.Itoa(info.Tags)},
				{"Categories", strconv.Itoa(info.Categories)},
			}
			fmt.Fprintln(out, renderTable([]string{"Item", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newPostsCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "posts",
		Short: "List posts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cc.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			posts, err := s.Posts().List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(posts) == 0 {
				fmt.Fprintln(out, "No posts.")
				return nil
			}
			rows := make([][]string, 0, len(posts))
			for _, p := range posts {
				rows = append(rows, []string{
					strconv.FormatInt(p.ID, 10),
					p.Title,
					string(p.Status),
					valueOr(p.BlogTarget, "-"),
					valueOr(p.ExternalID, "-"),
					p.CreatedDate.Local().Format("2006-01-02 15:04"),
				})
			}
			headers := []string{"ID", "Title", "Status", "Target", "External ID", "Created"}
			fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignRight}))
			return nil
		},
	}
}

func newInitCommand() *cobra.Command {
	var data scaffold.Data

	cmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write a starter .env configuration with a fresh session secret",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ".env"
			if len(args) == 1 {
				path = args[0]
			}
			if err := scaffold.WriteConfig(path, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&data.Host, "host", "127.0.0.1", "Listen host")
	cmd.Flags().IntVar(&data.Port, "port", 5000, "Listen port")
	cmd.Flags().StringVar(&data.BaseURL, "base-url", "", "Public URL (defaults to http://host:port)")
	cmd.Flags().StringVar(&data.DatabasePath, "database", "instance/blog_publisher.db", "SQLite database path")
	cmd.Flags().StringVar(&data.Environment, "environment", "development", "development or production")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Annotations: map[string]string{skipConfigLoad: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "blogpublisher %s\n", blogpublisher.Version)
		},
	}
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
