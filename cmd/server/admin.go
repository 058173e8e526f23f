package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/newsdesk/internal/db"
	"github.com/newsdesk/internal/seed"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		if _, err := db.Open(cfg.Database, log.Named("gorm")); err != nil {
			return err
		}
		log.Info("database migrated", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with generated newsroom content",
	Long: `seed creates an editor, a few authors, the default categories, some tags and
a batch of posts with comments and page views. It is skipped when posts
already exist unless --force is given.

Examples:
  newsdesk seed
  newsdesk seed --posts 100 --seed 42 --force`,
	RunE: runSeed,
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account if the email is not registered yet",
	RunE:  runCreateAdmin,
}

func init() {
	seedCmd.Flags().Int("authors", 3, "number of author accounts")
	seedCmd.Flags().Int("posts", 20, "number of posts")
	seedCmd.Flags().Int64("seed", 0, "random seed; 0 uses the current time")
	seedCmd.Flags().Bool("force", false, "seed even when posts already exist")

	createAdminCmd.Flags().String("email", "", "admin email")
	createAdminCmd.Flags().String("password", "", "admin password")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	authors, _ := cmd.Flags().GetInt("authors")
	posts, _ := cmd.Flags().GetInt("posts")
	randomSeed, _ := cmd.Flags().GetInt64("seed")
	force, _ := cmd.Flags().GetBool("force")
	if randomSeed == 0 {
		randomSeed = time.Now().UnixNano()
	}

	gdb, err := db.Open(cfg.Database, log.Named("gorm"))
	if err != nil {
		return err
	}

	result, err := seed.Run(cmd.Context(), gdb, seed.Options{
		Authors: authors,
		Posts:   posts,
		Seed:    randomSeed,
		Force:   force,
	}, log)
	if err != nil {
		return err
	}
	if result.Skipped {
		fmt.Fprintln(cmd.OutOrStdout(), "posts already exist, nothing seeded (use --force)")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"seeded %d users, %d categories, %d tags, %d posts, %d comments, %d views (seed %d)\n",
		result.Users, result.Categories, result.Tags, result.Posts, result.Comments, result.Views, randomSeed)
	fmt.Fprintf(cmd.OutOrStdout(), "generated accounts use the password %q\n", seed.DefaultPassword)
	return nil
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	gdb, err := db.Open(cfg.Database, log.Named("gorm"))
	if err != nil {
		return err
	}
	if err := db.EnsureAdmin(gdb, email, password); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "admin account %s is ready\n", db.NormalizeEmail(email))
	return nil
}
