package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"sheet_judge/internal/app/service"
	"sheet_judge/internal/common/security"
	"sheet_judge/internal/domain/model"
	"sheet_judge/internal/domain/repository"
	"sheet_judge/internal/platform/config"
	"sheet_judge/internal/platform/database"

	"github.com/spf13/cobra"
)

func main() {
	config.Load()

	var rootCmd = &cobra.Command{
		Use:   "problemctl",
		Short: "Admin CLI for problem sheets and dev tokens",
	}

	var sheetCmd = &cobra.Command{
		Use:   "sheet",
		Short: "Import & export problem sheets",
	}

	var migrate bool
	var sheetImportCmd = &cobra.Command{
		Use:   "import <sheet.toml[.zst]>",
		Short: "Create or replace a sheet from a TOML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return importSheet(cmd.Context(), args[0], migrate)
		},
	}
	sheetImportCmd.Flags().BoolVar(&migrate, "migrate", false, "Apply the schema before importing")

	var out string
	var sheetExportCmd = &cobra.Command{
		Use:   "export <sheet-id>",
		Short: "Write a stored sheet, test data included, as TOML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportSheet(cmd.Context(), args[0], out)
		},
	}
	sheetExportCmd.Flags().StringVarP(&out, "out", "o", "", "Output file; .zst compresses (default stdout)")

	var role string
	var ttl time.Duration
	var tokenCmd = &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != model.RoleUser && role != model.RoleAdmin {
				return fmt.Errorf("unsupported role %q", role)
			}
			tokenAuth := security.NewTokenAuth(config.AppConfig.JWTKey)
			tok, err := security.GenerateToken(tokenAuth, args[0], role, ttl)
			if err != nil {
				return fmt.Errorf("error signing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&role, "role", model.RoleUser, "Role claim [user, admin]")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", config.AppConfig.JWTExp, "Token lifetime")

	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Connect(cmd.Context(), config.AppConfig.DBConnStr)
			if err != nil {
				return err
			}
			defer database.Close(db)
			return database.Migrate(cmd.Context(), db)
		},
	}

	// Build the command hierarchy
	rootCmd.AddCommand(sheetCmd, tokenCmd, migrateCmd)
	sheetCmd.AddCommand(sheetImportCmd, sheetExportCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func openProblemService(ctx context.Context, migrate bool) (*service.ProblemService, func(), error) {
	db, err := database.Connect(ctx, config.AppConfig.DBConnStr)
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := database.Migrate(ctx, db); err != nil {
			database.Close(db)
			return nil, nil, err
		}
	}
	return service.NewProblemService(repository.NewPgProblemRepository(db)), func() { database.Close(db) }, nil
}

func importSheet(ctx context.Context, path string, migrate bool) error {
	r, err := openSheetFile(path)
	if err != nil {
		return err
	}
	defer r.Close()

	svc, closeDB, err := openProblemService(ctx, migrate)
	if err != nil {
		return err
	}
	defer closeDB()

	sheet, problems, err := svc.ImportSheet(ctx, r)
	if err != nil {
		return fmt.Errorf("error importing %s: %w", path, err)
	}
	log.Printf("imported sheet %q (%s) with %d problems", sheet.ID, sheet.Title, len(problems))
	for _, p := range problems {
		log.Printf("  %-24s %-9s %d tests", p.ID, p.Status, p.TestCount)
	}
	return nil
}

func exportSheet(ctx context.Context, sheetID, out string) error {
	svc, closeDB, err := openProblemService(ctx, false)
	if err != nil {
		return err
	}
	defer closeDB()

	doc, err := svc.ExportSheet(ctx, sheetID)
	if err != nil {
		return fmt.Errorf("error exporting %s: %w", sheetID, err)
	}
	if out == "" {
		_, err = os.Stdout.Write(doc)
		return err
	}
	return writeSheetFile(out, doc)
}
