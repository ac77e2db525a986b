package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	"github.com/noah-isme/enquiry-desk-api/internal/repository"
	"github.com/noah-isme/enquiry-desk-api/internal/service"
	"github.com/noah-isme/enquiry-desk-api/internal/validation"
	"github.com/noah-isme/enquiry-desk-api/pkg/config"
	"github.com/noah-isme/enquiry-desk-api/pkg/database"
	"github.com/noah-isme/enquiry-desk-api/pkg/logger"
)

// systemSession attributes CLI operations in the audit log.
var systemSession = &models.Session{UserID: "system", Username: "enquiryctl", Role: models.RoleAdmin, UserAgent: "enquiryctl"}

type runtime struct {
	cfg    *config.Config
	db     *sqlx.DB
	logger *zap.Logger
}

func (r *runtime) close() {
	_ = r.db.Close()
	_ = r.logger.Sync()
}

func connect() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &runtime{cfg: cfg, db: db, logger: logr}, nil
}

func main() {
	root := &cobra.Command{
		Use:           "enquiryctl",
		Short:         "Maintenance commands for the enquiry desk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(schemaCommand(), migrateAliasesCommand(), createUserCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func schemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create missing tables and indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := connect()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := database.EnsureSchema(ctx, rt.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func migrateAliasesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-aliases",
		Short: "Rewrite legacy field names on stored enquiries",
		Long: `Loads every enquiry, folds legacy aliases (phone, aadhar, state, fees...)
into their canonical fields and saves the rows that changed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := connect()
			if err != nil {
				return err
			}
			defer rt.close()

			users := repository.NewUserRepository(rt.db)
			loc := rt.cfg.Location()
			svc := service.NewEnquiryService(repository.NewEnquiryRepository(rt.db), service.EnquiryServiceConfig{
				Audit:     users,
				Validator: validation.NewEnquiryValidator(validation.New(), loc),
				Location:  loc,
				Logger:    rt.logger,
			})

			migrated, err := svc.MigrateAliases(cmd.Context(), systemSession)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d enquiries\n", migrated)
			return nil
		},
	}
}

func createUserCommand() *cobra.Command {
	var (
		email       string
		fullName    string
		role        string
		password    string
		permissions string
	)

	cmd := &cobra.Command{
		Use:   "create-user <username>",
		Short: "Create a desk account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := connect()
			if err != nil {
				return err
			}
			defer rt.close()

			if password == "" {
				password = os.Getenv("ENQUIRYCTL_PASSWORD")
			}
			req := service.CreateUserRequest{
				Username:    args[0],
				Email:       email,
				FullName:    fullName,
				Role:        models.UserRole(role),
				Password:    password,
				Permissions: splitList(permissions),
			}
			if req.FullName == "" {
				req.FullName = args[0]
			}

			svc := service.NewUserService(repository.NewUserRepository(rt.db), validation.New(), rt.logger)
			user, err := svc.Create(cmd.Context(), systemSession, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", user.Username, user.Role, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&fullName, "name", "", "Display name (defaults to the username)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleUser), "Role: admin or user")
	cmd.Flags().StringVar(&password, "password", "", "Initial password (or ENQUIRYCTL_PASSWORD)")
	cmd.Flags().StringVar(&permissions, "permissions", "", "Comma separated permissions for the user role")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
