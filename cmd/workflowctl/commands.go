package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/garyjia/invoice-workflow/internal/container"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
	"github.com/garyjia/invoice-workflow/migrations"
	"github.com/garyjia/invoice-workflow/pkg/database"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.New(database.Config{Path: cfg.Database.Path}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := database.NewMigrator(db, logger).Run(cmd.Context(), migrations.FS)
			if err != nil {
				return err
			}
			return writeJSON(map[string]any{"applied": applied})
		},
	}
}

func newRemindCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Send SLA reminders for invoices waiting on a manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(c *container.Container) error {
				run, err := c.Services().Reminders.SendDue(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(run)
			})
		},
	}
}

func newBookingFormCmd(opts *rootOptions) *cobra.Command {
	var actor string

	trigger := &cobra.Command{
		Use:   "trigger <invoice-id>",
		Short: "Send the booking form of an approved contractor invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(c *container.Container) error {
				result, err := c.Dispatcher().TriggerBookingForm(cmd.Context(), args[0], actor)
				if err != nil {
					return err
				}
				return writeJSON(result)
			})
		},
	}
	trigger.Flags().StringVar(&actor, "actor", "", "User ID of the admin triggering the send (required)")
	_ = trigger.MarkFlagRequired("actor")

	cmd := &cobra.Command{
		Use:   "booking-form",
		Short: "Contractor booking form tools",
	}
	cmd.AddCommand(trigger)
	return cmd
}

func newExtractCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <invoice-id> <file>",
		Short: "Extract beneficiary and bank fields from an invoice document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(c *container.Container) error {
				fields, err := c.Services().Extraction.ExtractFromFile(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return writeJSON(fields)
			})
		},
	}
}

func newUsersCmd(opts *rootOptions) *cobra.Command {
	var (
		id             string
		email          string
		name           string
		role           string
		operationsRoom bool
	)

	add := &cobra.Command{
		Use:   "add",
		Short: "Add a user to the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := domainwf.Role(role)
			if !r.IsValid() {
				return fmt.Errorf("invalid --role %q", role)
			}
			if id == "" {
				id = uuid.NewString()
			}

			user := &entity.User{
				ID:             id,
				Email:          email,
				DisplayName:    name,
				Role:           r,
				OperationsRoom: operationsRoom,
				Active:         true,
				CreatedAt:      time.Now().UTC(),
			}
			return opts.withContainer(cmd.Context(), func(c *container.Container) error {
				if err := c.Repositories().User.Create(cmd.Context(), user); err != nil {
					return err
				}
				return writeJSON(user)
			})
		},
	}
	add.Flags().StringVar(&id, "id", "", "User ID (default: random UUID)")
	add.Flags().StringVar(&email, "email", "", "Email address (required)")
	add.Flags().StringVar(&name, "name", "", "Display name")
	add.Flags().StringVar(&role, "role", string(domainwf.RoleStaff), "Role: admin, finance, manager or staff")
	add.Flags().BoolVar(&operationsRoom, "operations-room", false, "Receives contractor booking forms")
	_ = add.MarkFlagRequired("email")

	cmd := &cobra.Command{
		Use:   "users",
		Short: "User directory tools",
	}
	cmd.AddCommand(add)
	return cmd
}
