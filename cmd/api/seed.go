package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/physio-api/internal/app"
	"github.com/jwalitptl/physio-api/internal/model"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the therapy type catalog and the bootstrap admin user",
		Long:  "Seeding is idempotent: existing therapy types and users are left untouched.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			in, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer in.Close()

			svc := app.NewServices(in.repos, options(cfg))

			created, err := svc.TherapyTypes.Seed(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("created", created).Msg("therapy type catalog seeded")

			if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
				log.Warn().Msg("admin email or password not configured, skipping admin user")
				return nil
			}
			made, err := svc.Users.EnsureAdmin(ctx, &model.CreateUserRequest{
				Email:     cfg.Admin.Email,
				Password:  cfg.Admin.Password,
				FirstName: cfg.Admin.FirstName,
				LastName:  cfg.Admin.LastName,
				Role:      model.RoleAdmin,
			})
			if err != nil {
				return err
			}
			log.Info().Bool("created", made).Str("email", cfg.Admin.Email).Msg("admin user ensured")
			return nil
		},
	}
}
