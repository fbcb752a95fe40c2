package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"blogdesk/database"
)

func newSeedCommand(a *app) *cobra.Command {
	var opts database.SeedOptions
	var migrate bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed roles, the admin account, categories, tags and starter tasks",
		Long: "Seed roles, the admin account, categories, tags and starter tasks.\n" +
			"Existing rows are kept, so seeding twice is harmless. --demo adds generated posts.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if migrate {
				ran, err := database.Migrate(cmd.Context(), db, a.log)
				if err != nil {
					return err
				}
				printNames(cmd.OutOrStdout(), "Migrated", ran)
			}
			if err := database.SeedInitialData(cmd.Context(), db, a.log, opts); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database seeded.")
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.AdminPassword, "admin-password", "", "password for a newly created admin (default \"adminpassword\")")
	cmd.Flags().IntVar(&opts.DemoPosts, "demo", 0, "number of generated demo posts to add")
	cmd.Flags().Uint64Var(&opts.FakerSeed, "faker-seed", 0, "seed for reproducible demo data (0 is random)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations first")
	return cmd
}
