package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"blogdesk/database"
)

func newMigrateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMigrator(func(m *database.Migrator) error {
				ran, err := m.Up(cmd.Context())
				printNames(cmd.OutOrStdout(), "Migrated", ran)
				return err
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last batch, or --steps migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMigrator(func(m *database.Migrator) error {
				reverted, err := m.Down(cmd.Context(), steps)
				printNames(cmd.OutOrStdout(), "Rolled back", reverted)
				return err
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back (0 means the last batch)")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMigrator(func(m *database.Migrator) error {
				status, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tBATCH")
				for _, s := range status {
					state, batch := "Pending", "-"
					if s.Applied {
						state, batch = "Ran", fmt.Sprint(s.Batch)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Version, s.Name, state, batch)
				}
				return w.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "fresh",
		Short: "Roll back every migration and migrate again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMigrator(func(m *database.Migrator) error {
				ran, err := m.Fresh(cmd.Context())
				printNames(cmd.OutOrStdout(), "Migrated", ran)
				return err
			})
		},
	})
	return cmd
}

func (a *app) withMigrator(fn func(m *database.Migrator) error) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer database.Close(db)

	m, err := a.migrator(db)
	if err != nil {
		return err
	}
	return fn(m)
}

func printNames(out io.Writer, verb string, names []string) {
	if len(names) == 0 {
		fmt.Fprintln(out, "Nothing to do.")
		return
	}
	for _, name := range names {
		fmt.Fprintf(out, "%s: %s\n", verb, name)
	}
}
