package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nao1215/seeforme/internal/registry"
	"github.com/nao1215/seeforme/pkg/event"
)

func newVolunteerCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "volunteer",
		Short: "Manage the volunteer registry",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides DATABASE_PATH)")
	cmd.AddCommand(
		newVolunteerAddCmd(&dbPath),
		newVolunteerLsCmd(&dbPath),
		newVolunteerAvailabilityCmd(&dbPath),
		newVolunteerRmCmd(&dbPath),
	)
	return cmd
}

func newVolunteerAddCmd(dbPath *string) *cobra.Command {
	var (
		name      string
		token     string
		available bool
	)

	cmd := &cobra.Command{
		Use:   "add USER_ID",
		Short: "Register a volunteer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			v, err := store.Register(cmd.Context(), registry.RegisterParams{
				UserID:      args[0],
				DisplayName: name,
				PushToken:   token,
				IsAvailable: available,
			})
			if err != nil {
				return err
			}
			if _, err := store.AppendEvent(cmd.Context(), v.ID, event.AggregateTypeVolunteer, event.TypeVolunteerRegistered,
				event.VolunteerRegisteredData{UserID: v.UserID, DisplayName: v.DisplayName, HasPushToken: v.HasPushToken()}); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), v.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&token, "token", "", "push token")
	cmd.Flags().BoolVar(&available, "available", false, "mark as available immediately")
	return cmd
}

func newVolunteerLsCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List volunteers in registration order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			volunteers, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSER_ID\tNAME\tAVAILABLE\tPUSH_TOKEN")
			for _, v := range volunteers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\n", v.ID, v.UserID, v.DisplayName, v.IsAvailable, v.HasPushToken())
			}
			return w.Flush()
		},
	}
}

func newVolunteerAvailabilityCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "availability ID true|false",
		Short: "Set a volunteer's availability",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			available, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("対応可否はtrueまたはfalseで指定してください: %w", err)
			}

			store, err := openStore(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			v, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := store.SetAvailability(cmd.Context(), v.ID, available); err != nil {
				return err
			}
			_, err = store.AppendEvent(cmd.Context(), v.ID, event.AggregateTypeVolunteer, event.TypeAvailabilityChanged,
				event.AvailabilityChangedData{UserID: v.UserID, IsAvailable: available})
			return err
		},
	}
}

func newVolunteerRmCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Remove a volunteer (its event history is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			return store.Delete(cmd.Context(), args[0])
		},
	}
}
