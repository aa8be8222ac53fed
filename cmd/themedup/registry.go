package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRegistryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect or reset registered themes",
	}

	var all bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List themes registered under --scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if all {
				st, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				if st == nil {
					return fmt.Errorf("--all needs --db")
				}
				defer st.Close()
				scopes, err := st.Scopes(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), scopes)
			}

			reg, closeStore, err := a.openRegistry(ctx)
			if err != nil {
				return err
			}
			defer closeStore()
			return printJSON(cmd.OutOrStdout(), reg.Themes())
		},
	}
	listCmd.Flags().BoolVar(&all, "all", false, "List scopes with theme counts instead")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every theme registered under --scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, closeStore, err := a.openRegistry(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			n := reg.Len()
			if err := reg.Clear(ctx); err != nil {
				return err
			}
			a.logger.Info("registry cleared", "scope", reg.Scope(), "themes", n)
			return nil
		},
	}

	cmd.AddCommand(listCmd, clearCmd)
	return cmd
}
