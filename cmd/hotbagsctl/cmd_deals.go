package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hotbags/backend/internal/domain"
	"github.com/hotbags/backend/internal/usecase"
)

func init() {
	rootCmd.AddCommand(dealsCmd, resolveCmd)
	dealsCmd.AddCommand(dealsListCmd, dealsShowCmd, dealsExpireCmd)

	dealsListCmd.Flags().Int("limit", 50, "maximum number of deals")

	resolveCmd.Flags().String("type", "", "metaobject type handle (required)")
	resolveCmd.Flags().String("label", "", "label to resolve (required)")
	resolveCmd.Flags().String("mode", string(domain.ResolveStrict), "strict or lenient")
	_ = resolveCmd.MarkFlagRequired("type")
	_ = resolveCmd.MarkFlagRequired("label")
}

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "Inspect deal sessions in the configured store",
}

var dealsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent deals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.Deals.ListDeals(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("list deals: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No deals found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DEAL ID\tSTATE\tVERSION\tTITLE\tUPDATED")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				s.DealID,
				s.State,
				s.DraftVersion,
				usecase.BuildTitle(s.Draft),
				s.UpdatedAt.Format(time.RFC3339),
			)
		}
		return w.Flush()
	},
}

var dealsShowCmd = &cobra.Command{
	Use:   "show <deal-id>",
	Short: "Print a deal and its CHECK message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		view, err := a.Deals.GetDeal(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, version %d)\n\n", view.Session.DealID, view.Session.State, view.Session.DraftVersion)
		_, err = fmt.Fprintln(cmd.OutOrStdout(), usecase.RenderCheckText(view.Check))
		return err
	},
}

var dealsExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire sessions whose confirmation window has passed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Deals.ExpireDue(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Expired %d deals.\n", n)
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve one label against the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		typeHandle, _ := cmd.Flags().GetString("type")
		label, _ := cmd.Flags().GetString("label")
		mode, _ := cmd.Flags().GetString("mode")
		if mode != string(domain.ResolveStrict) && mode != string(domain.ResolveLenient) {
			return fmt.Errorf("mode must be strict or lenient, got %q", mode)
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		outcome, err := a.Resolver.Resolve(cmd.Context(), domain.ResolveRequest{
			Shop:       a.Shop,
			TypeHandle: typeHandle,
			Label:      label,
		}, domain.ResolveMode(mode))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), outcome)
	},
}
