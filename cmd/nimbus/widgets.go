package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wdm0006/nimbus/internal/service"
)

var (
	widgetUser string
	widgetDesc string
)

var widgetsCmd = &cobra.Command{
	Use:   "widgets",
	Short: "Manage stored widgets",
}

func widgetService(cmd *cobra.Command) (*service.Widgets, func(), error) {
	st, err := openStore(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	w := service.NewWidgets(service.WidgetOptions{Store: st, Generator: newGenerator(), Logger: logger})
	return w, func() { _ = st.Close() }, nil
}

var widgetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List widgets",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, done, err := widgetService(cmd)
		if err != nil {
			return err
		}
		defer done()
		ws, err := svc.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(ws) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(no widgets; run `nimbus widgets seed`)")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tOWNER\tDESCRIPTION")
		for _, w := range ws {
			owner := w.Owner
			if w.Builtin {
				owner = "(builtin)"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", w.ID, w.Name, owner, w.Description)
		}
		return tw.Flush()
	},
}

var widgetsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the built-in widgets that are missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, done, err := widgetService(cmd)
		if err != nil {
			return err
		}
		defer done()
		ws, err := svc.Seed(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d built-in widgets available\n", len(ws))
		return nil
	},
}

var widgetsGenerateCmd = &cobra.Command{
	Use:   "generate <name>",
	Short: "Generate widget code from a description and store it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(widgetDesc) == "" {
			return fmt.Errorf("--description is required")
		}
		svc, done, err := widgetService(cmd)
		if err != nil {
			return err
		}
		defer done()
		w, err := svc.Generate(cmd.Context(), widgetUser, args[0], widgetDesc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ widget %d %q\n\n%s", w.ID, w.Name, w.Code)
		return nil
	},
}

func init() {
	defaultUser := os.Getenv("USER")
	widgetsGenerateCmd.Flags().StringVar(&widgetUser, "user", defaultUser, "owner of the new widget")
	widgetsGenerateCmd.Flags().StringVarP(&widgetDesc, "description", "d", "", "what the widget should do")
	widgetsCmd.AddCommand(widgetsListCmd, widgetsSeedCmd, widgetsGenerateCmd)
	rootCmd.AddCommand(widgetsCmd)
}
