// Command docsctl is the operator CLI for the deal documents service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dealdocs/engine/internal/app"
	"github.com/dealdocs/engine/internal/auth"
	"github.com/dealdocs/engine/internal/repository"
	"github.com/dealdocs/engine/pkg/config"
	"github.com/dealdocs/engine/pkg/logger"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "docsctl",
	Short:         "Deal documents operator CLI",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DOCSCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(migrateCmd(), templatesCmd(), packsCmd(), statusCmd())
}

// bootstrap loads config, the logger and every dependency.
func bootstrap(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if _, err := logger.Init(cfg.LogLevel, "console"); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := repository.Migrate(a.DB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations completed")
			return nil
		},
	}
}

func templatesCmd() *cobra.Command {
	tpl := &cobra.Command{Use: "templates", Short: "Manage document templates"}

	var file string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Import template versions from a YAML manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			inputs, err := parseManifest(f, filepath.Dir(file), os.ReadFile)
			if err != nil {
				return err
			}

			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Blobs.EnsureBucket(cmd.Context()); err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "Name", "Category", "Version", "Fields"})
			for _, in := range inputs {
				t, err := a.Templates.Import(cmd.Context(), in)
				if err != nil {
					return fmt.Errorf("import %q: %w", in.Name, err)
				}
				tw.AppendRow(table.Row{t.ID, t.Name, t.Category, t.Version, len(in.Mappings)})
			}
			tw.Render()
			return nil
		},
	}
	imp.Flags().StringVarP(&file, "file", "f", "", "manifest path")
	_ = imp.MarkFlagRequired("file")

	tpl.AddCommand(imp)
	return tpl
}

func packsCmd() *cobra.Command {
	packs := &cobra.Command{Use: "packs", Short: "Legacy document packs"}

	var limit int
	backfill := &cobra.Command{
		Use:   "backfill",
		Short: "Convert unmigrated document packs into document instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Backfill.Backfill(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Packs", "Documents", "Skipped", "Failed"})
			tw.AppendRow(table.Row{report.Packs, report.Documents, report.Skipped, report.Failed})
			tw.Render()
			return nil
		},
	}
	backfill.Flags().IntVar(&limit, "limit", 100, "maximum packs to convert")

	packs.AddCommand(backfill)
	return packs
}

func statusCmd() *cobra.Command {
	var dealership string
	cmd := &cobra.Command{
		Use:   "status <deal-id>",
		Short: "Show document generation status for a deal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dealID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("deal id: %w", err)
			}
			dealershipID, err := uuid.Parse(dealership)
			if err != nil {
				return fmt.Errorf("--dealership: %w", err)
			}

			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			p := auth.Principal{DealershipID: dealershipID}
			st, err := a.Status.GetStatus(cmd.Context(), p, dealID)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(st)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Source", "Total", "Draft", "Ready", "Signed", "Void", "In progress", "All ready", "All signed"})
			tw.AppendRow(table.Row{st.Source, st.Total, st.Draft, st.Ready, st.Signed, st.Voided, st.InProgress, st.AllReady, st.AllSigned})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&dealership, "dealership", "", "dealership id owning the deal")
	_ = cmd.MarkFlagRequired("dealership")
	return cmd
}
