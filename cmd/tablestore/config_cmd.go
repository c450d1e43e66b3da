package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/marmos91/tablestore/pkg/config"
	"github.com/marmos91/tablestore/pkg/logstore"
	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSchemesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schemes",
		Short: "List the registered URL schemes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SCHEME\tSTORE\tLOGSTORE")
			for _, scheme := range storage.Factories().Schemes() {
				factory, _ := storage.Factories().Get(scheme)
				ls := "-"
				if logstore.LogStores().Contains(scheme) {
					ls = "yes"
				}
				fmt.Fprintf(w, "%s\t%T\t%s\n", scheme, factory, ls)
			}
			return w.Flush()
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(a), newConfigShowCmd(a))
	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		// The file being replaced may not load
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				path = config.GetDefaultConfigPath()
			}
			if err := config.InitConfigToPath(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
