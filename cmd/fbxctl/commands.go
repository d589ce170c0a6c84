package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/benmeehan/fbx-agent/pkg/discovery"
	"github.com/benmeehan/fbx-agent/pkg/file"
	"github.com/benmeehan/fbx-agent/pkg/freebox"
)

type globalFlags struct {
	configFile string
	host       string
	port       string
	plain      bool
	debug      bool
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:          "fbxctl",
		Short:        "Discover, pair with and open sessions on a Freebox",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&flags.host, "host", "", "appliance host (default: well-known host)")
	cmd.PersistentFlags().StringVar(&flags.port, "port", "", "appliance port (default: depends on TLS preference)")
	cmd.PersistentFlags().BoolVar(&flags.plain, "plain", false, "do not prefer HTTPS")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logs")

	cmd.AddCommand(discoverCmd(flags))
	cmd.AddCommand(openCmd(flags))
	cmd.AddCommand(permissionsCmd(flags))

	return cmd
}

func discoverCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Look for a Freebox and print its self-description",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd, flags)
			if err != nil {
				return err
			}

			record, err := client.Discover(cmd.Context(), flags.host, flags.port)
			if errors.Is(err, discovery.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No freebox found")
				return nil
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		},
	}
}

func openCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open a session, pairing the application first if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd, flags)
			if err != nil {
				return err
			}
			if err := client.Open(cmd.Context(), flags.host, flags.port); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Freebox:     %s\n", client.BaseURL())
			fmt.Fprintf(out, "API version: %s\n", client.APIVersion())
			if record := client.Record(); record != nil && record.BoxModelName != "" {
				fmt.Fprintf(out, "Model:       %s\n", record.BoxModelName)
			}

			return client.Close(cmd.Context())
		},
	}
}

func permissionsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "permissions",
		Short: "Print the permissions granted to the application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd, flags)
			if err != nil {
				return err
			}
			if err := client.Open(cmd.Context(), flags.host, flags.port); err != nil {
				return err
			}
			defer client.Close(cmd.Context())

			permissions, err := client.Permissions(cmd.Context())
			if err != nil {
				return err
			}

			names := make([]string, 0, len(permissions))
			for name := range permissions {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %t\n", name, permissions[name])
			}
			return nil
		},
	}
}

func newClient(cmd *cobra.Command, flags *globalFlags) (*freebox.Client, error) {
	logger := newLogger(flags.debug)
	fileClient := file.NewFileService()

	config := freebox.DefaultConfig()
	if flags.configFile != "" {
		loaded, err := freebox.LoadConfig(flags.configFile, fileClient)
		if err != nil {
			return nil, err
		}
		config = *loaded
	}
	config.Prompt = cmd.OutOrStdout()
	if flags.plain {
		config.PreferTLS = false
	}

	store, err := freebox.NewStore(config, fileClient, logger)
	if err != nil {
		return nil, err
	}
	return freebox.NewClient(config, store, logger), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
