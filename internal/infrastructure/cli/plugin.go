package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	domainplugin "github.com/felixgeelhaar/worksync/pkg/domain/plugin"
	"github.com/felixgeelhaar/worksync/pkg/plugin"
	"github.com/felixgeelhaar/worksync/pkg/plugin/contract"
	"github.com/felixgeelhaar/worksync/pkg/storage"
)

var pluginOptions []string

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Manage connector plugins",
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and registered connector kinds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer services.Close()

		registry := services.Workspace.Registry
		builtins := plugin.Builtins()
		columns := []table.Column{
			{Title: "Kind", Width: 12},
			{Title: "Source", Width: 8},
			{Title: "Binary", Width: 48},
		}
		var rows []table.Row
		for _, kind := range services.Connectors.Kinds() {
			if reg := registry.Get(kind); reg != nil {
				rows = append(rows, table.Row{kind, "plugin", reg.Binary})
				continue
			}
			if _, ok := builtins[kind]; ok {
				rows = append(rows, table.Row{kind, "builtin", "-"})
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), staticTable(columns, rows))
		return nil
	},
}

var pluginRegisterCmd = &cobra.Command{
	Use:   "register <kind> <binary-path>",
	Short: "Register a connector binary for a connection kind",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := workspaceRepo()
		if err != nil {
			return err
		}
		options, err := parseOptions(pluginOptions)
		if err != nil {
			return err
		}
		binary, err := filepath.Abs(args[1])
		if err != nil {
			return fmt.Errorf("invalid binary path %q: %w", args[1], err)
		}
		if err := repo.RegisterConnector(args[0], domainplugin.Registration{Binary: binary, Options: options}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Connector %q registered: %s\n", args[0], binary)
		return nil
	},
}

var pluginUnregisterCmd = &cobra.Command{
	Use:   "unregister <kind>",
	Short: "Unregister a connector binary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := workspaceRepo()
		if err != nil {
			return err
		}
		if err := repo.UnregisterConnector(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Connector %q unregistered.\n", args[0])
		return nil
	},
}

var pluginValidateCmd = &cobra.Command{
	Use:   "validate <kind|binary-path>",
	Short: "Run the connector contract suite",
	Long: `Run the connector contract suite against a registered kind, a built-in
kind or a connector binary. --option values are passed to Init.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer services.Close()

		options, err := parseOptions(pluginOptions)
		if err != nil {
			return err
		}

		target := args[0]
		var result *contract.SuiteResult
		if reg := services.Workspace.Registry.Get(target); reg != nil {
			result, err = contract.NewContractSuite(reg.MergeOptions(options)).RunBinary(cmd.Context(), reg.Binary)
		} else if factory, ok := plugin.Builtins()[strings.ToLower(target)]; ok {
			result = contract.NewContractSuite(options).RunWithConnector(cmd.Context(), factory())
		} else if _, statErr := os.Stat(target); statErr == nil {
			result, err = contract.NewContractSuite(options).RunBinary(cmd.Context(), target)
		} else {
			return fmt.Errorf("unknown connector kind or binary: %s", target)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, r := range result.Results {
			mark := styleDone.Render("pass")
			if !r.Passed {
				mark = styleErr.Render("FAIL")
			}
			fmt.Fprintf(out, "%s %-28s %s\n", mark, r.Name, r.Message)
		}
		fmt.Fprintf(out, "%d passed, %d failed\n", result.Passed, result.Failed)
		if !result.OK() {
			return fmt.Errorf("connector %s failed %d contract checks", target, result.Failed)
		}
		return nil
	},
}

func workspaceRepo() (*storage.FilesystemRepository, error) {
	root, err := getProjectRoot()
	if err != nil {
		return nil, err
	}
	repo := storage.NewFilesystemRepository(root)
	if !repo.IsInitialized() {
		return nil, storage.ErrNotInitialized
	}
	return repo, nil
}

// parseOptions reads key=value pairs.
func parseOptions(pairs []string) (map[string]string, error) {
	options := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --option %q: want key=value", p)
		}
		options[key] = value
	}
	return options, nil
}

func init() {
	pluginRegisterCmd.Flags().StringArrayVar(&pluginOptions, "option", nil, "Default connector option key=value (repeatable)")
	pluginValidateCmd.Flags().StringArrayVar(&pluginOptions, "option", nil, "Connector option key=value (repeatable)")
	pluginCmd.AddCommand(pluginListCmd)
	pluginCmd.AddCommand(pluginRegisterCmd)
	pluginCmd.AddCommand(pluginUnregisterCmd)
	pluginCmd.AddCommand(pluginValidateCmd)
	RootCmd.AddCommand(pluginCmd)
}
