package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configCmd is the parent command for config file management.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the rosmap configuration file.",
	Long:  `The config command groups helpers for the .rosmap.yaml configuration file.`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// configGenerateCmd writes every setting at its default value.
var configGenerateCmd = &cobra.Command{
	Use:   "generate [path]",
	Short: "Write a config file holding every setting at its default.",
	Long: `Write a YAML config file with every rosmap setting at its default value.
Without a path the file is printed to stdout. An existing file is only
replaced with --force.

Examples:
  rosmap config generate .rosmap.yaml
  rosmap config generate > ~/.rosmap.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		return generateConfig(cmd.OutOrStdout(), afero.NewOsFs(), path, force)
	},
}

// generateConfig writes the defaults to path on fs, or to w when path is empty or "-".
func generateConfig(w io.Writer, fs afero.Fs, path string, force bool) error {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("yaml")
	for key, value := range configDefaults() {
		v.SetDefault(key, value)
	}

	if path == "" || path == "-" {
		return v.WriteConfigTo(w)
	}

	write := v.SafeWriteConfigAs
	if force {
		write = v.WriteConfigAs
	}
	if err := write(path); err != nil {
		var exists viper.ConfigFileAlreadyExistsError
		if errors.As(err, &exists) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		return fmt.Errorf("failed to write config: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Wrote default configuration to %s\n", path)
	return nil
}
