package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/changeset/internal/config"
)

func newConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create configuration",
	}
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	return cmd
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file, CHANGESET_
environment variables and flags have been applied.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			e, err := rootOpts.load(cmd, f)
			if err != nil {
				return err
			}
			defer e.Close()

			data, err := e.cfg.Marshal()
			if err != nil {
				return f.commandError(ErrCodeGeneric, "failed to render config", err)
			}
			if !f.JSON() {
				_, err := f.Writer.Write(data)
				return err
			}

			// Round-trip through YAML so durations print as "1s", not nanoseconds.
			var view map[string]any
			if err := yaml.Unmarshal(data, &view); err != nil {
				return f.commandError(ErrCodeGeneric, "failed to render config", err)
			}
			return f.Success(view)
		},
	}
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with default settings",
		Long: fmt.Sprintf(`Write the built-in defaults as YAML to path (default %s).
Parent directories are created. An existing file is kept unless --force is set.`, config.DefaultFile),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			path := config.DefaultFile
			if len(args) == 1 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil && !force {
				return f.commandError(ErrCodeExists, fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return f.commandError(ErrCodeGeneric, "failed to check "+path, err)
			}

			if err := config.Save(config.Default(), path); err != nil {
				return f.commandError(ErrCodeWriteFailed, "failed to write config", err)
			}

			if f.JSON() {
				return f.Success(map[string]string{"path": path})
			}
			fmt.Fprintf(f.Writer, "✓ Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}
