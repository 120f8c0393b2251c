package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write the effective configuration (defaults merged with anything
already set) to a YAML file, as a starting point for editing. Refuses to
overwrite an existing file unless --force is given.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("output")
		force, _ := cmd.Flags().GetBool("force")

		var err error
		if force {
			err = viper.WriteConfigAs(path)
		} else {
			err = viper.SafeWriteConfigAs(path)
		}
		if err != nil {
			var exists viper.ConfigFileAlreadyExistsError
			if errors.As(err, &exists) {
				return fmt.Errorf("%s already exists; pass --force to overwrite", path)
			}
			return fmt.Errorf("write config: %w", err)
		}

		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().String("output", ".docloom.yaml", "path of the config file to write")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
