package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(uninstallCmd)
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the systemd user service installed by 'install'",
	RunE:  runUninstall,
}

func runUninstall(c *cobra.Command, args []string) error {
	unitDir, err := systemdUserUnitDir()
	if err != nil {
		return fmt.Errorf("resolving systemd user unit directory: %w", err)
	}

	unitPath := filepath.Join(unitDir, serviceUnitName)
	if err := os.Remove(unitPath); err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no service installed")
			return nil
		}
		return fmt.Errorf("removing unit file: %w", err)
	}

	fmt.Printf("removed %s\n", unitPath)
	fmt.Println("if it was enabled, run: systemctl --user disable " + serviceUnitName)
	return nil
}
