package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(installCmd)
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install a systemd user service that runs 'start' on login",
	RunE:  runInstall,
}

const serviceUnitName = "supervisord.service"

// unitTemplate mirrors the teacher's own daemonization story (cmd/start.go's
// daemonizeSelf): the unit execs the same binary's foreground start path and
// lets systemd own restart/lifecycle instead of a second re-exec layer.
var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=oss-supervisor developer-workflow daemon
After=network.target

[Service]
Type=simple
ExecStart={{.Exe}} start
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`))

func runInstall(c *cobra.Command, args []string) error {
	unitDir, err := systemdUserUnitDir()
	if err != nil {
		return fmt.Errorf("resolving systemd user unit directory: %w", err)
	}
	if err := os.MkdirAll(unitDir, 0o755); err != nil {
		return fmt.Errorf("creating unit directory: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable: %w", err)
	}

	unitPath := filepath.Join(unitDir, serviceUnitName)
	tmp := unitPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("writing unit file: %w", err)
	}
	if err := unitTemplate.Execute(f, struct{ Exe string }{Exe: exe}); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("rendering unit file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing unit file: %w", err)
	}
	if err := os.Rename(tmp, unitPath); err != nil {
		return fmt.Errorf("installing unit file: %w", err)
	}

	fmt.Printf("installed %s\n", unitPath)
	fmt.Println("enable it with: systemctl --user enable --now " + serviceUnitName)
	return nil
}

func systemdUserUnitDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "systemd", "user"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, ".config", "systemd", "user"), nil
}
