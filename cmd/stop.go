package cmd

import (
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oss-dev/supervisor/internal/daemon"
	"github.com/oss-dev/supervisor/internal/paths"
)

func init() {
	rootCmd.AddCommand(stopCmd)
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running supervisor daemon",
	RunE:  runStop,
}

func runStop(c *cobra.Command, args []string) error {
	userRoot, err := paths.UserRoot()
	if err != nil {
		return fmt.Errorf("resolving user root: %w", err)
	}

	pidPath := paths.In(userRoot, "daemon.pid")
	pid, ok := daemon.ReadPID(pidPath)
	if !ok {
		fmt.Println("supervisord is not running")
		return nil
	}
	if !daemon.ProcessAlive(pid) {
		fmt.Println("supervisord is not running (stale pid file)")
		return nil
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM to pid %d: %w", pid, err)
	}

	for i := 0; i < 50; i++ {
		if !daemon.ProcessAlive(pid) {
			fmt.Println("supervisord stopped")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("supervisord (pid %d) did not exit within the grace period", pid)
}
