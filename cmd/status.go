package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/oss-dev/supervisor/internal/daemon"
	"github.com/oss-dev/supervisor/internal/paths"
	"github.com/oss-dev/supervisor/internal/queue"
	"github.com/oss-dev/supervisor/internal/state"
)

func init() {
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the supervisor daemon's current state and queue",
	RunE:  runStatus,
}

var (
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	styleErr   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	styleLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func runStatus(c *cobra.Command, args []string) error {
	userRoot, err := paths.UserRoot()
	if err != nil {
		return fmt.Errorf("resolving user root: %w", err)
	}

	pid, running := daemon.ReadPID(paths.In(userRoot, "daemon.pid"))
	running = running && daemon.ProcessAlive(pid)

	if running {
		fmt.Println(styleOK.Render("●") + fmt.Sprintf(" supervisord running (pid %d)", pid))
	} else {
		fmt.Println(styleErr.Render("●") + " supervisord not running")
	}

	doc := state.New(paths.In(userRoot, "state.json")).Read()
	printStateSummary(doc)

	qdoc, err := readQueueDocument(paths.In(userRoot, "queue.json"))
	if err != nil {
		fmt.Println(styleLabel.Render("queue:") + " unavailable (" + err.Error() + ")")
		return nil
	}
	printQueueSummary(qdoc)

	return nil
}

func printStateSummary(doc state.Document) {
	supervisor := doc.Supervisor
	if supervisor == "" {
		supervisor = state.SupervisorIdle
	}
	fmt.Println(styleLabel.Render("supervisor:") + " " + string(supervisor))

	if doc.TddPhase != "" {
		fmt.Println(styleLabel.Render("tdd phase:") + " " + string(doc.TddPhase))
	}
	if doc.ActiveAgent != nil {
		fmt.Printf("%s %s (%s)\n", styleLabel.Render("active agent:"), doc.ActiveAgent.Type, doc.ActiveAgent.Task)
	}
	if doc.Issue != nil {
		style := styleWarn
		if doc.Issue.Severity == state.SeverityError {
			style = styleErr
		}
		fmt.Println(style.Render(string(doc.Issue.Severity)) + ": " + doc.Issue.Message)
	}
}

func readQueueDocument(path string) (queue.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return queue.Document{}, err
	}
	var doc queue.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return queue.Document{}, fmt.Errorf("parsing queue document: %w", err)
	}
	return doc, nil
}

func printQueueSummary(doc queue.Document) {
	counts := map[queue.Status]int{}
	for _, t := range doc.Tasks {
		counts[t.Status]++
	}

	fmt.Printf("%s %d pending, %d in progress, %d completed, %d failed\n",
		styleLabel.Render("queue:"),
		counts[queue.StatusPending], counts[queue.StatusInProgress],
		counts[queue.StatusCompleted], counts[queue.StatusFailed])

	for _, t := range doc.Tasks {
		if t.Status.IsTerminal() {
			continue
		}
		fmt.Printf("  [%s] %s: %s\n", t.Priority, t.AnomalyType, truncate(t.Prompt, 80))
	}
}

func truncate(s string, n int) string {
	if ansi.StringWidth(s) <= n {
		return s
	}
	return ansi.Truncate(s, n, "…")
}
