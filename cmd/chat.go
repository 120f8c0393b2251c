package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/docloom/docloom/internal/retrieve"
	"github.com/docloom/docloom/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask questions against the indexed documents",
	Long: `Talk to a running docloom serve instance.

With a question argument (or piped stdin) the answer is printed and the
command exits. Without one, an interactive session opens: type questions,
press tab to switch between normal, deep, and deeper retrieval modes.

Examples:
  docloom chat "who approved the Q3 budget?"
  echo "summarize the onboarding doc" | docloom chat --mode normal
  docloom chat --user alice`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("user", "", "asking user (default: OS user)")
	chatCmd.Flags().String("mode", "", "retrieval mode: normal, deep, or deeper (default: configured)")
	chatCmd.Flags().String("endpoint", "", "retrieval server base URL (default: http://localhost:<retrieval.http_port>)")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	userID, err := resolveUser(cmd)
	if err != nil {
		return err
	}

	mode, _ := cmd.Flags().GetString("mode")
	if mode == "" {
		mode = cfg.Retrieval.Mode
	}
	if _, err := retrieve.ParseMode(mode); err != nil {
		return err
	}

	endpoint, _ := cmd.Flags().GetString("endpoint")
	if endpoint == "" {
		endpoint = fmt.Sprintf("http://localhost:%d", cfg.Retrieval.HTTPPort)
	}
	client := ui.NewClient(endpoint, userID)

	interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))

	// One-shot: question on the command line, or piped in.
	if len(args) == 1 || !interactive {
		question := ""
		if len(args) == 1 {
			question = args[0]
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read question from stdin: %w", err)
			}
			question = string(data)
		}
		question = strings.TrimSpace(question)
		if question == "" {
			return fmt.Errorf("no question given")
		}

		answer, err := client.Ask(cmd.Context(), question, mode)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	}

	p := tea.NewProgram(ui.NewChatModel(client, mode))
	_, err = p.Run()
	return err
}
