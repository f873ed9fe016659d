package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/tablebot/pkg/app"
	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/go-go-golems/tablebot/pkg/events"
	"github.com/go-go-golems/tablebot/pkg/inference/session"
	"github.com/go-go-golems/tablebot/pkg/server"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tcnksm/go-input"
	"golang.org/x/sync/errgroup"
)

func NewChatCommand() *cobra.Command {
	var showTools bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the restaurant assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			router, err := events.NewEventRouter(events.WithVerbose(s.Events.Verbose))
			if err != nil {
				return err
			}
			defer func() {
				_ = router.Close()
			}()
			router.AddHandler("log", events.TopicTurns, events.LogHandler())
			if showTools {
				router.AddHandler("steps", events.TopicTurns, events.StepPrinterFunc(os.Stderr))
			}

			a, err := app.New(ctx, s, app.WithEventSinks(router.Sink(events.TopicTurns)))
			if err != nil {
				return err
			}
			defer func() {
				_ = a.Close()
			}()

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return router.Run(ctx)
			})
			eg.Go(func() error {
				// the router only stops once the context is done
				defer cancel()
				<-router.Running()
				repl := &chatREPL{
					session: a.Sessions.GetOrCreate(session.DefaultSessionID),
					ui:      &input.UI{Reader: os.Stdin, Writer: os.Stdout},
					out:     os.Stdout,
					render:  newRenderer(os.Stdout),
				}
				return repl.Run(ctx)
			})
			return eg.Wait()
		},
	}
	cmd.Flags().BoolVar(&showTools, "show-tools", false, "print capability calls and results to stderr")
	bindFlags(cmd, engineFlags, storeFlags)
	return cmd
}

type chatREPL struct {
	session *session.Session
	ui      *input.UI
	out     io.Writer
	render  func(string) string
}

func (r *chatREPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, "Welcome to the TableReserve restaurant assistant!")
	fmt.Fprintln(r.out, "Type 'quit' to exit, 'reset' to clear the chat history, or 'history' to see it.")
	fmt.Fprintln(r.out, strings.Repeat("-", 50))

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := r.ui.Ask("\nYou", &input.Options{HideOrder: true})
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, input.ErrInterrupted) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)

		switch strings.ToLower(line) {
		case "quit", "exit":
			fmt.Fprintln(r.out, "Thanks for using TableReserve! Goodbye!")
			return nil
		case "reset":
			r.session.Reset()
			fmt.Fprintln(r.out, "Chat history cleared. Starting fresh!")
			continue
		case "history":
			r.printHistory()
			continue
		case "":
			fmt.Fprintln(r.out, "Please enter a message.")
			continue
		}

		reply, err := r.session.Send(ctx, line)
		if err != nil && reply.Outcome == "" {
			return err
		}
		text, ids := server.SplitTrailer(reply.Text)
		fmt.Fprint(r.out, "Bot: ", r.render(text))
		if len(ids) > 0 {
			fmt.Fprintf(r.out, "(restaurants: %s)\n", strings.Join(ids, ", "))
		}
	}
}

func (r *chatREPL) printHistory() {
	h := r.session.History()
	fmt.Fprintf(r.out, "\nChat history (%d messages):\n", len(h))
	for i, m := range h {
		who := "Bot"
		switch m.Role {
		case conversation.RoleUser:
			who = "User"
		case conversation.RoleTool:
			who = "Tool " + m.ToolName
		}
		text := m.Text
		if text == "" && len(m.ToolCalls) > 0 {
			names := make([]string, 0, len(m.ToolCalls))
			for _, c := range m.ToolCalls {
				names = append(names, c.Name)
			}
			text = "(calls " + strings.Join(names, ", ") + ")"
		}
		fmt.Fprintf(r.out, "%d. %s: %s\n", i+1, who, text)
	}
}

// newRenderer renders markdown with glamour when w is a terminal and passes text
// through otherwise.
func newRenderer(w *os.File) func(string) string {
	plain := func(s string) string { return strings.TrimRight(s, "\n") + "\n" }
	if !isatty.IsTerminal(w.Fd()) {
		return plain
	}
	tr, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return plain
	}
	return func(s string) string {
		out, err := tr.Render(s)
		if err != nil {
			return plain(s)
		}
		return strings.TrimLeft(out, "\n")
	}
}
