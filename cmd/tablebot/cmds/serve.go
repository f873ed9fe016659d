package cmds

import (
	"github.com/go-go-golems/tablebot/pkg/app"
	"github.com/go-go-golems/tablebot/pkg/events"
	"github.com/go-go-golems/tablebot/pkg/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the restaurant assistant HTTP API",
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

			a, err := app.New(ctx, s, app.WithEventSinks(router.Sink(events.TopicTurns)))
			if err != nil {
				return err
			}
			defer func() {
				_ = a.Close()
			}()

			srv := server.New(a.Sessions, a.Toolbox,
				server.WithPort(s.Server.Port),
				server.WithTokenCounter(a.Window),
			)

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return router.Run(ctx)
			})
			eg.Go(func() error {
				<-router.Running()
				return srv.Run(ctx)
			})
			return eg.Wait()
		},
	}
	bindFlags(cmd, engineFlags, storeFlags, []flagBinding{
		{"server.port", "port", "port to listen on", "int"},
	})
	return cmd
}
