package cmds

import (
	"fmt"

	"github.com/go-go-golems/tablebot/pkg/restaurants"
	"github.com/go-go-golems/tablebot/pkg/restaurants/sqlite"
	"github.com/go-go-golems/tablebot/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed FILE",
		Short: "Import restaurants from a YAML file into the sqlite store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			if s.Store.Driver != settings.StoreSQLite {
				return errors.Errorf("seed needs the sqlite store, got %q", s.Store.Driver)
			}

			rs, err := restaurants.LoadSeed(args[0])
			if err != nil {
				return err
			}
			store, err := sqlite.Open(s.Store.DSN)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			n, err := store.Import(cmd.Context(), rs)
			if err != nil {
				return err
			}
			cuisines, err := store.ListCuisineTypes(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().Str("dsn", s.Store.DSN).Int("restaurants", n).Strs("cuisines", cuisines).Msg("seeded restaurants")
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d restaurants into %s\n", n, s.Store.DSN)
			return err
		},
	}
	bindFlags(cmd, storeFlags[:2])
	return cmd
}
