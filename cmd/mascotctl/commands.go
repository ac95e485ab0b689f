package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"salvadanaio/internal/backend"
	"salvadanaio/internal/cli"
	"salvadanaio/internal/config"
	applog "salvadanaio/internal/log"
	"salvadanaio/internal/mascots"
	"salvadanaio/internal/notify"
	"salvadanaio/internal/selection"
	"salvadanaio/internal/services"
)

const (
	outputText = "text"
	outputYAML = "yaml"
	outputJSON = "json"
)

type options struct {
	out    io.Writer
	errOut io.Writer
	output string
	cfg    *config.Config
	logger *applog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &options{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:           "mascotctl",
		Short:         "Inspect and reset category mascot selections",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch opts.output {
			case outputText, outputYAML, outputJSON:
			default:
				return fmt.Errorf("unknown output format %q", opts.output)
			}
			opts.cfg = config.Load()
			if err := opts.cfg.Validate(); err != nil {
				return err
			}
			// Logs go to errOut so stdout stays machine readable.
			opts.logger = applog.New(applog.Config{
				Level:  applog.ParseLevel(opts.cfg.LogLevel),
				Output: opts.errOut,
			})
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format: text, yaml or json")

	root.AddCommand(
		newCatalogCmd(opts),
		newDefaultsCmd(opts),
		newShowCmd(opts),
		newResetCmd(opts),
	)
	return root
}

func newCatalogCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the selectable mascots",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cat, err := cli.LoadCatalog(opts.logger, opts.cfg.CatalogFile)
			if err != nil {
				return err
			}
			return opts.print(cat.Items(), func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tGROUP\tDEFAULT")
				for _, it := range cat.Items() {
					fmt.Fprintf(tw, "%s\t%s\t%t\n", it.ID, it.Group, it.Default)
				}
				return tw.Flush()
			})
		},
	}
}

func newDefaultsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the selection a new user starts with",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cat, err := cli.LoadCatalog(opts.logger, opts.cfg.CatalogFile)
			if err != nil {
				return err
			}
			ids := selection.DeriveDefaults(cat.Items())
			return opts.print(ids, func(w io.Writer) error {
				for _, id := range ids {
					fmt.Fprintln(w, id)
				}
				return nil
			})
		},
	}
}

type shown struct {
	User     string   `json:"user" yaml:"user"`
	Source   string   `json:"source" yaml:"source"`
	Selected []string `json:"selected" yaml:"selected"`
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user>",
		Short: "Show the selection a user's next session would load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd.Context(), func(svc *services.MascotService) error {
				ids, source := svc.Stored(cmd.Context(), args[0])
				v := shown{User: args[0], Source: string(source), Selected: ids}
				return opts.print(v, func(w io.Writer) error {
					fmt.Fprintf(w, "user %s (%s)\n", v.User, v.Source)
					for _, id := range ids {
						fmt.Fprintf(w, "  %s\n", id)
					}
					return nil
				})
			})
		},
	}
}

func newResetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <user>",
		Short: "Delete a user's stored selection so it falls back to the defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := mascots.UserSubject(args[0])
			if !subject.Persistable() {
				return errors.New("user id must not be blank")
			}
			return opts.withService(cmd.Context(), func(svc *services.MascotService) error {
				if err := svc.Reset(cmd.Context(), subject); err != nil {
					return err
				}
				fmt.Fprintf(opts.out, "reset %s\n", subject.UserID)
				return nil
			})
		},
	}
}

// withService builds the engine over the configured store. When a relay is
// configured, resets reach the running servers through it.
func (o *options) withService(ctx context.Context, fn func(*services.MascotService) error) (err error) {
	cat, err := cli.LoadCatalog(o.logger, o.cfg.CatalogFile)
	if err != nil {
		return err
	}
	bcfg, err := backend.FromAppConfig(o.cfg)
	if err != nil {
		return err
	}
	factory := backend.NewFactory(o.logger)

	store, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, store.Cleanup()) }()

	bus := notify.NewBus(o.logger)
	tr, err := factory.CreateTransport(ctx, bcfg)
	if err != nil {
		return err
	}
	if tr.Transport != nil {
		relay := notify.NewRelay(bus, tr.Transport, o.logger)
		relay.Start(ctx)
		defer func() { err = errors.Join(err, relay.Stop()) }()
	}

	registry := mascots.NewRegistry(mascots.RegistryConfig{Catalog: cat, Gateway: store.Gateway, Bus: bus, Logger: o.logger})
	svc := services.NewMascotService(services.MascotServiceConfig{
		Catalog:  cat,
		Gateway:  store.Gateway,
		Bus:      bus,
		Registry: registry,
		Logger:   o.logger,
	})
	defer func() { err = errors.Join(err, svc.Close()) }()

	return fn(svc)
}

func (o *options) print(v any, text func(io.Writer) error) error {
	switch o.output {
	case outputJSON:
		enc := json.NewEncoder(o.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(o.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return text(o.out)
}

