// Command dbrest serves and inspects the records of a relational database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/dbrest/config"
	"github.com/syssam/dbrest/contrib/rest"
	"github.com/syssam/dbrest/schema"
	"github.com/syssam/dbrest/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "dbrest",
		Short:        "Expose the tables of a relational database as records",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")

	// load builds the app of a command. The command closes it.
	load := func(cmd *cobra.Command) (*app, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		log, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
		if err != nil {
			return nil, err
		}
		return newApp(cfg, log)
	}

	root.AddCommand(
		newServeCmd(load, &configPath),
		newTablesCmd(load),
		newListCmd(load),
		newRefreshCmd(load),
	)
	return root
}

type loader func(*cobra.Command) (*app, error)

func newServeCmd(load loader, configPath *string) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the records over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if watch && *configPath != "" {
				go func() {
					err := config.Watch(ctx, *configPath, func(next *config.Config, err error) {
						if err != nil {
							return
						}
						if err := a.reload(ctx, next); err != nil {
							a.log.WarnContext(ctx, "config change not applied", "error", err)
						}
					})
					if err != nil {
						a.log.ErrorContext(ctx, "config watch stopped", "error", err)
					}
				}()
			}
			srv := &http.Server{
				Addr:              a.cfg.HTTP.Addr,
				Handler:           rest.NewRouter(a.svc, rest.WithLogger(a.log), rest.WithOrigins(a.cfg.HTTP.Origins...)),
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       time.Minute,
			}
			errc := make(chan error, 1)
			go func() {
				a.log.InfoContext(ctx, "listening", "addr", srv.Addr)
				errc <- srv.ListenAndServe()
			}()
			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			defer a.log.Info("stopped", "statements", a.stats.QueryStats().Stats())
			if err := srv.Shutdown(shutdown); err != nil {
				return err
			}
			if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "Reconnect when the configuration file changes")
	return cmd
}

func newTablesCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "tables [table...]",
		Short: "Print the reflected tables as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()
			tables, err := a.svc.Tables(ctx)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				tables = make([]*schema.Table, 0, len(args))
				for _, name := range args {
					t, err := a.svc.Table(ctx, name)
					if err != nil {
						return err
					}
					tables = append(tables, t)
				}
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(tables); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newListCmd(load loader) *cobra.Command {
	var p service.Params
	var filters []string
	cmd := &cobra.Command{
		Use:   "list <table>",
		Short: "Print the records of a table as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if len(filters) > 0 {
				p.Filters = map[string][]string{"filter": filters}
			}
			res, err := a.svc.List(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&filters, "filter", nil, "Filter as column,op[,value]; repeated filters are combined with AND")
	f.StringSliceVar(&p.Include, "include", nil, "Columns to include")
	f.StringSliceVar(&p.Exclude, "exclude", nil, "Columns to exclude")
	f.StringArrayVar(&p.Join, "join", nil, "Join path as table[,table...]")
	f.StringArrayVar(&p.Order, "order", nil, "Order as column[,asc|desc]")
	f.StringVar(&p.Page, "page", "", "Page as number[,size]")
	f.StringVar(&p.Size, "size", "", "Maximum number of records")
	return cmd
}

func newRefreshCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [table...]",
		Short: "Reflect tables again and print their names",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()
			if len(args) == 0 {
				if err := a.reflector.RefreshAll(ctx); err != nil {
					return err
				}
				tables, err := a.svc.Tables(ctx)
				if err != nil {
					return err
				}
				for _, t := range tables {
					args = append(args, t.Name)
				}
			} else {
				for _, name := range args {
					if err := a.reflector.RefreshTable(ctx, name); err != nil {
						return err
					}
				}
			}
			for _, name := range args {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
