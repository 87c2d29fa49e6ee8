package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/urfave/cli/v3"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	app := &cli.Command{
		Name:  "pexels-explorer",
		Usage: "Search Pexels photos and videos",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: DefaultConfigPath,
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			searchCommand(),
			addUserCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the search API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Listen address, overrides the config file",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			if l := c.String("listen"); l != "" {
				cfg.Listen = l
			}

			var store *Store
			if cfg.Cache.Enabled || cfg.Auth.Required {
				store, err = NewStore(cfg)
				if err != nil {
					return err
				}
				defer store.Close()
			}
			var reqCache *ReqCache
			if cfg.Cache.Enabled {
				reqCache = NewReqCache(ctx, cfg, store)
			}
			api := NewPexelsApi(cfg, reqCache)
			return NewServer(cfg, api, store).ListenAndServe(ctx)
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search from the terminal",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "kind",
				Usage: "photos or videos",
				Value: string(KindImage),
			},
			&cli.StringFlag{
				Name:  "orientation",
				Usage: "landscape, portrait or square",
			},
			&cli.IntFlag{
				Name:  "pages",
				Usage: "Number of pages to load",
				Value: 1,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			kind, err := ParseKind(c.String("kind"))
			if err != nil {
				return err
			}
			if o := c.String("orientation"); o != "" {
				cfg.Search.Orientation = o
				if _, err := ParseOrientation(o); err != nil {
					return err
				}
			}

			controller := NewSearchController(NewPexelsApi(cfg, nil), cfg.ControllerOptions()...)
			query := c.Args().First()
			if query == "" {
				if !controller.Browse(ctx, kind) {
					return errors.New("a query is required unless search.browseWithoutQuery is enabled")
				}
			} else if !controller.Search(ctx, query, kind) {
				return errors.New("query must not be blank")
			}
			for page := 1; page < int(c.Int("pages")); page++ {
				if !controller.LoadMore(ctx) {
					break
				}
			}

			st := controller.State()
			renderState(os.Stdout, cfg.App.Title, st)
			if st.Error != nil {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func addUserCommand() *cli.Command {
	return &cli.Command{
		Name:      "adduser",
		Usage:     "Create or update a user allowed to use the server",
		ArgsUsage: "<user> <password>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "level",
				Usage: "Access level",
				Value: 1,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 2 {
				return fmt.Errorf("usage: adduser <user> <password>")
			}
			cfg, err := LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			store, err := NewStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.AddUser(c.Args().Get(0), c.Args().Get(1), int(c.Int("level")))
		},
	}
}
