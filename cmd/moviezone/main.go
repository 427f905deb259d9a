package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-moviezone-client/apiclient"
	"github.com/jrsteele09/go-moviezone-client/credentials"
	"github.com/jrsteele09/go-moviezone-client/internal/config"
	"github.com/jrsteele09/go-moviezone-client/internal/logging"
	"github.com/jrsteele09/go-moviezone-client/movies"
	"github.com/jrsteele09/go-moviezone-client/session"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configPath, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", errorMessage(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, command string, args []string) error {
	_ = godotenv.Load()

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.Setup(c.GetEnv(), c.GetLogLevel())

	store, err := credentials.Open(ctx, c)
	if err != nil {
		return err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	client, err := apiclient.New(c.GetBaseURL(), store,
		apiclient.WithTimeout(c.GetTimeout()),
		apiclient.WithProactiveRefresh(c.GetProactiveRefresh()),
		apiclient.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	client.OnSessionExpired(func(cause error) {
		log.Debug().Err(cause).Msg("session expired")
		fmt.Fprintln(os.Stderr, "Your session has expired. Run `moviezone login` to sign in again.")
	})

	sess, err := session.New(client,
		session.WithLogger(logger),
		session.WithProfileHydration(),
		session.WithServerLogout(),
	)
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.Initialize(ctx); err != nil {
		logger.Warn().Err(err).Msg("could not restore the saved session")
	}

	a := &app{
		out:     os.Stdout,
		in:      os.Stdin,
		appName: c.GetAppName(),
		client:  client,
		session: sess,
		movies:  movies.New(client),
	}
	return a.dispatch(ctx, command, args)
}

func usage() {
	displayAppname("MovieZone")
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: moviezone [-config file] <command> [arguments]

Commands:
  login <username|email> [-password p]   sign in and save the session
  logout                                 sign out and forget the session
  register -username u -password p [-email e] [-first f] [-last l]
  whoami                                 show who is signed in
  token                                  print the access token and its expiry
  movies [-filter trending|top-rated|latest] [-search text]
  movie <id>                             show a movie with its reviews and comments
  wishlist [add|remove <id>]             show or change your wishlist
  get <path>                             GET a path relative to the API base URL

Flags:
`)
	flag.PrintDefaults()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

// errorMessage prefers the backend's message for API failures.
func errorMessage(err error) string {
	if apiErr, ok := apiclient.AsError(err); ok {
		if apiErr.Kind == apiclient.KindConnectivity {
			return "cannot reach the MovieZone API: " + apiErr.Error()
		}
		return apiErr.MessageOr(apiErr.Error())
	}
	return err.Error()
}
