package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/jrsteele09/go-moviezone-client/apiclient"
	"github.com/jrsteele09/go-moviezone-client/movies"
	"github.com/jrsteele09/go-moviezone-client/session"
	"github.com/jrsteele09/go-moviezone-client/users"
)

const passwordEnvVar = "MOVIEZONE_PASSWORD"

type app struct {
	out     io.Writer
	in      io.Reader
	appName string
	client  *apiclient.Client
	session *session.Session
	movies  *movies.Service
}

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "register":
		return a.register(ctx, args)
	case "whoami":
		return a.whoami(ctx)
	case "token":
		return a.token()
	case "movies":
		return a.listMovies(ctx, args)
	case "movie":
		return a.showMovie(ctx, args)
	case "wishlist":
		return a.wishlist(ctx, args)
	case "get":
		return a.get(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	password := fs.String("password", "", "password (default $"+passwordEnvVar+", else prompted)")
	if err := fs.Parse(reorder(args)); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: moviezone login <username|email> [-password p]")
	}

	if *password == "" {
		*password = os.Getenv(passwordEnvVar)
	}
	if *password == "" {
		var err error
		if *password, err = a.prompt("Password: "); err != nil {
			return err
		}
	}

	if err := a.session.Login(ctx, fs.Arg(0), *password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Welcome to %s, %s.\n", a.appName, a.session.User().DisplayName())
	return nil
}

func (a *app) logout(ctx context.Context) error {
	wasAuthenticated := a.session.IsAuthenticated()
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	if wasAuthenticated {
		fmt.Fprintln(a.out, "Logged out.")
	} else {
		fmt.Fprintln(a.out, "Not logged in.")
	}
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var r users.Registration
	fs.StringVar(&r.Username, "username", "", "username")
	fs.StringVar(&r.Password, "password", "", "password")
	fs.StringVar(&r.Email, "email", "", "email address")
	fs.StringVar(&r.FirstName, "first", "", "first name")
	fs.StringVar(&r.LastName, "last", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if r.Password == "" {
		var err error
		if r.Password, err = a.prompt("Password: "); err != nil {
			return err
		}
	}
	r.Password2 = r.Password

	if err := a.session.Register(ctx, r); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered %s. You can now log in.\n", r.Username)
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	if !a.session.IsAuthenticated() {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	if err := a.session.Hydrate(ctx); err != nil && !errors.Is(err, session.ErrNotAuthenticated) {
		return err
	}
	user := a.session.User()
	if user == nil {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Username:\t%s\n", user.Username)
	fmt.Fprintf(w, "Name:\t%s\n", user.DisplayName())
	if user.Email != "" {
		fmt.Fprintf(w, "Email:\t%s\n", user.Email)
	}
	fmt.Fprintf(w, "Staff:\t%t\n", user.IsStaff)
	if !user.DateJoined.IsZero() {
		fmt.Fprintf(w, "Joined:\t%s\n", user.DateJoined.Format(time.DateOnly))
	}
	return w.Flush()
}

func (a *app) token() error {
	credential := a.client.Credential()
	if credential == "" {
		return errors.New("not logged in")
	}
	fmt.Fprintln(a.out, credential)
	if exp, ok := apiclient.AccessTokenExpiry(credential); ok {
		fmt.Fprintf(os.Stderr, "expires %s (in %s)\n", exp.Local().Format(time.RFC1123), time.Until(exp).Round(time.Second))
	}
	return nil
}

func (a *app) listMovies(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("movies", flag.ContinueOnError)
	var filter movies.MovieFilter
	fs.StringVar(&filter.Filter, "filter", "", "trending, top-rated or latest")
	fs.StringVar(&filter.Search, "search", "", "match title or description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list, err := a.movies.List(ctx, filter)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No movies found.")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tRELEASED\tRATING\tREVIEWS")
	for _, m := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", m.ID, m.Title, m.ReleaseDate, rating(m), m.ReviewCount)
	}
	return w.Flush()
}

func (a *app) showMovie(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: moviezone movie <id>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	movie, err := a.movies.Get(ctx, id)
	if err != nil {
		return err
	}
	reviews, err := a.movies.ListReviews(ctx, id)
	if err != nil {
		return err
	}
	comments, err := a.movies.ListComments(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s (%s)\n\n%s\n\n", movie.Title, movie.ReleaseDate, movie.Description)
	fmt.Fprintf(a.out, "%s: %s\n", rating(*movie), movies.RatingDescription(*movie))
	if movie.Image != "" {
		fmt.Fprintf(a.out, "Poster: %s\n", movie.Image)
	}
	// not every backend offers watch options
	if options, err := a.movies.WatchOptions(ctx, id); err == nil && len(options) > 0 {
		fmt.Fprintln(a.out, "Watch on:")
		for _, o := range options {
			if o.Price != "" {
				fmt.Fprintf(a.out, "  %s (%s, %s) %s\n", o.Platform, o.Type, o.Price, o.URL)
			} else {
				fmt.Fprintf(a.out, "  %s (%s) %s\n", o.Platform, o.Type, o.URL)
			}
		}
	}
	if a.session.IsAuthenticated() {
		if items, err := a.movies.Wishlist(ctx); err == nil && movies.InWishlist(items, id) {
			fmt.Fprintln(a.out, "On your wishlist.")
		}
	}

	if len(reviews) > 0 {
		fmt.Fprintln(a.out, "\nReviews:")
		for _, r := range reviews {
			fmt.Fprintf(a.out, "  %d/10  %s: %s\n", r.Rating, r.Username, r.ReviewText)
		}
	}
	if len(comments) > 0 {
		fmt.Fprintln(a.out, "\nComments:")
		for _, c := range comments {
			fmt.Fprintf(a.out, "  %s: %s\n", c.Username, c.CommentText)
		}
	}
	return nil
}

func (a *app) wishlist(ctx context.Context, args []string) error {
	if len(args) == 2 {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		switch args[0] {
		case "add":
			item, err := a.movies.AddToWishlist(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added %s to your wishlist.\n", item.Movie.Title)
			return nil
		case "remove":
			if err := a.movies.RemoveFromWishlist(ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Removed from your wishlist.")
			return nil
		}
	}
	if len(args) != 0 {
		return errors.New("usage: moviezone wishlist [add|remove <id>]")
	}

	items, err := a.movies.Wishlist(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Your wishlist is empty.")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tRELEASED")
	for _, item := range items {
		if item.Movie != nil {
			fmt.Fprintf(w, "%d\t%s\t%s\n", item.Movie.ID, item.Movie.Title, item.Movie.ReleaseDate)
		}
	}
	return w.Flush()
}

// get prints the body of an authenticated GET, pretty printed when it is JSON.
func (a *app) get(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: moviezone get <path>")
	}
	resp, err := a.client.Get(ctx, args[0])
	if err != nil {
		return err
	}

	var v any
	if json.Unmarshal(resp.Body, &v) == nil {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err = a.out.Write(resp.Body)
	return err
}

// prompt reads a line from the user. When the input is a terminal the line
// is read without echo.
func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", promptName(label), err)
		}
		return string(secret), nil
	}

	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", promptName(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func promptName(label string) string {
	return strings.TrimSuffix(strings.ToLower(label), ": ")
}

func rating(m movies.Movie) string {
	if m.ReviewCount == 0 {
		return "-"
	}
	return strconv.FormatFloat(m.AverageRating, 'f', 1, 64)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// reorder moves flags ahead of positional arguments, so "login demo -password x"
// parses like "login -password x demo".
func reorder(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") && len(arg) > 1 {
			flags = append(flags, arg)
			if !strings.Contains(arg, "=") && i+1 < len(args) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positional = append(positional, arg)
	}
	return append(flags, positional...)
}
