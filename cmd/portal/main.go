// Command portal is a CLI client for the document portal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const usageText = `portal CLI
Usage:
  portal [-server URL] <cmd> [args]

Commands:
  version
  login   -u <username> -p <password>     (saves session token)
  list                                    (documents visible to you)
  view    -id <docId> [-o <file>]         (downloads the PDF)
  logout
`

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	gfs := flag.NewFlagSet("portal", flag.ContinueOnError)
	gfs.SetOutput(stderr)
	server := gfs.String("server", envOr("PORTAL_SERVER", "http://localhost:5000"), "portal base URL")
	timeout := gfs.Duration("timeout", 30*time.Second, "request timeout")
	gfs.Usage = func() { fmt.Fprint(stderr, usageText) }
	if err := gfs.Parse(args); err != nil {
		return 2
	}
	if gfs.NArg() < 1 {
		gfs.Usage()
		return 2
	}

	cmd, rest := gfs.Arg(0), gfs.Args()[1:]
	if cmd == "version" {
		fmt.Fprintf(stdout, "portal %s (%s)\n", version, buildDate)
		return 0
	}

	c, err := newClient(*server, *timeout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	switch cmd {
	case "login":
		err = cmdLogin(ctx, c, *server, rest, stdout, stderr)
	case "list":
		err = cmdList(ctx, c, stdout)
	case "view":
		err = cmdView(ctx, c, rest, stdout, stderr)
	case "logout":
		err = cmdLogout(ctx, c, stdout)
	default:
		gfs.Usage()
		return 2
	}
	if err != nil {
		return fail(stderr, err)
	}
	return 0
}

func cmdLogin(ctx context.Context, c *client, server string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(stderr)
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" || *pass == "" {
		return errors.New("login requires -u and -p")
	}

	res, err := c.login(ctx, *user, *pass)
	if err != nil {
		return err
	}
	if err := saveToken(tokenFile{Server: server, Username: res.Username, AccessToken: res.Token, ExpiresAt: res.ExpiresAt}); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Fprintf(stdout, "logged in as %s\n", res.Username)
	return nil
}

func cmdList(ctx context.Context, c *client, stdout io.Writer) error {
	tf, err := loadToken(time.Now())
	if err != nil {
		return err
	}
	docs, err := c.documents(ctx, tf.AccessToken)
	if err != nil {
		return sessionCheck(err)
	}
	if len(docs) == 0 {
		fmt.Fprintln(stdout, "no documents")
		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDEPARTMENT\tDATE\tFILE")
	for _, d := range docs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", d.ID, d.Title, deref(d.Department), deref(d.CreatedDate), deref(d.FileName))
	}
	return tw.Flush()
}

func cmdView(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	fs.SetOutput(stderr)
	id := fs.Int64("id", 0, "document id")
	out := fs.String("o", "", "output file (default: server filename)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("view requires -id <positive integer>")
	}

	tf, err := loadToken(time.Now())
	if err != nil {
		return err
	}
	pdfTok, err := c.pdfToken(ctx, tf.AccessToken, *id)
	if err != nil {
		return sessionCheck(err)
	}
	payload, name, err := c.fetchPDF(ctx, pdfTok)
	if err != nil {
		return err
	}

	dst := *out
	if dst == "" {
		dst = safeFileName(name, *id)
	}
	if err := os.WriteFile(dst, payload, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "saved %s (%d bytes)\n", dst, len(payload))
	return nil
}

func cmdLogout(ctx context.Context, c *client, stdout io.Writer) error {
	tf, err := loadToken(time.Now())
	if err == nil {
		if lerr := c.logout(ctx, tf.AccessToken); lerr != nil {
			fmt.Fprintf(stdout, "server logout failed: %v\n", lerr)
		}
	}
	if err := clearToken(); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "logged out")
	return nil
}

// sessionCheck forgets the stored session when the server rejects it.
func sessionCheck(err error) error {
	var ae *apiError
	if errors.As(err, &ae) && ae.sessionRejected() {
		_ = clearToken()
		return fmt.Errorf("%w: %s", errSessionExpired, ae.Message)
	}
	return err
}

// safeFileName keeps only the base name the server suggested.
func safeFileName(name string, id int64) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" || name == ".." {
		return fmt.Sprintf("document_%d.pdf", id)
	}
	return name
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fail(stderr io.Writer, err error) int {
	if errors.Is(err, errSessionExpired) {
		fmt.Fprintln(stderr, errSessionExpired.Error())
		return 1
	}
	fmt.Fprintln(stderr, err)
	return 1
}
