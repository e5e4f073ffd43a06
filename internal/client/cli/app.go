package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/client"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/repositories/state"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/services"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// ErrUsage is returned for a missing or unknown command.
var ErrUsage = errors.New("usage: authctl [-a addr] [-s state-file] [-w seconds] [-c config] <login|refresh|logout|logout-all|sessions>")

type App struct {
	config   *config.Config
	sessions services.SessionService
	reader   *bufio.Reader
	out      io.Writer
	now      func() time.Time
}

func NewApp(c *config.Config) (*App, error) {

	st, err := state.NewFileRepository(c.StateFile)
	if err != nil {
		return nil, err
	}

	apiClient, err := client.NewAuthClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}

	return &App{
		config:   c,
		sessions: services.NewSessionService(apiClient, st),
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		now:      time.Now,
	}, nil
}

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.sessions.Close()

	if len(args) == 0 {
		return ErrUsage
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	switch args[0] {
	case "login":
		return a.login(ctx)
	case "refresh":
		return a.refresh(ctx)
	case "logout":
		return a.logout(ctx)
	case "logout-all":
		return a.logoutAll(ctx)
	case "sessions":
		return a.listSessions(ctx)
	case "help":
		fmt.Fprintln(a.out, ErrUsage.Error())
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], ErrUsage)
	}
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

func (a *App) login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	t, err := a.sessions.Login(ctx, email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s, access token valid until %s\n", email, t.AccessExpiresAt.Local().Format(time.RFC3339))
	return nil
}

func (a *App) refresh(ctx context.Context) error {
	t, err := a.sessions.Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Tokens rotated, access token valid until %s\n", t.AccessExpiresAt.Local().Format(time.RFC3339))
	return nil
}

func (a *App) logout(ctx context.Context) error {
	if err := a.sessions.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) logoutAll(ctx context.Context) error {
	n, err := a.sessions.LogoutEverywhere(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Revoked %d session(s)\n", n)
	return nil
}

func (a *App) listSessions(ctx context.Context) error {
	list, err := a.sessions.Sessions(ctx)
	if err != nil {
		return err
	}

	now := a.now()
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tISSUED\tEXPIRES\tIP\tUSER AGENT")
	for _, s := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Status(now),
			s.IssuedAt.Format(time.RFC3339), s.ExpiresAt.Format(time.RFC3339),
			s.IPAddress, s.UserAgent)
	}
	return w.Flush()
}
