package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/akyaiy/GoSally-stream/internal/client"
	"github.com/akyaiy/GoSally-stream/internal/client/transport"
	"github.com/akyaiy/GoSally-stream/internal/core/corestate"
	"github.com/akyaiy/GoSally-stream/internal/engine/app"
	"github.com/akyaiy/GoSally-stream/internal/engine/config"
	"github.com/akyaiy/GoSally-stream/internal/server/auth"
	"github.com/akyaiy/GoSally-stream/internal/server/journal"
	"github.com/spf13/cobra"
)

// localTokenTTL bounds tokens minted by "call" when no --token is given.
const localTokenTTL = 5 * time.Minute

func runClient(fn func(ctx context.Context, cs *corestate.CoreState, x *app.AppX) error) error {
	a := app.New()
	a.InitialHooks(ClientHooks()...)
	return a.Run(fn)
}

func issuer(x *app.AppX) (*auth.JWT, error) {
	secret := *x.Config.Conf.Auth.JWTSecret
	if secret == "" {
		return nil, errors.New("auth.jwt_secret is not set")
	}
	return auth.NewJWT(secret, *x.Config.Conf.Auth.Issuer)
}

// Token prints a signed token for the subject given as the only argument.
func Token(cmd *cobra.Command, args []string) error {
	return runClient(func(ctx context.Context, cs *corestate.CoreState, x *app.AppX) error {
		j, err := issuer(x)
		if err != nil {
			return err
		}
		tok, err := j.Issue(args[0], x.Config.CMDLine.Token.TTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	})
}

// Call connects to a node, performs the handshake and prints the result
// of one request.
func Call(cmd *cobra.Command, args []string) error {
	return runClient(func(ctx context.Context, cs *corestate.CoreState, x *app.AppX) error {
		opts := x.Config.CMDLine.Call
		token := opts.Token
		if token == "" {
			j, err := issuer(x)
			if err != nil {
				return fmt.Errorf("no --token given: %w", err)
			}
			if token, err = j.Issue("cli", localTokenTTL); err != nil {
				return err
			}
		}

		var params any
		if opts.Params != "" {
			var raw json.RawMessage
			if err := json.Unmarshal([]byte(opts.Params), &raw); err != nil {
				return fmt.Errorf("--params is not JSON: %w", err)
			}
			params = raw
		}

		ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()

		c, sess, err := client.Dial(ctx, opts.URL, token,
			transport.WithStreamPath(*x.Config.Conf.HTTPServer.StreamPath),
			transport.WithTokenParam(*x.Config.Conf.Auth.TokenParam),
			transport.WithRequestTimeout(opts.Timeout),
			transport.WithLogger(x.SLog),
		)
		if err != nil {
			return err
		}
		defer sess.Disconnect("call finished")

		if _, err := c.Initialize(ctx, config.NodeName+"-cli", config.NodeVersion); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		out, err := c.Execute(ctx, args[0], params)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Journal lists the most recent sessions recorded by a node.
func Journal(cmd *cobra.Command, args []string) error {
	return runClient(func(ctx context.Context, cs *corestate.CoreState, x *app.AppX) error {
		path := *x.Config.Conf.Journal.Path
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("no journal at %s: %w", path, err)
		}
		j, err := journal.Open(path, x.SLog)
		if err != nil {
			return err
		}
		defer j.Close()

		entries, err := j.Recent(ctx, x.Config.CMDLine.Journal.Limit)
		if err != nil {
			return err
		}
		return printJournal(cmd.OutOrStdout(), entries)
	})
}

func printJournal(w io.Writer, entries []journal.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSUBJECT\tOPENED\tCLOSED\tREASON")
	for _, e := range entries {
		closed, reason := "-", "-"
		if e.ClosedAt != nil {
			closed = e.ClosedAt.Format(time.RFC3339)
			reason = e.CloseReason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.SessionID, e.Identity.Subject, e.OpenedAt.Format(time.RFC3339), closed, reason)
	}
	return tw.Flush()
}
