package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/lcalzada-xor/connd/internal/core/domain"
)

// managerAPI is the part of the gRPC client the commands use.
type managerAPI interface {
	ListServices(ctx context.Context) ([]string, error)
	GetProperties(ctx context.Context, path string) (map[string]any, error)
	SetProperty(ctx context.Context, path, name string, value any) error
	Connect(ctx context.Context, path string) error
	Disconnect(ctx context.Context, path string) error
	Remove(ctx context.Context, path string) error
	Watch(ctx context.Context, fn func(domain.PropertyChange)) error
}

type commands struct {
	api     managerAPI
	out     io.Writer
	timeout time.Duration
}

func (c *commands) run(ctx context.Context, args []string) error {
	name, rest := args[0], args[1:]

	if name == "watch" {
		return c.api.Watch(ctx, func(change domain.PropertyChange) {
			fmt.Fprintf(c.out, "%s %s = %v\n", change.Path, change.Name, change.Value)
		})
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	switch name {
	case "list":
		paths, err := c.api.ListServices(ctx)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(c.out, p)
		}
		return nil

	case "show":
		path, err := arg(rest, 1)
		if err != nil {
			return err
		}
		props, err := c.api.GetProperties(ctx, path)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(c.out, "%-12s %v\n", k, props[k])
		}
		return nil

	case "connect", "disconnect", "remove":
		path, err := arg(rest, 1)
		if err != nil {
			return err
		}
		op := map[string]func(context.Context, string) error{
			"connect":    c.api.Connect,
			"disconnect": c.api.Disconnect,
			"remove":     c.api.Remove,
		}[name]
		return op(ctx, path)

	case "passphrase":
		if len(rest) != 2 {
			return fmt.Errorf("%w: passphrase <path> <text>", domain.ErrInvalidArguments)
		}
		return c.api.SetProperty(ctx, rest[0], domain.PropPassphrase, rest[1])
	}

	return fmt.Errorf("%w: unknown command %q", domain.ErrInvalidArguments, name)
}

func arg(rest []string, n int) (string, error) {
	if len(rest) != n {
		return "", fmt.Errorf("%w: expected %d argument(s)", domain.ErrInvalidArguments, n)
	}
	return rest[0], nil
}
