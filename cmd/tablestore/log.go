package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/marmos91/tablestore/internal/logger"
	"github.com/marmos91/tablestore/pkg/config"
	"github.com/marmos91/tablestore/pkg/logstore"
	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/spf13/cobra"
)

func newLogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Read and write the commit log of a table",
	}
	cmd.AddCommand(newLogLatestCmd(a), newLogShowCmd(a), newLogCommitCmd(a))
	return cmd
}

// withLogStore opens the log store of target, runs fn and closes the
// underlying object store.
func (a *app) withLogStore(cmd *cobra.Command, target string, fn func(ctx context.Context, ls logstore.LogStore) error) error {
	opts, err := a.overrides()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	ls, err := config.OpenLogStore(ctx, a.cfg, target, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.Close(ls.ObjectStore()); err != nil {
			logger.Warn("Failed to close %s: %v", ls.ObjectStore(), err)
		}
	}()
	return fn(ctx, ls)
}

func parseVersion(arg string) (int64, error) {
	v, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid commit version %q", arg)
	}
	return v, nil
}

func newLogLatestCmd(a *app) *cobra.Command {
	var from int64

	cmd := &cobra.Command{
		Use:   "latest <table>",
		Short: "Print the latest commit version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLogStore(cmd, args[0], func(ctx context.Context, ls logstore.LogStore) error {
				latest, err := ls.GetLatestVersion(ctx, from)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), latest)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&from, "from", 0, "ignore versions below this one")
	return cmd
}

func newLogShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <table> <version>",
		Short: "Print a commit entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			return a.withLogStore(cmd, args[0], func(ctx context.Context, ls logstore.LogStore) error {
				data, err := ls.ReadCommitEntry(ctx, version)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
}

func newLogCommitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "commit <table> <version> <file|->",
		Short: "Publish a commit entry; fails if the version exists",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			src, _, err := openSource(cmd, args[2])
			if err != nil {
				return err
			}
			defer src.Close()
			data, err := io.ReadAll(src)
			if err != nil {
				return err
			}

			return a.withLogStore(cmd, args[0], func(ctx context.Context, ls logstore.LogStore) error {
				if err := logstore.WriteCommit(ctx, ls, version, data); err != nil {
					return err
				}
				logger.Info("Committed version %d to %s", version, ls.RootURI())
				return nil
			})
		},
	}
}
