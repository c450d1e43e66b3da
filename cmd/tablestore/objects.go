package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const defaultPartSize = 8 << 20

// parsePath parses an object path argument; "" and "/" name the table root.
func parsePath(arg string) (storage.Path, error) {
	p, err := storage.ParsePath(strings.Trim(arg, "/"))
	if err != nil {
		return storage.Path{}, fmt.Errorf("invalid path %q: %w", arg, err)
	}
	return p, nil
}

// parseRange parses a byte range: "a-b" (half-open), "a-" or "-n" (last n bytes).
func parseRange(s string) (storage.GetRange, error) {
	if s == "" {
		return storage.GetRange{}, nil
	}
	first, last, ok := strings.Cut(s, "-")
	if !ok || (first == "" && last == "") {
		return storage.GetRange{}, fmt.Errorf("invalid range %q: expected a-b, a- or -n", s)
	}

	parse := func(v string) (int64, error) {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid range %q: bad offset %q", s, v)
		}
		return n, nil
	}

	switch {
	case first == "":
		n, err := parse(last)
		if err != nil {
			return storage.GetRange{}, err
		}
		return storage.Suffix(n), nil
	case last == "":
		start, err := parse(first)
		if err != nil {
			return storage.GetRange{}, err
		}
		return storage.Offset(start), nil
	default:
		start, err := parse(first)
		if err != nil {
			return storage.GetRange{}, err
		}
		end, err := parse(last)
		if err != nil {
			return storage.GetRange{}, err
		}
		return storage.Bounded(start, end), nil
	}
}

func printMeta(w io.Writer, meta storage.ObjectMeta) {
	fmt.Fprintf(w, "%12d  %s  %s\n", meta.Size, meta.LastModified.UTC().Format(time.RFC3339), meta.Location)
}

// ============================================================================
// ls / stat / cat
// ============================================================================

func newLsCmd(a *app) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "ls <table> [prefix]",
		Short: "List objects below a prefix",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix storage.Path
			if len(args) == 2 {
				p, err := parsePath(args[1])
				if err != nil {
					return err
				}
				prefix = p
			}

			return a.withStore(cmd, args[0], func(ctx context.Context, store storage.ObjectStore) error {
				out := cmd.OutOrStdout()
				if recursive {
					for meta, err := range store.List(ctx, prefix) {
						if err != nil {
							return err
						}
						printMeta(out, meta)
					}
					return nil
				}

				result, err := store.ListWithDelimiter(ctx, prefix)
				if err != nil {
					return err
				}
				for _, dir := range result.CommonPrefixes {
					fmt.Fprintf(out, "%12s  %20s  %s/\n", "PRE", "", dir)
				}
				for _, meta := range result.Objects {
					printMeta(out, meta)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "list every object below the prefix")
	return cmd
}

func newStatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <table> <path>",
		Short: "Show object metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := parsePath(args[1])
			if err != nil {
				return err
			}
			return a.withStore(cmd, args[0], func(ctx context.Context, store storage.ObjectStore) error {
				meta, err := store.Head(ctx, location)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Location:      %s\n", meta.Location)
				fmt.Fprintf(out, "Size:          %d\n", meta.Size)
				fmt.Fprintf(out, "Last-Modified: %s\n", meta.LastModified.UTC().Format(time.RFC3339))
				if meta.ETag != "" {
					fmt.Fprintf(out, "ETag:          %s\n", meta.ETag)
				}
				if meta.Version != "" {
					fmt.Fprintf(out, "Version:       %s\n", meta.Version)
				}
				return nil
			})
		},
	}
}

func newCatCmd(a *app) *cobra.Command {
	var (
		byteRange string
		ifMatch   string
	)

	cmd := &cobra.Command{
		Use:   "cat <table> <path>",
		Short: "Write an object (or a byte range of it) to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := parsePath(args[1])
			if err != nil {
				return err
			}
			r, err := parseRange(byteRange)
			if err != nil {
				return err
			}
			return a.withStore(cmd, args[0], func(ctx context.Context, store storage.ObjectStore) error {
				result, err := store.GetOpts(ctx, location, storage.GetOptions{Range: r, IfMatch: ifMatch})
				if err != nil {
					return err
				}
				defer result.Body.Close()
				_, err = io.Copy(cmd.OutOrStdout(), result.Body)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&byteRange, "range", "", "byte range: a-b (half-open), a- or -n")
	cmd.Flags().StringVar(&ifMatch, "if-match", "", "only read if the object ETag matches")
	return cmd
}

// ============================================================================
// put
// ============================================================================

type putFlags struct {
	ifNotExists bool
	ifMatch     string
	multipart   bool
	partSize    int64
	progress    bool
}

func newPutCmd(a *app) *cobra.Command {
	var flags putFlags

	cmd := &cobra.Command{
		Use:   "put <table> <path> <file|->",
		Short: "Upload a local file (or stdin) as an object",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := parsePath(args[1])
			if err != nil {
				return err
			}
			if flags.multipart && (flags.ifNotExists || flags.ifMatch != "") {
				return errors.New("--multipart cannot be combined with conditional writes")
			}
			if flags.ifNotExists && flags.ifMatch != "" {
				return errors.New("--if-not-exists and --if-match are mutually exclusive")
			}
			if flags.partSize <= 0 {
				return fmt.Errorf("invalid part size %d", flags.partSize)
			}

			src, size, err := openSource(cmd, args[2])
			if err != nil {
				return err
			}
			defer src.Close()

			var reader io.Reader = src
			if flags.progress {
				bar := progressbar.NewOptions64(size,
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("uploading "+location.String()),
					progressbar.OptionShowBytes(true),
					progressbar.OptionThrottle(65*time.Millisecond),
					progressbar.OptionClearOnFinish(),
				)
				defer func() { _ = bar.Finish() }()
				reader = io.TeeReader(src, bar)
			}

			return a.withStore(cmd, args[0], func(ctx context.Context, store storage.ObjectStore) error {
				var (
					result storage.PutResult
					err    error
				)
				if flags.multipart {
					result, err = putMultipart(ctx, store, location, reader, flags.partSize)
				} else {
					result, err = putSingle(ctx, store, location, reader, flags)
				}
				if err != nil {
					return err
				}
				if result.ETag != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\n", result.ETag)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&flags.ifNotExists, "if-not-exists", false, "fail if the object already exists")
	cmd.Flags().StringVar(&flags.ifMatch, "if-match", "", "only overwrite the object with this ETag")
	cmd.Flags().BoolVar(&flags.multipart, "multipart", false, "upload in parts")
	cmd.Flags().Int64Var(&flags.partSize, "part-size", defaultPartSize, "multipart part size in bytes")
	cmd.Flags().BoolVar(&flags.progress, "progress", false, "show a progress bar on stderr")
	return cmd
}

// openSource opens a local file, or stdin for "-". size is -1 when unknown.
func openSource(cmd *cobra.Command, name string) (io.ReadCloser, int64, error) {
	if name == "-" {
		return io.NopCloser(cmd.InOrStdin()), -1, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func putSingle(ctx context.Context, store storage.ObjectStore, location storage.Path, r io.Reader, flags putFlags) (storage.PutResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.PutResult{}, err
	}
	opts := storage.PutOptions{Mode: storage.PutModeOverwrite}
	switch {
	case flags.ifNotExists:
		opts.Mode = storage.PutModeCreate
	case flags.ifMatch != "":
		opts = storage.PutOptions{Mode: storage.PutModeUpdate, ETag: flags.ifMatch}
	}
	return store.PutOpts(ctx, location, data, opts)
}

func putMultipart(ctx context.Context, store storage.ObjectStore, location storage.Path, r io.Reader, partSize int64) (storage.PutResult, error) {
	upload, err := store.PutMultipartOpts(ctx, location, storage.PutMultipartOptions{})
	if err != nil {
		return storage.PutResult{}, err
	}

	buf := make([]byte, partSize)
	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			if err := upload.PutPart(ctx, bytes.Clone(buf[:n])); err != nil {
				_ = upload.Abort(ctx)
				return storage.PutResult{}, err
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			_ = upload.Abort(ctx)
			return storage.PutResult{}, readErr
		}
	}
	return upload.Complete(ctx)
}

// ============================================================================
// rm / cp / mv
// ============================================================================

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <table> <path>...",
		Short: "Delete objects",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			locations := make([]storage.Path, 0, len(args)-1)
			for _, arg := range args[1:] {
				p, err := parsePath(arg)
				if err != nil {
					return err
				}
				locations = append(locations, p)
			}
			return a.withStore(cmd, args[0], func(ctx context.Context, store storage.ObjectStore) error {
				for _, location := range locations {
					if err := store.Delete(ctx, location); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

// parsePair parses the source and destination arguments of cp and mv.
func parsePair(from, to string) (storage.Path, storage.Path, error) {
	src, err := parsePath(from)
	if err != nil {
		return storage.Path{}, storage.Path{}, err
	}
	dst, err := parsePath(to)
	if err != nil {
		return storage.Path{}, storage.Path{}, err
	}
	return src, dst, nil
}

func newCpCmd(a *app) *cobra.Command {
	var ifNotExists bool

	cmd := &cobra.Command{
		Use:   "cp <table> <from> <to>",
		Short: "Copy an object within a table",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := parsePair(args[1], args[2])
			if err != nil {
				return err
			}
			return a.withStore(cmd, args[0], func(ctx context.Context, store storage.ObjectStore) error {
				if ifNotExists {
					return store.CopyIfNotExists(ctx, from, to)
				}
				return store.Copy(ctx, from, to)
			})
		},
	}

	cmd.Flags().BoolVar(&ifNotExists, "if-not-exists", false, "fail if the destination already exists")
	return cmd
}

func newMvCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <table> <from> <to>",
		Short: "Rename an object; fails if the destination exists",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := parsePair(args[1], args[2])
			if err != nil {
				return err
			}
			return a.withStore(cmd, args[0], func(ctx context.Context, store storage.ObjectStore) error {
				return store.RenameIfNotExists(ctx, from, to)
			})
		},
	}
}
