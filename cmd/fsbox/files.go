package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nuln/fsbox"
)

const defaultText = "Put some text here or just use this text"

// streamChunk is the write size used by "write --stream".
const streamChunk = 4096

func (a *app) writeCmd() *cobra.Command {
	var managed, stream bool

	cmd := &cobra.Command{
		Use:   "write [ADDRESS] [TEXT]",
		Short: "Write text to an object",
		Long: `Write TEXT (or stdin when TEXT is "-") to ADDRESS.

Without ADDRESS the object goes to the default scheme under a generated
name; an ADDRESS ending in "/" picks a generated name in that directory.
Managed writes never overwrite: a free "name-N.ext" variant is chosen
and a record is created. Unmanaged writes replace existing objects.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if managed && stream {
				return errors.New("--managed and --stream are mutually exclusive")
			}

			var address string
			if len(args) > 0 {
				address = args[0]
			}
			text := defaultText
			if len(args) > 1 {
				text = args[1]
			}
			var src io.Reader = strings.NewReader(text)
			if text == "-" {
				src = cmd.InOrStdin()
			}

			ctx := cmd.Context()
			store := a.stack.Store
			out := cmd.OutOrStdout()

			switch {
			case managed:
				data, err := io.ReadAll(src)
				if err != nil {
					return err
				}
				res, err := store.WriteManaged(ctx, address, data)
				if err != nil {
					return err
				}
				a.rememberFile(res.Address)
				if u, ok := store.ExternalURL(ctx, res.Address); ok {
					fmt.Fprintf(out, "Saved managed file %s (record %s), accessible at %s\n", res.Address, res.RecordID, u)
				} else {
					fmt.Fprintf(out, "Saved managed file %s (record %s), no URL since this scheme has no external address\n", res.Address, res.RecordID)
				}
			case stream:
				final, err := store.WriteUnmanagedStream(ctx, address, chunked(src, streamChunk))
				if err != nil {
					return err
				}
				a.rememberFile(final)
				fmt.Fprintf(out, "Streamed file to %s\n", final)
			default:
				data, err := io.ReadAll(src)
				if err != nil {
					return err
				}
				final, err := store.WriteUnmanaged(ctx, address, data)
				if err != nil {
					return err
				}
				a.rememberFile(final)
				fmt.Fprintf(out, "Saved file as %s\n", final)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&managed, "managed", "m", false, "track the object with a record")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the content instead of buffering it")
	return cmd
}

// chunkReader hands out at most size bytes per Read.
type chunkReader struct {
	r    io.Reader
	size int
}

func chunked(r io.Reader, size int) io.Reader {
	return &chunkReader{r: r, size: size}
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.size {
		p = p[:c.size]
	}
	return c.r.Read(p)
}

func (a *app) readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read [ADDRESS]",
		Short: "Print the content of an object",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := a.fileArg(args)
			data, err := a.stack.Store.Read(cmd.Context(), address)
			if err != nil {
				return err
			}
			a.rememberFile(address)
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func (a *app) mirrorCmd() *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "mirror [SOURCE]",
		Short: "Copy an object into another scheme under a safe name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := a.fileArg(args)
			final, err := a.stack.Store.ReadAndMirror(cmd.Context(), source, to)
			if err != nil {
				return err
			}
			a.rememberFile(final)
			fmt.Fprintf(cmd.OutOrStdout(), "Copied %s to %s\n", source, final)
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "destination scheme (default: the default scheme)")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm [ADDRESS]",
		Aliases: []string{"delete"},
		Short:   "Delete an object, managed or not",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := a.fileArg(args)
			outcome, err := a.stack.Store.Delete(cmd.Context(), address)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s file %s\n", outcome, address)
			return nil
		},
	}
}

func (a *app) existsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists [ADDRESS]",
		Short: "Report whether an object exists",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := a.fileArg(args)
			if a.stack.Store.Exists(cmd.Context(), address) {
				fmt.Fprintf(cmd.OutOrStdout(), "File %s exists\n", address)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "File %s does not exist\n", address)
			}
			return nil
		},
	}
}

func (a *app) urlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url [ADDRESS]",
		Short: "Print the external URL of an object",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := a.fileArg(args)
			u, ok := a.stack.Store.ExternalURL(cmd.Context(), address)
			if !ok {
				return fmt.Errorf("no external URL for %s", address)
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [DIRECTORY]",
		Short: "List objects below a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.dirArg(args)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			err := a.stack.Store.Walk(cmd.Context(), dir, func(address string, info *fsbox.EntryInfo) error {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", address, info.Size, info.ModTime.Format(time.RFC3339))
				return nil
			})
			if err != nil {
				return err
			}
			return tw.Flush()
		},
	}
}

func (a *app) recordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "List managed records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.stack.Store.Records(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tADDRESS\tSIZE\tCREATED")
			for _, rec := range records {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", rec.ID, rec.Address, rec.Size, rec.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}
