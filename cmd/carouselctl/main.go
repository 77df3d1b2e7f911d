package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the connection flags shared by every command.
type GlobalFlags struct {
	Server  string
	Timeout time.Duration
}

func (f *GlobalFlags) client() *APIClient {
	return NewAPIClient(strings.TrimRight(f.Server, "/"), f.Timeout)
}

func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "carouselctl",
		Short: "Control a running service carousel",
		Long: `carouselctl uploads chunks to a carousel server and drives its rotation.

Examples:
  carouselctl push services.arrow
  carouselctl push --replay replay.arrow
  carouselctl start
  carouselctl render 2`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.Server, "server", defaultServer, "carousel server base URL")
	root.PersistentFlags().DurationVar(&flags.Timeout, "timeout", defaultTimeout, "request timeout")

	root.AddCommand(
		createPushCommand(flags),
		createAnimateCommand(flags, "start", "Start the rotation"),
		createAnimateCommand(flags, "stop", "Stop the rotation"),
		createAnimateCommand(flags, "refresh", "Redraw the current service and arm the rotation if needed"),
		createStatusCommand(flags),
		createStateCommand(flags),
		createCountCommand(flags),
		createRenderCommand(flags),
		createClearCommand(flags),
	)
	return root
}

func createPushCommand(flags *GlobalFlags) *cobra.Command {
	var replay bool
	cmd := &cobra.Command{
		Use:   "push FILE",
		Short: "Upload an Arrow IPC chunk (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			c := flags.client()
			if replay {
				st, err := c.PushReplay(data)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "sent %s: %d services, job %q\n",
					humanize.Bytes(uint64(len(data))), len(st.Services), st.JobID)
				return err
			}
			res, err := c.PushChunk(data)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "sent %s: added %d, total %d\n",
				humanize.Bytes(uint64(len(data))), res.Added, res.Total)
			return err
		},
	}
	cmd.Flags().BoolVar(&replay, "replay", false, "replace or merge the whole replay instead of appending")
	return cmd
}

func createAnimateCommand(flags *GlobalFlags, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := flags.client().Animate(action)
			if err != nil {
				return err
			}
			return printAnimation(cmd.OutOrStdout(), st.Running, st.CurrentIndex)
		},
	}
}

func createStatusCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the rotation state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := flags.client().Animation()
			if err != nil {
				return err
			}
			return printAnimation(cmd.OutOrStdout(), st.Running, st.CurrentIndex)
		},
	}
}

func createStateCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the replay state as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := flags.client().Replay()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}

func createCountCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := flags.client().Count()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}
}

func createRenderCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "render INDEX",
		Short: "Draw the service at INDEX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			return flags.client().Render(i)
		},
	}
}

func createClearCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the canvas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.client().Clear()
		},
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func printAnimation(w io.Writer, running bool, index int) error {
	state := "stopped"
	if running {
		state = "running"
	}
	_, err := fmt.Fprintf(w, "%s at index %d\n", state, index)
	return err
}
