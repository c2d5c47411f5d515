package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/slidegen/internal/config"
	"github.com/dgallion1/slidegen/internal/slidestream"
)

type replayOptions struct {
	chunk  int
	render bool
	pace   bool
}

func replayCmd() *cobra.Command {
	var opts replayOptions
	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Feed a recorded completion through the slide parser",
		Long: `Replay reads raw completion text from file (or stdin when file is
omitted or "-") and splits it into deltas of --chunk bytes. Events are
printed as server-sent event frames, or with --render the finished slides
are rendered as Markdown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.chunk <= 0 {
				return fmt.Errorf("--chunk must be positive")
			}
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runReplay(ctx, in, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.chunk, "chunk", 64, "delta size in bytes")
	cmd.Flags().BoolVar(&opts.render, "render", false, "render finished slides as Markdown")
	cmd.Flags().BoolVar(&opts.pace, "pace", false, "apply the configured character and slide delays")
	return cmd
}

func runReplay(ctx context.Context, in io.Reader, out io.Writer, opts replayOptions) error {
	var pacer slidestream.Pacer = slidestream.NoPacer{}
	if opts.pace {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		pacer = slidestream.SleepPacer{CharacterDelay: cfg.CharacterDelay, SlideDelay: cfg.SlideDelay}
	}

	sink := slidestream.SinkFunc(func(_ context.Context, ev slidestream.Event) error {
		if opts.render {
			return nil
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "data: %s\n\n", data)
		return err
	})

	res, err := slidestream.Run(ctx, slidestream.NewReaderSource(in, opts.chunk), sink, slidestream.Options{Pacer: pacer})
	if err != nil {
		return err
	}
	if opts.render {
		return renderSlides(out, res.Slides)
	}
	return nil
}
