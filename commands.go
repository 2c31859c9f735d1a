package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/handlers/api"
	"github.com/nijaru/yt-sentiment/models"
	"github.com/nijaru/yt-sentiment/pipeline"
	"github.com/nijaru/yt-sentiment/repository"
	"github.com/nijaru/yt-sentiment/validation"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := buildServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			serverOpts := []api.ServerOption{
				api.WithLogger(svc.log),
				api.WithServices(svc.orchestrator, svc.repo),
				api.WithMetrics(svc.counters),
			}
			if svc.spaces != nil {
				serverOpts = append(serverOpts, api.WithArchive(svc.spaces))
			}
			server := api.NewServer(svc.cfg, serverOpts...)

			errCh := make(chan error, 1)
			go func() {
				svc.log.WithField("port", svc.cfg.ServerPort).Info("Server starting")
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			svc.log.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), svc.cfg.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				svc.log.WithError(err).Error("Server shutdown error")
				return err
			}
			return nil
		},
	}
}

func newAnalyzeCommand() *cobra.Command {
	var (
		opts    pipeline.Options
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <video-id|url>",
		Short: "Run the pipeline for one video and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID, err := validation.ExtractVideoID(args[0])
			if err != nil {
				return err
			}
			if opts.Language != "" {
				if opts.Language, err = validation.ValidateLanguage(opts.Language); err != nil {
					return err
				}
			}

			svc, err := buildServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.orchestrator.Run(cmd.Context(), videoID, opts)
			if err != nil {
				var appErr *errors.AppError
				if errors.As(err, &appErr) && len(appErr.Trail) > 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), errors.Trail(appErr.Trail))
				}
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Language, "lang", "", "preferred caption language")
	cmd.Flags().BoolVar(&opts.GeneralOnly, "general", false, "summarize without bias analysis")
	cmd.Flags().BoolVar(&opts.Preview, "preview", false, "write to the preview table")
	cmd.Flags().Float64Var(&opts.MaxCostUSD, "max-cost", 0, "audio transcription budget in USD")
	cmd.Flags().Float64Var(&opts.MaxDurationMinutes, "max-minutes", 0, "longest video to transcribe from audio")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the raw result as JSON")
	return cmd
}

func newListCommand() *cobra.Command {
	var (
		limit   int
		preview bool
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored analyses, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			target := repository.TargetLive
			if preview {
				target = repository.TargetPreview
			}
			results, err := svc.repo.List(cmd.Context(), target, limit)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No analyses stored")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), listTable(results))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	cmd.Flags().BoolVar(&preview, "preview", false, "read the preview table")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, result *models.PipelineResult) {
	fmt.Fprintf(w, "%s\n%s\n\n", result.Metadata.Title, result.URL)
	fmt.Fprint(w, summaryTable(result))

	if len(result.BiasDetection.BiasesDetected) > 0 {
		fmt.Fprintln(w)
		fmt.Fprint(w, biasTable(result.BiasDetection.BiasesDetected))
	}
	if len(result.BiasDetection.UnknownLabels) > 0 {
		fmt.Fprintf(w, "\nUnrecognized bias labels: %s\n", strings.Join(result.BiasDetection.UnknownLabels, ", "))
	}
	if result.BiasAdjustment.Rationale != "" {
		fmt.Fprintf(w, "\n%s\n", result.BiasAdjustment.Rationale)
	}
	if result.Transcript.Error != "" {
		fmt.Fprintf(w, "\nTranscript: %s\n", result.Transcript.Error)
	}
}
