package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"lumina/internal/api"
	"lumina/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the processing queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				jobs, err := client.ListQueue(statusFilters)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.Type,
						displayStatus(job.Status),
						job.Stage,
						fmt.Sprintf("%d/%d", job.Attempts, job.MaxAttempts),
						job.ErrorMessage,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Type", "Status", "Stage", "Attempts", "Error"}, rows, 0))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (pending, in-stages, completed, failed)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue job including its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withClient(func(client *apiClient) error {
				job, err := client.GetJob(id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderSectionHeader(fmt.Sprintf("Job %d", job.ID), colorize))
				fmt.Fprintln(out, renderStatusLine("Type", statusInfo, job.Type, colorize))
				fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job.Status), displayStatus(job.Status), colorize))
				if job.Stage != "" {
					fmt.Fprintln(out, renderStatusLine("Stage", statusInfo, job.Stage, colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Attempts", statusInfo, fmt.Sprintf("%d/%d", job.Attempts, job.MaxAttempts), colorize))
				if job.ErrorMessage != "" {
					fmt.Fprintln(out, renderStatusLine("Error", statusError, job.ErrorMessage, colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Created", statusInfo, job.CreatedAt, colorize))
				if job.CompletedAt != "" {
					fmt.Fprintln(out, renderStatusLine("Completed", statusInfo, job.CompletedAt, colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Payload", statusInfo, string(job.Payload), colorize))
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Retry failed jobs (all failed jobs when no IDs are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid job id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withClient(func(client *apiClient) error {
				affected, err := client.RetryFailed(ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d job(s)\n", affected)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue jobs, optionally limited to completed or failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				affected, err := client.ClearQueue(queue.Status(statusFlag), olderThan)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", affected)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Limit removal to one status (completed, failed)")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Prune only completed jobs that finished more than this long ago (e.g. 72h)")
	return cmd
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var priority int
	var livePhoto bool

	cmd := &cobra.Command{
		Use:   "add <storage-key>",
		Short: "Queue an uploaded file for processing",
		Long:  "Queues full pipeline processing for an uploaded original, or pairing for a live-photo companion video with --live-video.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				req := api.EnqueuePhotoRequest{StorageKey: args[0], Priority: priority}
				var job *api.QueueJob
				var err error
				if livePhoto {
					job, err = client.EnqueueLivePhotoVideo(req)
				} else {
					job, err = client.EnqueuePhoto(req)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %d (%s)\n", job.ID, job.Type)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 0, "Job priority (higher runs first)")
	cmd.Flags().BoolVar(&livePhoto, "live-video", false, "Treat the key as a live-photo companion video")
	return cmd
}

func newGeocodeCommand(ctx *commandContext) *cobra.Command {
	var priority int
	var lat, lon float64

	cmd := &cobra.Command{
		Use:   "geocode <photo-id>",
		Short: "Queue reverse geocoding for a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.EnqueueGeocodingRequest{PhotoID: args[0], Priority: priority}
			if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
				req.Latitude = &lat
				req.Longitude = &lon
			}
			return ctx.withClient(func(client *apiClient) error {
				job, err := client.EnqueueGeocoding(req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %d (%s)\n", job.ID, job.Type)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 0, "Job priority (higher runs first)")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Override latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Override longitude")
	return cmd
}

func jobStatusKind(status string) statusKind {
	switch queue.Status(status) {
	case queue.StatusCompleted:
		return statusOK
	case queue.StatusFailed:
		return statusError
	case queue.StatusInStages:
		return statusInfo
	default:
		return statusWarn
	}
}
