package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"scenecast/internal/api"
	"scenecast/internal/jobstore"
	"scenecast/internal/pipeline"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"job"},
		Short:   "Inspect and manage generation jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCreateCommand(ctx))
	jobsCmd.AddCommand(newJobsUpdateCommand(ctx))
	jobsCmd.AddCommand(newJobsRemoveCommand(ctx))
	jobsCmd.AddCommand(newJobsPurgeCommand(ctx))
	jobsCmd.AddCommand(newJobsForceCommand(ctx))
	jobsCmd.AddCommand(newJobsImportCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var offline bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}

			var list api.JobList
			if offline {
				err = ctx.withOfflineStore(func(store *jobstore.Store) error {
					var jobs []*jobstore.Job
					var err error
					if len(statuses) > 0 {
						jobs, err = store.ListByStatus(cmd.Context(), statuses...)
					} else {
						jobs, _, err = store.List(cmd.Context())
					}
					list = api.JobList{Jobs: jobs, Total: len(jobs)}
					return err
				})
			} else {
				err = ctx.withClient(func(client *api.Client) error {
					var err error
					list, err = client.ListJobs(cmd.Context(), statuses...)
					return err
				})
			}
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, list)
			}
			printTable(cmd.OutOrStdout(), "No jobs", jobHeaders, buildJobRows(list.Jobs), jobAligns)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (queued, processing, completed, error)")
	cmd.Flags().BoolVar(&offline, "offline", false, "Read the job store directly instead of asking the daemon")
	addJSONFlag(cmd, &jsonOutput)
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job with its steps and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				renderJob(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &jsonOutput)
	return cmd
}

func renderJob(w io.Writer, job *jobstore.Job) {
	fmt.Fprintf(w, "%s  %s\n", job.ID, job.Title)
	fmt.Fprintf(w, "Status:   %s (%d%%)\n", job.Status, job.Progress)
	fmt.Fprintf(w, "Step:     %s\n", job.CurrentStep)
	fmt.Fprintf(w, "Created:  %s\n", formatTimestamp(job.CreatedAt))
	fmt.Fprintf(w, "Updated:  %s\n", formatTimestamp(job.UpdatedAt))
	if job.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", job.Error)
	}
	fmt.Fprintln(w)
	printTable(w, "No steps", []string{"Step", "Status", "At"}, buildStepRows(job.Steps), nil)
	if len(job.Metadata) > 0 {
		fmt.Fprintln(w)
		printTable(w, "", []string{"Key", "Value"}, buildMetadataRows(job.Metadata), nil)
	}
}

func newJobsCreateCommand(ctx *commandContext) *cobra.Command {
	var req pipeline.Request
	cmd := &cobra.Command{
		Use:   "create --topic <topic>",
		Short: "Submit a new generation job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.CreateJob(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s queued (%s)\n", job.ID, job.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Topic, "topic", "", "What the video is about")
	cmd.Flags().StringVar(&req.Title, "title", "", "Display title (defaults to the topic)")
	cmd.Flags().StringVar(&req.ID, "id", "", "Job id (generated when empty)")
	cmd.Flags().StringVar(&req.Style, "style", "", "Visual and narrative style hint")
	cmd.Flags().IntVar(&req.SceneCount, "scenes", 0, "Requested scene count (provider default when 0)")
	cmd.Flags().StringVar(&req.Voice, "voice", "", "Narration voice (providers.voice when empty)")
	cmd.Flags().StringVar(&req.Language, "language", "", "Narration language (providers.language when empty)")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func newJobsUpdateCommand(ctx *commandContext) *cobra.Command {
	var data string
	var title, status, step, errMsg string
	var progress int

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Merge fields into an existing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := jobstore.Patch{}
			if strings.TrimSpace(data) != "" {
				decoded, err := jobstore.DecodePatch([]byte(data))
				if err != nil {
					return err
				}
				patch = decoded
			}
			patch.ID = args[0]

			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = jobstore.String(title)
			}
			if flags.Changed("status") {
				patch.Status = jobstore.StatusPtr(jobstore.Status(status))
			}
			if flags.Changed("progress") {
				patch.Progress = jobstore.Int(progress)
			}
			if flags.Changed("step") {
				patch.CurrentStep = jobstore.String(step)
			}
			if flags.Changed("error") {
				patch.Error = jobstore.String(errMsg)
			}

			return ctx.withClient(func(client *api.Client) error {
				job, err := client.UpdateJob(cmd.Context(), patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s updated: %s (%d%%)\n", job.ID, job.Status, job.Progress)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "JSON object to merge into the job")
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&status, "status", "", "New status")
	cmd.Flags().IntVar(&progress, "progress", 0, "New progress (0-100)")
	cmd.Flags().StringVar(&step, "step", "", "New current step label")
	cmd.Flags().StringVar(&errMsg, "error", "", "New error message")
	return cmd
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"remove"},
		Short:   "Delete jobs by id",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				var errs []error
				for _, id := range args {
					if err := client.DeleteJob(cmd.Context(), id); err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", id, err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s removed\n", id)
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newJobsPurgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove every completed job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				removed, err := client.PurgeCompleted(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d completed job(s)\n", removed)
				return nil
			})
		},
	}
}

func newJobsForceCommand(ctx *commandContext) *cobra.Command {
	var preset, status, step, errMsg string
	var progress int

	cmd := &cobra.Command{
		Use:   "force <id>",
		Short: "Administratively override a job (requires workflow.allow_admin_overrides)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			override := pipeline.Override{Preset: strings.TrimSpace(preset)}
			flags := cmd.Flags()
			if flags.Changed("status") {
				override.Status = jobstore.StatusPtr(jobstore.Status(status))
			}
			if flags.Changed("progress") {
				override.Progress = jobstore.Int(progress)
			}
			if flags.Changed("step") {
				override.CurrentStep = jobstore.String(step)
			}
			if flags.Changed("error") {
				override.Error = jobstore.String(errMsg)
			}
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.ForceJob(cmd.Context(), args[0], override)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s forced to %s (%d%%)\n", job.ID, job.Status, job.Progress)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "", "Preset to apply first (processing, completed)")
	cmd.Flags().StringVar(&status, "status", "", "Status to set")
	cmd.Flags().IntVar(&progress, "progress", 0, "Progress to set")
	cmd.Flags().StringVar(&step, "step", "", "Current step label to set")
	cmd.Flags().StringVar(&errMsg, "error", "", "Error message to set")
	return cmd
}

func newJobsImportCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a legacy JSON tracking file into the job store (daemon must be stopped)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			return ctx.withOfflineStore(func(store *jobstore.Store) error {
				result, err := store.ImportJSON(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d job(s), skipped %d\n", result.Imported, result.Skipped)
				for _, msg := range result.Errors {
					fmt.Fprintf(out, "  %s\n", msg)
				}
				return nil
			})
		},
	}
	addJSONFlag(cmd, &jsonOutput)
	return cmd
}

func parseStatuses(values []string) ([]jobstore.Status, error) {
	var statuses []jobstore.Status
	for _, raw := range values {
		status := jobstore.Status(strings.ToLower(strings.TrimSpace(raw)))
		if status == "" {
			continue
		}
		if !status.Valid() {
			return nil, fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
