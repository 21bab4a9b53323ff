package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var backupOut string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a zip of every submission, the log and the hosted sites",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		if backupOut == "" {
			backupOut = fmt.Sprintf("vr-projects-backup-%d.zip", time.Now().UnixMilli())
		}
		f, err := os.Create(backupOut)
		if err != nil {
			return err
		}
		err = rt.Submissions.Backup(ctx, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(backupOut)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", backupOut)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup.zip>",
	Short: "Restore submissions and hosted sites from a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		report, err := rt.Submissions.Restore(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %d archives, %d submissions, %d hosted sites\n",
			report.Archives, report.Submissions, report.HostedSites)
		return nil
	},
}

var submissionsCmd = &cobra.Command{
	Use:   "submissions",
	Short: "List submitted projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		subs, err := rt.Submissions.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tSTUDENT\tPROJECT\tSUBMITTED\tHOSTED")
		for _, s := range subs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				s.FileName, s.StudentName, s.ProjectName, s.SubmittedAt.Format(time.RFC3339), s.HostedPath)
		}
		return tw.Flush()
	},
}

func init() {
	backupCmd.Flags().StringVarP(&backupOut, "out", "o", "", "zip file to write (default vr-projects-backup-<ms>.zip)")
}
