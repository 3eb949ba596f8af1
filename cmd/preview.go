package main

import (
	"fmt"

	"github.com/dpe27/restpoll/internal/job"
	"github.com/dpe27/restpoll/internal/preview"
	"github.com/spf13/cobra"
)

var previewFile string

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Send the request of a task once and print the response",
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := job.LoadJobFile(previewFile)
		if err != nil {
			return err
		}
		task := j.Task()

		resp, err := newExecutor(nil).Execute(cmd.Context(), task.Endpoint, task.Request)
		if err != nil {
			return err
		}
		text, err := preview.Render(resp)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	},
}

func init() {
	previewCmd.Flags().StringVarP(&previewFile, "file", "f", "", "task definition yaml")
	_ = previewCmd.MarkFlagRequired("file")
}
