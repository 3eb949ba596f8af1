package main

import (
	"github.com/dpe27/restpoll/internal/endpoint"
	"github.com/dpe27/restpoll/internal/job"
	"github.com/dpe27/restpoll/pkg/log"
	"github.com/spf13/cobra"
)

var validateFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the endpoint of a task is valid and reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := job.LoadJobFile(validateFile)
		if err != nil {
			return err
		}
		if err := endpoint.Probe(cmd.Context(), newExecutor(nil), j.Endpoint, log.With()); err != nil {
			return err
		}
		cmd.Println("REST Endpoint is valid.")
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "task definition yaml")
	_ = validateCmd.MarkFlagRequired("file")
}
