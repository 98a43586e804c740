package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dvloznov/budget-tracker/internal/gcsuploader"
	"github.com/dvloznov/budget-tracker/internal/pipeline"
)

var (
	importBank string
	uploadName string
)

var importCmd = &cobra.Command{
	Use:   "import SOURCE...",
	Short: "Import bank exports from local paths or gs:// URIs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		failed := 0
		for _, source := range args {
			header("Importing " + source)
			report, err := application.Importer.Import(ctx, pipeline.Request{
				UserID: userID,
				Source: source,
				Bank:   importBank,
			})
			if report.Inserted > 0 {
				application.Cache.Invalidate(userID)
			}
			printReport(report)
			if err != nil {
				printError(err.Error())
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d imports failed", failed, len(args))
		}
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload a bank export to the import bucket",
	Long:  `Upload a bank export to GCS_BUCKET so the API or the worker can import it by URI.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		if application.Storage == nil {
			return errors.New("GCS_BUCKET is not configured")
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		name := uploadName
		if name == "" {
			name = filepath.Base(args[0])
		}
		bucket := application.Config.GCSBucket
		object := gcsuploader.ImportObjectName(userID, name)
		if err := application.Storage.UploadFile(ctx, bucket, object, args[0]); err != nil {
			return err
		}
		printSuccess("Uploaded " + args[0] + " to " + gcsuploader.URI(bucket, object))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVarP(&importBank, "bank", "b", "", "Bank hint for column mapping (e.g. KBC, Belfius)")
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "Object file name (defaults to the local file name)")
}

func printReport(r pipeline.Report) {
	if r.Format != "" {
		printInfo("Format:      " + r.Format)
	}
	printInfo(fmt.Sprintf("Parsed:      %d", r.Parsed))
	printInfo(fmt.Sprintf("Duplicates:  %d", r.Duplicates))
	printInfo(fmt.Sprintf("Classified:  %d", r.Classified))
	if r.Enriched > 0 {
		printInfo(fmt.Sprintf("AI enriched: %d", r.Enriched))
	}
	if r.Conflicts > 0 {
		printWarning(fmt.Sprintf("Conflicts:   %d", r.Conflicts))
	}
	printSuccess(fmt.Sprintf("Inserted:    %d", r.Inserted))
	for _, w := range r.Warnings {
		printWarning(w)
	}
	for _, e := range r.Errors {
		printError(e)
	}
}
