package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"anvil/internal/metadata"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] <image>",
	Short: "Inspect a packed metadata image",
	Long:  "Inspect a packed metadata image: table row counts, heap sizes and the body stream.",
	Args:  cobra.ExactArgs(1),
	RunE:  inspectExecution,
}

func init() {
	inspectCmd.Flags().String("report", "", "write a msgpack report to the given path")
	inspectCmd.Flags().Bool("all", false, "include empty tables in the listing")
}

// imageReport is the serializable summary of one inspected image.
type imageReport struct {
	ModuleName    string            `msgpack:"module_name"`
	FormatVersion uint16            `msgpack:"format_version"`
	Tables        map[string]uint32 `msgpack:"tables"`
	StringHeap    int               `msgpack:"string_heap"`
	BlobHeap      int               `msgpack:"blob_heap"`
	UserStrings   int               `msgpack:"user_strings"`
	BodyStream    int               `msgpack:"body_stream"`
}

func inspectExecution(cmd *cobra.Command, args []string) error {
	reportPath, err := cmd.Flags().GetString("report")
	if err != nil {
		return err
	}
	showAll, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}
	if err := applyColorMode(cmd); err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	img, err := metadata.ReadImage(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	heading := color.New(color.FgCyan, color.Bold)
	fmt.Fprintf(out, "%s %s (format v%d)\n", heading.Sprint("module"), img.ModuleName, img.FormatVersion)
	for _, table := range metadata.TableOrder() {
		count := img.Counts[table]
		if count == 0 && !showAll {
			continue
		}
		fmt.Fprintf(out, "  %-24s %6d\n", table.String(), count)
	}
	fmt.Fprintf(out, "%s strings=%d blobs=%d user-strings=%d bodies=%d\n",
		heading.Sprint("heaps"),
		len(img.StringHeap), len(img.BlobHeap), len(img.UserStringHeap), len(img.Bodies))

	if reportPath != "" {
		report := imageReport{
			ModuleName:    img.ModuleName,
			FormatVersion: img.FormatVersion,
			Tables:        make(map[string]uint32, len(img.Counts)),
			StringHeap:    len(img.StringHeap),
			BlobHeap:      len(img.BlobHeap),
			UserStrings:   len(img.UserStringHeap),
			BodyStream:    len(img.Bodies),
		}
		for table, count := range img.Counts {
			if count > 0 {
				report.Tables[table.String()] = count
			}
		}
		encoded, err := msgpack.Marshal(&report)
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		if err := os.WriteFile(reportPath, encoded, 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}
