// Package main implements the anvil CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"anvil/internal/moddesc"
	"anvil/internal/observ"
)

const noDescriptorMessage = "no anvil.toml found\nplease specify the descriptor explicitly, e.g.:\n  anvil build path/to/anvil.toml"

var buildCmd = &cobra.Command{
	Use:   "build [flags] [descriptor]",
	Short: "Build a metadata image",
	Long:  "Build a metadata image from an anvil.toml module description.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  buildExecution,
}

func init() {
	buildCmd.Flags().StringP("output", "o", "", "output image path (default <module>.anvl next to the descriptor)")
	buildCmd.Flags().String("timings-out", "", "write a msgpack timing report to this file")
}

func buildExecution(cmd *cobra.Command, args []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	timingsPath, err := cmd.Flags().GetString("timings-out")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}
	if err := applyColorMode(cmd); err != nil {
		return err
	}

	descPath, err := locateDescriptor(args)
	if err != nil {
		return err
	}
	desc, err := moddesc.Load(descPath)
	if err != nil {
		return err
	}

	timer := observ.NewTimer()
	result, err := moddesc.Build(desc, timer)
	if err != nil {
		return err
	}

	if outputPath == "" {
		outputPath = filepath.Join(desc.Root, desc.Config.Module.Name+".anvl")
	}
	if err := os.WriteFile(outputPath, result.Image, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}

	if showTimings {
		fmt.Fprint(cmd.OutOrStdout(), timer.Summary())
	}
	if timingsPath != "" {
		encoded, err := observ.EncodeReport(timer.Report())
		if err != nil {
			return fmt.Errorf("failed to encode timing report: %w", err)
		}
		if err := os.WriteFile(timingsPath, encoded, 0o644); err != nil {
			return fmt.Errorf("failed to write timing report: %w", err)
		}
	}
	if !quiet {
		packed := color.New(color.FgGreen, color.Bold).Sprint("packed")
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d bytes)\n", packed, formatPathForOutput(desc.Root, outputPath), len(result.Image))
	}
	return nil
}

func locateDescriptor(args []string) (string, error) {
	if len(args) > 0 {
		path := args[0]
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("failed to stat %q: %w", path, err)
		}
		if info.IsDir() {
			candidate := filepath.Join(path, moddesc.DescriptorFile)
			if _, err := os.Stat(candidate); err != nil {
				return "", fmt.Errorf("no %s in %s", moddesc.DescriptorFile, path)
			}
			return candidate, nil
		}
		return path, nil
	}
	path, found, err := moddesc.Find(".")
	if err != nil {
		return "", err
	}
	if !found {
		return "", errors.New(noDescriptorMessage)
	}
	return path, nil
}

// applyColorMode maps the persistent --color flag onto the global color
// switch, defaulting to terminal detection.
func applyColorMode(cmd *cobra.Command) error {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout)
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
	return nil
}

func formatPathForOutput(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	if strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
