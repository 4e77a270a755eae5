// Package sitebuilder runs the external static-site generator that turns the
// documentation sources into a site directory.
package sitebuilder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/simplesurance/docpub/internal/logfields"
)

const loggerName = "site_builder"

// Builder invokes the site generator command with a per-variant
// configuration file.
// Builds run in strict mode, a build that produces warnings fails.
type Builder struct {
	command            string
	publicConfigFile   string
	insidersConfigFile string
	outputDir          string
	logger             *zap.Logger
}

func New(command, publicConfigFile, insidersConfigFile, outputDir string) *Builder {
	return &Builder{
		command:            command,
		publicConfigFile:   publicConfigFile,
		insidersConfigFile: insidersConfigFile,
		outputDir:          outputDir,
		logger:             zap.L().Named(loggerName),
	}
}

func (b *Builder) configFile(variant Variant) (string, error) {
	switch variant {
	case VariantPublic:
		return b.publicConfigFile, nil
	case VariantInsiders:
		return b.insidersConfigFile, nil
	default:
		return "", fmt.Errorf("unsupported build variant: %q", variant)
	}
}

// Build runs the generator for the given variant and returns the absolute
// path of the produced site directory.
// The directory is treated as an opaque artifact, beyond verifying that it
// exists its content is not inspected.
func (b *Builder) Build(ctx context.Context, variant Variant) (string, error) {
	configFile, err := b.configFile(variant)
	if err != nil {
		return "", err
	}

	b.logger.Info(
		"building documentation site",
		logfields.Event("site_build_started"),
		logfields.BuildVariant(string(variant)),
		zap.String("site.config_file", configFile),
		zap.String("site.output_dir", b.outputDir),
	)

	cmd := exec.CommandContext(ctx, b.command, "build", "-f", configFile, "--strict", "--site-dir", b.outputDir)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s build failed: %w", b.command, err)
	}

	absOutputDir, err := filepath.Abs(b.outputDir)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(absOutputDir); err != nil {
		return "", fmt.Errorf("%s build succeeded but site directory is missing: %w", b.command, err)
	}

	b.logger.Info(
		"documentation site built",
		logfields.Event("site_build_finished"),
		logfields.BuildVariant(string(variant)),
		zap.String("site.output_dir", absOutputDir),
	)

	return absOutputDir, nil
}
