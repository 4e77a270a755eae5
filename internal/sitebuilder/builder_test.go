package sitebuilder

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestSelectVariant(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		want       Variant
	}{
		{
			name:       "no credential selects public",
			credential: "",
			want:       VariantPublic,
		},
		{
			name:       "credential selects insiders",
			credential: "ssh-key-material",
			want:       VariantInsiders,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectVariant(tt.credential))
		})
	}
}

// writeFakeGenerator writes a shell script that mimics the site generator
// cli. It records its arguments and creates the directory passed via
// --site-dir.
func writeFakeGenerator(t *testing.T, dir string, exitCode int) (command, argsFile string) {
	t.Helper()

	command = filepath.Join(dir, "fake-mkdocs")
	argsFile = filepath.Join(dir, "args")

	script := `#!/bin/sh
echo "$@" > ` + argsFile + `
sitedir=""
while [ $# -gt 0 ]; do
	if [ "$1" = "--site-dir" ]; then
		sitedir="$2"
	fi
	shift
done
if [ -n "$sitedir" ]; then
	mkdir -p "$sitedir"
fi
exit ` + strconv.Itoa(exitCode) + `
`

	require.NoError(t, os.WriteFile(command, []byte(script), 0o700))

	return command, argsFile
}

func TestBuildRunsGeneratorPerVariant(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	dir := t.TempDir()
	command, argsFile := writeFakeGenerator(t, dir, 0)
	outputDir := filepath.Join(dir, "site")

	builder := New(command, "mkdocs.public.yml", "mkdocs.insiders.yml", outputDir)

	siteDir, err := builder.Build(context.Background(), VariantPublic)
	require.NoError(t, err)
	assert.Equal(t, outputDir, siteDir)
	assert.DirExists(t, siteDir)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "build -f mkdocs.public.yml --strict --site-dir "+outputDir+"\n", string(args))

	_, err = builder.Build(context.Background(), VariantInsiders)
	require.NoError(t, err)

	args, err = os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "-f mkdocs.insiders.yml")
}

func TestBuildFailsWhenGeneratorFails(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	dir := t.TempDir()
	command, _ := writeFakeGenerator(t, dir, 1)

	builder := New(command, "mkdocs.public.yml", "mkdocs.insiders.yml", filepath.Join(dir, "site"))

	_, err := builder.Build(context.Background(), VariantPublic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build failed")
}

func TestBuildFailsWhenSiteDirectoryIsMissing(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	dir := t.TempDir()
	command := filepath.Join(dir, "fake-mkdocs")
	require.NoError(t, os.WriteFile(command, []byte("#!/bin/sh\nexit 0\n"), 0o700))

	builder := New(command, "mkdocs.public.yml", "mkdocs.insiders.yml", filepath.Join(dir, "site"))

	_, err := builder.Build(context.Background(), VariantPublic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site directory is missing")
}

func TestBuildFailsOnUnknownVariant(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	builder := New("mkdocs", "mkdocs.public.yml", "mkdocs.insiders.yml", "site")

	_, err := builder.Build(context.Background(), Variant("nightly"))
	assert.Error(t, err)
}
