package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFixtureCorpus recreates the S1 scenario corpus from the spec:
// Epstein/Maxwell/Paris documents with predictable BM25 and entity
// overlap.
func writeFixtureCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	docs := map[string]string{
		"doc1.txt": "Jeffrey Epstein met with Maxwell in Paris.",
		"doc2.txt": "Flight logs show trips to Paris and London.",
		"doc3.txt": "Maxwell sent emails about financial transactions.",
	}
	for name, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

// runCLI executes the root command against a scratch corpus/store pair
// with logging setup skipped, so tests don't depend on a writable home
// directory.
func runCLI(t *testing.T, corpusDir, storePath string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	root.PersistentPreRunE = func(*cobra.Command, []string) error { return nil }
	root.PersistentPostRunE = func(*cobra.Command, []string) error { return nil }

	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"--corpus", corpusDir, "--store", storePath}, args...))

	err := root.Execute()
	return buf.String(), err
}

func TestCLI_BuildIndexThenSearch(t *testing.T) {
	dir := writeFixtureCorpus(t)
	storePath := filepath.Join(t.TempDir(), "metadata.db")

	out, err := runCLI(t, dir, storePath, "build-index")
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 3 documents")

	out, err = runCLI(t, dir, storePath, "search", "Maxwell Paris", "--strategy", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "doc1")
}

func TestCLI_SearchMissingCorpusReturnsMissingIndexExitCode(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	storePath := filepath.Join(t.TempDir(), "metadata.db")

	_, err := runCLI(t, missing, storePath, "search", "anything")
	require.Error(t, err)
	assert.Equal(t, missingIndexExitCode, ExitCode(err))
}

func TestCLI_SearchNoResultsReturnsZeroExitCode(t *testing.T) {
	dir := writeFixtureCorpus(t)
	storePath := filepath.Join(t.TempDir(), "metadata.db")

	_, err := runCLI(t, dir, storePath, "search", "zzznonexistentqueryterm", "--strategy", "none")
	require.Error(t, err)
	assert.Equal(t, 0, ExitCode(err))
}

func TestCLI_SearchUnknownStrategyIsUsageError(t *testing.T) {
	dir := writeFixtureCorpus(t)
	storePath := filepath.Join(t.TempDir(), "metadata.db")

	_, err := runCLI(t, dir, storePath, "search", "Maxwell", "--strategy", "bogus")
	require.Error(t, err)
	assert.Equal(t, usageErrorExitCode, ExitCode(err))
}

func TestCLI_Stats(t *testing.T) {
	dir := writeFixtureCorpus(t)
	storePath := filepath.Join(t.TempDir(), "metadata.db")

	out, err := runCLI(t, dir, storePath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "documents indexed:  3")
}

func TestCLI_ExportFrequencies(t *testing.T) {
	dir := writeFixtureCorpus(t)
	storePath := filepath.Join(t.TempDir(), "metadata.db")

	out, err := runCLI(t, dir, storePath, "export", "--layout", "frequencies")
	require.NoError(t, err)
	assert.Contains(t, out, "Entity Type,Entity,Document Count")
}

func TestCLI_ExportUnknownLayoutIsUsageError(t *testing.T) {
	dir := writeFixtureCorpus(t)
	storePath := filepath.Join(t.TempDir(), "metadata.db")

	_, err := runCLI(t, dir, storePath, "export", "--layout", "bogus")
	require.Error(t, err)
	assert.Equal(t, usageErrorExitCode, ExitCode(err))
}

func TestCLI_DoctorReportsNoFaultsOnFreshIndex(t *testing.T) {
	dir := writeFixtureCorpus(t)
	storePath := filepath.Join(t.TempDir(), "metadata.db")

	out, err := runCLI(t, dir, storePath, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "no ConsistencyFaults found")
}
