package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/empcpd/pkg/writer/jsonl"
)

const ionTable = `id_number,mz,rtime,intensity
F1,169.0013,55,1000
F2,170.0047,55,300
F3,170.0086,55,5000
F9,523.7705,120,40
`

const referenceTable = `internal_id,name,formula,neutral_mono_mass
C1,first,C8H3NO3,169.0013
C2,far,,250.0
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := Execute()
	t.Log(errOut.String())
	return out.String(), err
}

func TestAssembleAndSummarize(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "features.csv", ionTable)
	ref := writeFile(t, dir, "reference.csv", referenceTable)
	out := filepath.Join(dir, "empcpds.jsonl")

	_, err := execute(t, "assemble", "--in", in, "--reference", ref, "--out", out)
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	r := jsonl.NewReader(f)
	var ids []string
	for r.Next() {
		ids = append(ids, r.EmpCpd().InterimID)
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []string{"E1", "E2"}, ids)

	summary, err := execute(t, "summarize", out)
	require.NoError(t, err)
	assert.Contains(t, summary, "Empirical compounds: 2")
	assert.Contains(t, summary, "C1 (1.00)")
}

func TestAssembleSQLite(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "features.csv", ionTable+"bad,abc,1,1\n")
	out := filepath.Join(dir, "run.db")

	_, err := execute(t, "assemble", "--in", in, "--out", out)
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	good := writeFile(t, dir, "good.csv", ionTable)
	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid: 4 ions")

	bad := writeFile(t, dir, "bad.csv", ionTable+"F1,100,1,1\nneg,-5,1,1\n")
	out, err = execute(t, "validate", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 records rejected")
	assert.Contains(t, out, "duplicate ion id")
	assert.Contains(t, out, "Valid: 4 ions")
}

func TestSignatures(t *testing.T) {
	out, err := execute(t, "signatures", "--mode", "negative", "--mass", "180.0634")
	require.NoError(t, err)
	assert.Contains(t, out, "M-H[-]")
	assert.Contains(t, out, "179.0561")
	assert.Contains(t, out, "Mode: negative")
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	inDir := filepath.Join(dir, "in")
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(inDir, 0o750))
	writeFile(t, inDir, "a.csv", ionTable)
	writeFile(t, inDir, "b.csv", ionTable)
	ref := writeFile(t, dir, "reference.csv", referenceTable)

	out, err := execute(t, "batch", "--mode", "positive", "--in-dir", inDir, "--out-dir", outDir,
		"--format", "sqlite", "--reference", ref)
	require.NoError(t, err)
	assert.Contains(t, out, "a.csv")
	assert.Contains(t, out, "b.csv")
	assert.FileExists(t, filepath.Join(outDir, "a.db"))
	assert.FileExists(t, filepath.Join(outDir, "b.db"))

	writeFile(t, inDir, "broken.csv", "mz,intensity\n1,2\n")
	out, err = execute(t, "batch", "--in-dir", inDir, "--out-dir", outDir, "--format", "jsonl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 ion tables failed")
	assert.Contains(t, out, "Failed: broken.csv")
	assert.FileExists(t, filepath.Join(outDir, "a.jsonl"))
}

func TestBatchRejectsFormat(t *testing.T) {
	_, err := execute(t, "batch", "--in-dir", t.TempDir(), "--out-dir", t.TempDir(), "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}
