package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadManifestYAML(t *testing.T) {
	path := writeArchive(t, t.TempDir(), "billing.jar", map[string]string{
		"module.yaml": "name: billing\nversion: 1.2.0\nrequires: [storage, ' log ']\nactivator: billing\n",
		"META-INF/MANIFEST.MF": "Module-Name: ignored\n",
	})

	mf, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, Manifest{
		Name:      "billing",
		Version:   "1.2.0",
		Requires:  []string{"storage", "log"},
		Activator: "billing",
	}, mf)
	assert.False(t, mf.IsAttachment())
}

func TestReadManifestJarHeaders(t *testing.T) {
	manifest := "Manifest-Version: 1.0\r\n" +
		"Bundle-SymbolicName: com.example.billing;singleton:=true\r\n" +
		"Bundle-Version: 1.0.0\r\n" +
		"Require-Bundle: com.example.storage;bundle-version=\"[1.0,2\r\n" +
		" .0)\",com.example.log\r\n" +
		"Module-Activator: billing\r\n" +
		"\r\n" +
		"Name: other/section\r\n" +
		"Bundle-SymbolicName: wrong\r\n"
	path := writeArchive(t, t.TempDir(), "billing.jar", map[string]string{
		"META-INF/MANIFEST.MF": manifest,
	})

	mf, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "com.example.billing", mf.Name)
	assert.Equal(t, "1.0.0", mf.Version)
	assert.Equal(t, []string{"com.example.storage", "com.example.log"}, mf.Requires)
	assert.Equal(t, "billing", mf.Activator)
}

func TestReadManifestModuleHeadersWin(t *testing.T) {
	path := writeArchive(t, t.TempDir(), "ext.jar", map[string]string{
		"META-INF/MANIFEST.MF": "Bundle-SymbolicName: bundle.name\n" +
			"Module-Name: module.name\n" +
			"Fragment-Host: bundle.host;bundle-version=1.0\n" +
			"Attachment-Host: module.host\n",
	})

	mf, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "module.name", mf.Name)
	assert.Equal(t, "module.host", mf.AttachmentHost)
	assert.True(t, mf.IsAttachment())
}

func TestReadManifestNotAModule(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "plain.jar")
	require.NoError(t, os.WriteFile(plain, []byte("not a zip"), 0o644))
	mf, err := ReadManifest(plain)
	require.NoError(t, err)
	assert.Empty(t, mf.Name)

	bare := writeArchive(t, dir, "bare.jar", map[string]string{"readme.txt": "hi"})
	mf, err = ReadManifest(bare)
	require.NoError(t, err)
	assert.Empty(t, mf.Name)

	_, err = ReadManifest(filepath.Join(dir, "missing.jar"))
	assert.Error(t, err)
}

func TestReadManifestMalformed(t *testing.T) {
	dir := t.TempDir()

	badYAML := writeArchive(t, dir, "bad.jar", map[string]string{"module.yaml": "name: [unclosed"})
	_, err := ReadManifest(badYAML)
	assert.Error(t, err)

	badMF := writeArchive(t, dir, "bad-mf.jar", map[string]string{"META-INF/MANIFEST.MF": "no colon here\n"})
	_, err = ReadManifest(badMF)
	assert.Error(t, err)
}

func TestSplitClauses(t *testing.T) {
	assert.Equal(t, []string{`a;version="[1,2)"`, "b"}, splitClauses(`a;version="[1,2)",b`))
	assert.Empty(t, splitClauses(""))
	assert.Equal(t, "a.b", clauseName(" a.b ;resolution:=optional"))
}
