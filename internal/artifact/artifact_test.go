package artifact

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const descriptor = `<?xml version="1.0" encoding="UTF-8"?>
<atlassian-plugin key="com.example.hello" name="Hello Plugin" plugins-version="2">
    <plugin-info>
        <description>says hello</description>
        <version>1.4.0-SNAPSHOT</version>
        <vendor name="Example" url="https://example.com"/>
    </plugin-info>
    <xhtml-macro name="hello" key="hello-macro" class="com.example.Hello"/>
</atlassian-plugin>`

func zipBytes(t *testing.T, files map[string][]byte, order ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0644))
	return p
}

func pluginJar(t *testing.T) []byte {
	return zipBytes(t, map[string][]byte{
		"META-INF/MANIFEST.MF":    []byte("Manifest-Version: 1.0\n"),
		DescriptorFile:            []byte(descriptor),
		"com/example/Hello.class": {0xca, 0xfe, 0xba, 0xbe},
	}, "META-INF/MANIFEST.MF", DescriptorFile, "com/example/Hello.class")
}

func TestInspectJar(t *testing.T) {
	p := writeFile(t, "hello-1.4.0-SNAPSHOT.jar", pluginJar(t))

	d, err := Inspect(p)
	require.NoError(t, err)
	assert.Equal(t, "com.example.hello", d.Key)
	assert.Equal(t, "Hello Plugin", d.Name)
	assert.Equal(t, "1.4.0-SNAPSHOT", d.Version)
	assert.NotEmpty(t, d.MIME)
}

func TestInspectObr(t *testing.T) {
	obr := zipBytes(t, map[string][]byte{
		"obr.xml":                  []byte("<repository/>"),
		"dependencies/dep-1.0.jar": zipBytes(t, map[string][]byte{"x.txt": []byte("x")}, "x.txt"),
		"hello-1.4.0-SNAPSHOT.jar": pluginJar(t),
	}, "obr.xml", "dependencies/dep-1.0.jar", "hello-1.4.0-SNAPSHOT.jar")
	p := writeFile(t, "hello.obr", obr)

	d, err := Inspect(p)
	require.NoError(t, err)
	assert.Equal(t, "com.example.hello", d.Key)
}

func TestInspectWithoutDescriptor(t *testing.T) {
	p := writeFile(t, "lib.jar", zipBytes(t, map[string][]byte{"a.txt": []byte("a")}, "a.txt"))

	_, err := Inspect(p)
	assert.ErrorIs(t, err, ErrNoDescriptor)
}

func TestInspectNotArchive(t *testing.T) {
	p := writeFile(t, "notes.jar", []byte("just some text, definitely not a zip file\n"))

	_, err := Inspect(p)
	assert.ErrorIs(t, err, ErrNotArchive)
}

func TestInspectMissingFile(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "nope.jar"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseDescriptor(t *testing.T) {
	_, err := ParseDescriptor([]byte(`<atlassian-plugin name="keyless"/>`))
	assert.ErrorIs(t, err, ErrNoPluginKey)

	_, err = ParseDescriptor([]byte(`<not-a-plugin key="x"/>`))
	assert.Error(t, err)

	d, err := ParseDescriptor([]byte(`<atlassian-plugin key=" k "/>`))
	require.NoError(t, err)
	assert.Equal(t, "k", d.Key)
	assert.Empty(t, d.Version)
}
