// Package artifact reads the identity of a plugin binary: the key, name and
// version declared in the atlassian-plugin.xml descriptor of a jar, or of the
// main jar bundled in an obr.
package artifact

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/rubiojr/plup/internal/log"
)

// DescriptorFile is the plugin descriptor at the root of every plugin jar.
const DescriptorFile = "atlassian-plugin.xml"

var (
	ErrNotArchive   = errors.New("not a jar or obr archive")
	ErrNoDescriptor = errors.New("no " + DescriptorFile + " found")
	ErrNoPluginKey  = errors.New("plugin descriptor has no key")
)

// Descriptor identifies a plugin binary.
type Descriptor struct {
	Key     string
	Name    string
	Version string
	// MIME is the detected type of the artifact, e.g. application/jar.
	MIME string
}

type pluginXML struct {
	XMLName    xml.Name `xml:"atlassian-plugin"`
	Key        string   `xml:"key,attr"`
	Name       string   `xml:"name,attr"`
	PluginInfo struct {
		Version string `xml:"version"`
	} `xml:"plugin-info"`
}

// Sniff checks that the file at p is a zip based archive and returns its
// MIME type.
func Sniff(p string) (string, error) {
	mt, err := mimetype.DetectFile(p)
	if err != nil {
		return "", fmt.Errorf("failed to read artifact: %w", err)
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return mt.String(), nil
		}
	}
	return mt.String(), fmt.Errorf("%s is %s: %w", p, mt.String(), ErrNotArchive)
}

// Inspect reads the descriptor of the jar or obr at p.
func Inspect(p string) (*Descriptor, error) {
	mime, err := Sniff(p)
	if err != nil {
		return nil, err
	}

	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", p, ErrNotArchive)
	}
	defer zr.Close()

	d, err := fromZip(&zr.Reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	d.MIME = mime
	log.Debug("Read plugin descriptor", "path", p, "key", d.Key, "version", d.Version)
	return d, nil
}

// fromZip reads the descriptor at the archive root or, for obr bundles, from
// the first embedded jar carrying one.
func fromZip(zr *zip.Reader) (*Descriptor, error) {
	if f := find(zr, DescriptorFile); f != nil {
		return readDescriptor(f)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".jar") {
			continue
		}
		data, err := readAll(f)
		if err != nil {
			return nil, err
		}
		inner, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			log.Debug("Skipping embedded file", "name", f.Name, "error", err)
			continue
		}
		if df := find(inner, DescriptorFile); df != nil {
			return readDescriptor(df)
		}
	}
	return nil, ErrNoDescriptor
}

func find(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func readAll(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	return data, nil
}

func readDescriptor(f *zip.File) (*Descriptor, error) {
	data, err := readAll(f)
	if err != nil {
		return nil, err
	}
	return ParseDescriptor(data)
}

// ParseDescriptor decodes the content of an atlassian-plugin.xml.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var px pluginXML
	if err := xml.Unmarshal(data, &px); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", DescriptorFile, err)
	}
	if strings.TrimSpace(px.Key) == "" {
		return nil, ErrNoPluginKey
	}
	return &Descriptor{
		Key:     strings.TrimSpace(px.Key),
		Name:    strings.TrimSpace(px.Name),
		Version: strings.TrimSpace(px.PluginInfo.Version),
	}, nil
}
