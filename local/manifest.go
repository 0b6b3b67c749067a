package local

import (
	"archive/zip"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	yamlManifestPath = "module.yaml"
	jarManifestPath  = "META-INF/MANIFEST.MF"
)

// Manifest is the identity a module archive declares.
// An empty Name means the archive is not a module.
type Manifest struct {
	Name     string   `yaml:"name"`
	Version  string   `yaml:"version"`
	Requires []string `yaml:"requires"`
	// AttachmentHost names the module this one attaches to. Attachments are never started.
	AttachmentHost string `yaml:"attachmentHost"`
	Activator      string `yaml:"activator"`
}

// IsAttachment reports whether the manifest declares an attachment host.
func (m Manifest) IsAttachment() bool {
	return m.AttachmentHost != ""
}

// ReadManifest reads the manifest of the archive at path.
//
// module.yaml at the archive root wins over META-INF/MANIFEST.MF. A file that is not a zip
// archive, or an archive with neither entry, yields an empty Manifest and no error.
func ReadManifest(path string) (Manifest, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return Manifest{}, nil
		}
		return Manifest{}, fmt.Errorf("open module archive: %w", err)
	}
	defer r.Close()

	var mf *zip.File
	for _, f := range r.File {
		switch f.Name {
		case yamlManifestPath:
			data, err := readZipFile(f)
			if err != nil {
				return Manifest{}, err
			}
			return decodeYAMLManifest(data)
		case jarManifestPath:
			mf = f
		}
	}
	if mf == nil {
		return Manifest{}, nil
	}
	data, err := readZipFile(mf)
	if err != nil {
		return Manifest{}, err
	}
	return decodeJarManifest(data)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

func decodeYAMLManifest(data []byte) (Manifest, error) {
	var m Manifest
	if len(bytes.TrimSpace(data)) == 0 {
		return m, nil
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode %s: %w", yamlManifestPath, err)
	}
	m.Name = strings.TrimSpace(m.Name)
	m.Version = strings.TrimSpace(m.Version)
	m.AttachmentHost = strings.TrimSpace(m.AttachmentHost)
	m.Activator = strings.TrimSpace(m.Activator)
	requires := m.Requires[:0]
	for _, r := range m.Requires {
		if r = strings.TrimSpace(r); r != "" {
			requires = append(requires, r)
		}
	}
	m.Requires = requires
	return m, nil
}

// decodeJarManifest reads the main section of a jar manifest.
// Module-* headers win over their Bundle-* counterparts.
func decodeJarManifest(data []byte) (Manifest, error) {
	headers, err := parseJarHeaders(data)
	if err != nil {
		return Manifest{}, err
	}
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := headers[k]; v != "" {
				return v
			}
		}
		return ""
	}

	m := Manifest{
		Name:           clauseName(first("Module-Name", "Bundle-SymbolicName")),
		Version:        first("Module-Version", "Bundle-Version"),
		AttachmentHost: clauseName(first("Attachment-Host", "Fragment-Host")),
		Activator:      first("Module-Activator"),
	}
	for _, clause := range splitClauses(first("Module-Requires", "Require-Bundle")) {
		if name := clauseName(clause); name != "" {
			m.Requires = append(m.Requires, name)
		}
	}
	return m, nil
}

func parseJarHeaders(data []byte) (map[string]string, error) {
	headers := make(map[string]string)
	var key string
	var value strings.Builder
	flush := func() {
		if key != "" {
			headers[key] = strings.TrimSpace(value.String())
		}
		key = ""
		value.Reset()
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			// The main section ends at the first blank line.
			break
		}
		if strings.HasPrefix(line, " ") {
			value.WriteString(line[1:])
			continue
		}
		flush()
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("decode %s: malformed header line %q", jarManifestPath, line)
		}
		key = strings.TrimSpace(k)
		value.WriteString(strings.TrimPrefix(v, " "))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", jarManifestPath, err)
	}
	flush()
	return headers, nil
}

// splitClauses splits a header on commas that are not inside double quotes.
func splitClauses(header string) []string {
	var clauses []string
	var cur strings.Builder
	quoted := false
	for _, r := range header {
		switch {
		case r == '"':
			quoted = !quoted
			cur.WriteRune(r)
		case r == ',' && !quoted:
			clauses = append(clauses, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		clauses = append(clauses, cur.String())
	}
	return clauses
}

// clauseName drops attributes and directives: "a.b;version=1" -> "a.b".
func clauseName(clause string) string {
	name, _, _ := strings.Cut(clause, ";")
	return strings.TrimSpace(name)
}
