package local

import (
	"archive/zip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/chenyanchen/modrun"
)

// writeArchive writes a zip archive with the given entries and returns its path.
func writeArchive(t *testing.T, dir, file string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

// writeModule writes an archive carrying mf as module.yaml.
func writeModule(t *testing.T, dir, file string, mf Manifest) string {
	t.Helper()
	data, err := yaml.Marshal(mf)
	require.NoError(t, err)
	return writeArchive(t, dir, file, map[string]string{yamlManifestPath: string(data)})
}

func newTestContainer(t *testing.T, props modrun.Properties, opts ...Option) *Container {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	c := New(props, opts...)
	ctx := context.Background()
	require.NoError(t, c.Init(ctx))
	require.NoError(t, c.Start(ctx))
	return c
}

func install(t *testing.T, c *Container, path string) *Module {
	t.Helper()
	m, err := c.Install(context.Background(), modrun.FileURI(path))
	require.NoError(t, err)
	return m.(*Module)
}

// recorder collects activator calls as "start:name" and "stop:name".
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func (r *recorder) activator(stopErr error) Activator {
	return Activator{
		Start: func(_ context.Context, m *Module) error {
			r.add("start:" + m.Name())
			return nil
		},
		Stop: func(_ context.Context, m *Module) error {
			r.add("stop:" + m.Name())
			return stopErr
		},
	}
}
