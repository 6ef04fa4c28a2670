package snapshot

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/relayx/relayops/internal/bundle"
	"github.com/relayx/relayops/internal/config"
)

type fakeRuntime struct {
	running  map[string]bool
	dump     string
	execs    []string
	execErr  map[string]error
	archived []string
	archErr  error
}

func (f *fakeRuntime) ContainerRunning(_ context.Context, name string) (bool, error) {
	return f.running[name], nil
}

func (f *fakeRuntime) Exec(_ context.Context, name string, cmd []string, _ io.Reader, stdout io.Writer) error {
	joined := name + ": " + strings.Join(cmd, " ")
	f.execs = append(f.execs, joined)
	if err := f.execErr[name]; err != nil {
		return err
	}
	if stdout != nil && strings.Contains(joined, "mysqldump") {
		_, _ = io.WriteString(stdout, f.dump)
	}
	return nil
}

func (f *fakeRuntime) ArchiveVolume(_ context.Context, volumeName, hostDir, fileName string) error {
	if f.archErr != nil {
		return f.archErr
	}
	f.archived = append(f.archived, volumeName)
	return os.WriteFile(filepath.Join(hostDir, fileName), []byte("raw bytes of "+volumeName), 0644)
}

type fakeOrch struct {
	calls []string
}

func (f *fakeOrch) Up(context.Context) error   { f.calls = append(f.calls, "up"); return nil }
func (f *fakeOrch) Down(context.Context) error { f.calls = append(f.calls, "down"); return nil }

func newWorkdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{
		"compose.yaml": "services:\n  mysql:\n    image: mysql:8\n",
		".env":         "MYSQL_ROOT_PASSWORD=s3cret\n",
		"Caddyfile":    "relayx.example {\n}\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func newFixture(t *testing.T) (*config.Config, *bundle.Store, string) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	workdir := newWorkdir(t)
	store := bundle.NewStore(filepath.Join(workdir, "backups"), cfg.Backup.FullName, cfg.Backup.DataName)
	if err := os.MkdirAll(filepath.Join(workdir, "backups"), 0755); err != nil {
		t.Fatalf("mkdir backups: %v", err)
	}
	return cfg, store, workdir
}

func readManifestType(t *testing.T, store *bundle.Store, kind bundle.Kind) string {
	t.Helper()
	m, err := bundle.ReadManifest(filepath.Join(store.StagingDir(kind), bundle.MetaDir, bundle.ManifestName))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	return m.Type
}

func TestHot_FullCapture_MissingCacheIsWarningOnly(t *testing.T) {
	cfg, store, workdir := newFixture(t)
	rt := &fakeRuntime{
		running: map[string]bool{cfg.Stack.DBContainer: true},
		dump:    "INSERT INTO relays VALUES (1),(2),(3),(4),(5);\n",
	}

	archive, err := NewHot(cfg, store, rt, workdir).Capture(context.Background(), bundle.KindFull)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if archive != store.ArchivePath(bundle.KindFull) {
		t.Errorf("archive at unexpected path: %s", archive)
	}

	if got := readManifestType(t, store, bundle.KindFull); got != TypeFullOnline {
		t.Errorf("expected manifest type %s, got %s", TypeFullOnline, got)
	}

	// The dump decompresses back to the collaborator's output.
	f, err := os.Open(filepath.Join(store.StagingDir(bundle.KindFull), bundle.DBDir, "relayx.sql.gz"))
	if err != nil {
		t.Fatalf("dump missing: %v", err)
	}
	defer func() { _ = f.Close() }()
	gzr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("dump is not gzip: %v", err)
	}
	data, _ := io.ReadAll(gzr)
	if string(data) != rt.dump {
		t.Errorf("dump round trip mismatch: %q", data)
	}

	// All three site files captured.
	for _, name := range []string{"compose.yaml", ".env", "Caddyfile"} {
		if _, err := os.Stat(filepath.Join(store.StagingDir(bundle.KindFull), bundle.SiteFilesDir, name)); err != nil {
			t.Errorf("site file %s missing from staging: %v", name, err)
		}
	}

	// No cache container: BGSAVE must not have been attempted.
	for _, e := range rt.execs {
		if strings.Contains(e, "BGSAVE") {
			t.Errorf("BGSAVE attempted against absent cache: %s", e)
		}
	}
}

func TestHot_DataCapture(t *testing.T) {
	cfg, store, workdir := newFixture(t)
	rt := &fakeRuntime{
		running: map[string]bool{cfg.Stack.DBContainer: true, cfg.Stack.CacheContainer: true},
		dump:    "-- dump\n",
	}

	if _, err := NewHot(cfg, store, rt, workdir).Capture(context.Background(), bundle.KindData); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	if got := readManifestType(t, store, bundle.KindData); got != TypeDataOnline {
		t.Errorf("expected manifest type %s, got %s", TypeDataOnline, got)
	}
	if _, err := os.Stat(filepath.Join(store.StagingDir(bundle.KindData), bundle.SiteFilesDir)); !os.IsNotExist(err) {
		t.Error("data bundle must not contain site files")
	}

	bgsave := false
	for _, e := range rt.execs {
		if strings.Contains(e, "BGSAVE") {
			bgsave = true
		}
	}
	if !bgsave {
		t.Error("expected BGSAVE trigger against running cache")
	}
}

func TestHot_MissingDatabaseIsFatal(t *testing.T) {
	cfg, store, workdir := newFixture(t)
	rt := &fakeRuntime{running: map[string]bool{}}

	_, err := NewHot(cfg, store, rt, workdir).Capture(context.Background(), bundle.KindData)
	if !errors.Is(err, ErrDatabaseUnavailable) {
		t.Fatalf("expected ErrDatabaseUnavailable, got %v", err)
	}
	if store.ArchiveExists(bundle.KindData) {
		t.Error("no archive must be produced without a database")
	}
}

func TestHot_CacheTriggerFailureIsNotFatal(t *testing.T) {
	cfg, store, workdir := newFixture(t)
	rt := &fakeRuntime{
		running: map[string]bool{cfg.Stack.DBContainer: true, cfg.Stack.CacheContainer: true},
		execErr: map[string]error{cfg.Stack.CacheContainer: errors.New("BGSAVE refused")},
		dump:    "-- dump\n",
	}

	if _, err := NewHot(cfg, store, rt, workdir).Capture(context.Background(), bundle.KindData); err != nil {
		t.Fatalf("cache trigger failure must not fail the capture: %v", err)
	}
}

func TestHot_MissingSiteFilesBlocksCapture(t *testing.T) {
	cfg, _, _ := newFixture(t)
	empty := t.TempDir()
	store := bundle.NewStore(filepath.Join(empty, "backups"), cfg.Backup.FullName, cfg.Backup.DataName)
	rt := &fakeRuntime{running: map[string]bool{cfg.Stack.DBContainer: true}}

	_, err := NewHot(cfg, store, rt, empty).Capture(context.Background(), bundle.KindFull)
	if err == nil {
		t.Fatal("expected missing site files to block capture")
	}
	if len(rt.execs) != 0 {
		t.Errorf("no collaborator calls expected, got %v", rt.execs)
	}
}

func TestCold_Capture(t *testing.T) {
	cfg, store, workdir := newFixture(t)
	rt := &fakeRuntime{}
	orch := &fakeOrch{}

	archive, err := NewCold(cfg, store, rt, orch, workdir).Capture(context.Background(), bundle.KindFull)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if archive == "" {
		t.Fatal("expected archive path")
	}

	if len(orch.calls) != 2 || orch.calls[0] != "down" || orch.calls[1] != "up" {
		t.Errorf("expected stack down then up, got %v", orch.calls)
	}
	if len(rt.archived) != 4 {
		t.Errorf("expected 4 volumes archived, got %v", rt.archived)
	}
	if rt.archived[0] != "relayx_mysql" {
		t.Errorf("expected compose-prefixed volume names, got %v", rt.archived)
	}

	if got := readManifestType(t, store, bundle.KindFull); got != TypeFullOffline {
		t.Errorf("expected manifest type %s, got %s", TypeFullOffline, got)
	}
	for _, logical := range cfg.Stack.Volumes {
		path := filepath.Join(store.StagingDir(bundle.KindFull), bundle.VolumesDir, logical+".tar.gz")
		if _, err := os.Stat(path); err != nil {
			t.Errorf("volume snapshot %s missing: %v", logical, err)
		}
	}
}

func TestCold_RestartsStackAfterFailure(t *testing.T) {
	cfg, store, workdir := newFixture(t)
	rt := &fakeRuntime{archErr: errors.New("helper exploded")}
	orch := &fakeOrch{}

	_, err := NewCold(cfg, store, rt, orch, workdir).Capture(context.Background(), bundle.KindFull)
	if err == nil {
		t.Fatal("expected volume archive failure to surface")
	}
	if len(orch.calls) == 0 || orch.calls[len(orch.calls)-1] != "up" {
		t.Errorf("stack must be restarted even after a failure, calls: %v", orch.calls)
	}
}

func TestCold_RejectsDataKind(t *testing.T) {
	cfg, store, workdir := newFixture(t)
	if _, err := NewCold(cfg, store, &fakeRuntime{}, &fakeOrch{}, workdir).Capture(context.Background(), bundle.KindData); err == nil {
		t.Fatal("cold capture must reject the data kind")
	}
}
