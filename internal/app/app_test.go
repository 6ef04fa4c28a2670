package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/relayx/relayops/internal/config"
	"github.com/relayx/relayops/internal/restore"
)

func newTestApp(t *testing.T, input string) (*App, *bytes.Buffer, string) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	workdir := t.TempDir()
	var out bytes.Buffer
	a, err := New(cfg, workdir, nil, strings.NewReader(input), &out)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, &out, workdir
}

func TestNew_CreatesBackupDir(t *testing.T) {
	_, _, workdir := newTestApp(t, "")
	info, err := os.Stat(filepath.Join(workdir, "backups"))
	if err != nil || !info.IsDir() {
		t.Fatalf("backup dir not created: %v", err)
	}
}

func TestRunMode_UnknownModeIsFatal(t *testing.T) {
	a, _, workdir := newTestApp(t, "")

	err := a.RunMode(context.Background(), "bogus-mode")
	if !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
	if !strings.Contains(err.Error(), "bogus-mode") {
		t.Errorf("diagnostic should name the mode: %v", err)
	}

	// No filesystem side effects beyond the pre-existing backup dir.
	entries, err := os.ReadDir(filepath.Join(workdir, "backups"))
	if err != nil {
		t.Fatalf("read backup dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("unexpected files created: %v", entries)
	}
}

func TestGuidedRestore_NoBundlesFailsWithoutTouchingStack(t *testing.T) {
	a, _, _ := newTestApp(t, "")

	err := a.guidedRestore(context.Background())
	if !errors.Is(err, restore.ErrMissingBundle) {
		t.Fatalf("expected ErrMissingBundle, got %v", err)
	}
}

func TestGuidedRestore_DeclinedBothIsGraceful(t *testing.T) {
	// Data bundle exists; operator declines data ("n"), no full bundle.
	a, out, _ := newTestApp(t, "n\n")
	if err := os.WriteFile(a.store.ArchivePath("data"), []byte("x"), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	if err := a.guidedRestore(context.Background()); err != nil {
		t.Fatalf("declining offered restores must not be an error: %v", err)
	}
	if !strings.Contains(out.String(), "nothing restored") {
		t.Errorf("expected 'nothing restored', got %q", out.String())
	}
}

func TestRunMenu_ExitImmediately(t *testing.T) {
	a, out, _ := newTestApp(t, "0\n")
	if err := a.RunMenu(context.Background()); err != nil {
		t.Fatalf("menu exit failed: %v", err)
	}
	if !strings.Contains(out.String(), "relayops") {
		t.Errorf("menu text not shown: %q", out.String())
	}
}

func TestRunMenu_UnknownChoiceKeepsRunning(t *testing.T) {
	a, out, _ := newTestApp(t, "99\n0\n")
	if err := a.RunMenu(context.Background()); err != nil {
		t.Fatalf("menu failed: %v", err)
	}
	if !strings.Contains(out.String(), "unrecognized choice") {
		t.Errorf("expected unrecognized-choice message, got %q", out.String())
	}
}

func TestConfigureSchedule_RejectsBadTimeBeforeWriting(t *testing.T) {
	a, _, workdir := newTestApp(t, "25:00\n")
	a.cfg.Schedule.Path = filepath.Join(workdir, "cron")

	if err := a.configureSchedule(); err == nil {
		t.Fatal("expected validation error for 25:00")
	}
	if _, err := os.Stat(a.cfg.Schedule.Path); !os.IsNotExist(err) {
		t.Error("no schedule file may be written after a validation failure")
	}
}

func TestConfigureSchedule_RejectsOutOfRangeInterval(t *testing.T) {
	for _, interval := range []string{"0", "1441"} {
		a, _, workdir := newTestApp(t, "03:30\n"+interval+"\n")
		a.cfg.Schedule.Path = filepath.Join(workdir, "cron")

		if err := a.configureSchedule(); err == nil {
			t.Errorf("expected validation error for interval %s", interval)
		}
		if _, err := os.Stat(a.cfg.Schedule.Path); !os.IsNotExist(err) {
			t.Error("no schedule file may be written after a validation failure")
		}
	}
}
