package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/chanlog/internal/model"
)

// run executes the root command with args against a temp home and
// database.
func run(t *testing.T, dbPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--db-path", dbPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func testEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return filepath.Join(home, "chanlog.duckdb")
}

func TestLoadConfigDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := loadConfig("", nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.DBPath != filepath.Join(home, ".local", "share", "chanlog", "chanlog.duckdb") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Timezone != model.DefaultTimezone {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
	if cfg.dbLevel != model.LevelNotice || cfg.consoleLevel != model.LevelWarning {
		t.Errorf("levels = %v / %v", cfg.dbLevel, cfg.consoleLevel)
	}
	if !cfg.Interpolate {
		t.Error("interpolation should default on")
	}
	if cfg.LogRetention != model.DefaultPurgeDays || cfg.APIAddr != defaultAPIAddr {
		t.Errorf("retention/api = %d %q", cfg.LogRetention, cfg.APIAddr)
	}
	if cfg.ConfigPath != "" {
		t.Errorf("ConfigPath = %q, want empty when no file exists", cfg.ConfigPath)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CHANLOG_SITE_ID", "7")

	path := filepath.Join(home, "chanlog.yml")
	content := "db-path: ~/data/logs.duckdb\ntimezone: Europe/Berlin\ndb-level: debug\ninterpolate: false\nquery-timeout: 5s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path, nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.DBPath != filepath.Join(home, "data", "logs.duckdb") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Timezone != "Europe/Berlin" || cfg.dbLevel != model.LevelDebug || cfg.Interpolate {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.QueryTimeout != 5*time.Second {
		t.Errorf("QueryTimeout = %v", cfg.QueryTimeout)
	}
	if cfg.SiteID != 7 {
		t.Errorf("SiteID = %d, want 7 from env", cfg.SiteID)
	}
	if cfg.ConfigPath != path {
		t.Errorf("ConfigPath = %q", cfg.ConfigPath)
	}
}

func TestLoadConfigInvalidLevel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CHANLOG_DB_LEVEL", "chatty")
	if _, err := loadConfig("", nil); err == nil {
		t.Error("expected error for unknown db-level")
	}
}

func TestInstallCommand(t *testing.T) {
	db := testEnv(t)
	out, _, err := run(t, db, "install")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if !strings.Contains(out, "Schema at version 2") {
		t.Errorf("install output = %q", out)
	}
}

func TestLogListGet(t *testing.T) {
	db := testEnv(t)

	_, stderr, err := run(t, db, "log", "auth", "warning", "user {id} login", "--context", `{"id":42}`, "--extra", `{"request":"abc"}`)
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if !strings.Contains(stderr, "auth.WARNING: user 42 login") {
		t.Errorf("console output = %q", stderr)
	}

	// Below the database threshold.
	if _, _, err := run(t, db, "log", "auth", "info", "not stored"); err != nil {
		t.Fatalf("log: %v", err)
	}

	out, _, err := run(t, db, "list", "--format", "csv", "--fields", "id,channel,level_name,message")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := "id,channel,level_name,message\n1,auth,WARNING,user 42 login\n"
	if out != want {
		t.Errorf("list = %q, want %q", out, want)
	}

	out, _, err = run(t, db, "get", "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("get output: %v\n%s", err, out)
	}
	extra, _ := rec["extra"].(map[string]any)
	if extra["request"] != "abc" || extra["doing_cron"] != false {
		t.Errorf("extra = %v", rec["extra"])
	}
	ctxMap, _ := rec["context"].(map[string]any)
	if ctxMap["id"] != float64(42) {
		t.Errorf("context = %v", rec["context"])
	}

	if _, _, err := run(t, db, "get", "99"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("get missing = %v", err)
	}
}

func TestLogExtraKeepsHostKeys(t *testing.T) {
	db := testEnv(t)
	t.Setenv("CHANLOG_SITE_ID", "5")

	if _, _, err := run(t, db, "log", "auth", "error", "scoped", "--extra", `{"site_id":99,"doing_cron":true,"request":"abc"}`); err != nil {
		t.Fatalf("log: %v", err)
	}

	out, _, err := run(t, db, "get", "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("get output: %v\n%s", err, out)
	}
	extra, _ := rec["extra"].(map[string]any)
	if extra["site_id"] != float64(5) || extra["doing_cron"] != false {
		t.Errorf("host keys overwritten: extra = %v", extra)
	}
	if extra["request"] != "abc" {
		t.Errorf("caller key lost: extra = %v", extra)
	}

	out, _, err = run(t, db, "list", "--site", "99", "--format", "count")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.TrimSpace(out) != "0" {
		t.Errorf("records scoped to site 99 = %q, want 0", out)
	}
}

func TestListChannelsAndPurge(t *testing.T) {
	db := testEnv(t)
	for _, ch := range []string{"auth", "auth", "cron"} {
		if _, _, err := run(t, db, "log", ch, "error", "boom"); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	out, _, err := run(t, db, "list-channels", "--format", "count")
	if err != nil {
		t.Fatalf("list-channels: %v", err)
	}
	if strings.TrimSpace(out) != "2" {
		t.Errorf("channel count = %q", out)
	}

	out, _, err = run(t, db, "purge-records", "30", "--dry-run")
	if err != nil {
		t.Fatalf("purge dry run: %v", err)
	}
	if !strings.HasPrefix(out, "Would delete 0 records") {
		t.Errorf("dry run = %q", out)
	}

	out, _, err = run(t, db, "list", "--format", "ids", "--order", "ASC")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.TrimSpace(out) != "1 2 3" {
		t.Errorf("ids = %q", out)
	}
}

func TestBadArguments(t *testing.T) {
	db := testEnv(t)
	tests := [][]string{
		{"log", "auth", "loud", "msg"},
		{"log", "auth", "info", "msg", "--context", "[1,2]"},
		{"get", "abc"},
		{"purge-records", "0"},
		{"list", "--level", "nope"},
		{"list", "--site", "1", "--network"},
	}
	for _, args := range tests {
		if _, _, err := run(t, db, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "Version:    dev") {
		t.Errorf("version = %q", out)
	}
}

func TestBackupCommand(t *testing.T) {
	db := testEnv(t)
	if _, _, err := run(t, db, "log", "auth", "error", "before backup"); err != nil {
		t.Fatalf("log: %v", err)
	}

	if _, _, err := run(t, db, "backup"); err == nil {
		t.Error("expected error without a backup directory")
	}

	dir := filepath.Join(t.TempDir(), "snapshots")
	out, _, err := run(t, db, "backup", "--backup-dir", dir)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if !strings.HasPrefix(out, "Snapshot written to "+dir) {
		t.Errorf("backup output = %q", out)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "chanlog-*.duckdb"))
	if len(files) != 1 {
		t.Errorf("snapshots = %v", files)
	}
}

func TestPipeCommand(t *testing.T) {
	db := testEnv(t)

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader("ERROR: disk full\nroutine line\n{\"level\":\"critical\",\"message\":\"db down\",\"channel\":\"db\"}\n"))
	cmd.SetArgs([]string{"--db-path", db, "pipe", "app", "--level", "notice"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("pipe: %v", err)
	}

	out, _, err := run(t, db, "list", "--format", "csv", "--fields", "channel,level_name,message", "--order", "ASC")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := "channel,level_name,message\napp,ERROR,disk full\napp,NOTICE,routine line\ndb,CRITICAL,db down\n"
	if out != want {
		t.Errorf("list = %q, want %q", out, want)
	}
}
