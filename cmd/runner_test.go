package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/flacsync/internal/formatter"
	"github.com/desertthunder/flacsync/internal/ledger"
	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/shared"
	tu "github.com/desertthunder/flacsync/internal/testing"
)

// testEnv is a runner wired to a temp data dir and a fake catalog server.
type testEnv struct {
	dir        string
	folder     string
	configPath string
	output     *bytes.Buffer
	runner     *Runner
	server     *httptest.Server
}

func newTestEnv(t *testing.T, handler http.Handler) *testEnv {
	t.Helper()
	dir := t.TempDir()

	env := &testEnv{
		dir:        dir,
		folder:     filepath.Join(dir, "music"),
		configPath: filepath.Join(dir, "config.toml"),
		output:     &bytes.Buffer{},
	}

	servers := `["https://unused.example"]`
	if handler != nil {
		env.server = httptest.NewServer(handler)
		t.Cleanup(env.server.Close)
		servers = fmt.Sprintf("[%q]", env.server.URL)
	}

	config := fmt.Sprintf(`data_dir = %q

[catalog]
servers = %s
image_host = "https://images.invalid"
max_attempts_per_server = 1
retry_wait = 0
rate_limit_wait = 0

[download]
folder = %q
track_interval_ms = 0
retry_max_count = 1
tags = false
`, filepath.Join(dir, "data"), servers, env.folder)
	tu.MustWriteFile(t, env.configPath, []byte(config))

	env.runner = NewRunner(RunnerOpts{
		Logger: shared.NewLogger(io.Discard),
		Output: env.output,
		Getenv: func(string) string { return "" },
	})
	return env
}

func (e *testEnv) run(args ...string) error {
	argv := append([]string{"flacsync", "-c", e.configPath}, args...)
	return newApp(e.runner).Run(context.Background(), argv)
}

func (e *testEnv) openLedger(t *testing.T) *ledger.Memo {
	t.Helper()
	memo, err := ledger.Open(filepath.Join(e.dir, "data", "error_cache.json"), nil)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	return memo
}

func catalogHandler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":101,"title":"One More Time","artists":[{"name":"Daft Punk"}],"duration":320,"audioQuality":"LOSSLESS"}]}`))
	})
	mux.HandleFunc("/song/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Query().Get("q"), "One More Time") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":101,"title":"One More Time","artist":{"name":"Daft Punk"},"url":"http://%s/files/101.flac"}`, r.Host)
	})
	mux.HandleFunc("/track/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"id":101,"title":"One More Time","artists":[{"name":"Daft Punk"}]},{},"http://%s/files/101.flac"]`, r.Host)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fLaC-not-really-audio"))
	})
	return mux
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.progress == nil || runner.progress.Enabled() {
				t.Error("expected a disabled progress bar by default")
			}
			if runner.reporter == nil || runner.reporter.Enabled() {
				t.Error("expected a disabled reporter by default")
			}
		})
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("missing file uses defaults with env overlay", func(t *testing.T) {
			env := map[string]string{"DOWNLOAD_FOLDER": "/music", "LOG_LEVEL": "debug"}
			runner := NewRunner(RunnerOpts{
				Logger: shared.NewLogger(io.Discard),
				Getenv: func(key string) string { return env[key] },
			})

			if err := runner.loadConfig(filepath.Join(t.TempDir(), "missing.toml")); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if runner.config.DownloadFolder() != "/music" {
				t.Errorf("expected env folder, got %s", runner.config.DownloadFolder())
			}
			if len(runner.config.Catalog.Servers) != 14 {
				t.Errorf("expected default servers, got %d", len(runner.config.Catalog.Servers))
			}
		})

		t.Run("invalid file is an error", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			tu.MustWriteFile(t, path, []byte("[catalog\n"))

			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
			if err := runner.loadConfig(path); err == nil {
				t.Error("expected parse error")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "download", "catalog", "ledger", "stats"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})
}

func TestCommands(t *testing.T) {
	t.Run("setup config writes the example file", func(t *testing.T) {
		env := newTestEnv(t, nil)
		out := filepath.Join(env.dir, "nested", "flacsync.toml")

		if err := env.run("setup", "config", "-o", out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertFileExists(t, out)
		if _, err := shared.LoadConfig(out); err != nil {
			t.Errorf("written config should load: %v", err)
		}
	})

	t.Run("setup database migrates", func(t *testing.T) {
		env := newTestEnv(t, nil)

		if err := env.run("setup", "database"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertDirExists(t, filepath.Join(env.dir, "data"))
		tu.AssertFileExists(t, filepath.Join(env.dir, "data", "flacsync.db"))
		if !strings.Contains(env.output.String(), "Database ready") {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})

	t.Run("setup database rollback undoes the latest migration", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if err := env.run("setup", "database"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		env.output.Reset()
		if err := env.run("setup", "database", "--rollback"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(env.output.String(), "Rolled back") || !strings.Contains(env.output.String(), "schema v0") {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})

	t.Run("catalog search prints a table", func(t *testing.T) {
		env := newTestEnv(t, catalogHandler(t))

		if err := env.run("catalog", "search", "one more time"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := env.output.String()
		if !strings.Contains(out, "One More Time") || !strings.Contains(out, "Daft Punk") {
			t.Errorf("expected search result in output:\n%s", out)
		}
	})

	t.Run("catalog search as JSON", func(t *testing.T) {
		env := newTestEnv(t, catalogHandler(t))

		if err := env.run("catalog", "search", "--json", "one more time"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var tracks []models.Track
		if err := json.Unmarshal(env.output.Bytes(), &tracks); err != nil {
			t.Fatalf("expected JSON output: %v\n%s", err, env.output.String())
		}
		if len(tracks) != 1 || tracks[0].ID != 101 {
			t.Errorf("unexpected tracks %+v", tracks)
		}
	})

	t.Run("catalog search requires a query", func(t *testing.T) {
		env := newTestEnv(t, catalogHandler(t))

		if err := env.run("catalog", "search"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("catalog resolve reports a miss", func(t *testing.T) {
		env := newTestEnv(t, catalogHandler(t))

		if err := env.run("catalog", "resolve", "nothing here"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(env.output.String(), "no direct stream") {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})

	t.Run("catalog stream prints the url", func(t *testing.T) {
		env := newTestEnv(t, catalogHandler(t))

		if err := env.run("catalog", "stream", "--id", "101"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(env.output.String(), "/files/101.flac") {
			t.Errorf("expected stream url in output:\n%s", env.output.String())
		}
	})

	t.Run("download track writes the file and a summary", func(t *testing.T) {
		env := newTestEnv(t, catalogHandler(t))

		err := env.run("download", "track", "--title", "One More Time", "--artist", "Daft Punk")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(env.folder, "Daft Punk - One More Time.flac"))
		out := env.output.String()
		if !strings.Contains(out, "All downloads successful!") {
			t.Errorf("expected success summary:\n%s", out)
		}
		if !strings.Contains(out, "Failure ledger is empty.") {
			t.Errorf("expected ledger summary:\n%s", out)
		}
	})

	t.Run("download track failure lands in the ledger and csv", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/search/") {
				w.Write([]byte(`{"items":[]}`))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		})
		env := newTestEnv(t, handler)

		err := env.run("download", "track", "--title", "Ghost Song", "--artist", "Nobody")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		memo := env.openLedger(t)
		if reason := memo.Reason("Ghost Song", "Nobody"); reason != models.ReasonNotFound {
			t.Errorf("expected ledger reason %q, got %q", models.ReasonNotFound, reason)
		}

		rows, err := formatter.ReadFailedCSV(filepath.Join(env.dir, "data", "download_log.csv"))
		if err != nil {
			t.Fatalf("failed to read csv: %v", err)
		}
		if len(rows) != 1 || rows[0].Title != "Ghost Song" {
			t.Errorf("unexpected csv rows %+v", rows)
		}
		if !strings.Contains(env.output.String(), "Failed downloads saved to") {
			t.Errorf("expected csv notice:\n%s", env.output.String())
		}

		env.output.Reset()
		if err := env.run("download", "failed"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(env.output.String(), "Nobody - Ghost Song") {
			t.Errorf("expected failed list:\n%s", env.output.String())
		}

		env.output.Reset()
		if err := env.run("stats", "--status", "error", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var report StatsReport
		if err := json.Unmarshal(env.output.Bytes(), &report); err != nil {
			t.Fatalf("expected JSON output: %v\n%s", err, env.output.String())
		}
		if len(report.Listed) != 1 || report.Listed[0].Title != "Ghost Song" || report.Listed[0].Error != models.ReasonNotFound {
			t.Errorf("expected Ghost Song listed as an error, got %+v", report.Listed)
		}

		env.output.Reset()
		if err := env.run("ledger", "clear", "--title", "Ghost Song", "--artist", "Nobody"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		env.output.Reset()
		if err := env.run("stats", "--status", "error"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := env.output.String()
		if !strings.Contains(out, "Tracks with status error") || !strings.Contains(out, "None.") {
			t.Errorf("expected the cleared track to leave the error list:\n%s", out)
		}
	})

	t.Run("stats rejects an unknown status", func(t *testing.T) {
		env := newTestEnv(t, nil)
		err := env.run("stats", "--status", "lost")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("download run requires a playlist", func(t *testing.T) {
		env := newTestEnv(t, nil)

		if err := env.run("download", "run"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("download run requires credentials", func(t *testing.T) {
		env := newTestEnv(t, nil)

		err := env.run("download", "run", "--playlist", "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("ledger list, clear and clear-all", func(t *testing.T) {
		env := newTestEnv(t, nil)
		memo := env.openLedger(t)
		for _, title := range []string{"First", "Second", "Third"} {
			if _, err := memo.Record(title, "Band", models.ReasonNotFound); err != nil {
				t.Fatalf("failed to seed ledger: %v", err)
			}
		}

		if err := env.run("ledger", "list", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var records []models.FailureRecord
		if err := json.Unmarshal(env.output.Bytes(), &records); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("expected 3 records, got %d", len(records))
		}

		env.output.Reset()
		if err := env.run("ledger", "clear", "--title", "first", "--artist", "band"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(env.output.String(), "Cleared") {
			t.Errorf("unexpected output %q", env.output.String())
		}
		if env.openLedger(t).IsKnownFailure("First", "Band") {
			t.Error("expected entry to be cleared")
		}

		env.output.Reset()
		if err := env.run("ledger", "summary"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(env.output.String(), "Failure ledger: 2 tracks") {
			t.Errorf("unexpected summary:\n%s", env.output.String())
		}

		env.output.Reset()
		if err := env.run("ledger", "clear-all"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.openLedger(t).Count() != 0 {
			t.Error("expected empty ledger")
		}
	})

	t.Run("stats reports store counters", func(t *testing.T) {
		env := newTestEnv(t, catalogHandler(t))
		if err := env.run("download", "track", "--title", "One More Time", "--artist", "Daft Punk"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		env.output.Reset()
		if err := env.run("stats", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var report StatsReport
		if err := json.Unmarshal(env.output.Bytes(), &report); err != nil {
			t.Fatalf("expected JSON output: %v\n%s", err, env.output.String())
		}
		if report.Downloads != 1 || report.Tracks[models.TrackDownloaded] != 1 {
			t.Errorf("unexpected report %+v", report)
		}
		if len(report.RecentSessions) != 1 {
			t.Errorf("expected one session, got %d", len(report.RecentSessions))
		}
	})
}
