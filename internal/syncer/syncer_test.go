package syncer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/munichmade/hostsync/internal/hosts"
)

const basis = "##\n" +
	"# Host Database\n" +
	"##\n" +
	"127.0.0.1\tlocalhost\n" +
	"255.255.255.255\tbroadcasthost\n" +
	"::1             localhost\n"

// mockSource implements source.Source with a function field.
type mockSource struct {
	RecordsFunc func(ctx context.Context, zone string) (*hosts.Records, []string, error)
}

func (m *mockSource) Records(ctx context.Context, zone string) (*hosts.Records, []string, error) {
	return m.RecordsFunc(ctx, zone)
}

func staticZones(zones map[string]*hosts.Records) *mockSource {
	return &mockSource{
		RecordsFunc: func(_ context.Context, zone string) (*hosts.Records, []string, error) {
			return zones[zone], nil, nil
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeHosts(t *testing.T, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts")
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("failed to write hosts file: %v", err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

func TestRun_Stdio(t *testing.T) {
	recs := hosts.NewRecords()
	recs.Add("1.1.1.1", "test.atha.io")

	var stdout bytes.Buffer
	s := New(staticZones(map[string]*hosts.Records{"atha.io": recs}),
		WithStdio(strings.NewReader(basis), &stdout),
		WithLogger(quietLogger()),
	)

	res, err := s.Run(context.Background(), Options{Zones: []string{"atha.io"}, Input: Stdio, Output: Stdio})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := basis + "1.1.1.1\ttest.atha.io\t# Updated by script for atha.io\n"
	if diff := cmp.Diff(want, stdout.String()); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}
	if !res.Changed {
		t.Error("Changed = false, want true")
	}
	if diff := cmp.Diff(map[string]int{"atha.io": 1}, res.Zones); diff != "" {
		t.Errorf("Zones mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_InPlaceKeepsMode(t *testing.T) {
	path := writeHosts(t, basis+"1.1.1.1\ttest.atha.io\t# Updated by script for atha.io\n", 0640)

	recs := hosts.NewRecords()
	recs.Add("2.2.2.2", "test.atha.io")

	s := New(staticZones(map[string]*hosts.Records{"atha.io": recs}), WithLogger(quietLogger()))
	res, err := s.Run(context.Background(), Options{Zones: []string{"atha.io"}, Input: path, Output: path})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Changed {
		t.Error("Changed = false, want true")
	}

	want := basis + "2.2.2.2\ttest.atha.io\t# Updated by script for atha.io\n"
	if diff := cmp.Diff(want, readFile(t, path)); diff != "" {
		t.Errorf("hosts file mismatch (-want +got):\n%s", diff)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0640 {
		t.Errorf("mode = %o, want %o", perm, 0640)
	}
}

func TestRun_NewOutputFile(t *testing.T) {
	input := writeHosts(t, basis, 0600)
	output := filepath.Join(t.TempDir(), "hosts.new")

	s := New(staticZones(map[string]*hosts.Records{}), WithLogger(quietLogger()))
	res, err := s.Run(context.Background(), Options{Zones: []string{"atha.io"}, Input: input, Output: output})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Changed {
		t.Error("Changed = true for an input without managed entries and no records")
	}
	if diff := cmp.Diff(basis, readFile(t, output)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	info, err := os.Stat(output)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != defaultFileMode {
		t.Errorf("mode = %o, want %o", perm, defaultFileMode)
	}
}

func TestRun_UnchangedInPlaceSkipsWrite(t *testing.T) {
	content := basis + "1.1.1.1\ttest.atha.io\t# Updated by script for atha.io\n"
	path := writeHosts(t, content, 0644)
	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}

	recs := hosts.NewRecords()
	recs.Add("1.1.1.1", "test.atha.io")

	s := New(staticZones(map[string]*hosts.Records{"atha.io": recs}), WithLogger(quietLogger()))
	res, err := s.Run(context.Background(), Options{Zones: []string{"atha.io"}, Input: path, Output: path})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Changed {
		t.Error("Changed = true, want false")
	}

	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !os.SameFile(before, after) {
		t.Error("unchanged hosts file should not be replaced")
	}
}

func TestRun_ZonesAppliedInOrder(t *testing.T) {
	first := hosts.NewRecords()
	first.Add("1.1.1.1", "a.atha.io")
	second := hosts.NewRecords()
	second.Add("2.2.2.2", "b.test.com")

	var stdout bytes.Buffer
	s := New(staticZones(map[string]*hosts.Records{"atha.io": first, "test.com": second}),
		WithStdio(strings.NewReader(basis), &stdout),
		WithLogger(quietLogger()),
		WithConcurrency(2),
	)

	if _, err := s.Run(context.Background(), Options{Zones: []string{"test.com", "atha.io"}, Input: Stdio, Output: Stdio}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := basis +
		"2.2.2.2\tb.test.com\t# Updated by script for test.com\n" +
		"1.1.1.1\ta.atha.io\t# Updated by script for atha.io\n"
	if diff := cmp.Diff(want, stdout.String()); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_Warnings(t *testing.T) {
	src := &mockSource{
		RecordsFunc: func(_ context.Context, zone string) (*hosts.Records, []string, error) {
			return hosts.NewRecords(), []string{"ignoring alias record www"}, nil
		},
	}

	var logs bytes.Buffer
	s := New(src,
		WithStdio(strings.NewReader(basis), io.Discard),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)

	res, err := s.Run(context.Background(), Options{Zones: []string{"atha.io"}, Input: Stdio, Output: Stdio})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if diff := cmp.Diff([]string{"atha.io: ignoring alias record www"}, res.Warnings); diff != "" {
		t.Errorf("Warnings mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(logs.String(), "level=WARN") || !strings.Contains(logs.String(), "zone=atha.io") {
		t.Errorf("warning not logged, got %q", logs.String())
	}
}

func TestRun_SourceErrorWritesNothing(t *testing.T) {
	content := basis + "1.1.1.1\ttest.atha.io\t# Updated by script for atha.io\n"
	path := writeHosts(t, content, 0644)

	errBoom := errors.New("boom")
	src := &mockSource{
		RecordsFunc: func(_ context.Context, zone string) (*hosts.Records, []string, error) {
			if zone == "test.com" {
				return nil, nil, errBoom
			}
			return hosts.NewRecords(), nil, nil
		},
	}

	s := New(src, WithLogger(quietLogger()))
	_, err := s.Run(context.Background(), Options{Zones: []string{"atha.io", "test.com"}, Input: path, Output: path})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Run() error = %v, want %v", err, errBoom)
	}
	if !strings.Contains(err.Error(), "test.com") {
		t.Errorf("error %q should name the zone", err)
	}
	if diff := cmp.Diff(content, readFile(t, path)); diff != "" {
		t.Errorf("hosts file changed (-want +got):\n%s", diff)
	}
}

func TestRun_ParseErrorAbortsBeforeFetch(t *testing.T) {
	var calls atomic.Int32
	src := &mockSource{
		RecordsFunc: func(context.Context, string) (*hosts.Records, []string, error) {
			calls.Add(1)
			return hosts.NewRecords(), nil, nil
		},
	}

	input := basis + "garbage # Updated by script\n"
	var stdout bytes.Buffer
	s := New(src, WithStdio(strings.NewReader(input), &stdout), WithLogger(quietLogger()))

	_, err := s.Run(context.Background(), Options{Zones: []string{"atha.io"}, Input: Stdio, Output: Stdio})
	var perr *hosts.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Run() error = %v, want *hosts.ParseError", err)
	}
	if perr.Line != 7 {
		t.Errorf("ParseError.Line = %d, want 7", perr.Line)
	}
	if calls.Load() != 0 {
		t.Errorf("source called %d times, want 0", calls.Load())
	}
	if stdout.Len() != 0 {
		t.Errorf("nothing should be written, got %q", stdout.String())
	}
}

func TestRun_NoZones(t *testing.T) {
	s := New(staticZones(nil), WithLogger(quietLogger()))
	if _, err := s.Run(context.Background(), Options{Input: Stdio, Output: Stdio}); !errors.Is(err, ErrNoZones) {
		t.Errorf("Run() error = %v, want ErrNoZones", err)
	}
}

func TestRun_MissingInput(t *testing.T) {
	s := New(staticZones(nil), WithLogger(quietLogger()))
	_, err := s.Run(context.Background(), Options{
		Zones:  []string{"atha.io"},
		Input:  filepath.Join(t.TempDir(), "missing"),
		Output: Stdio,
	})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Run() error = %v, want os.ErrNotExist", err)
	}
}

func TestFetch_NilRecordsBecomeEmpty(t *testing.T) {
	s := New(staticZones(map[string]*hosts.Records{}), WithLogger(quietLogger()))

	got, err := s.Fetch(context.Background(), []string{"atha.io", "test.com"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 2 || got[0].Zone != "atha.io" || got[1].Zone != "test.com" {
		t.Fatalf("Fetch() = %+v, want zones in input order", got)
	}
	for _, zr := range got {
		if zr.Records == nil || zr.Records.Len() != 0 {
			t.Errorf("zone %s records = %v, want empty", zr.Zone, zr.Records)
		}
	}
}

func TestFetch_RespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	src := &mockSource{
		RecordsFunc: func(ctx context.Context, zone string) (*hosts.Records, []string, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			inFlight.Add(-1)
			return hosts.NewRecords(), nil, nil
		},
	}

	s := New(src, WithLogger(quietLogger()), WithConcurrency(2))
	done := make(chan error, 1)
	go func() {
		_, err := s.Fetch(context.Background(), []string{"a.io", "b.io", "c.io", "d.io", "e.io"})
		done <- err
	}()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	if err := os.WriteFile(path, []byte(basis), 0644); err != nil {
		t.Fatalf("failed to write hosts: %v", err)
	}

	tests := []struct {
		name    string
		stdin   string
		input   string
		want    string
		wantErr bool
	}{
		{name: "file", input: path, want: basis},
		{name: "stdin", stdin: "1.1.1.1\ta.\n", input: Stdio, want: "1.1.1.1\ta.\n"},
		{name: "missing file", input: filepath.Join(t.TempDir(), "nope"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadInput(strings.NewReader(tt.stdin), tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadInput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ReadInput() = %q, want %q", got, tt.want)
			}
		})
	}
}
