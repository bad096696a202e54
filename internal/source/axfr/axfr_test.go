package axfr

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/miekg/dns"

	"github.com/munichmade/hostsync/internal/source"
)

const testZone = `$ORIGIN atha.io.
$TTL 300
@       IN SOA  ns1.atha.io. admin.atha.io. 1 3600 600 86400 300
@       IN NS   ns1.atha.io.
@       IN A    1.2.3.4
test    IN A    1.1.1.1
multi   IN A    1.2.3.4
v6      IN AAAA ::1
www     IN CNAME atha.io.
`

// startServer serves an AXFR of zone on a random local TCP port.
func startServer(t *testing.T, zone, text string) string {
	t.Helper()

	var rrs []dns.RR
	zp := dns.NewZoneParser(strings.NewReader(text), zone, "")
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		rrs = append(rrs, rr)
	}
	if err := zp.Err(); err != nil {
		t.Fatalf("failed to parse test zone: %v", err)
	}
	// AXFR starts and ends with the SOA.
	rrs = append(rrs, rrs[0])

	mux := dns.NewServeMux()
	mux.HandleFunc(zone, func(w dns.ResponseWriter, r *dns.Msg) {
		if r.Question[0].Qtype != dns.TypeAXFR {
			m := new(dns.Msg)
			m.SetRcode(r, dns.RcodeRefused)
			_ = w.WriteMsg(m)
			return
		}

		ch := make(chan *dns.Envelope)
		tr := new(dns.Transfer)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.Out(w, r, ch)
		}()
		ch <- &dns.Envelope{RR: rrs}
		close(ch)
		wg.Wait()
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	started := make(chan struct{})
	srv := &dns.Server{
		Listener:          ln,
		Net:               "tcp",
		Handler:           mux,
		NotifyStartedFunc: func() { close(started) },
	}
	go func() { _ = srv.ActivateAndServe() }()
	<-started

	t.Cleanup(func() { _ = srv.Shutdown() })
	return ln.Addr().String()
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		settings   source.Settings
		wantServer string
		wantErr    bool
	}{
		{"server with port", source.Settings{"server": "10.0.0.1:5353"}, "10.0.0.1:5353", false},
		{"server without port", source.Settings{"server": "ns1.example.com"}, "ns1.example.com:53", false},
		{"missing server", source.Settings{}, "", true},
		{"bad timeout", source.Settings{"server": "ns1", "timeout": "soon"}, "", true},
		{"tsig name without secret", source.Settings{"server": "ns1", "tsig_name": "key"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(source.Options{RecordTypes: []string{"A"}, Settings: tt.settings})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && s.server != tt.wantServer {
				t.Errorf("server = %q, want %q", s.server, tt.wantServer)
			}
		})
	}
}

func TestRecords(t *testing.T) {
	addr := startServer(t, "atha.io.", testZone)

	s, err := New(source.Options{RecordTypes: []string{"A"}, Settings: source.Settings{"server": addr}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	recs, warnings, err := s.Records(context.Background(), "atha.io")
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}

	if diff := cmp.Diff([]string{"1.2.3.4", "1.1.1.1"}, recs.Addresses()); diff != "" {
		t.Errorf("Addresses() mismatch (-want +got):\n%s", diff)
	}
	names, _ := recs.Get("1.2.3.4")
	if diff := cmp.Diff([]string{"atha.io.", "multi.atha.io."}, names); diff != "" {
		t.Errorf("hostnames mismatch (-want +got):\n%s", diff)
	}

	if len(warnings) != 1 || !strings.Contains(warnings[0], "www.atha.io.") {
		t.Errorf("warnings = %v, want one alias warning for www.atha.io.", warnings)
	}
}

func TestRecords_AAAA(t *testing.T) {
	addr := startServer(t, "atha.io.", testZone)

	s, err := New(source.Options{RecordTypes: []string{"AAAA"}, Settings: source.Settings{"server": addr}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	recs, _, err := s.Records(context.Background(), "atha.io.")
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if diff := cmp.Diff([]string{"::1"}, recs.Addresses()); diff != "" {
		t.Errorf("Addresses() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecords_Refused(t *testing.T) {
	addr := startServer(t, "atha.io.", testZone)

	s, err := New(source.Options{RecordTypes: []string{"A"}, Settings: source.Settings{"server": addr, "timeout": "2s"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, _, err := s.Records(context.Background(), "other.io"); err == nil {
		t.Error("Records() for an unserved zone should fail")
	}
}
