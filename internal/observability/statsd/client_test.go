package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"transfer.batch":      "transfer.batch",
		" transfer..batch ":   "transfer.batch",
		"transfer/batch size": "transfer_batch_size",
		"":                    "",
		"...":                 "",
	}
	for in, want := range cases {
		if got := normalizeMetricName(in); got != want {
			t.Errorf("normalizeMetricName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	got := formatTags(
		map[string]string{"env": "prod", "service": "bulkmove"},
		map[string]string{"env": "stage", " status ": " running ", "": "dropped"},
	)
	want := "|#env:stage,service:bulkmove,status:running"
	if got != want {
		t.Fatalf("formatTags mismatch\n got: %q\nwant: %q", got, want)
	}
	if got := formatTags(nil, nil); got != "" {
		t.Fatalf("formatTags(nil, nil) = %q, want empty string", got)
	}
}

func TestClientWritesPrefixedLines(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	c, err := NewClient(Config{Prefix: ".bulkmove.", GlobalTags: map[string]string{"env": "test"}})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	c.conn = clientConn

	lines := make(chan string, 1)
	go func() {
		buf := make([]byte, 512)
		n, _ := peerConn.Read(buf)
		lines <- string(buf[:n])
	}()

	c.Count("transfer.batch", 3, map[string]string{"result": "success"})

	select {
	case got := <-lines:
		want := "bulkmove.transfer.batch:3|c|#env:test,result:success"
		if got != want {
			t.Fatalf("line mismatch\n got: %q\nwant: %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for metric line")
	}
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{conn: clientConn}
	if !client.Enabled() {
		t.Fatal("expected client.Enabled to report true with active connection")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected client.Enabled to report false after Close")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close (second call) error: %v", err)
	}

	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatal("nil client should report disabled")
	}
	nilClient.Count("ignored", 1, nil)
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil client Close error: %v", err)
	}
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: true, Address: "   "})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected client to stay disabled when address is empty")
	}
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	if err == nil {
		t.Fatal("expected NewClient to error for invalid address")
	}
	if !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecorderNamed(t *testing.T) {
	t.Parallel()

	var r Recorder
	r.Count("a", 2, nil)
	r.Timing("b", 1500*time.Microsecond, map[string]string{"k": "v"})
	r.Count("a", 1, nil)

	got := r.Named("a")
	if len(got) != 2 || got[0].Value != 2 || got[1].Value != 1 {
		t.Fatalf("unexpected metrics: %+v", got)
	}
	if b := r.Named("b"); len(b) != 1 || b[0].Value != 1.5 || b[0].Tags["k"] != "v" {
		t.Fatalf("unexpected timing: %+v", b)
	}
}
