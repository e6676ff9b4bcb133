// Command statusctl is a CLI client for the status API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/statuskit/statusd/internal/hmacsig"
)

// ---- credential store ----

type credentialFile struct {
	GlobalID     string `json:"global_id"`
	AccessID     string `json:"access_id"`
	AccessSecret string `json:"access_secret"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "statusctl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "statusctl")
}

func credentialPath() string { return filepath.Join(cfgDir(), "credential.json") }

func saveCredential(cf credentialFile) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.OpenFile(credentialPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(cf)
}

func loadCredential() (credentialFile, error) {
	var cf credentialFile
	b, err := os.ReadFile(credentialPath())
	if err != nil {
		return cf, err
	}
	if err := json.Unmarshal(b, &cf); err != nil {
		return cf, err
	}
	if cf.GlobalID == "" || cf.AccessSecret == "" {
		return cf, errors.New("no credential (enroll first)")
	}
	return cf, nil
}

// ---- signed HTTP calls ----

type client struct {
	base *url.URL
	http *http.Client
	cred credentialFile
}

func newClient(base string) (*client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	return &client{base: u, http: &http.Client{Timeout: 30 * time.Second}}, nil
}

// do issues a request. When signed is set, the three signature headers are
// computed over the request method, path and body with the stored secret.
func (c *client) do(ctx context.Context, method, path string, query url.Values, body any, signed bool) ([]byte, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = b
	}

	u := *c.base
	u.Path = path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed {
		h, err := hmacsig.Sign(method, path, payload, c.cred.AccessSecret)
		if err != nil {
			return nil, err
		}
		req.Header.Set(hmacsig.HeaderAuthorization, h.Authorization)
		req.Header.Set(hmacsig.HeaderContentMD5, h.ContentMD5)
		req.Header.Set(hmacsig.HeaderNonce, h.Nonce)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(out))
	}
	return out, nil
}

func printJSON(raw []byte) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Println(string(raw))
		return
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `statusctl
Usage:
  statusctl -addr URL <cmd> [args]

Commands:
  version
  enroll        -g <global_id> -d <device_id>       (saves credential)
  revoke        -g <global_id>
  grants        [-g <recipient>] [-t <type>]
  grant         -k CURRENT|HISTORY -g <recipient> -t <pattern>
  ungrant       -k CURRENT|HISTORY -g <recipient> -t <pattern>
  publish       -t <type> -c <contents> [-ts <rfc3339>]
  status        [-own] [-g <publisher>] [-t <type>] [-since <cursor>]
  history       -g <target> -t <type> [-more <page>]
  send          -g <recipient> -m <json>
  recv
  session-start
  session-end
  locate        -s <session_id> -lat <deg> -lon <deg> [-ts <rfc3339>]
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands; most of them need a stored credential.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cli, err := newClient(*addr)
	if err != nil {
		fail(err)
	}

	// Commands other than these require the stored credential.
	switch cmd {
	case "version", "enroll", "revoke", "locate":
	default:
		cred, err := loadCredential()
		if err != nil {
			fail(err)
		}
		cli.cred = cred
	}

	switch cmd {

	case "version":
		fmt.Printf("statusctl %s (%s)\n", version, buildDate)

	case "enroll":
		fs := flag.NewFlagSet("enroll", flag.ExitOnError)
		g := fs.String("g", "", "global ID")
		d := fs.String("d", "", "device ID")
		_ = fs.Parse(flag.Args()[1:])
		if *g == "" || *d == "" {
			fmt.Fprintln(os.Stderr, "need -g and -d")
			os.Exit(1)
		}

		out, err := cli.do(ctx, http.MethodPost, "/access", nil,
			map[string]string{"global_id": *g, "device_id": *d}, false)
		if err != nil {
			fail(err)
		}
		var cf credentialFile
		if err := json.Unmarshal(out, &cf); err != nil {
			fail(err)
		}
		cf.GlobalID = *g
		if err := saveCredential(cf); err != nil {
			fail(err)
		}
		fmt.Println(cf.AccessID)

	case "revoke":
		fs := flag.NewFlagSet("revoke", flag.ExitOnError)
		g := fs.String("g", "", "global ID")
		_ = fs.Parse(flag.Args()[1:])
		if *g == "" {
			fmt.Fprintln(os.Stderr, "need -g")
			os.Exit(1)
		}

		q := url.Values{"global_id": {*g}}
		if _, err := cli.do(ctx, http.MethodDelete, "/access", q, nil, false); err != nil {
			fail(err)
		}

	case "grants":
		fs := flag.NewFlagSet("grants", flag.ExitOnError)
		g := fs.String("g", "", "recipient filter")
		t := fs.String("t", "", "status type filter")
		_ = fs.Parse(flag.Args()[1:])

		q := url.Values{}
		if *g != "" {
			q.Set("global_id", *g)
		}
		if *t != "" {
			q.Set("type", *t)
		}
		out, err := cli.do(ctx, http.MethodGet, "/"+cli.cred.GlobalID+"/permission", q, nil, true)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "grant":
		fs := flag.NewFlagSet("grant", flag.ExitOnError)
		k := fs.String("k", "", "access type (CURRENT or HISTORY)")
		g := fs.String("g", "", "recipient")
		t := fs.String("t", "", "status type pattern")
		_ = fs.Parse(flag.Args()[1:])
		if *k == "" || *g == "" || *t == "" {
			fmt.Fprintln(os.Stderr, "need -k, -g and -t")
			os.Exit(1)
		}

		body := map[string]string{"access_type": *k, "global_id": *g, "status_type": *t}
		if _, err := cli.do(ctx, http.MethodPost, "/"+cli.cred.GlobalID+"/permission", nil, body, true); err != nil {
			fail(err)
		}

	case "ungrant":
		fs := flag.NewFlagSet("ungrant", flag.ExitOnError)
		k := fs.String("k", "", "access type (CURRENT or HISTORY)")
		g := fs.String("g", "", "recipient")
		t := fs.String("t", "", "status type pattern")
		_ = fs.Parse(flag.Args()[1:])
		if *k == "" || *g == "" || *t == "" {
			fmt.Fprintln(os.Stderr, "need -k, -g and -t")
			os.Exit(1)
		}

		q := url.Values{"access_type": {*k}, "global_id": {*g}, "status_type": {*t}}
		if _, err := cli.do(ctx, http.MethodDelete, "/"+cli.cred.GlobalID+"/permission", q, nil, true); err != nil {
			fail(err)
		}

	case "publish":
		fs := flag.NewFlagSet("publish", flag.ExitOnError)
		t := fs.String("t", "", "status type")
		c := fs.String("c", "", "contents")
		ts := fs.String("ts", "", "timestamp (RFC 3339; default now)")
		_ = fs.Parse(flag.Args()[1:])
		if *t == "" {
			fmt.Fprintln(os.Stderr, "need -t")
			os.Exit(1)
		}
		if *ts == "" {
			*ts = time.Now().Format(time.RFC3339)
		}

		body := map[string]string{"type": *t, "timestamp": *ts, "contents": *c}
		if _, err := cli.do(ctx, http.MethodPost, "/"+cli.cred.GlobalID+"/status", nil, body, true); err != nil {
			fail(err)
		}

	case "status":
		fs := flag.NewFlagSet("status", flag.ExitOnError)
		own := fs.Bool("own", false, "show own published views")
		g := fs.String("g", "", "publisher filter")
		t := fs.String("t", "", "status type filter")
		since := fs.String("since", "", "since cursor")
		_ = fs.Parse(flag.Args()[1:])

		q := url.Values{}
		if *own {
			q.Set("own", "1")
		}
		if *g != "" {
			q.Set("global_id", *g)
		}
		if *t != "" {
			q.Set("type", *t)
		}
		if *since != "" {
			q.Set("since", *since)
		}
		out, err := cli.do(ctx, http.MethodGet, "/"+cli.cred.GlobalID+"/status", q, nil, true)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "history":
		fs := flag.NewFlagSet("history", flag.ExitOnError)
		g := fs.String("g", "", "target global ID")
		t := fs.String("t", "", "status type")
		more := fs.Int("more", 0, "page number")
		_ = fs.Parse(flag.Args()[1:])
		if *g == "" || *t == "" {
			fmt.Fprintln(os.Stderr, "need -g and -t")
			os.Exit(1)
		}

		q := url.Values{"global_id": {*g}, "type": {*t}}
		if *more > 0 {
			q.Set("more", strconv.Itoa(*more))
		}
		out, err := cli.do(ctx, http.MethodGet, "/"+cli.cred.GlobalID+"/history", q, nil, true)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "send":
		fs := flag.NewFlagSet("send", flag.ExitOnError)
		g := fs.String("g", "", "recipient")
		m := fs.String("m", "", "message (JSON)")
		_ = fs.Parse(flag.Args()[1:])
		if *g == "" || *m == "" {
			fmt.Fprintln(os.Stderr, "need -g and -m")
			os.Exit(1)
		}
		var msg json.RawMessage
		if err := json.Unmarshal([]byte(*m), &msg); err != nil {
			fail(fmt.Errorf("message must be valid JSON: %w", err))
		}

		body := map[string]any{"recipient": *g, "message": msg}
		if _, err := cli.do(ctx, http.MethodPost, "/"+cli.cred.GlobalID+"/message", nil, body, true); err != nil {
			fail(err)
		}

	case "recv":
		out, err := cli.do(ctx, http.MethodGet, "/"+cli.cred.GlobalID+"/message", nil, nil, true)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "session-start":
		out, err := cli.do(ctx, http.MethodPost, "/"+cli.cred.GlobalID+"/location_session", nil, nil, true)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "session-end":
		if _, err := cli.do(ctx, http.MethodDelete, "/"+cli.cred.GlobalID+"/location_session", nil, nil, true); err != nil {
			fail(err)
		}

	case "locate":
		fs := flag.NewFlagSet("locate", flag.ExitOnError)
		s := fs.String("s", "", "session ID")
		lat := fs.Float64("lat", 0, "latitude")
		lon := fs.Float64("lon", 0, "longitude")
		ts := fs.String("ts", "", "timestamp (RFC 3339; default now)")
		_ = fs.Parse(flag.Args()[1:])
		if *s == "" {
			fmt.Fprintln(os.Stderr, "need -s")
			os.Exit(1)
		}
		if *ts == "" {
			*ts = time.Now().Format(time.RFC3339)
		}

		body := map[string]any{
			"session_id": *s,
			"locations": []map[string]any{
				{"timestamp": *ts, "latitude": *lat, "longitude": *lon},
			},
		}
		if _, err := cli.do(ctx, http.MethodPost, "/location", nil, body, false); err != nil {
			fail(err)
		}

	default:
		usage()
	}
}
