package fake

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Redacted replaces the value of redacted headers in recorded fixtures.
const Redacted = "REDACTED"

// Recording is the on-disk form of a fixture. Text bodies are stored in Body,
// anything that is not valid UTF-8 in BodyBase64.
type Recording struct {
	Status     int             `json:"status"`
	Headers    RecordedHeaders `json:"headers"`
	Body       string          `json:"body,omitempty"`
	BodyBase64 string          `json:"body_base64,omitempty"`
}

// RecordedHeaders keeps every value of a header. In fixture files a header may be
// written as a single string or as a list of strings.
type RecordedHeaders map[string][]string

// UnmarshalJSON implements json.Unmarshaler.
func (h *RecordedHeaders) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	out := make(RecordedHeaders, len(raw))
	for key, value := range raw {
		var values []string
		if err := json.Unmarshal(value, &values); err != nil {
			var single string
			if err := json.Unmarshal(value, &single); err != nil {
				return fmt.Errorf("fake: header %q must be a string or a list of strings", key)
			}
			values = []string{single}
		}
		out[http.CanonicalHeaderKey(key)] = values
	}
	*h = out
	return nil
}

// Contents returns the recorded body bytes.
func (r Recording) Contents() ([]byte, error) {
	if r.BodyBase64 == "" {
		return []byte(r.Body), nil
	}
	data, err := base64.StdEncoding.DecodeString(r.BodyBase64)
	if err != nil {
		return nil, fmt.Errorf("fake: decode fixture body: %w", err)
	}
	return data, nil
}

// Response converts the recording into a fake Response.
func (r Recording) Response() (*Response, error) {
	body, err := r.Contents()
	if err != nil {
		return nil, err
	}
	return New(StringBody(body), WithStatus(r.Status), WithHTTPHeader(http.Header(r.Headers))), nil
}

// Fixture is a file-backed fake response: the first request is sent through the
// live transport and recorded, every later request replays the recording.
type Fixture struct {
	dir           string
	name          string
	transport     http.RoundTripper
	redactHeaders []string
}

// FixtureOption configures a Fixture.
type FixtureOption func(*Fixture)

// WithLiveTransport sets the transport used to record a missing fixture.
// Defaults to http.DefaultTransport.
func WithLiveTransport(rt http.RoundTripper) FixtureOption {
	return func(f *Fixture) {
		f.transport = rt
	}
}

// WithRedactedHeaders lists response headers whose values are replaced with Redacted on record.
func WithRedactedHeaders(headers ...string) FixtureOption {
	return func(f *Fixture) {
		f.redactHeaders = append(f.redactHeaders, headers...)
	}
}

// NewFixture creates a fixture stored at dir/name.json. Name may contain "/" to nest
// fixtures but must stay inside dir.
func NewFixture(dir, name string, opts ...FixtureOption) (*Fixture, error) {
	if dir == "" {
		return nil, errors.New("fake: fixture directory is required")
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if name == "" || clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("fake: invalid fixture name %q", name)
	}

	f := &Fixture{
		dir:       dir,
		name:      clean,
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Path returns the fixture file path.
func (f *Fixture) Path() string {
	return filepath.Join(f.dir, f.name+".json")
}

// Exists reports whether the fixture has been recorded.
func (f *Fixture) Exists() bool {
	_, err := os.Stat(f.Path())
	return err == nil
}

// Load reads the recording from disk.
func (f *Fixture) Load() (*Recording, error) {
	data, err := os.ReadFile(f.Path())
	if err != nil {
		return nil, err
	}

	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("fake: decode fixture %s: %w", f.Path(), err)
	}
	if rec.Status == 0 {
		rec.Status = http.StatusOK
	}
	return &rec, nil
}

// RoundTrip implements http.RoundTripper by replaying or recording the fixture.
func (f *Fixture) RoundTrip(req *http.Request) (*http.Response, error) {
	rec, err := f.Load()
	if err == nil {
		replay, err := rec.Response()
		if err != nil {
			return nil, fmt.Errorf("fake: replay fixture %s: %w", f.name, err)
		}
		return replay.HTTPResponse(req)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	live, err := f.transport.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("fake: record fixture %s: %w", f.name, err)
	}
	defer live.Body.Close()

	body, err := io.ReadAll(live.Body)
	if err != nil {
		return nil, fmt.Errorf("fake: read live response: %w", err)
	}

	if err := f.save(live, body); err != nil {
		return nil, err
	}

	live.Body = io.NopCloser(bytes.NewReader(body))
	return live, nil
}

func (f *Fixture) save(live *http.Response, body []byte) error {
	rec := Recording{
		Status:  live.StatusCode,
		Headers: RecordedHeaders(live.Header.Clone()),
	}
	if rec.Headers == nil {
		rec.Headers = make(RecordedHeaders)
	}
	if utf8.Valid(body) {
		rec.Body = string(body)
	} else {
		rec.BodyBase64 = base64.StdEncoding.EncodeToString(body)
	}
	for _, key := range f.redactHeaders {
		key = http.CanonicalHeaderKey(key)
		if values, ok := rec.Headers[key]; ok {
			redacted := make([]string, len(values))
			for i := range redacted {
				redacted[i] = Redacted
			}
			rec.Headers[key] = redacted
		}
	}
	// Content-Length is recomputed on replay.
	delete(rec.Headers, "Content-Length")

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("fake: encode fixture: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.Path()), 0o750); err != nil {
		return fmt.Errorf("fake: create fixture directory: %w", err)
	}
	if err := os.WriteFile(f.Path(), data, 0o600); err != nil {
		return fmt.Errorf("fake: write fixture: %w", err)
	}
	return nil
}
