package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/prospector/pkg/prospect"
)

func testResponse(query string, n int) *prospect.Response {
	results := make([]prospect.Prospect, n)
	for i := range results {
		results[i] = prospect.FromRaw(prospect.RawResult{
			Title:        "Acme " + string(rune('A'+i)),
			Link:         "https://acme.example/" + string(rune('a'+i)),
			SourceEngine: "bing",
		})
		results[i].Emails = []string{"info@acme.example"}
	}
	resp := prospect.NewResponse(prospect.SearchQuery{Text: query}, "bing", results)
	resp.JobID = "job-1"
	resp.Status = "completed"
	return resp
}

// --- NewWriter Factory Tests ---

func TestNewWriter(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, "*output.JSONWriter"},
		{FormatJSONL, "*output.JSONLWriter"},
		{FormatYAML, "*output.YAMLWriter"},
	}
	for _, tt := range tests {
		w, err := NewWriter(&bytes.Buffer{}, tt.format)
		if err != nil {
			t.Fatalf("NewWriter(%s) error = %v", tt.format, err)
		}
		if got := fmt.Sprintf("%T", w); got != tt.want {
			t.Errorf("NewWriter(%s): expected %s, got %s", tt.format, tt.want, got)
		}
	}
}

func TestNewWriter_UnsupportedFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, Format("csv"))
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{" JSONL ", FormatJSONL, false},
		{"Yaml", FormatYAML, false},
		{"xml", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

// --- JSONWriter Tests ---

func TestJSONWriter_SingleResponse(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, true, "  ")

	if err := w.Write(testResponse("agencies", 2)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Error("expected JSON output to be buffered until Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var got prospect.Response
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if got.Query != "agencies" || got.TotalFound != 2 || len(got.Results) != 2 {
		t.Errorf("unexpected response %+v", got)
	}
	if got.EngineUsed == nil || *got.EngineUsed != "bing" {
		t.Errorf("expected engineUsed bing, got %v", got.EngineUsed)
	}
	if !strings.Contains(buf.String(), "\n  \"query\"") {
		t.Error("expected indented output")
	}
}

func TestJSONWriter_MultipleResponses_OutputsArray(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false, "")

	w.Write(testResponse("first", 1))
	w.Write(testResponse("second", 0))
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var got []prospect.Response
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if len(got) != 2 || got[0].Query != "first" || got[1].Query != "second" {
		t.Errorf("unexpected responses %+v", got)
	}
	if got[1].Results == nil {
		t.Error("expected empty results to encode as []")
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Error("expected compact single-line output")
	}
}

func TestJSONWriter_CloseWithoutWrites(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONWriter(buf, true, "  ").Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

// --- JSONLWriter Tests ---

func TestJSONLWriter_OneLinePerProspect(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)

	if err := w.Write(testResponse("agencies", 3)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	var line struct {
		JobID  string   `json:"jobId"`
		Query  string   `json:"query"`
		Title  string   `json:"title"`
		Emails []string `json:"emails"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &line); err != nil {
		t.Fatalf("failed to unmarshal line: %v", err)
	}
	if line.JobID != "job-1" || line.Query != "agencies" || line.Title != "Acme B" {
		t.Errorf("unexpected line %+v", line)
	}
	if len(line.Emails) != 1 {
		t.Errorf("expected prospect fields inline, got %+v", line)
	}
}

func TestJSONLWriter_EmptyResponse(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)
	if err := w.Write(testResponse("nothing", 0)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no lines, got %q", buf.String())
	}
}

// --- YAMLWriter Tests ---

func TestYAMLWriter_SingleResponse(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)

	if err := w.Write(testResponse("agencies", 1)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var got struct {
		Query      string `yaml:"query"`
		TotalFound int    `yaml:"totalFound"`
		Results    []struct {
			Title  string   `yaml:"title"`
			Emails []string `yaml:"emails"`
		} `yaml:"results"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if got.Query != "agencies" || got.TotalFound != 1 || len(got.Results) != 1 {
		t.Errorf("unexpected response %+v", got)
	}
	if got.Results[0].Title != "Acme A" || len(got.Results[0].Emails) != 1 {
		t.Errorf("unexpected prospect %+v", got.Results[0])
	}
}

func TestYAMLWriter_MultipleResponses(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)
	w.Write(testResponse("first", 0))
	w.Write(testResponse("second", 0))
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var got []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected a 2 item sequence, got %d", len(got))
	}
}
