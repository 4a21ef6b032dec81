package output

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/jmylchreest/prospector/pkg/prospect"
)

// JSONWriter writes responses as one JSON document. A single response is
// written as an object, several as an array.
type JSONWriter struct {
	w      *bufio.Writer
	pretty bool
	indent string
	resps  []*prospect.Response
}

// NewJSONWriter buffers responses until Close.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
	}
}

func (w *JSONWriter) Write(resp *prospect.Response) error {
	w.resps = append(w.resps, resp)
	return nil
}

func (w *JSONWriter) Close() error {
	if len(w.resps) == 0 {
		return nil
	}

	var doc any = w.resps
	if len(w.resps) == 1 {
		doc = w.resps[0]
	}

	var out []byte
	var err error
	if w.pretty {
		out, err = json.MarshalIndent(doc, "", w.indent)
	} else {
		out, err = json.Marshal(doc)
	}
	if err != nil {
		return err
	}

	if _, err := w.w.Write(out); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.resps = nil
	return w.w.Flush()
}

// JSONLWriter streams one prospect per line. Each line carries the job and
// engine it came from so lines stay meaningful once split apart.
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter writes one line per prospect as responses arrive.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: bufio.NewWriter(w)}
}

type jsonlLine struct {
	JobID string `json:"jobId,omitempty"`
	Query string `json:"query"`
	prospect.Prospect
}

func (w *JSONLWriter) Write(resp *prospect.Response) error {
	for _, p := range resp.Results {
		out, err := json.Marshal(jsonlLine{JobID: resp.JobID, Query: resp.Query, Prospect: p})
		if err != nil {
			return err
		}
		if _, err := w.w.Write(out); err != nil {
			return err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.w.Flush()
}

func (w *JSONLWriter) Close() error {
	return w.w.Flush()
}
