package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/prospector/pkg/prospect"
)

// YAMLWriter writes responses as YAML on Close.
type YAMLWriter struct {
	w     *bufio.Writer
	resps []*prospect.Response
}

// NewYAMLWriter buffers responses until Close.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{w: bufio.NewWriter(w)}
}

func (w *YAMLWriter) Write(resp *prospect.Response) error {
	w.resps = append(w.resps, resp)
	return nil
}

func (w *YAMLWriter) Close() error {
	if len(w.resps) == 0 {
		return nil
	}

	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)

	var err error
	if len(w.resps) == 1 {
		err = encoder.Encode(w.resps[0])
	} else {
		err = encoder.Encode(w.resps)
	}
	if err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	w.resps = nil
	return w.w.Flush()
}
