//go:build onnx

package cli

import (
	"github.com/vakeel-labs/vakeel/embedder"
	"github.com/vakeel-labs/vakeel/embedder/onnx"
)

// buildONNXEmbedder loads the local all-MiniLM-L6-v2 model. Only available
// when built with the onnx tag, since it needs the onnxruntime shared
// library at runtime.
func (a *app) buildONNXEmbedder() (embedder.Embedder, error) {
	e, err := onnx.New(onnx.Config{
		ModelPath:     a.cfg.OnnxModelPath,
		TokenizerPath: a.cfg.OnnxTokenizer,
		Dimensions:    a.cfg.EmbedDims,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { e.Close() })
	return e, nil
}
