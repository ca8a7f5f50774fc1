//go:build !onnx

package cli

import (
	"fmt"

	"github.com/vakeel-labs/vakeel/embedder"
)

func (a *app) buildONNXEmbedder() (embedder.Embedder, error) {
	return nil, fmt.Errorf("onnx embedding support is not compiled in; rebuild with -tags onnx")
}
