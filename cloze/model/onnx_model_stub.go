//go:build !onnx
// +build !onnx

package model

import (
	"context"
	"fmt"
)

// onnxModel is a stub used when built without the "onnx" build tag.
type onnxModel struct{ kind Kind }

func newONNXModel(kind Kind, modelPath string, opts RuntimeOptions) LanguageModel {
	return &onnxModel{kind: kind}
}

func (m *onnxModel) Forward(ctx context.Context, batch *Batch) (*Logits, error) {
	return nil, fmt.Errorf("onnx %s model not available: build with -tags onnx and provide a supported model", m.kind)
}

func (m *onnxModel) Close() error { return nil }
