//go:build !onnx
// +build !onnx

package model

import "fmt"

// ListONNXProviders is a stub when the package is built without ONNX support.
func ListONNXProviders(opts RuntimeOptions) ([]string, error) {
	return nil, fmt.Errorf("onnx support not built in; rebuild with -tags=onnx to enable")
}
