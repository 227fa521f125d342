//go:build onnx
// +build onnx

package model

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var runtimeMu sync.Mutex

// initRuntime initializes the process-wide ORT environment once.
func initRuntime(opts RuntimeOptions) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	lib := opts.SharedLibraryPath
	if lib == "" {
		lib = findORTLibrary()
	}
	if lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnx runtime: %w", err)
	}
	return nil
}

// findORTLibrary looks for libonnxruntime in common locations
func findORTLibrary() string {
	if p := os.Getenv("ONNXRUNTIME_LIB"); p != "" {
		return p
	}
	for _, c := range sharedLibraryCandidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// ListONNXProviders returns the available ONNX Runtime execution providers.
func ListONNXProviders(opts RuntimeOptions) ([]string, error) {
	if err := initRuntime(opts); err != nil {
		return nil, err
	}
	// Not every onnxruntime_go build exposes provider discovery; CPU is
	// always there and richer EPs are probed at session creation.
	return []string{"cpu"}, nil
}
