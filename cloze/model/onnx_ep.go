package model

import "strings"

// RuntimeOptions configures ONNX Runtime sessions.
type RuntimeOptions struct {
	// SharedLibraryPath points at libonnxruntime; empty probes common locations.
	SharedLibraryPath string
	// ExecutionProvider: "cuda", "tensorrt", "coreml", "dml", or "cpu".
	ExecutionProvider string
	// DeviceID is used by some EPs (e.g., DirectML).
	DeviceID int
	// IntraOpThreads; 0 lets ORT decide.
	IntraOpThreads int
}

func (o RuntimeOptions) provider() string {
	return strings.ToLower(strings.TrimSpace(o.ExecutionProvider))
}

// sharedLibraryCandidates lists where libonnxruntime usually lives.
var sharedLibraryCandidates = []string{
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/libonnxruntime.so",
	"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
	"/usr/local/lib/libonnxruntime.dylib",
}
