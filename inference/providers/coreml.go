package providers

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// Flags is the COREML_FLAG_* bit set passed to the provider, 0 for defaults.
	Flags uint32 `json:"flags" yaml:"flags"`
}
