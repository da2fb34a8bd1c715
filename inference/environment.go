package inference

import (
	"os"
	"sync"

	"github.com/nvr-ai/go-anomaly/inference/providers"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	initOnce sync.Once
	initErr  error
)

// Initialize loads the ONNX Runtime shared library and creates the process-wide
// environment. Only the first call has any effect; later calls return its result.
//
// Arguments:
//   - libPath: The shared library path, empty for the platform default.
//
// Returns:
//   - error: An error if the library is missing or the environment fails to start.
func Initialize(libPath string) error {
	initOnce.Do(func() {
		if libPath == "" {
			libPath = providers.GetSharedLibPath()
		}
		if _, err := os.Stat(libPath); err != nil {
			initErr = errors.Wrapf(err, "onnxruntime shared library %s", libPath)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = errors.Wrap(err, "error initializing ORT environment")
		}
	})
	return initErr
}

// Shutdown destroys the ONNX Runtime environment.
func Shutdown() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}
