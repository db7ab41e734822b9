//go:build !llama

package engine

// No-CGO stub compiled when the 'llama' build tag is NOT set, keeping
// default builds and CI CGO-free. The real adapter lives in
// adapter_llama.go (tagged 'llama').

// NewLlamaAdapter returns an adapter that refuses to construct handles
// without the llama runtime. No mocked inference in production binaries.
func NewLlamaAdapter() Adapter {
	return llamaStubAdapter{}
}

type llamaStubAdapter struct{}

func (llamaStubAdapter) New(path string, opts Options) (Session, error) {
	return nil, ErrBackendUnavailable("llama support not built (missing 'llama' build tag)")
}
