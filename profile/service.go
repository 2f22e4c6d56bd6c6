package profile

import (
	"fmt"
	"strings"
)

// ServiceKind is the kind of inference backend that was benchmarked.
type ServiceKind int

const (
	Triton ServiceKind = iota
	TensorFlowServing
	TorchServe
	TritonCAPI
	OpenAI
)

var serviceTokens = [...]string{
	Triton:            "triton",
	TensorFlowServing: "tfserving",
	TorchServe:        "torchserve",
	TritonCAPI:        "triton_c_api",
	OpenAI:            "openai",
}

// Token returns the lowercase token written to the export.
func (k ServiceKind) Token() (string, error) {
	if k < 0 || int(k) >= len(serviceTokens) {
		return "", fmt.Errorf("%w: %d", ErrInvalidServiceKind, int(k))
	}

	return serviceTokens[k], nil
}

func (k ServiceKind) String() string {
	token, err := k.Token()
	if err != nil {
		return fmt.Sprintf("ServiceKind(%d)", int(k))
	}

	return token
}

// ParseServiceKind accepts an export token ("tfserving") or the backend
// name ("TENSORFLOW_SERVING"), case-insensitively.
func ParseServiceKind(s string) (ServiceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "triton":
		return Triton, nil
	case "tfserving", "tensorflow_serving":
		return TensorFlowServing, nil
	case "torchserve":
		return TorchServe, nil
	case "triton_c_api":
		return TritonCAPI, nil
	case "openai":
		return OpenAI, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrInvalidServiceKind, s)
	}
}
