package modules

const (
	codeInvalidParams = -32602
	codeServerError   = -32000
)

// ModuleError carries the HTTP status alongside the JSON-RPC error payload so
// the transport layer can render both without inspecting engine internals.
type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}
