package outcome

// Result is the serialisable success-or-failure shape handed to UI and
// automation callers.
type Result[T any] struct {
	OK      bool   `json:"ok"`
	Value   T      `json:"value,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	RouteID int64  `json:"route_id,omitempty"`
}

// From builds a Result from a value/error pair.
func From[T any](v T, err error) Result[T] {
	if err == nil {
		return Result[T]{OK: true, Value: v}
	}
	e := Normalize("", 0, err)
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	return Result[T]{Kind: e.Kind.String(), Message: msg, RouteID: e.RouteID}
}
