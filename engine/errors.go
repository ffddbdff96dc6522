package engine

import (
	"fmt"

	"github.com/nodegraph/dataflow/flow"
)

func newConfigError(kind flow.ErrorKind, format string, args ...any) error {
	return &flow.Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
