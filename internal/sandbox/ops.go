package sandbox

import (
	"context"
	"fmt"
)

// Op is one tool invocation. The set of operations is closed.
type Op interface {
	op()
}

type (
	ListOp   struct{ Dir string }
	ReadOp   struct{ Path string }
	WriteOp  struct{ Path, Content string }
	SearchOp struct{ Pattern string }
	ShellOp  struct{ Command string }
	GitOp    struct{ Args string }
)

func (ListOp) op()   {}
func (ReadOp) op()   {}
func (WriteOp) op()  {}
func (SearchOp) op() {}
func (ShellOp) op()  {}
func (GitOp) op()    {}

// Execute runs op against the sandbox
func (s *Sandbox) Execute(ctx context.Context, op Op) (Result, error) {
	switch o := op.(type) {
	case ListOp:
		return s.List(o.Dir)
	case ReadOp:
		return s.Read(o.Path)
	case WriteOp:
		return s.Write(o.Path, o.Content)
	case SearchOp:
		return s.Search(ctx, o.Pattern)
	case ShellOp:
		return s.Shell(ctx, o.Command)
	case GitOp:
		return s.Git(ctx, o.Args)
	default:
		return Result{}, fmt.Errorf("unknown operation %T", op)
	}
}
