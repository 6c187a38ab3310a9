package scripting

import (
	"context"

	"github.com/dop251/goja"
)

type GojaEngine struct {
	vm *goja.Runtime
}

func NewEngine() *GojaEngine {
	vm := goja.New()
	return &GojaEngine{vm: vm}
}

func (e *GojaEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := e.vm.RunString(script)
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	return val.Export(), nil
}

// RegisterReport exposes the report as a global 'report' object plus 'page'
// and 'warn' helpers.
func (e *GojaEngine) RegisterReport(dom ReportDOM) error {
	reportObj := e.vm.NewObject()
	if err := reportObj.Set("passed", dom.Passed()); err != nil {
		return err
	}
	if err := reportObj.Set("pageCount", dom.PageCount()); err != nil {
		return err
	}
	if err := reportObj.Set("minSimilarity", dom.MinSimilarity()); err != nil {
		return err
	}
	if err := reportObj.Set("meanSimilarity", dom.MeanSimilarity()); err != nil {
		return err
	}
	if err := reportObj.Set("issueCount", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return e.vm.ToValue(0)
		}
		return e.vm.ToValue(dom.IssueCount(call.Arguments[0].String()))
	}); err != nil {
		return err
	}
	if err := e.vm.Set("report", reportObj); err != nil {
		return err
	}

	if err := e.vm.Set("page", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		idx := int(call.Arguments[0].ToInteger())
		page, err := dom.Page(idx)
		if err != nil || page == nil {
			return goja.Null()
		}
		obj := e.vm.NewObject()
		obj.Set("index", page.GetIndex())
		obj.Set("similarity", page.GetSimilarity())
		obj.Set("diffRatio", page.GetDiffRatio())
		return obj
	}); err != nil {
		return err
	}

	return e.vm.Set("warn", func(call goja.FunctionCall) goja.Value {
		msg := ""
		if len(call.Arguments) > 0 {
			msg = call.Arguments[0].String()
		}
		dom.Warn(msg)
		return goja.Undefined()
	})
}
