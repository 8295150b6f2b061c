package sandbox

import (
	"github.com/dop251/goja"

	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/jsutil"
)

// prepare wires the base globals of a fresh runtime and captures the JSON
// codec before any source can replace it.
func prepare(vm *goja.Runtime) (parse, stringify goja.Callable, err error) {
	if err := vm.Set("global", vm.GlobalObject()); err != nil {
		return nil, nil, fserr.Wrap(fserr.ErrInternal, err, "failed to wire global")
	}
	if err := vm.Set("eval", goja.Undefined()); err != nil {
		return nil, nil, fserr.Wrap(fserr.ErrInternal, err, "failed to disable eval")
	}

	json, ok := jsutil.GetObject(vm.GlobalObject(), "JSON")
	if !ok {
		return nil, nil, fserr.New(fserr.ErrInternal, "runtime has no JSON object")
	}
	parse, okParse := jsutil.GetFunction(json, "parse")
	stringify, okStringify := jsutil.GetFunction(json, "stringify")
	if !okParse || !okStringify {
		return nil, nil, fserr.New(fserr.ErrInternal, "runtime JSON codec is incomplete")
	}
	return parse, stringify, nil
}

// freezeScript locks builtin prototypes once every dependency has loaded,
// so author code cannot poison what the dependencies rely on.
const freezeScript = `
(function () {
	try {
		Object.freeze(Object.prototype);
		Object.freeze(Array.prototype);
		Object.freeze(String.prototype);
		Object.freeze(Number.prototype);
		Object.freeze(Boolean.prototype);
		Object.freeze(Function.prototype);
		Object.freeze(Date.prototype);
		Object.freeze(RegExp.prototype);
	} catch (e) {}
})();
`

var freezeProgram = goja.MustCompile("freeze.js", freezeScript, false)

func freeze(vm *goja.Runtime) error {
	if _, err := vm.RunProgram(freezeProgram); err != nil {
		return fserr.Wrap(fserr.ErrInternal, err, "failed to freeze prototypes")
	}
	return nil
}
