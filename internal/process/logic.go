package process

import (
	"github.com/bytedance/sonic"
	"github.com/diegoholiveira/jsonlogic"

	"github.com/hlop3z/formsandbox/internal/fserr"
)

// jsonLogicCapability is the name under which JSON logic is exposed to
// the form-logic library.
const jsonLogicCapability = "__jsonLogic"

// applyJSONLogic evaluates a JSON logic rule. It is pure: JSON text in,
// JSON text out, so it may be handed to a sandbox as a capability.
func applyJSONLogic(rule, data string) (string, error) {
	var r, d any
	if err := sonic.UnmarshalString(rule, &r); err != nil {
		return "", fserr.Wrap(fserr.ErrScriptEvaluation, err, "json logic rule is not valid JSON")
	}
	if data != "" {
		if err := sonic.UnmarshalString(data, &d); err != nil {
			return "", fserr.Wrap(fserr.ErrScriptEvaluation, err, "json logic data is not valid JSON")
		}
	}
	res, err := jsonlogic.ApplyInterface(r, d)
	if err != nil {
		return "", fserr.Wrap(fserr.ErrScriptEvaluation, err, "json logic evaluation failed")
	}
	return sonic.MarshalString(res)
}
