package cli

import (
	"reflect"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-sharedpages"
)

// pidMapper creates a Kong mapper for sharedpages.PID.
func pidMapper() kong.MapperFunc {
	return func(ctx *kong.DecodeContext, target reflect.Value) error {
		var s string
		if err := ctx.Scan.PopValueInto("pid", &s); err != nil {
			return err
		}
		pid, err := sharedpages.ParsePID(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(pid))
		return nil
	}
}
