package checks

import (
	"context"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/bag"
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

var infoEnv = mustEnv()

func mustEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("info", cel.MapType(cel.StringType, cel.ListType(cel.StringType))),
	)
	if err != nil {
		panic(err)
	}
	return env
}

// Expression compiles a CEL expression over the bag-info.txt elements into a Check.  The
// expression sees a variable info, mapping each label (as written) to its values, and must
// evaluate to a bool; false violates the rule with the given message.
//
//	!("Bag-Count" in info) || "Bag-Group-Identifier" in info
func Expression(expr, message string) (dansbag.Check, error) {
	ast, issues := infoEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "could not compile %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("expression %q yields %s, not bool", expr, ast.OutputType())
	}

	prg, err := infoEnv.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create program for %q", expr)
	}

	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		tags, err := info(b)
		if err != nil {
			return dansbag.Outcome{}, err
		}

		out, _, err := prg.ContextEval(ctx, map[string]interface{}{"info": tags.Map()})
		if err != nil {
			return dansbag.Outcome{}, errors.Wrapf(err, "could not evaluate %q", expr)
		}

		holds, ok := out.Value().(bool)
		if !ok {
			return dansbag.Outcome{}, errors.Errorf("expression %q did not yield a bool", expr)
		}
		if !holds {
			return dansbag.Fail(message), nil
		}
		return dansbag.Pass(), nil
	}), nil
}
