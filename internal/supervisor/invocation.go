package supervisor

import (
	"fmt"
	"os"

	"mvdan.cc/sh/v3/shell"

	"github.com/scriptd/scriptd/internal/model"
)

// resolveInvocation builds the argv for a script per §4.1:
//   - interpreter: "<interpreterPath> -u <path> <tokenized arguments>"
//   - shell: "stdbuf -oL -eL bash <path> <tokenized arguments>", falling
//     back to a plain "bash <path> <tokenized arguments>" when stdbuf isn't
//     available (logged once by the caller, not per run).
func resolveInvocation(sc *model.Script, interpreterPath string, stdbufAvailable bool) ([]string, error) {
	args, err := tokenizeArguments(sc.Arguments)
	if err != nil {
		return nil, fmt.Errorf("tokenize arguments %q: %w", sc.Arguments, err)
	}

	switch sc.Type {
	case model.ScriptTypeInterpreter:
		argv := append([]string{interpreterPath, "-u", sc.Path}, args...)
		return argv, nil
	case model.ScriptTypeShell:
		var argv []string
		if stdbufAvailable {
			argv = []string{"stdbuf", "-oL", "-eL", "bash", sc.Path}
		} else {
			argv = []string{"bash", sc.Path}
		}
		return append(argv, args...), nil
	default:
		return nil, fmt.Errorf("unknown script type %q", sc.Type)
	}
}

// tokenizeArguments splits a POSIX-shell argument string the way the
// original's shlex.split did, but correctly: quoting and $VAR expansion
// against the process environment are honored via mvdan.cc/sh's parser
// (§4.1's "strict superset of shlex.split").
func tokenizeArguments(args string) ([]string, error) {
	if args == "" {
		return nil, nil
	}
	return shell.Fields(args, os.Getenv)
}
