// Package testargs builds go test invocations and describes recorded ones.
package testargs

import (
	"regexp"
	"strconv"
	"strings"

	"al.essio.dev/pkg/shellescape"
)

// DefaultPackages is used when no package pattern is given.
var DefaultPackages = []string{"./..."}

// valueFlags take a separate value argument when not written as -flag=value.
var valueFlags = map[string]bool{
	"run":          true,
	"skip":         true,
	"count":        true,
	"timeout":      true,
	"tags":         true,
	"bench":        true,
	"benchtime":    true,
	"cpu":          true,
	"parallel":     true,
	"p":            true,
	"coverprofile": true,
	"covermode":    true,
	"coverpkg":     true,
	"shuffle":      true,
	"list":         true,
	"exec":         true,
	"o":            true,
	"ldflags":      true,
	"gcflags":      true,
	"m":            true,
	// pytest
	"playtest-report": true,
	"numprocesses":    true,
}

// Options describes one go test invocation.
type Options struct {
	Packages []string
	Run      string
	Tags     string
	Parallel int
	// Extra flags passed through to go test unchanged
	Extra []string
}

// Build returns the go test arguments, without the leading "go".
func Build(opts Options) []string {
	args := []string{"test", "-json"}

	if opts.Tags != "" {
		args = append(args, "-tags", opts.Tags)
	}
	if opts.Parallel > 0 {
		args = append(args, "-p", strconv.Itoa(opts.Parallel))
	}
	if opts.Run != "" {
		args = append(args, "-run", opts.Run)
	}

	packages := opts.Packages
	if len(packages) == 0 {
		packages = DefaultPackages
	}
	args = append(args, packages...)
	args = append(args, opts.Extra...)
	return args
}

func flagName(arg string) string {
	name := strings.TrimLeft(arg, "-")
	if idx := strings.Index(name, "="); idx >= 0 {
		name = name[:idx]
	}
	return strings.TrimPrefix(name, "test.")
}

// Separate splits arguments into package patterns and flags. Values of flags
// that take one stay with their flag.
func Separate(args []string) (packages, flags []string) {
	packages = []string{}
	flags = []string{}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			continue
		}

		if strings.HasPrefix(arg, "-") {
			flags = append(flags, arg)
			if !strings.Contains(arg, "=") && valueFlags[flagName(arg)] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
			continue
		}

		packages = append(packages, arg)
	}

	return packages, flags
}

// flagValue returns the value of the named flag in either -name=value or
// -name value form.
func flagValue(args []string, name string) (string, bool) {
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") || flagName(arg) != name {
			continue
		}
		if idx := strings.Index(arg, "="); idx >= 0 {
			return arg[idx+1:], true
		}
		if i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

// isGoTest reports whether args were recorded from a go test invocation.
func isGoTest(args []string) bool {
	return len(args) > 0 && args[0] == "test"
}

// RunType describes how a session selected its tests.
func RunType(args []string) string {
	if v, ok := flagValue(args, "run"); ok {
		return "By test name - " + v
	}

	if !isGoTest(args) {
		// Artifacts written by the pytest plugin
		for _, arg := range args {
			if strings.Contains(arg, "::") {
				return "By test case - " + arg
			}
		}
		for _, arg := range args {
			if strings.HasSuffix(arg, ".py") {
				return "By test file - " + arg
			}
		}
		if v, ok := flagValue(args, "m"); ok {
			return "By markers - " + v
		}
	}

	if v, ok := flagValue(args, "tags"); ok {
		return "By build tags - " + v
	}

	rest := args
	if isGoTest(args) {
		rest = args[1:]
	}
	packages, _ := Separate(rest)

	switch {
	case len(packages) == 0:
		if isGoTest(args) {
			return "By package - ."
		}
		return "All tests"
	case len(packages) == 1 && packages[0] == "./...":
		return "All tests"
	case len(packages) == 1 && strings.HasSuffix(packages[0], "..."):
		return "By package pattern - " + packages[0]
	case len(packages) == 1 && !isGoTest(args):
		return "By test folder - " + packages[0]
	case len(packages) == 1:
		return "By package - " + packages[0]
	}
	return "By packages - " + strings.Join(packages, " ")
}

// CommandLine renders recorded arguments as a shell command.
func CommandLine(args []string) string {
	program := "pytest"
	if isGoTest(args) {
		program = "go"
	}
	return quoteCommand(program, args)
}

func quoteCommand(program string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, program)
	for _, arg := range args {
		parts = append(parts, shellescape.Quote(arg))
	}
	return strings.Join(parts, " ")
}

// SplitNodeID splits "<package>::<test>" into its two halves. test is empty
// for package level nodes.
func SplitNodeID(nodeID string) (pkg, test string) {
	if idx := strings.Index(nodeID, "::"); idx >= 0 {
		return nodeID[:idx], nodeID[idx+2:]
	}
	return nodeID, ""
}

// RunPattern returns a -run expression matching exactly one (sub)test.
func RunPattern(test string) string {
	parts := strings.Split(test, "/")
	for i, part := range parts {
		parts[i] = "^" + regexp.QuoteMeta(part) + "$"
	}
	return strings.Join(parts, "/")
}

// RerunCommand returns a shell command that runs only nodeID again, using
// the build tags of the recorded invocation.
func RerunCommand(args []string, nodeID string) string {
	pkg, test := SplitNodeID(nodeID)

	if !isGoTest(args) && (strings.Contains(pkg, ".py") || test == "") {
		return quoteCommand("pytest", []string{nodeID})
	}

	rerun := []string{"test"}
	if tags, ok := flagValue(args, "tags"); ok {
		rerun = append(rerun, "-tags", tags)
	}
	if test != "" {
		rerun = append(rerun, "-run", RunPattern(test))
	}
	rerun = append(rerun, pkg)
	return quoteCommand("go", rerun)
}

// JoinNodeID builds the node identifier of a (sub)test from its name parts.
func JoinNodeID(pkg string, parts []string) string {
	return pkg + "::" + strings.Join(parts, "/")
}
