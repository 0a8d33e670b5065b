package eval

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/anyos-project/anytoolchain/pkg/buildgraph"
	"github.com/anyos-project/anytoolchain/pkg/utils"
)

// dispatch runs one already-expanded command invocation. name is the
// command token as written (case folded inside); args is the flat,
// already-expanded-and-split argument vector (spec §4.1.3/§4.1.4).
func (e *Evaluator) dispatch(name string, args []string, sc ScopeID) error {
	switch strings.ToLower(name) {
	case "set":
		return e.cmdSet(args, sc)
	case "unset":
		return e.cmdUnset(args, sc)
	case "option":
		return e.cmdOption(args, sc)
	case "message":
		return e.cmdMessage(args)
	case "find_program":
		return e.cmdFindProgram(args, sc)
	case "file":
		return e.cmdFile(args, sc)
	case "add_custom_command":
		return e.cmdAddCustomCommand(args, sc)
	case "add_custom_target":
		return e.cmdAddCustomTarget(args, sc)
	case "get_filename_component":
		return e.cmdGetFilenameComponent(args, sc)
	case "list":
		return e.cmdList(args, sc)
	case "string":
		return e.cmdString(args, sc)
	case "cmake_minimum_required":
		return nil // version floor is not enforced by this subset
	case "project":
		if len(args) > 0 {
			e.Arena.Set(Root, "PROJECT_NAME", args[0])
		}
		return nil
	case "set_property":
		e.Logger.Debug("set_property ignored", "args", args)
		return nil
	default:
		return e.callUserDefined(name, args, sc)
	}
}

func (e *Evaluator) cmdSet(args []string, sc ScopeID) error {
	if len(args) == 0 {
		return fmt.Errorf("set(): requires a variable name")
	}
	name := args[0]
	rest := args[1:]
	parentScope := false
	if len(rest) > 0 && rest[len(rest)-1] == "PARENT_SCOPE" {
		parentScope = true
		rest = rest[:len(rest)-1]
	}
	value := strings.Join(rest, ";")
	if parentScope {
		e.Arena.SetParentScope(sc, name, value)
	} else {
		e.Arena.Set(sc, name, value)
	}
	return nil
}

func (e *Evaluator) cmdUnset(args []string, sc ScopeID) error {
	if len(args) == 0 {
		return fmt.Errorf("unset(): requires a variable name")
	}
	e.Arena.Unset(sc, args[0])
	return nil
}

// option(<name> "<help text>" [initial value])
func (e *Evaluator) cmdOption(args []string, sc ScopeID) error {
	if len(args) == 0 {
		return fmt.Errorf("option(): requires a variable name")
	}
	name := args[0]
	if e.Arena.Defined(sc, name) {
		return nil
	}
	initial := "OFF"
	if len(args) >= 3 {
		initial = args[2]
	}
	e.Arena.Set(Root, name, initial)
	return nil
}

var messageLevels = map[string]bool{
	"FATAL_ERROR": true, "SEND_ERROR": true, "WARNING": true,
	"AUTHOR_WARNING": true, "STATUS": true, "NOTICE": true, "VERBOSE": true, "DEBUG": true,
}

func (e *Evaluator) cmdMessage(args []string) error {
	if len(args) == 0 {
		return nil
	}
	level := "NOTICE"
	text := args
	if messageLevels[args[0]] {
		level = args[0]
		text = args[1:]
	}
	line := strings.Join(text, ";")
	switch level {
	case "FATAL_ERROR":
		return fmt.Errorf("%s", line)
	case "SEND_ERROR", "WARNING", "AUTHOR_WARNING":
		e.Logger.Warn(line)
	case "DEBUG", "VERBOSE":
		e.Logger.Debug(line)
	default:
		fmt.Fprintln(os.Stderr, line)
	}
	return nil
}

func (e *Evaluator) cmdFindProgram(args []string, sc ScopeID) error {
	if len(args) < 2 {
		return fmt.Errorf("find_program(): requires <VAR> <name>...")
	}
	varName := args[0]
	for _, candidate := range args[1:] {
		if path, err := exec.LookPath(candidate); err == nil {
			e.Arena.Set(sc, varName, path)
			return nil
		}
	}
	e.Arena.Set(sc, varName, varName+"-NOTFOUND")
	return nil
}

func (e *Evaluator) cmdFile(args []string, sc ScopeID) error {
	if len(args) == 0 {
		return fmt.Errorf("file(): requires a subcommand")
	}
	switch strings.ToUpper(args[0]) {
	case "MAKE_DIRECTORY":
		for _, dir := range args[1:] {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return utils.MakeError(err, "file(MAKE_DIRECTORY) failed for %q", dir)
			}
		}
		return nil
	case "GLOB":
		return e.fileGlob(args[1:], sc, false)
	case "GLOB_RECURSE":
		return e.fileGlob(args[1:], sc, true)
	default:
		e.Logger.Debug("file() subcommand not implemented in this subset", "subcommand", args[0])
		return nil
	}
}

func (e *Evaluator) fileGlob(args []string, sc ScopeID, recurse bool) error {
	if len(args) == 0 {
		return fmt.Errorf("file(GLOB): requires <variable>")
	}
	varName := args[0]
	var matches []string
	for _, pattern := range args[1:] {
		if !recurse {
			m, err := filepath.Glob(pattern)
			if err != nil {
				return utils.MakeError(err, "file(GLOB) pattern %q invalid", pattern)
			}
			matches = append(matches, m...)
			continue
		}
		root, rest := filepath.Split(pattern)
		if root == "" {
			root = "."
		}
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if ok, _ := filepath.Match(rest, filepath.Base(path)); ok {
				matches = append(matches, path)
			}
			return nil
		})
		if err != nil {
			return utils.MakeError(err, "file(GLOB_RECURSE) under %q failed", root)
		}
	}
	e.Arena.Set(sc, varName, strings.Join(matches, ";"))
	return nil
}

// parseKeywordSections splits an already-flat argument vector into
// sections keyed by the given uppercase keywords, mirroring the
// OUTPUT/COMMAND/DEPENDS-style grammar shared by add_custom_command and
// add_custom_target.
func parseKeywordSections(args []string, keywords map[string]bool) map[string][]string {
	sections := make(map[string][]string)
	current := ""
	for _, a := range args {
		if keywords[strings.ToUpper(a)] {
			current = strings.ToUpper(a)
			continue
		}
		sections[current] = append(sections[current], a)
	}
	return sections
}

var customCommandKeywords = map[string]bool{
	"OUTPUT": true, "COMMAND": true, "DEPENDS": true,
	"WORKING_DIRECTORY": true, "COMMENT": true,
}

func (e *Evaluator) cmdAddCustomCommand(args []string, sc ScopeID) error {
	sections := parseKeywordSections(args, customCommandKeywords)
	outputs := sections["OUTPUT"]
	if len(outputs) == 0 {
		return fmt.Errorf("add_custom_command(): requires OUTPUT")
	}
	workDir := ""
	if wd := sections["WORKING_DIRECTORY"]; len(wd) > 0 {
		workDir = wd[0]
	}
	var commands []string
	var cur []string
	inCommand := false
	for _, a := range args {
		if kw := strings.ToUpper(a); customCommandKeywords[kw] {
			if inCommand {
				commands = append(commands, quoteShellWords(cur))
			}
			cur, inCommand = nil, kw == "COMMAND"
			continue
		}
		if inCommand {
			cur = append(cur, a)
		}
	}
	if inCommand {
		commands = append(commands, quoteShellWords(cur))
	}
	rule := buildgraph.Rule{
		Outputs:      outputs,
		Commands:     commands,
		Dependencies: sections["DEPENDS"],
		WorkingDir:   workDir,
	}
	if c := sections["COMMENT"]; len(c) > 0 {
		rule.Comment = strings.Join(c, " ")
	}
	e.Graph.AddRule(rule)
	return nil
}

var customTargetKeywords = map[string]bool{
	"COMMAND": true, "DEPENDS": true, "WORKING_DIRECTORY": true, "COMMENT": true, "ALL": true,
}

func (e *Evaluator) cmdAddCustomTarget(args []string, sc ScopeID) error {
	if len(args) == 0 {
		return fmt.Errorf("add_custom_target(): requires a name")
	}
	name := args[0]
	isAll := false
	rest := args[1:]
	for _, a := range rest {
		if strings.ToUpper(a) == "ALL" {
			isAll = true
		}
	}
	sections := parseKeywordSections(rest, customTargetKeywords)

	var commands []string
	if cmd := sections["COMMAND"]; len(cmd) > 0 {
		commands = append(commands, quoteShellWords(cmd))
	}

	e.Graph.AddTarget(&buildgraph.Target{
		Name:         name,
		Dependencies: sections["DEPENDS"],
		Commands:     commands,
		Default:      isAll,
	})
	return nil
}

// quoteShellWords re-quotes a COMMAND argv for /bin/sh -c, dropping empty
// words that an unquoted ${} expansion can legitimately produce.
func quoteShellWords(words []string) string {
	var parts []string
	for _, w := range words {
		if w == "" {
			continue
		}
		if strings.ContainsAny(w, " \t\"'$`\\") {
			parts = append(parts, "'"+strings.ReplaceAll(w, "'", `'\''`)+"'")
		} else {
			parts = append(parts, w)
		}
	}
	return strings.Join(parts, " ")
}

func (e *Evaluator) cmdGetFilenameComponent(args []string, sc ScopeID) error {
	if len(args) < 3 {
		return fmt.Errorf("get_filename_component(): requires <VAR> <input> <COMPONENT>")
	}
	varName, input, component := args[0], args[1], strings.ToUpper(args[2])
	var result string
	switch component {
	case "DIRECTORY", "PATH":
		result = filepath.Dir(input)
	case "NAME":
		result = filepath.Base(input)
	case "EXT":
		result = filepath.Ext(input)
	case "NAME_WE":
		base := filepath.Base(input)
		result = strings.TrimSuffix(base, filepath.Ext(base))
	case "ABSOLUTE":
		abs, err := filepath.Abs(input)
		if err != nil {
			return utils.MakeError(err, "get_filename_component(ABSOLUTE) failed for %q", input)
		}
		result = abs
	default:
		return fmt.Errorf("get_filename_component(): unsupported component %q", args[2])
	}
	e.Arena.Set(sc, varName, result)
	return nil
}

func (e *Evaluator) cmdList(args []string, sc ScopeID) error {
	if len(args) < 2 {
		return fmt.Errorf("list(): requires a subcommand and variable")
	}
	switch strings.ToUpper(args[0]) {
	case "APPEND":
		varName := args[1]
		existing, _ := e.Arena.Get(sc, varName)
		items := splitUnquoted(existing)
		items = append(items, args[2:]...)
		e.Arena.Set(sc, varName, strings.Join(items, ";"))
		return nil
	case "LENGTH":
		if len(args) < 3 {
			return fmt.Errorf("list(LENGTH): requires <list> <out-variable>")
		}
		value, _ := e.Arena.Get(sc, args[1])
		n := len(splitUnquoted(value))
		e.Arena.Set(sc, args[2], strconv.Itoa(n))
		return nil
	default:
		return fmt.Errorf("list(): unsupported subcommand %q", args[0])
	}
}

func (e *Evaluator) cmdString(args []string, sc ScopeID) error {
	if len(args) == 0 {
		return fmt.Errorf("string(): requires a subcommand")
	}
	switch strings.ToUpper(args[0]) {
	case "REPLACE":
		if len(args) < 5 {
			return fmt.Errorf("string(REPLACE): requires <match> <replace> <out-variable> <input>...")
		}
		match, repl, varName := args[1], args[2], args[3]
		input := strings.Join(args[4:], ";")
		e.Arena.Set(sc, varName, strings.ReplaceAll(input, match, repl))
		return nil
	default:
		return fmt.Errorf("string(): unsupported subcommand %q", args[0])
	}
}
