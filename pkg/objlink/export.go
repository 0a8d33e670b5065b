package objlink

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/anyos-project/anytoolchain/pkg/utils"
)

// DefFile is a parsed .def export list: `# comments`, an optional
// `LIBRARY name` line, and an `EXPORTS` section listing one symbol name
// per line.
type DefFile struct {
	Library string
	Exports []string
}

// ParseDefFile reads a .def file in the minimal subset this linker
// accepts.
func ParseDefFile(path string) (*DefFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("objlink: reading def file: %w", err)
	}
	defer f.Close()

	def := &DefFile{}
	inExports := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		switch {
		case strings.EqualFold(line, "EXPORTS"):
			inExports = true
		case strings.HasPrefix(strings.ToUpper(line), "LIBRARY"):
			def.Library = strings.TrimSpace(line[len("LIBRARY"):])
		case inExports:
			name := strings.TrimSpace(strings.Fields(line)[0])
			def.Exports = append(def.Exports, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("objlink: reading def file: %w", err)
	}
	return def, nil
}

// ExportWarning reports one .def-listed symbol that could not be found
// among the defined globals, together with the closest spelling found by
// edit distance.
type ExportWarning struct {
	Requested  string
	Suggestion string
}

func (w ExportWarning) String() string {
	if w.Suggestion == "" {
		return fmt.Sprintf("export %q not found in any input object", w.Requested)
	}
	return fmt.Sprintf("export %q not found in any input object (did you mean %q?)", w.Requested, w.Suggestion)
}

// SelectExports computes the ordered set of dynamic-symbol names that
// will appear in the output's .dynsym. With no .def file, every defined
// global (including weak-but-defined) is exported. With a .def file,
// only its EXPORTS list is exported, and a name present in the list but
// absent from (or undefined in) the global table produces a warning with
// a Levenshtein-nearest suggestion instead of failing the link.
func SelectExports(st *SymbolTable, def *DefFile) ([]string, []ExportWarning) {
	definedGlobals := make(map[string]*ResolvedSymbol, len(st.Global))
	for name, s := range st.Global {
		if s.Defined {
			definedGlobals[name] = s
		}
	}

	if def == nil {
		names := utils.Keys(definedGlobals)
		sort.Strings(names)
		return names, nil
	}

	defined := utils.Keys(definedGlobals)
	sort.Strings(defined)

	var names []string
	var warnings []ExportWarning
	for _, want := range def.Exports {
		s, ok := st.Global[want]
		if !ok || !s.Defined {
			warnings = append(warnings, ExportWarning{Requested: want, Suggestion: closestName(want, defined)})
			continue
		}
		names = append(names, want)
	}
	return names, warnings
}

// closestName returns the defined global name with the smallest edit
// distance to want, or "" if there are no candidates.
func closestName(want string, candidates []string) string {
	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(want, c)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}
