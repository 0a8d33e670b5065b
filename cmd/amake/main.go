// Command amake tokenizes, parses and evaluates a CMake-subset build
// script into a dependency graph, then drives its parallel executor
// (spec §4.1, §6 "C1 evaluator CLI").
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anyos-project/anytoolchain/internal/logging"
	"github.com/anyos-project/anytoolchain/pkg/buildgraph"
	"github.com/anyos-project/anytoolchain/pkg/cmakelang/ast"
	"github.com/anyos-project/anytoolchain/pkg/cmakelang/eval"
	"github.com/anyos-project/anytoolchain/pkg/cmakelang/lexer"
	"github.com/anyos-project/anytoolchain/pkg/executor"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/atomic"
)

var (
	colorBuilding = color.New(color.FgYellow)
	colorDone     = color.New(color.FgGreen)
	colorFailed   = color.New(color.FgRed, color.Bold)
)

var (
	buildDir   string
	defines    []string
	jobs       int
	scriptFile string
	clean      bool
	verbose    bool
	tui        bool
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "amake [target...]",
	Short: "Evaluate a CMake-subset build script and build the requested targets",
	RunE:  runBuild,
}

func init() {
	rootCmd.Flags().StringVarP(&buildDir, "build-dir", "B", "build", "binary/build directory")
	rootCmd.Flags().StringArrayVarP(&defines, "define", "D", nil, "VAR=VAL cache variable, may repeat")
	rootCmd.Flags().IntVarP(&jobs, "jobs", "j", 1, "maximum concurrent child processes")
	rootCmd.Flags().StringVarP(&scriptFile, "file", "f", "CMakeLists.txt", "build script to evaluate, relative to the source directory")
	rootCmd.Flags().BoolVar(&clean, "clean", false, "remove the build directory before building")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "verbose logging")
	rootCmd.Flags().BoolVar(&tui, "tui", false, "render the live build graph with a terminal UI instead of plain-text output")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "also write JSON log records to this file")
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	viper.SetEnvPrefix("AMAKE")
	viper.AutomaticEnv()
	if !rootCmd.Flags().Changed("jobs") {
		if v := viper.GetInt("JOBS"); v > 0 {
			jobs = v
		}
	}
	if !rootCmd.Flags().Changed("build-dir") {
		if v := viper.GetString("BUILD_DIR"); v != "" {
			buildDir = v
		}
	}
}

func runBuild(cmd *cobra.Command, targets []string) error {
	logger, closeFn, err := logging.New("amake", logging.Options{Verbose: verbose, LogFile: logFile})
	if err != nil {
		return err
	}
	defer closeFn()

	if clean {
		if err := os.RemoveAll(buildDir); err != nil {
			return fmt.Errorf("amake: --clean: %w", err)
		}
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return fmt.Errorf("amake: creating build directory: %w", err)
	}

	sourceDir, err := os.Getwd()
	if err != nil {
		return err
	}
	binaryDir, err := filepath.Abs(buildDir)
	if err != nil {
		return err
	}

	scriptPath := scriptFile
	if !filepath.IsAbs(scriptPath) {
		scriptPath = filepath.Join(sourceDir, scriptPath)
	}
	src, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("amake: %w", err)
	}

	tokens, err := lexer.Lex(src)
	if err != nil {
		return fmt.Errorf("amake: %s: %w", scriptPath, err)
	}
	prog, err := ast.Parse(tokens)
	if err != nil {
		return fmt.Errorf("amake: %s: %w", scriptPath, err)
	}

	graph := buildgraph.NewGraph()
	e := eval.New(graph, logger, sourceDir, binaryDir)

	for _, d := range defines {
		name, val, ok := strings.Cut(d, "=")
		if !ok {
			return fmt.Errorf("amake: -D%s: expected VAR=VAL", d)
		}
		e.Arena.Set(eval.Root, name, val)
	}

	if err := e.EvalProgram(prog); err != nil {
		return fmt.Errorf("amake: %w", err)
	}

	if err := graph.Link(); err != nil {
		return fmt.Errorf("amake: %w", err)
	}
	graph.MarkStale(buildgraph.OSStat)
	graph.PropagateDirty()

	exePath, err := os.Executable()
	if err != nil {
		exePath = os.Args[0]
	}

	active := atomic.NewInt64(0)
	opts := executor.Options{
		MaxJobs: jobs,
		ExePath: exePath,
		Logger:  logger,
		Active:  active,
	}

	if tui {
		return runWithTUI(graph, targets, opts)
	}

	opts.OnTransition = func(id buildgraph.RuleID, state buildgraph.RuleState) {
		rule := graph.Rule(id)
		switch state {
		case buildgraph.StateBuilding:
			colorBuilding.Printf("[building] %v\n", rule.Outputs)
		case buildgraph.StateDone:
			colorDone.Printf("[done]     %v\n", rule.Outputs)
		case buildgraph.StateFailed:
			colorFailed.Printf("[failed]   %v\n", rule.Outputs)
		}
	}
	return executor.Run(graph, targets, opts)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "amake:", err)
		os.Exit(1)
	}
}
