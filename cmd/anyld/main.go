// Command anyld is the ELF64 static linker (spec §4.2, §6 "C2 linker CLI").
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/anyos-project/anytoolchain/internal/logging"
	"github.com/anyos-project/anytoolchain/pkg/objlink"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	output     string
	baseFlag   string
	exportsDef string
	soName     string
	entrySym   string
	verbose    bool
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "anyld [flags] input.o|input.a...",
	Short: "Merge ELF64 relocatable objects into a position-independent shared object",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLink,
}

func init() {
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "output file (required)")
	rootCmd.Flags().StringVarP(&baseFlag, "base", "b", "0x0", "base virtual address, e.g. 0x400000")
	rootCmd.Flags().StringVarP(&exportsDef, "exports", "e", "", "export definition (.def) file")
	rootCmd.Flags().StringVar(&soName, "soname", "", "DT_SONAME override (defaults to the .def LIBRARY name, if any)")
	rootCmd.Flags().StringVar(&entrySym, "entry", "_start", "entry point symbol")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "also write JSON log records to this file")
	_ = rootCmd.MarkFlagRequired("output")
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	viper.SetEnvPrefix("ANYLD")
	viper.AutomaticEnv()
}

func runLink(cmd *cobra.Command, args []string) error {
	logger, closeFn, err := logging.New("anyld", logging.Options{Verbose: verbose, LogFile: logFile})
	if err != nil {
		return err
	}
	defer closeFn()

	base, err := parseBase(baseFlag)
	if err != nil {
		return fmt.Errorf("anyld: %w", err)
	}

	opts := objlink.LinkOptions{
		Inputs:      args,
		Output:      output,
		DefFile:     exportsDef,
		SoName:      soName,
		EntrySymbol: entrySym,
		Base:        base,
	}
	return objlink.Link(opts, logger)
}

func parseBase(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	base, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid -b/--base %q: %w", s, err)
	}
	return base, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "anyld:", err)
		os.Exit(1)
	}
}
