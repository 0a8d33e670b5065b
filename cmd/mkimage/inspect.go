package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/anyos-project/anytoolchain/pkg/diskimage/exfat"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var inspectFSStart uint64

var inspectCmd = &cobra.Command{
	Use:   "inspect <image>",
	Short: "Open an existing image read-only and browse its filesystem interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().Uint64Var(&inspectFSStart, "fs-start", 0, "sector where the exFAT partition begins (auto-detected if omitted)")
}

// exfatMagic is the OEM name field ("EXFAT   ") every exFAT Main Boot
// Sector carries at offset 3, used both to auto-detect the partition
// start and to confirm a given --fs-start actually points at one.
var exfatMagic = []byte("EXFAT   ")

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("mkimage inspect: %w", err)
	}

	fsStart := inspectFSStart
	if fsStart == 0 {
		found, ok := locateExfatPartition(data)
		if !ok {
			return fmt.Errorf("mkimage inspect: no exFAT partition found (pass --fs-start)")
		}
		fsStart = found
	} else if !bytes.Equal(magicAt(data, fsStart), exfatMagic) {
		return fmt.Errorf("mkimage inspect: no exFAT signature at sector %d", fsStart)
	}

	partition := data[fsStart*512:]
	ctx := exfat.ContextFromImage(partition, fsStart)

	sh := &shell{ctx: ctx, cwdName: "/"}
	sh.cwd = sh.rootChain()

	rl, err := readline.New("mkimage:/> ")
	if err != nil {
		return fmt.Errorf("mkimage inspect: %w", err)
	}
	defer rl.Close()

	fmt.Printf("exFAT partition at sector %d. Type 'help' for commands.\n", fsStart)
	for {
		rl.SetPrompt(fmt.Sprintf("mkimage:%s> ", sh.cwdName))
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !sh.execute(line) {
			return nil
		}
	}
}

func magicAt(data []byte, sector uint64) []byte {
	off := sector * 512
	if off+11 > uint64(len(data)) {
		return nil
	}
	return data[off+3 : off+11]
}

// locateExfatPartition scans 512-byte-aligned sectors for the exFAT OEM
// signature; a simple heuristic adequate for a local inspection tool
// (no GPT/MBR parsing needed just to find the one filesystem to browse).
func locateExfatPartition(data []byte) (uint64, bool) {
	for sector := uint64(0); (sector+1)*512 <= uint64(len(data)); sector++ {
		if bytes.Equal(magicAt(data, sector), exfatMagic) {
			return sector, true
		}
	}
	return 0, false
}

// shell holds the inspect REPL's state: the parsed filesystem context
// and the current directory's cluster chain and display path.
type shell struct {
	ctx     *exfat.Context
	cwd     []int
	cwdName string
}

func (s *shell) rootChain() []int {
	chain := s.ctx.FAT.ReadChain(s.ctx.RootCluster)
	if len(chain) == 0 {
		chain = []int{s.ctx.RootCluster}
	}
	return chain
}

// execute runs one REPL command, returning false to end the session.
func (s *shell) execute(line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "ls":
		s.cmdLS(args)
	case "cd":
		s.cmdCD(args)
	case "stat":
		s.cmdStat(args)
	case "cat":
		s.cmdCat(args)
	case "tree":
		s.cmdTree()
	case "pwd":
		fmt.Println(s.cwdName)
	case "help", "?":
		fmt.Println("commands: ls [path], cd <path>, stat <path>, cat <path>, tree, pwd, help, quit")
	case "quit", "exit", "q":
		return false
	default:
		fmt.Printf("unknown command %q (try 'help')\n", cmd)
	}
	return true
}

func (s *shell) cmdLS(args []string) {
	chain := s.cwd
	if len(args) > 0 {
		e, err := s.resolve(args[0])
		if err != nil {
			fmt.Println(err)
			return
		}
		if !e.Directory {
			fmt.Println(e.Name)
			return
		}
		chain = exfat.ChainFor(s.ctx, e)
	}
	for _, e := range exfat.ListDir(s.ctx, chain) {
		if e.Directory {
			fmt.Printf("%8s  %s/\n", "<DIR>", e.Name)
		} else {
			fmt.Printf("%8d  %s\n", e.DataLength, e.Name)
		}
	}
}

func (s *shell) cmdCD(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: cd <path>")
		return
	}
	if args[0] == "/" {
		s.cwd = s.rootChain()
		s.cwdName = "/"
		return
	}
	e, err := s.resolve(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	if !e.Directory {
		fmt.Printf("%s is not a directory\n", args[0])
		return
	}
	s.cwd = exfat.ChainFor(s.ctx, e)
	s.cwdName = path.Join(s.cwdName, args[0])
}

func (s *shell) cmdStat(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: stat <path>")
		return
	}
	e, err := s.resolve(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("name: %s\ndirectory: %v\nfirst cluster: %d\nlength: %d\nmode: %#o\n",
		e.Name, e.Directory, e.FirstCluster, e.DataLength, e.Mode)
}

func (s *shell) cmdCat(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: cat <path>")
		return
	}
	e, err := s.resolve(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	if e.Directory {
		fmt.Printf("%s is a directory\n", args[0])
		return
	}
	os.Stdout.Write(exfat.ReadFile(s.ctx, e))
}

func (s *shell) cmdTree() {
	s.printTree(s.cwd, 0)
}

func (s *shell) printTree(chain []int, depth int) {
	for _, e := range exfat.ListDir(s.ctx, chain) {
		fmt.Printf("%s%s\n", strings.Repeat("  ", depth), e.Name)
		if e.Directory {
			s.printTree(exfat.ChainFor(s.ctx, &e), depth+1)
		}
	}
}

// resolve looks up a single path component (relative to cwd) or a
// slash-separated path, returning the matching entry.
func (s *shell) resolve(p string) (*exfat.Entry, error) {
	chain := s.cwd
	parts := strings.Split(strings.Trim(p, "/"), "/")
	var found *exfat.Entry
	for i, part := range parts {
		entries := exfat.ListDir(s.ctx, chain)
		found = nil
		for j := range entries {
			if entries[j].Name == part {
				found = &entries[j]
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("not found: %s", p)
		}
		if i < len(parts)-1 {
			if !found.Directory {
				return nil, fmt.Errorf("%s: not a directory", part)
			}
			chain = exfat.ChainFor(s.ctx, found)
		}
	}
	return found, nil
}
