package executor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anyos-project/anytoolchain/pkg/utils"
)

// isBuiltinInvocation reports whether argv is `<exePath> -E <subcmd>...`
// (spec §4.1.7) and, if so, returns the subcommand name and its
// arguments.
func isBuiltinInvocation(argv []string, exePath string) (subcmd string, rest []string, ok bool) {
	if len(argv) < 3 {
		return "", nil, false
	}
	if argv[0] != exePath || argv[1] != "-E" {
		return "", nil, false
	}
	return argv[2], argv[3:], true
}

// runBuiltin executes one `-E` subcommand in-process. `env` is handled by
// the caller (it is rewritten into a forked shell command instead, per
// spec §4.1.7) and never reaches here.
func runBuiltin(subcmd string, args []string) error {
	switch subcmd {
	case "make_directory":
		for _, dir := range args {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return utils.MakeError(err, "-E make_directory failed for %q", dir)
			}
		}
		return nil
	case "copy":
		if len(args) != 2 {
			return fmt.Errorf("-E copy: requires <src> <dst>")
		}
		return copyFile(args[0], args[1])
	case "copy_directory":
		if len(args) != 2 {
			return fmt.Errorf("-E copy_directory: requires <src-dir> <dst-dir>")
		}
		return copyDirectory(args[0], args[1])
	case "rm":
		var targets []string
		for _, a := range args {
			if strings.HasPrefix(a, "-") {
				continue // variant flags (-f, -r, -rf...) are ignored; always recursive+forced
			}
			targets = append(targets, a)
		}
		for _, t := range targets {
			if err := os.RemoveAll(t); err != nil {
				return utils.MakeError(err, "-E rm failed for %q", t)
			}
		}
		return nil
	case "touch":
		for _, path := range args {
			if err := touch(path); err != nil {
				return utils.MakeError(err, "-E touch failed for %q", path)
			}
		}
		return nil
	default:
		return fmt.Errorf("-E %s: unsupported builtin", subcmd)
	}
}

func touch(path string) error {
	now := time.Now()
	if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
		f.Close()
	} else {
		return err
	}
	return os.Chtimes(path, now, now)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	info, err := in.Stat()
	if err == nil {
		defer os.Chmod(dst, info.Mode())
	}
	_, err = io.Copy(out, in)
	return err
}

func copyDirectory(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

// rewriteEnv turns `env VAR=VAL... cmd args...` into a `/bin/sh -c`
// compatible string: environment vars become a shell-native prefix,
// since assigning them to a subprocess is host-shell territory the
// in-process builtins otherwise avoid (spec §4.1.7).
func rewriteEnv(args []string) string {
	i := 0
	for i < len(args) && strings.Contains(args[i], "=") && !strings.HasPrefix(args[i], "-") {
		i++
	}
	return strings.Join(args, " ")
}
