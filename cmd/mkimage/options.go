package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/anyos-project/anytoolchain/pkg/diskimage/exfat"
	"gopkg.in/yaml.v2"
)

// buildOptions gathers the flags every mode builder needs.
type buildOptions struct {
	Stage1Path     string
	Stage2Path     string
	KernelPath     string
	BootloaderPath string
	OutputPath     string
	SysrootPath    string
	ImageSizeMiB   int
	FSStartSector  uint64
	Reset          bool
	VolumeLabel    string
	Perms          []exfat.PermRule
}

func readFileOrEmpty(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// permRuleDoc is one entry of a --perm-map YAML document: an ordered
// list of prefix/mode pairs evaluated top-to-bottom.
type permRuleDoc struct {
	Prefix string `yaml:"prefix"`
	Mode   string `yaml:"mode"`
}

// loadPermMap parses a --perm-map file: a YAML sequence of
// `{prefix, mode}` entries, mode given as a hex string (e.g. "0xF00")
// or plain decimal. Returns nil (the spec's default two-rule map) when
// path is empty.
func loadPermMap(path string) ([]exfat.PermRule, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var docs []permRuleDoc
	if err := yaml.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("perm-map: %w", err)
	}

	rules := make([]exfat.PermRule, 0, len(docs))
	for i, d := range docs {
		modeStr := strings.TrimSpace(d.Mode)
		digits, base := strings.ToLower(modeStr), 10
		if strings.HasPrefix(digits, "0x") {
			digits, base = digits[2:], 16
		}
		mode, err := strconv.ParseUint(digits, base, 16)
		if err != nil {
			return nil, fmt.Errorf("perm-map entry %d: invalid mode %q: %w", i, d.Mode, err)
		}
		rules = append(rules, exfat.PermRule{Prefix: d.Prefix, Mode: uint16(mode)})
	}
	return rules, nil
}
