package objlink

import (
	"bytes"
	"debug/elf"
	"fmt"
	"os"
	"strings"
)

// InputObject is one ELF64 ET_REL object, whether it came from a loose
// .o file or was extracted from an ar archive member.
type InputObject struct {
	Name string // file path, or "archive.a(member.o)" for archive members
	File *elf.File
}

// LoadInputs reads every path in paths, exploding ar archives into their
// member objects, and validates that every resulting object is ELF64,
// ET_REL, and x86_64 or AArch64 — and that all objects in the link agree
// on machine (spec §4.2.1).
func LoadInputs(paths []string) ([]InputObject, error) {
	var inputs []InputObject
	var machine elf.Machine
	haveMachine := false

	addObject := func(name string, data []byte) error {
		f, err := elf.NewFile(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("objlink: %s: %w", name, err)
		}
		if f.Class != elf.ELFCLASS64 {
			return fmt.Errorf("objlink: %s: expected ELF64, got %v", name, f.Class)
		}
		if f.Type != elf.ET_REL {
			return fmt.Errorf("objlink: %s: expected a relocatable object (ET_REL), got %v", name, f.Type)
		}
		if f.Machine != elf.EM_X86_64 && f.Machine != elf.EM_AARCH64 {
			return fmt.Errorf("objlink: %s: unsupported machine %v (only x86_64/AArch64)", name, f.Machine)
		}
		if haveMachine && f.Machine != machine {
			return fmt.Errorf("objlink: %s: machine %v mixed with earlier %v in the same link", name, f.Machine, machine)
		}
		machine = f.Machine
		haveMachine = true
		inputs = append(inputs, InputObject{Name: name, File: f})
		return nil
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("objlink: reading %s: %w", path, err)
		}

		if strings.HasSuffix(path, ".a") || bytes.HasPrefix(data, []byte(arMagic)) {
			members, err := readArchive(data)
			if err != nil {
				return nil, fmt.Errorf("objlink: %s: %w", path, err)
			}
			for _, m := range members {
				if !looksLikeELF(m.Data) {
					continue
				}
				if err := addObject(fmt.Sprintf("%s(%s)", path, m.Name), m.Data); err != nil {
					return nil, err
				}
			}
			continue
		}

		if err := addObject(path, data); err != nil {
			return nil, err
		}
	}

	return inputs, nil
}

func looksLikeELF(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte{0x7f, 'E', 'L', 'F'})
}
