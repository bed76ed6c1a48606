package toolchain

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"pperf/internal/binutils"
	"pperf/pkg/pperf"
)

// CLIAdapter shells out to the real binutils, optionally under a
// cross-compile prefix (e.g. "aarch64-linux-gnu-").
type CLIAdapter struct {
	Prefix string
}

// NewCLIAdapter builds a CLIAdapter from an Environment's configured
// cross-compile prefix (spec.md §6 "CROSS_COMPILE").
func NewCLIAdapter(env *pperf.Environment) *CLIAdapter {
	return &CLIAdapter{Prefix: env.CrossCompilePrefix}
}

func (a *CLIAdapter) tool(name string) string {
	return a.Prefix + name
}

func (a *CLIAdapter) run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, a.tool(name), args...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: %s %s: %v", pperf.ErrSubprocess, name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

func (a *CLIAdapter) Arch(ctx context.Context, elf string) (string, error) {
	out, err := a.run(ctx, "readelf", "-h", elf)
	if err != nil {
		return "", err
	}
	arch := binutils.ParseArch(out)
	if arch == "" {
		return "", fmt.Errorf("%w: could not determine architecture of %s", pperf.ErrSubprocess, elf)
	}
	return arch, nil
}

func (a *CLIAdapter) Sections(ctx context.Context, elf string) ([]Section, error) {
	out, err := a.run(ctx, "objdump", "-wh", elf)
	if err != nil {
		return nil, err
	}

	var sections []Section
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		sec, ok := binutils.ParseSectionHeaderLine(scanner.Text())
		if !ok {
			continue
		}
		sections = append(sections, Section{
			Name:       sec.Name,
			FileOffset: sec.FileOffset,
			VAddr:      sec.VAddr,
			Size:       sec.Size,
		})
	}
	return sections, nil
}

func (a *CLIAdapter) Disassemble(ctx context.Context, elf string, section Section, fn func(Instruction) error) error {
	cmd := exec.CommandContext(ctx, a.tool("objdump"),
		"-Dwz", "--prefix-addresses", "--show-raw-insn",
		"--section="+section.Name, elf)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: objdump disassemble: %v", pperf.ErrSubprocess, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: objdump disassemble: %v", pperf.ErrSubprocess, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var cbErr error
	for scanner.Scan() {
		inst, ok := binutils.ParseDisassemblyLine(scanner.Text())
		if !ok {
			continue
		}
		if cbErr = fn(inst); cbErr != nil {
			break
		}
	}
	waitErr := cmd.Wait()
	if cbErr != nil {
		return cbErr
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("%w: reading objdump output: %v", pperf.ErrSubprocess, err)
	}
	if waitErr != nil {
		return fmt.Errorf("%w: objdump disassemble: %v", pperf.ErrSubprocess, waitErr)
	}
	return nil
}

func (a *CLIAdapter) Resolve(ctx context.Context, elf string, pcs []uint64, unwindInline bool) (map[uint64]Resolution, error) {
	if len(pcs) == 0 {
		return map[uint64]Resolution{}, nil
	}

	flags := "-Cafr"
	if !unwindInline {
		flags += "i"
	}

	args := make([]string, 0, len(pcs)+3)
	args = append(args, flags, "-e", elf)
	for _, pc := range pcs {
		args = append(args, fmt.Sprintf("0x%x", pc))
	}

	out, err := a.run(ctx, "addr2line", args...)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	result := make(map[uint64]Resolution, len(pcs))
	blockStart := 0
	pcIdx := 0
	for i := 1; i <= len(lines); i++ {
		if i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "0x") {
			continue
		}
		block := lines[blockStart:i]
		if pcIdx >= len(pcs) {
			break
		}
		res, ok := binutils.ParseAddr2LineBlock(block)
		if ok {
			result[pcs[pcIdx]] = res
		}
		pcIdx++
		blockStart = i
	}
	return result, nil
}

func (a *CLIAdapter) Demangle(ctx context.Context, name string) (string, error) {
	out, err := a.run(ctx, "c++filt", name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (a *CLIAdapter) ToolchainID(ctx context.Context) (string, error) {
	out, err := a.run(ctx, "objdump", "--version")
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(out))
	return hex.EncodeToString(sum[:8]), nil
}

var _ Adapter = (*CLIAdapter)(nil)
