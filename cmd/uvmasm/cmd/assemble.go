package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keurnel/uvmasm/internal/ast"
	"github.com/keurnel/uvmasm/internal/isa"
	"github.com/keurnel/uvmasm/internal/lexer"
	"github.com/keurnel/uvmasm/internal/parser"
	"github.com/keurnel/uvmasm/internal/sourceview"
	"github.com/keurnel/uvmasm/internal/typecheck"
)

var assembleCmd = &cobra.Command{
	Use:     "assemble <file>",
	GroupID: "pipeline",
	Short:   "Parse and type-check a UVM assembly file",
	Long:    `Parse and type-check a UVM assembly file, printing diagnostics on failure or a summary of the encoding-ready AST on success.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return runAssemble(cmd, args[0], asJSON)
	},
}

func init() {
	assembleCmd.Flags().BoolP("json", "j", false, "emit the summary as JSON instead of plain text")
}

// runAssemble drives the full pipeline: load the source, scan it, parse it,
// type-check it, and report the outcome. Grounded on the teacher's
// runAssembleFile orchestration shape (resolve path, read source, run the
// pipeline stages in order), trimmed to the stages this repository owns —
// pre-processing and code generation remain external collaborators (spec
// §1).
func runAssemble(cmd *cobra.Command, path string, asJSON bool) error {
	view, err := sourceview.Load(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	tokens := lexer.New(view).Lex()

	root, perr := parser.Parse(tokens)
	if perr != nil {
		cmd.PrintErrln(perr.Render(view))
		return fmt.Errorf("parse failed")
	}

	table, err := isa.Load()
	if err != nil {
		return fmt.Errorf("loading instruction table: %w", err)
	}

	checker := typecheck.NewChecker(table)
	ok := checker.Check(root)
	if !ok {
		cmd.PrintErrln(checker.Errors().RenderAll(view))
		return fmt.Errorf("type check failed with %d error(s)", len(checker.Errors()))
	}

	return printSummary(cmd, root, asJSON)
}

type instructionSummary struct {
	Mnemonic string `json:"mnemonic"`
	Opcode   byte   `json:"opcode"`
	Line     int    `json:"line"`
}

type summary struct {
	HasStatic    bool                 `json:"has_static"`
	HasGlobal    bool                 `json:"has_global"`
	Instructions []instructionSummary `json:"instructions"`
}

func buildSummary(root *ast.FileRoot) summary {
	s := summary{HasStatic: root.Static != nil, HasGlobal: root.Global != nil}
	if root.Code == nil {
		return s
	}
	for _, n := range root.Code.Body {
		if instr, ok := n.(*ast.Instruction); ok {
			s.Instructions = append(s.Instructions, instructionSummary{
				Mnemonic: instr.Mnemonic,
				Opcode:   instr.Opcode,
				Line:     instr.Position().Line,
			})
		}
	}
	return s
}

func printSummary(cmd *cobra.Command, root *ast.FileRoot, asJSON bool) error {
	s := buildSummary(root)
	if asJSON {
		enc, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(enc))
		return nil
	}

	cmd.Printf("ok: %d instruction(s)\n", len(s.Instructions))
	for _, ins := range s.Instructions {
		cmd.Printf("  ln %-4d %-6s opcode 0x%02X\n", ins.Line, ins.Mnemonic, ins.Opcode)
	}
	return nil
}
