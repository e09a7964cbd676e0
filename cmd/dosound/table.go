package main

import (
	"fmt"
	"io"
	"os"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/milk9111/dosound/sound"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type TableParams struct {
	Variant string `pos:"true" optional:"true" help:"Show one variant only."`
}

func tableCmd() *cobra.Command {
	return boa.CmdT[TableParams]{
		Use:         "table",
		Short:       "Print the sound command opcode tables",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *TableParams, cmd *cobra.Command, args []string) {
			if err := printTables(os.Stdout, params.Variant); err != nil {
				fmt.Fprintf(os.Stderr, "dosound: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

// printTables renders one opcode column per variant.
func printTables(w io.Writer, only string) error {
	variants := sound.Variants()
	if only != "" {
		v, err := sound.ParseVariant(only)
		if err != nil {
			return err
		}
		variants = []sound.Variant{v}
	}

	tables := lo.Map(variants, func(v sound.Variant, _ int) []string {
		names, _ := sound.CommandTable(v)
		return names
	})
	rows := lo.Max(lo.Map(tables, func(names []string, _ int) int { return len(names) }))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	header := table.Row{"Opcode"}
	for _, v := range variants {
		header = append(header, v.String())
	}
	t.AppendHeader(header)

	for i := 0; i < rows; i++ {
		row := table.Row{i}
		for _, names := range tables {
			name, _ := lo.Nth(names, i)
			row = append(row, name)
		}
		t.AppendRow(row)
	}
	t.Render()
	return nil
}
