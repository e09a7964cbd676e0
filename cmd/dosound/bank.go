package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/milk9111/dosound/assets"
	"github.com/milk9111/dosound/audio"
	"github.com/milk9111/dosound/resource"
	"github.com/milk9111/dosound/sound"
	"github.com/spf13/cobra"
)

type BankParams struct {
	Dir string `pos:"true" optional:"true" help:"Bank directory. Defaults to the bundled bank."`
}

func bankCmd() *cobra.Command {
	return boa.CmdT[BankParams]{
		Use:         "bank",
		Short:       "List the resources of a bank",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *BankParams, cmd *cobra.Command, args []string) {
			if err := printBank(os.Stdout, params.Dir); err != nil {
				fmt.Fprintf(os.Stderr, "dosound: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func printBank(w io.Writer, dir string) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var (
		lib *resource.Library
		err error
	)
	if dir == "" {
		lib, err = resource.Open(assets.BankFS(), resource.WithLogger(logger))
	} else {
		lib, err = resource.OpenDir(dir, resource.WithLogger(logger))
	}
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(lib.Manifest().Name)
	t.AppendHeader(table.Row{"Resource", "File", "Bytes", "Detail"})

	for _, id := range lib.IDs() {
		file, _ := lib.File(id)
		data, err := lib.Load(id)
		if err != nil {
			t.AppendRow(table.Row{id.String(), file, "", "unreadable"})
			continue
		}
		t.AppendRow(table.Row{id.String(), file, len(data), describe(id, data)})
	}
	t.Render()
	return nil
}

func describe(id resource.ID, data []byte) string {
	switch id.Type {
	case resource.TypeSound:
		if pri, ok := sound.EmbeddedPriority(data); ok {
			return fmt.Sprintf("priority %d", pri)
		}
		return "no priority header"
	case resource.TypeAudio:
		d, err := audio.Duration(data, audio.DefaultSampleRate)
		if err != nil {
			return err.Error()
		}
		return d.String()
	}
	return ""
}
