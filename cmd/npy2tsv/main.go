package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/KyungWonPark/fmriqc/internal/io"
	"github.com/carbocation/pfx"
	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:           "npy2tsv FILE.npy [OUT.tsv]",
		Short:         "Convert a 2-D npy matrix to tab separated values",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fileName := args[0]
			outName := strings.TrimSuffix(fileName, ".npy") + ".tsv"
			if len(args) > 1 {
				outName = args[1]
			}
			return convert(fileName, outName)
		},
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func convert(fileName, outName string) error {
	npyFile, err := io.NpytoMat64(fileName)
	if err != nil {
		return err
	}
	fmt.Println("Reading npy file complete")

	f, err := os.Create(outName)
	if err != nil {
		return pfx.Err(err)
	}

	if err := io.Mat64toTSV(f, npyFile, nil); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return pfx.Err(err)
	}

	return nil
}
