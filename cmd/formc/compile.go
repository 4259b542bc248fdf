package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/varform/formc/compile"
	"github.com/varform/formc/kernel"
)

var (
	backend   string
	outDir    string
	precision string
	verify    bool
	device    string
)

var compileCmd = &cobra.Command{
	Use:   "compile SPECFILE",
	Short: "Compile a specification file into OCCA kernels",
	Long: `Compile reads a variational-form specification, generates one OCCA
kernel file and one manifest per top-level form binding, and writes
them to the output directory. The binding "a" must be bilinear and
"L", when present, linear. Any failed form makes the exit status
non-zero; failed forms produce no output files.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVar(&backend, "backend", "occa", "target backend")
	compileCmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	compileCmd.Flags().StringVar(&precision, "precision", "float64", "kernel precision: float32 or float64")
	compileCmd.Flags().BoolVar(&verify, "verify", false, "build generated kernels on an OCCA device")
	compileCmd.Flags().StringVar(&device, "device", "", `OCCA device JSON for --verify, e.g. {"mode": "Serial"}`)
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync()

	var prec kernel.DataType
	switch precision {
	case "float64":
		prec = kernel.Float64
	case "float32":
		prec = kernel.Float32
	default:
		return fmt.Errorf("unknown precision %q", precision)
	}

	results, err := compile.File(args[0], compile.Options{
		Backend:     backend,
		Precision:   prec,
		Verify:      verify,
		DeviceProps: device,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	if err := compile.WriteArtifacts(outDir, results); err != nil {
		return err
	}
	for _, r := range results {
		if r.Err == nil {
			logger.Info("wrote artifacts",
				zap.String("form", r.Form),
				zap.String("kernel", r.Form+".okl"),
				zap.String("manifest", r.Form+".manifest.yaml"))
		}
	}

	if compile.Failed(results) {
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		return fmt.Errorf("%d of %d forms failed", failed, len(results))
	}
	return nil
}
