// Package compile drives a whole specification through the pipeline:
// parse, analyze, simplify, quadrature selection and kernel generation.
// Forms fail independently; an error in one binding does not abort its
// siblings, and no artifact is written for a failed form.
package compile

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/varform/formc/element"
	"github.com/varform/formc/form"
	"github.com/varform/formc/kernel"
	"github.com/varform/formc/parse"
)

// Options configures one compilation run.
type Options struct {
	// Backend identifies the target; "occa" is the only supported
	// value and the default.
	Backend string

	// Precision of generated kernels; defaults to Float64.
	Precision kernel.DataType

	// Verify builds each generated kernel on an OCCA device.
	Verify bool

	// DeviceProps is the OCCA device JSON used when Verify is set;
	// empty tries the default backend list.
	DeviceProps string

	// Logger receives per-stage progress; nil disables logging.
	Logger *zap.Logger
}

func (o *Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Result is the outcome for one form binding. Err is set when the form
// failed any stage; Kernel and Manifest are nil in that case.
type Result struct {
	Form     string
	Kernel   *kernel.LocalKernel
	Manifest *kernel.Manifest
	Err      error
}

// Failed reports whether any form in the batch failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// expectedArity returns the arity contract of a binding name: `a` must
// be bilinear and `L` linear. Other bindings take whatever arity
// analysis finds, as long as it is 1 or 2.
func expectedArity(name string) (int, bool) {
	switch name {
	case "a":
		return 2, true
	case "L":
		return 1, true
	}
	return 0, false
}

// Source compiles every form binding in src. The returned error covers
// whole-file failures (syntax, unknown names); per-form failures land
// in the results.
func Source(src string, opts Options) ([]Result, error) {
	log := opts.logger()

	if opts.Backend != "" && opts.Backend != "occa" {
		return nil, fmt.Errorf("unsupported backend %q", opts.Backend)
	}
	if opts.Precision == 0 {
		opts.Precision = kernel.Float64
	}

	file, err := parse.Parse(src, element.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("parsing specification: %w", err)
	}

	results := make([]Result, 0, len(file.Forms))

	// A reserved name bound to a bare expression never became a form:
	// the author forgot the measure. Surface that per form rather than
	// dropping the binding.
	unmeasured := map[string]bool{}
	for _, name := range []string{"a", "L"} {
		if _, ok := file.Form(name); ok {
			continue
		}
		v, ok := file.Binding(name)
		if !ok {
			continue
		}
		if ex, isExpr := v.(form.Expr); isExpr {
			res := Result{
				Form: name,
				Err:  fmt.Errorf("form %q: %w: %s", name, form.ErrUnmeasuredIntegrand, ex),
			}
			log.Error("form failed", zap.String("form", name), zap.Error(res.Err))
			results = append(results, res)
			unmeasured[name] = true
		}
	}

	if _, ok := file.Form("a"); !ok && !unmeasured["a"] {
		return nil, fmt.Errorf("specification has no bilinear binding %q", "a")
	}
	log.Info("parsed specification", zap.Int("forms", len(file.Forms)))

	gen := kernel.NewGenerator(opts.Precision)

	for _, f := range file.Forms {
		res := Result{Form: f.Name}
		res.Kernel, res.Manifest, res.Err = compileForm(f, gen, opts)
		if res.Err != nil {
			log.Error("form failed", zap.String("form", f.Name), zap.Error(res.Err))
			res.Kernel, res.Manifest = nil, nil
		} else {
			log.Info("generated kernel",
				zap.String("form", f.Name),
				zap.Int("arity", res.Kernel.Arity),
				zap.Int("entries", len(res.Kernel.Entries)))
		}
		results = append(results, res)
	}

	if opts.Verify {
		if err := verifyAll(results, opts, log); err != nil {
			return results, err
		}
	}
	return results, nil
}

func compileForm(f *form.Form, gen *kernel.Generator, opts Options) (*kernel.LocalKernel, *kernel.Manifest, error) {
	var (
		analysis *form.Analysis
		err      error
	)
	if want, ok := expectedArity(f.Name); ok {
		analysis, err = form.ExpectArity(f, want)
	} else {
		analysis, err = form.Analyze(f)
		if err == nil && analysis.Arity == 0 {
			err = fmt.Errorf("form %q is a functional, nothing to generate", f.Name)
		}
	}
	if err != nil {
		return nil, nil, err
	}

	lk, err := gen.Generate(form.SimplifyForm(f), analysis)
	if err != nil {
		return nil, nil, err
	}
	return lk, kernel.NewManifest(lk, opts.Precision), nil
}

func verifyAll(results []Result, opts Options, log *zap.Logger) error {
	device, err := kernel.OpenDevice(opts.DeviceProps)
	if err != nil {
		return fmt.Errorf("verification device: %w", err)
	}
	defer device.Free()

	for i := range results {
		r := &results[i]
		if r.Err != nil {
			continue
		}
		if err := kernel.Verify(r.Kernel, device); err != nil {
			r.Err = fmt.Errorf("verifying form %q: %w", r.Form, err)
			r.Kernel, r.Manifest = nil, nil
			log.Error("verification failed", zap.String("form", r.Form), zap.Error(err))
			continue
		}
		log.Info("verified kernel", zap.String("form", r.Form), zap.String("device", device.Mode()))
	}
	return nil
}

// File reads and compiles a specification file.
func File(path string, opts Options) ([]Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading specification: %w", err)
	}
	return Source(string(src), opts)
}

// WriteArtifacts writes <form>.okl and <form>.manifest.yaml for every
// successful result into dir, creating it if needed.
func WriteArtifacts(dir string, results []Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		src := filepath.Join(dir, r.Form+".okl")
		if err := os.WriteFile(src, []byte(r.Kernel.Source), 0o644); err != nil {
			return fmt.Errorf("writing kernel for form %q: %w", r.Form, err)
		}
		mf, err := os.Create(filepath.Join(dir, r.Form+".manifest.yaml"))
		if err != nil {
			return fmt.Errorf("writing manifest for form %q: %w", r.Form, err)
		}
		if err := r.Manifest.Encode(mf); err != nil {
			mf.Close()
			return err
		}
		if err := mf.Close(); err != nil {
			return fmt.Errorf("writing manifest for form %q: %w", r.Form, err)
		}
	}
	return nil
}
