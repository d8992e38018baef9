package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fortiblox/eventforge/internal/config"
	"github.com/fortiblox/eventforge/internal/types"
	"github.com/fortiblox/eventforge/pkg/ctstring"
	"github.com/fortiblox/eventforge/pkg/flux"
	"github.com/fortiblox/eventforge/pkg/script"
	"github.com/fortiblox/eventforge/pkg/session"
)

// listing writes sc's disassembly followed by its decoded strings.
func listing(w io.Writer, sc *script.Script) error {
	if err := sc.Disassemble(w); err != nil {
		return err
	}
	strs := sc.Strings()
	if len(strs) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nstrings\n")
	for i, str := range strs {
		fmt.Fprintf(w, "  %02X %q\n", i, ctstring.Decode(str))
	}
	return nil
}

func runFlux(args []string) error {
	fs := flag.NewFlagSet("flux", flag.ExitOnError)
	file := fs.String("file", "", "Flux event file")
	fs.Parse(args)
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	sc, err := flux.ParseFile(*file)
	if err != nil {
		return err
	}
	fmt.Printf("; %s\n", *file)
	return listing(os.Stdout, sc)
}

// runVerify decodes each location and checks its pointer table and
// instruction stream. Every failure is reported before returning.
func runVerify(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	all := fs.Bool("all", false, "Check every location instead of session.preload")
	fs.Parse(args)

	locs, err := cfg.PreloadLocations()
	if err != nil {
		return err
	}
	if *all || len(locs) == 0 {
		locs = locs[:0]
		for v := 0; v <= types.MaxLocation; v++ {
			locs = append(locs, types.LocID(v))
		}
	}

	img, err := openROM(cfg)
	if err != nil {
		return err
	}
	sess := session.New(img, session.DefaultConfig())

	failed := 0
	for _, loc := range locs {
		sc, err := sess.Script(loc)
		if err == nil {
			err = sc.Verify()
		}
		sess.Free(loc)
		if err != nil {
			log.Printf("FAIL %s: %v", loc, err)
			failed++
		}
	}
	log.Printf("Verified %d locations, %d failed", len(locs), failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d locations failed", failed, len(locs))
	}
	return nil
}
