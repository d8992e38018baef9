// eventforge: event script editor for Chrono Trigger ROM images.
//
// eventforge decodes location event scripts, checkpoints edited scripts to a
// local store, and writes them back into free ROM space.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/fortiblox/eventforge/internal/config"
	"github.com/fortiblox/eventforge/internal/types"
	"github.com/fortiblox/eventforge/pkg/bundle"
	"github.com/fortiblox/eventforge/pkg/journal"
	"github.com/fortiblox/eventforge/pkg/rom"
	"github.com/fortiblox/eventforge/pkg/scriptstore"
	"github.com/fortiblox/eventforge/pkg/session"
)

// Version information
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

var configPath = flag.String("config", config.FileName, "Path to eventforge.toml")

const usage = `usage: eventforge [-config file] <command> [flags]

commands:
  dump -loc N        disassemble a location's event script
  flux -file F       disassemble a flux event file
  verify [-all]      decode locations and check their structure
  checkpoint         store every preloaded location
  apply              write stored scripts into the rom and save it
  history [-loc N]   list recorded flushes
  export -out F      write the store to a bundle
  import -in F       load a bundle into the store
  version            print version and exit
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log.SetFlags(log.Ldate | log.Ltime)

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "version" {
		fmt.Printf("eventforge %s (%s)\n", Version, GitCommit)
		return
	}
	if cmd == "flux" {
		commonlog.Configure(1, nil)
		if err := runFlux(args); err != nil {
			log.Fatalf("flux: %v", err)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	var logFile *string
	if cfg.Log.File != "" {
		p := cfg.Resolve(cfg.Log.File)
		logFile = &p
	}
	commonlog.Configure(cfg.Log.Verbosity, logFile)

	var run func(*config.Config, []string) error
	switch cmd {
	case "dump":
		run = runDump
	case "verify":
		run = runVerify
	case "checkpoint":
		run = runCheckpoint
	case "apply":
		run = runApply
	case "history":
		run = runHistory
	case "export":
		run = runExport
	case "import":
		run = runImport
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if err := run(cfg, args); err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// loadConfig reads path, falling back to defaults when the default file
// name is absent.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) && path == config.FileName {
		log.Printf("No %s found, using defaults", config.FileName)
		return config.DefaultConfig(), nil
	}
	return cfg, err
}

func openROM(cfg *config.Config) (*rom.Image, error) {
	img, err := rom.Load(cfg.Resolve(cfg.ROM.Path))
	if err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		if !cfg.ROM.IgnoreChecksum {
			return nil, err
		}
		log.Printf("Warning: %v (ignored)", err)
	}
	return img, nil
}

func openStore(cfg *config.Config) (scriptstore.Store, error) {
	path := cfg.Resolve(cfg.Store.Path)
	switch cfg.Store.Backend {
	case config.BackendBadger:
		bc := scriptstore.DefaultBadgerConfig(path)
		bc.SyncWrites = cfg.Store.Sync
		return scriptstore.OpenBadger(bc)
	default:
		bc := scriptstore.DefaultConfig(path)
		bc.NoSync = !cfg.Store.Sync
		return scriptstore.OpenBolt(bc)
	}
}

// openJournal returns nil when no journal is configured.
func openJournal(cfg *config.Config) (*journal.Journal, error) {
	if cfg.Journal.Path == "" {
		return nil, nil
	}
	return journal.Open(cfg.Resolve(cfg.Journal.Path))
}

func parseLoc(v int) (types.LocID, error) {
	if v < 0 {
		return 0, errors.New("-loc is required")
	}
	return types.ParseLocID(v)
}

func runDump(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	locFlag := fs.Int("loc", -1, "Location id")
	fs.Parse(args)

	loc, err := parseLoc(*locFlag)
	if err != nil {
		return err
	}
	img, err := openROM(cfg)
	if err != nil {
		return err
	}
	sc, err := session.New(img, session.DefaultConfig()).Script(loc)
	if err != nil {
		return err
	}
	fmt.Printf("; location %s\n", loc)
	return listing(os.Stdout, sc)
}

func runCheckpoint(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("checkpoint", flag.ExitOnError)
	fs.Parse(args)

	locs, err := cfg.PreloadLocations()
	if err != nil {
		return err
	}
	if len(locs) == 0 {
		return errors.New("session.preload is empty")
	}
	img, err := openROM(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sess := session.New(img, session.DefaultConfig())
	if err := sess.Preload(locs...); err != nil {
		return err
	}
	if err := sess.Checkpoint(st); err != nil {
		return err
	}
	log.Printf("Checkpointed %d locations against %s", len(locs), sess.Base())
	return nil
}

func runApply(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	out := fs.String("out", "", "Output image (default rom.output)")
	fs.Parse(args)

	img, err := openROM(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	j, err := openJournal(cfg)
	if err != nil {
		return err
	}
	scfg := session.DefaultConfig()
	if j != nil {
		defer j.Close()
		scfg.Journal = j
	}

	sess := session.New(img, scfg)
	locs, err := st.List()
	if err != nil {
		return err
	}
	for _, loc := range locs {
		if err := sess.Restore(st, loc); err != nil {
			return err
		}
	}
	if err := sess.FlushAll(); err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = cfg.ROM.Output
	}
	if err := img.Save(cfg.Resolve(path)); err != nil {
		return err
	}
	log.Printf("Applied %d scripts, %d bytes free", len(locs), img.Space().FreeSpace())
	return nil
}

func runHistory(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	locFlag := fs.Int("loc", -1, "Only show this location")
	fs.Parse(args)

	j, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if j == nil {
		return errors.New("journal.path is not set")
	}
	defer j.Close()

	var entries []journal.Entry
	if *locFlag >= 0 {
		loc, err := types.ParseLocID(*locFlag)
		if err != nil {
			return err
		}
		entries, err = j.Entries(loc)
		if err != nil {
			return err
		}
	} else if entries, err = j.All(); err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Println(e)
	}
	return nil
}

func runExport(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "Bundle to write")
	fs.Parse(args)
	if *out == "" {
		return errors.New("-out is required")
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	n, err := bundle.Export(*out, st)
	if err != nil {
		return err
	}
	log.Printf("Exported %d scripts to %s", n, *out)
	return nil
}

func runImport(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("in", "", "Bundle to read")
	fs.Parse(args)
	if *in == "" {
		return errors.New("-in is required")
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	n, err := bundle.Import(*in, st)
	if err != nil {
		return err
	}
	log.Printf("Imported %d scripts from %s", n, *in)
	return nil
}
