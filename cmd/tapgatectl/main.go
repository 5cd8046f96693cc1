// tapgatectl is the control CLI for the tapgate gesture gate.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"tapgate/internal/capture"
	"tapgate/internal/config"
	"tapgate/internal/gatekeeper"
	"tapgate/internal/keystore"
	"tapgate/internal/logging"
	"tapgate/internal/vault"
)

var configPath = flag.String("config", "", "path to config file")

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	switch cmd := flag.Arg(0); cmd {
	case "init":
		cmdInit()
	case "status":
		cmdStatus()
	case "register":
		cmdRegister(flag.Args()[1:], false)
	case "register-decoy":
		cmdRegister(flag.Args()[1:], true)
	case "unlock":
		cmdUnlock()
	case "recover":
		cmdRecover()
	case "wipe":
		cmdWipe()
	case "field":
		cmdField()
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `tapgatectl - Control utility for the tapgate gesture gate

Usage: tapgatectl [options] <command> [args]

Commands:
  init               Write a default config file
  status             Show gate state and attempt counters
  register           Enroll the real gesture identity
  register-decoy     Enroll a decoy gesture
  unlock             Attempt an unlock
  recover            Restore an identity from its recovery phrase
  wipe               Destroy all identity material immediately
  field              Show the landmark field (requires an unlock)
  help               Show this help message

Options:
  -config <path>     Path to config file (default: platform data dir)`)
}

func loadConfig() *config.Config {
	cfg, err := config.NewLoader(*configPath).Load()
	if err != nil {
		fatal("load config: %v", err)
	}
	return cfg
}

// openGate wires vault, keystore, and gatekeeper from the configuration.
// The returned cleanup closes the vault.
func openGate(cfg *config.Config) (*gatekeeper.Gatekeeper, func()) {
	log, logCloser, err := logging.New(logging.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		Component: "tapgatectl",
	})
	if err != nil {
		fatal("init logging: %v", err)
	}

	var store vault.Store
	switch cfg.Storage.Type {
	case "memory":
		store = vault.NewMemStore()
	default:
		if err := cfg.EnsureDirectories(); err != nil {
			fatal("%v", err)
		}
		store, err = vault.Open(cfg.Storage.Path)
		if err != nil {
			fatal("open vault: %v", err)
		}
	}

	var keys keystore.Provider
	if cfg.Keystore.PreferHardware {
		keys = keystore.Detect(store)
	} else {
		keys = keystore.NewSoftwareProvider(store)
	}

	gcfg := gatekeeper.DefaultConfig()
	gcfg.LockoutThreshold = cfg.Gate.LockoutThreshold
	gcfg.WipeThreshold = cfg.Gate.WipeThreshold
	gcfg.LockoutDuration = cfg.LockoutDuration()
	gcfg.ResponseFloor = cfg.ResponseFloor()
	gcfg.LandmarkNodes = cfg.Pattern.LandmarkNodes

	gate := gatekeeper.New(store, keys, gcfg, log)
	cleanup := func() {
		store.Close()
		if logCloser != nil {
			logCloser.Close()
		}
	}
	return gate, cleanup
}

func cmdInit() {
	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, created, err := config.LoadOrCreate(path)
	if err != nil {
		fatal("%v", err)
	}
	if created {
		fmt.Printf("Wrote default config to %s\n", path)
	} else {
		fmt.Printf("Config already exists at %s\n", path)
	}
	_ = cfg
}

func cmdStatus() {
	cfg := loadConfig()
	gate, cleanup := openGate(cfg)
	defer cleanup()

	fmt.Println("=== tapgate status ===")
	fmt.Printf("State:             %s\n", gate.State())
	fmt.Printf("Failed attempts:   %d of %d before lockout\n",
		gate.FailedAttempts(), cfg.Gate.LockoutThreshold)
	if remaining := gate.LockoutRemaining(); remaining > 0 {
		fmt.Printf("Lockout remaining: %s\n", remaining.Round(time.Second))
	}
	if gate.NeedsEnrollment() {
		fmt.Println("Recovered identity awaits gesture enrollment: run `tapgatectl register`")
	}
}

func cmdRegister(args []string, decoy bool) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	strategyName := fs.String("strategy", "", "pattern strategy: interval or grid")
	fs.Parse(args)

	cfg := loadConfig()
	gate, cleanup := openGate(cfg)
	defer cleanup()

	name := *strategyName
	if name == "" {
		name = cfg.Pattern.Strategy
	}
	strategy, ok := capture.ParseStrategy(name)
	if !ok {
		fatal("unknown strategy %q", name)
	}

	kind := "real"
	if decoy {
		kind = "decoy"
	}
	fmt.Printf("Enrolling %s identity (%s strategy).\n\n", kind, strategy)

	first, err := capturePattern(strategy, "Perform your pattern")
	if err != nil {
		fatal("capture: %v", err)
	}
	confirm, err := capturePattern(strategy, "Repeat to confirm")
	if err != nil {
		fatal("capture: %v", err)
	}

	if decoy {
		if err := gate.RegisterDecoy(first, confirm); err != nil {
			fatal("register decoy: %v", err)
		}
		fmt.Println("\nDecoy registered.")
		return
	}

	phrase, err := gate.Register(first, confirm)
	if err != nil {
		fatal("register: %v", err)
	}
	if phrase == nil {
		fmt.Println("\nGesture re-enrolled. Your original recovery phrase is still the only backup.")
		return
	}
	defer phrase.Wipe()

	fmt.Println("\nIdentity registered. Write down this recovery phrase and store it offline:")
	fmt.Println()
	for i, word := range phrase.Words() {
		fmt.Printf("  %2d. %s\n", i+1, word)
	}
	fmt.Println("\nThis phrase is shown exactly once. Losing both the gesture and the")
	fmt.Println("phrase makes the identity unrecoverable.")
}

func cmdUnlock() {
	cfg := loadConfig()
	gate, cleanup := openGate(cfg)
	defer cleanup()

	strategy, _ := capture.ParseStrategy(cfg.Pattern.Strategy)
	attempt, err := capturePattern(strategy, "Perform your pattern")
	if err != nil {
		fatal("capture: %v", err)
	}

	out := gate.Unlock(attempt)
	switch out.Status {
	case gatekeeper.UnlockSuccess:
		fmt.Println("Unlocked.")
		if out.Seed != nil {
			out.Seed.Destroy()
		}
	case gatekeeper.UnlockLockedOut:
		if out.Wiped {
			fmt.Println("Too many failures. All identity material has been destroyed.")
			os.Exit(1)
		}
		fmt.Printf("Locked out. Try again in %s.\n", out.LockoutRemaining.Round(time.Second))
		os.Exit(1)
	default:
		fmt.Printf("Pattern not recognized. %d attempts remaining before lockout.\n",
			out.AttemptsRemaining)
		os.Exit(1)
	}
}

func cmdRecover() {
	cfg := loadConfig()
	gate, cleanup := openGate(cfg)
	defer cleanup()

	phrase, err := readHiddenLine("Recovery phrase: ")
	if err != nil {
		fatal("read phrase: %v", err)
	}

	if err := gate.Recover(phrase); err != nil {
		fatal("recover: %v", err)
	}
	fmt.Println("Identity restored. Run `tapgatectl register` to enroll a new gesture.")
}

func cmdWipe() {
	cfg := loadConfig()
	gate, cleanup := openGate(cfg)
	defer cleanup()

	fmt.Print("This destroys all identity material irreversibly. Type 'wipe' to confirm: ")
	var answer string
	fmt.Scanln(&answer)
	if answer != "wipe" {
		fmt.Println("Aborted.")
		return
	}

	gate.PanicWipe()
	fmt.Println("Wiped.")
}

func cmdField() {
	cfg := loadConfig()
	gate, cleanup := openGate(cfg)
	defer cleanup()

	strategy, _ := capture.ParseStrategy(cfg.Pattern.Strategy)
	attempt, err := capturePattern(strategy, "Unlock to view your landmark field")
	if err != nil {
		fatal("capture: %v", err)
	}

	out := gate.Unlock(attempt)
	if out.Status != gatekeeper.UnlockSuccess || out.Seed == nil {
		fmt.Println("Unlock failed; the field stays hidden.")
		os.Exit(1)
	}
	defer out.Seed.Destroy()

	field, err := gate.LandmarkField(out.Seed)
	if err != nil {
		fatal("generate field: %v", err)
	}
	renderField(os.Stdout, field)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "tapgatectl: "+format+"\n", args...)
	os.Exit(1)
}
