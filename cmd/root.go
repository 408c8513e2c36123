// Package cmd wires up the CLI flags and dispatches to the link
// factory.
package cmd

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"knxtool/config"
	kerrors "knxtool/internal/errors"
	"knxtool/internal/keyring"
	"knxtool/internal/link"
	"knxtool/internal/transport"
	"knxtool/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X knxtool/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// command maps a command name to its typed entry point.  Dispatch is
// a static table lookup; no runtime discovery.
type command struct {
	name     string
	synopsis string
	run      func(ctx context.Context, args []string) error
}

var commands = []command{
	{"connect", "establish a KNX network link to <host> and report it", runConnect},
	{"monitor", "open a passive TP-UART bus monitor on <host> and dump raw frames", runMonitor},
	{"mgmt", "open a KNXnet/IP local device management connection to <host>", runMgmt},
}

// Execute parses args and runs the requested knxtool command.
func Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}
	switch args[0] {
	case "--help", "-h", "help":
		printUsage()
		return nil
	case "--version", "version":
		fmt.Printf("knxtool %s\n", version)
		return nil
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(ctx, args[1:])
		}
	}
	printUsage()
	return fmt.Errorf("unknown command %q", args[0])
}

// ── commands ─────────────────────────────────────────────────────────

func runConnect(ctx context.Context, args []string) error {
	o, dry, err := parseOptions("connect", args, true)
	if err != nil || o == nil {
		return err
	}
	if dry {
		return nil
	}
	logger := util.NewLogger(o.Verbose + 1)
	f := link.NewFactory(keyring.DefaultSecurity, transport.DefaultPool, logger)

	l, err := f.New(ctx, o)
	if err != nil {
		return err
	}
	defer l.Close()
	logger.Info("connected: %s (%s)", l.Name(), l.Medium())
	return nil
}

func runMonitor(ctx context.Context, args []string) error {
	o, dry, err := parseOptions("monitor", args, false)
	if err != nil || o == nil {
		return err
	}
	// The monitor is always a passive TP-UART connection.  Transport
	// flags outranking it in the factory would open the wrong link kind.
	for _, tf := range []struct {
		set  bool
		name string
	}{{o.Serial, "ft12"}, {o.SerialCEMI, "ft12-cemi"}, {o.USB, "usb"}} {
		if tf.set {
			return &kerrors.ConfigError{
				Field:   tf.name,
				Message: "not a bus monitor transport",
				Hint:    "pass the TP-UART serial device as <host>",
			}
		}
	}
	o.Tpuart = true
	if dry {
		return nil
	}
	logger := util.NewLogger(o.Verbose + 1)
	f := link.NewFactory(keyring.DefaultSecurity, transport.DefaultPool, logger)

	l, err := f.New(ctx, o)
	if err != nil {
		return err
	}
	mon, ok := l.(*link.Monitor)
	if !ok {
		l.Close()
		return fmt.Errorf("monitor: unexpected link %s", l.Name())
	}
	logger.Info("monitoring %s, stop with ^C", mon.Name())
	return util.Pump(ctx, mon, os.Stdout)
}

func runMgmt(ctx context.Context, args []string) error {
	o, dry, err := parseOptions("mgmt", args, true)
	if err != nil || o == nil {
		return err
	}
	if dry {
		return nil
	}
	logger := util.NewLogger(o.Verbose + 1)
	f := link.NewFactory(keyring.DefaultSecurity, transport.DefaultPool, logger)

	m, err := f.NewMgmt(ctx, o)
	if err != nil {
		return err
	}
	defer m.Close()
	logger.Info("connected: %s", m.Name())
	return nil
}

// ── option parsing ───────────────────────────────────────────────────

// parseOptions builds the option set for one command invocation:
// defaults, then environment overlay, then flags, then the positional
// host argument.  A nil option set with a nil error means help was
// requested.
func parseOptions(name string, args []string, secureFlags bool) (*config.Options, bool, error) {
	o := config.New()
	config.LoadFromEnv(o)

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	config.RegisterCommon(fs, o)
	if secureFlags {
		config.RegisterSecure(fs, o)
	}
	fs.CountVarP(&o.Verbose, "verbose", "v", "increase verbosity (repeatable)")
	if name == "mgmt" {
		fs.BoolVar(&o.EmulateWriteEnable, "emulatewriteenable", false,
			"check write-enable state before emulated property writes")
	}

	var dryRun, showHelp bool
	fs.BoolVar(&dryRun, "dry-run", false, "validate options and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "show this help")
	fs.Usage = func() { printCommandUsage(name, fs) }

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}
	if showHelp {
		printCommandUsage(name, fs)
		return nil, false, nil
	}

	switch rest := fs.Args(); len(rest) {
	case 0:
		// Validate reports the missing host.
	case 1:
		o.Host = rest[0]
	default:
		return nil, false, fmt.Errorf("too many arguments: %v", rest[1:])
	}

	if err := promptKeyringPwd(o); err != nil {
		return nil, false, err
	}
	if err := o.ApplyDomain(); err != nil {
		return nil, false, err
	}
	if err := o.Validate(); err != nil {
		return nil, false, err
	}
	return o, dryRun, nil
}

// promptKeyringPwd asks for the keyring password when a keyring was
// referenced without one.  Non-interactive runs skip the prompt; the
// keyring tier then stays inactive.
func promptKeyringPwd(o *config.Options) error {
	if o.KeyringPwdSet || o.KeyringPath == "" {
		return nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	fmt.Fprint(os.Stderr, "keyring password: ")
	pwd, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	o.KeyringPwd = pwd
	o.KeyringPwdSet = true
	return nil
}

// ── usage ────────────────────────────────────────────────────────────

func printUsage() {
	fmt.Fprintf(os.Stderr, `knxtool – KNX connection tool v%s

Establishes KNX network links over serial, USB, TP-UART, and KNXnet/IP
transports, plain or with KNX IP Secure.

Usage:
  knxtool <command> [options] <host>

Commands:
`, version)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.synopsis)
	}
	fmt.Fprintf(os.Stderr, `
Examples:
  knxtool connect 192.168.1.10                  plain UDP tunneling
  knxtool connect --tcp 192.168.1.10            plain tunneling over TCP
  knxtool connect --user 2 --user-pwd s3cret host  secure session tunneling
  knxtool connect 224.0.23.12                   KNXnet/IP routing
  knxtool connect -f /dev/ttyS0                 FT1.2 serial link
  knxtool monitor /dev/ttyACM0                  passive bus monitor
  knxtool mgmt --keyring plant.knxkeys host     secure device management

Use "knxtool <command> --help" for command options.
`)
}

func printCommandUsage(name string, fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage:\n  knxtool %s [options] <host>\n\nOptions:\n", name)
	fs.PrintDefaults()
}
