package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/MixyLabs/appmix/pkg/appmix"
	"github.com/MixyLabs/appmix/pkg/appmix/util"
)

var (
	gitCommit  string
	versionTag string
	buildType  string

	verbose    bool
	configPath string
)

const usage = `usage: appmix [flags] <command> [args]

commands:
  list                          show the playback streams currently producing sound
  get <id>                      show one stream's volume
  set-volume <id|name> <level>  set a stream's volume, level within 0.0 to 1.0
  mute <id|name> <on|off>       mute or unmute a stream
  monitor                       keep listing streams as they change

flags:
`

var errUsage = errors.New("invalid usage")

func init() {
	flag.BoolVar(&verbose, "verbose", false, "show verbose logs")
	flag.BoolVar(&verbose, "v", false, "shorthand for --verbose")
	flag.StringVar(&configPath, "config", appmix.DefaultConfigFilepath, "path to the config file")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	logger, err := appmix.NewLogger(buildType)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}

	if !verbose {
		logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
	}

	named := logger.Named("main")
	named.Debug("Created logger")

	named.Debugw("Version info",
		"gitCommit", gitCommit,
		"versionTag", versionTag,
		"buildType", buildType)

	notifier, err := appmix.NewToastNotifier(logger)
	if err != nil {
		named.Fatalw("Failed to create ToastNotifier", "error", err)
	}

	defer appmix.RecoverFromPanic(named, notifier)

	configMan, err := appmix.NewConfig(logger, notifier, configPath)
	if err != nil {
		named.Fatalw("Failed to create Config", "error", err)
	}

	if err := configMan.Load(); err != nil {
		named.Fatalw("Failed to load config", "error", err)
	}

	if err := run(logger, configMan, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}

		fmt.Fprintf(os.Stderr, "appmix: %v\n", err)
		_ = logger.Sync()
		os.Exit(1)
	}

	_ = logger.Sync()
}

func run(logger *zap.SugaredLogger, configMan *appmix.ConfigManager, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	command, args := args[0], args[1:]

	expectedArgs := map[string]int{"list": 0, "get": 1, "set-volume": 2, "mute": 2, "monitor": 0}
	count, known := expectedArgs[command]
	if !known || len(args) != count {
		return errUsage
	}

	if command == "monitor" {
		return monitor(logger, configMan)
	}

	engine, err := appmix.Dial(logger, configMan.Current())
	if err != nil {
		return err
	}
	defer engine.Close()

	switch command {
	case "list":
		snapshot, err := engine.Enumerate()
		if err != nil {
			return err
		}

		printSnapshot(snapshot)

	case "get":
		id, err := parseStreamID(args[0])
		if err != nil {
			return err
		}

		volume, err := engine.Volume(id)
		if err != nil {
			return err
		}

		fmt.Printf("%.2f\n", volume)

	case "set-volume":
		level, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("parse volume level %q: %w", args[1], err)
		}

		if id, err := parseStreamID(args[0]); err == nil {
			return engine.SetVolume(id, level)
		}

		return engine.SetVolumeByName(args[0], level)

	case "mute":
		muted, err := parseSwitch(args[1])
		if err != nil {
			return err
		}

		if id, err := parseStreamID(args[0]); err == nil {
			return engine.SetMute(id, muted)
		}

		return engine.SetMuteByName(args[0], muted)
	}

	return nil
}

func parseStreamID(arg string) (uint32, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse stream id %q: %w", arg, err)
	}

	return uint32(id), nil
}

func parseSwitch(arg string) (bool, error) {
	arg = strings.ToLower(arg)

	if funk.ContainsString([]string{"on", "true", "yes", "1"}, arg) {
		return true, nil
	}

	if funk.ContainsString([]string{"off", "false", "no", "0"}, arg) {
		return false, nil
	}

	return false, fmt.Errorf("%w: expected on or off, got %q", appmix.ErrInvalidArgument, arg)
}

func printSnapshot(snapshot appmix.Snapshot) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tVOLUME\tMUTED\tPROCESS")

	for _, sink := range snapshot {
		process := "-"
		if name, err := util.ProcessName(sink.ProcessID); err == nil {
			process = fmt.Sprintf("%s (%d)", name, sink.ProcessID)
		}

		fmt.Fprintf(w, "%d\t%s\t%.2f\t%t\t%s\n", sink.StreamID, sink.DisplayName, sink.Volume, sink.Muted, process)
	}

	_ = w.Flush()
}
