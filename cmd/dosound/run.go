package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/milk9111/dosound/assets"
	"github.com/milk9111/dosound/audio"
	"github.com/milk9111/dosound/config"
	"github.com/milk9111/dosound/ecs"
	"github.com/milk9111/dosound/ecs/component"
	"github.com/milk9111/dosound/ecs/system"
	"github.com/milk9111/dosound/resource"
	"github.com/milk9111/dosound/sound"
	"github.com/spf13/cobra"
)

const demoScript = "demo.tengo"

type RunParams struct {
	Config       string `short:"c" optional:"true" help:"YAML config file."`
	Variant      string `short:"V" optional:"true" help:"Command set: sci0, sci1early or sci1late."`
	Script       string `short:"s" optional:"true" help:"Tengo script to run. Defaults to the bundled demo."`
	Bank         string `short:"b" optional:"true" help:"Bank directory. Defaults to the bundled bank."`
	Player       string `short:"p" optional:"true" help:"Output: null or ebiten."`
	MaxTicks     int    `short:"t" optional:"true" help:"Stop after this many ticks." default:"0"`
	DigitalAudio bool   `short:"d" optional:"true" help:"Prefer digital audio resources."`
	Watch        bool   `short:"w" optional:"true" help:"Reload the bank when its files change."`
	LogLevel     string `short:"l" optional:"true" help:"Log level: debug, info, warn or error."`
}

func runCmd() *cobra.Command {
	return boa.CmdT[RunParams]{
		Use:         "run",
		Short:       "Run a sound script against a bank",
		Long:        "Runs a tengo script that drives the sound commands once per tick until it quits or the tick limit is reached, then prints the remaining song handles.",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *RunParams, cmd *cobra.Command, args []string) {
			os.Exit(Run(params, os.Stdout, os.Stderr))
		},
	}.ToCobra()
}

func Run(params *RunParams, stdout, stderr io.Writer) int {
	cfg, err := resolveConfig(params)
	if err != nil {
		fmt.Fprintf(stderr, "dosound: %v\n", err)
		return 2
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	s, err := newSession(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "dosound: %v\n", err)
		return 1
	}
	defer s.Close()

	ticks, done := s.Run(cfg.MaxTicks)
	if !done {
		logger.Warn("tick limit reached", "ticks", ticks)
	}
	s.printHandles(stdout)
	fmt.Fprintf(stdout, "\n%d ticks on %s, %s\n", ticks, s.dispatcher.Variant(), s.summary())
	if !done {
		return 1
	}
	return 0
}

// resolveConfig layers the command line over the config file, or over the
// defaults when no file is given.
func resolveConfig(params *RunParams) (config.Config, error) {
	cfg := config.Default()
	if params.Config != "" {
		var err error
		if cfg, err = config.Load(params.Config); err != nil {
			return config.Config{}, err
		}
	}
	if params.Variant != "" {
		cfg.Variant = params.Variant
	}
	if params.Script != "" {
		cfg.Script = params.Script
	}
	if params.Bank != "" {
		cfg.Bank = params.Bank
	}
	if params.Player != "" {
		cfg.Player = params.Player
	}
	if params.MaxTicks > 0 {
		cfg.MaxTicks = params.MaxTicks
	}
	if params.LogLevel != "" {
		cfg.LogLevel = params.LogLevel
	}
	cfg.DigitalAudio = cfg.DigitalAudio || params.DigitalAudio
	cfg.Watch = cfg.Watch || params.Watch
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

type session struct {
	world      *ecs.World
	sched      *ecs.Scheduler
	scripts    *system.SoundScriptSystem
	events     *system.SoundEventSystem
	dispatcher *sound.Dispatcher
	library    *resource.Library
	player     sound.Player
	closers    []io.Closer
	logger     *slog.Logger
}

func newSession(cfg config.Config, logger *slog.Logger) (*session, error) {
	s := &session{logger: logger}

	lib, err := openLibrary(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.library = lib
	if cfg.Watch {
		w, err := lib.Watch(cfg.Bank)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", cfg.Bank, err)
		}
		s.closers = append(s.closers, w)
	}

	switch strings.ToLower(cfg.Player) {
	case config.PlayerEbiten:
		p := audio.NewEbitenPlayer(cfg.SampleRate,
			audio.WithLogger(logger.With("component", "audio")),
			audio.WithPolyphony(cfg.Polyphony))
		s.player = p
		s.closers = append(s.closers, p)
	default:
		p := audio.NewNullPlayer(cfg.SampleRate)
		p.PolyphonyLimit = cfg.Polyphony
		s.player = p
	}

	s.world = ecs.NewWorld()
	d, err := sound.New(cfg.SoundVariant(), sound.Deps{
		Fields:    system.ObjectFields{World: s.world},
		Resources: lib,
		Player:    s.player,
	},
		sound.WithLogger(logger.With("component", "sound")),
		sound.WithDigitalAudio(cfg.DigitalAudio),
		sound.WithTickRate(cfg.TickRate),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.dispatcher = d

	s.scripts = system.NewSoundScriptSystem(d, assets.LoadScript, logger.With("component", "script"))
	s.events = system.NewSoundEventSystem(d, logger.With("component", "events"))
	s.sched = ecs.NewScheduler(s.scripts, system.NewSoundPlaybackSystem(d.Registry()), s.events)

	path := cfg.Script
	if path == "" {
		path = demoScript
	}
	e := ecs.CreateEntity(s.world)
	if err := ecs.Add(s.world, e, component.SoundScriptComponent.Kind(), &component.SoundScript{Path: path}); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func openLibrary(cfg config.Config, logger *slog.Logger) (*resource.Library, error) {
	opt := resource.WithLogger(logger.With("component", "resource"))
	if cfg.Bank == "" {
		return resource.Open(assets.BankFS(), opt)
	}
	return resource.OpenDir(cfg.Bank, opt)
}

// Run advances the world until every script has quit or maxTicks have
// passed. It reports the ticks run and whether the scripts finished.
func (s *session) Run(maxTicks int) (int, bool) {
	for i := 0; i < maxTicks; i++ {
		if s.scripts.Done(s.world) {
			return i, true
		}
		s.sched.Update(s.world)
	}
	return maxTicks, s.scripts.Done(s.world)
}

func (s *session) Close() {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	s.closers = nil
	if err := errors.Join(errs...); err != nil && !errors.Is(err, fs.ErrClosed) {
		s.logger.Warn("close failed", "error", err)
	}
}

func (s *session) printHandles(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Handle", "Object", "Number", "Status", "Priority", "Loops", "Volume", "Ticks"})

	for _, song := range s.dispatcher.Registry().Songs() {
		name := ""
		if obj, ok := ecs.Get(s.world, ecs.Entity(song.Handle.Object()), component.ScriptObjectComponent.Kind()); ok {
			name = obj.Name
		}
		loops := fmt.Sprint(song.Loops)
		if song.Loops == sound.LoopForever {
			loops = "forever"
		}
		t.AppendRow(table.Row{
			song.Handle.String(),
			name,
			song.Number,
			song.Status.String(),
			song.Priority,
			loops,
			song.Volume,
			song.Elapsed,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "master", s.dispatcher.Registry().MasterVolume(), ""})
	t.Render()
}

// summary names the running script and counts the objects left in the world.
func (s *session) summary() string {
	script := "no script"
	if e, ok := ecs.First(s.world, component.SoundScriptComponent.Kind()); ok {
		if sc, ok := ecs.Get(s.world, e, component.SoundScriptComponent.Kind()); ok {
			script = "script " + sc.Path
		}
	}
	return fmt.Sprintf("%s, %d objects", script, len(ecs.Entities(s.world)))
}
