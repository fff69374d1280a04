package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/boardzilla/boardzilla-modreg/internal/config"
	"github.com/boardzilla/boardzilla-modreg/internal/registry"
	"github.com/boardzilla/boardzilla-modreg/internal/server"
	"github.com/boardzilla/boardzilla-modreg/internal/watch"
	"github.com/erikgeiser/promptkit/selection"
	"github.com/gookit/color"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/term"
)

//go:embed version.json
var versionFS embed.FS

func printHelp() {
	fmt.Println("usage: modreg [command]")
	fmt.Println("")
	fmt.Println("serve -module <file> [-port <port>] [-watch]      Serve the registry over http")
	fmt.Println("dump -module <file> [-json]                       Print every loaded piece")
	fmt.Println("extensions -module <file>                         List the accepted extensions")
	fmt.Println("diagnostics -module <file>                        List the load diagnostics")
	fmt.Println("version                                           Shows version installed")
	fmt.Println("")
	fmt.Println("shared flags: -extensions <dir> -data <dir> -keys <file> -patterns <list>")
	fmt.Println("every flag can also be set with its MODREG_* environment variable")
	fmt.Println("")
}

func main() {
	if err := exec(); err != nil {
		config.Exitf("error: %s", err)
	}
}

func exec() error {
	if len(os.Args) == 1 {
		printHelp()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		return version()
	case "serve":
		return serve()
	case "dump":
		return dump()
	case "extensions":
		return listExtensions()
	case "diagnostics":
		return listDiagnostics()
	default:
		fmt.Printf("Unrecognized command: %s\n\n", command)
		printHelp()
		os.Exit(1)
	}

	return nil
}

func version() error {
	f, err := versionFS.ReadFile("version.json")
	if err != nil {
		return err
	}
	v := gjson.GetBytes(f, "version")
	if !v.Exists() {
		return errors.New("version missing from version.json")
	}
	fmt.Printf("Version is %s\n", v.String())
	return nil
}

// parseConfig layers the command's flags over the environment.
func parseConfig(name string, extra func(fs *flag.FlagSet, cfg *config.Config)) (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, err
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	if extra != nil {
		extra(fs, &cfg)
	}
	cfg.Flags(fs)
	if err := fs.Parse(os.Args[2:]); err != nil {
		return cfg, err
	}
	if cfg.ModulePath == "" {
		if cfg.ModulePath, err = pickModule(); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

// pickModule offers the module files in the working directory when running
// interactively.
func pickModule() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", nil
	}
	files, err := doublestar.FilepathGlob("*.vmod")
	if err != nil {
		return "", err
	}
	switch len(files) {
	case 0:
		return "", nil
	case 1:
		return files[0], nil
	}
	sp := selection.New("Pick a module", files)
	sp.PageSize = 8
	return sp.RunPrompt()
}

func load(cfg config.Config) (*registry.Loader, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	loader, err := registry.NewLoader(opts, nil)
	if err != nil {
		return nil, err
	}
	if err := loader.Reload(); err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.ModulePath, err)
	}
	return loader, nil
}

// withRegistry loads the configured module and hands the published snapshot to fn.
func withRegistry(name string, extra func(fs *flag.FlagSet, cfg *config.Config), fn func(reg *registry.ModuleRegistry) error) error {
	cfg, err := parseConfig(name, extra)
	if err != nil {
		return err
	}
	loader, err := load(cfg)
	if err != nil {
		return err
	}
	defer loader.Holder().Close()
	reg, release, err := loader.Holder().Acquire()
	defer release()
	if err != nil {
		return err
	}
	return fn(reg)
}

func serve() error {
	cfg, err := parseConfig("serve", func(fs *flag.FlagSet, cfg *config.Config) {
		fs.IntVar(&cfg.Port, "port", cfg.Port, "port for server")
		fs.BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload when the module, extensions or data change")
	})
	if err != nil {
		return err
	}

	loader, err := load(cfg)
	if err != nil {
		return err
	}
	defer loader.Holder().Close()
	printSummary(loader)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchDone := make(chan struct{})
	if cfg.Watch {
		w := watch.New(loader, watch.DefaultDebounce, watch.DefaultPoll, nil)
		go func() {
			defer close(watchDone)
			if err := w.Run(ctx); err != nil {
				color.Printf("<red>watch stopped:</> %s\n", err.Error())
			}
		}()
	} else {
		close(watchDone)
	}

	s, err := server.NewServer(loader, cfg.Port)
	if err != nil {
		return err
	}
	errs := make(chan error, 1)
	go func() {
		errs <- s.Serve()
	}()
	fmt.Printf("Ready on :%d\n", cfg.Port)
	select {
	case err := <-errs:
		stop()
		<-watchDone
		return err
	case <-ctx.Done():
		// The holder is closed on return; no reload may publish after that.
		<-watchDone
		return nil
	}
}

func printSummary(loader *registry.Loader) {
	reg, release, err := loader.Holder().Acquire()
	defer release()
	if err != nil {
		return
	}
	color.Printf("<green>%s %s</> loaded from %s: %d pieces, %d extensions, %d diagnostics\n",
		reg.Name(), reg.Version(), reg.ModuleFile(), len(reg.Pieces()), len(reg.Extensions()), len(reg.Diagnostics()))
}

func dump() error {
	var asJSON bool
	return withRegistry("dump", func(fs *flag.FlagSet, _ *config.Config) {
		fs.BoolVar(&asJSON, "json", false, "print json")
	}, func(reg *registry.ModuleRegistry) error {
		if asJSON {
			out := []byte(`{"pieces":[]}`)
			for _, p := range reg.Pieces() {
				raw := []byte(`{}`)
				var err error
				for _, kv := range []struct {
					path  string
					value any
				}{
					{"gpid", p.GPID},
					{"name", p.Name},
					{"isSmall", p.Small},
					{"front", p.Front.Value()},
					{"back", p.Back.Value()},
					{"archive", p.Archive.Name()},
				} {
					if raw, err = sjson.SetBytes(raw, kv.path, kv.value); err != nil {
						return err
					}
				}
				if out, err = sjson.SetRawBytes(out, "pieces.-1", raw); err != nil {
					return err
				}
			}
			fmt.Println(string(out))
			return nil
		}
		for _, p := range reg.Pieces() {
			color.Printf("<cyan>%s</> %s", p.GPID, p.Name)
			if p.Small {
				color.Printf(" <gray>(small)</>")
			}
			fmt.Println()
			if len(p.Front) > 0 {
				fmt.Printf("  front: %s\n", strings.Join(p.Front, ", "))
			}
			if len(p.Back) > 0 {
				fmt.Printf("  back:  %s\n", strings.Join(p.Back, ", "))
			}
		}
		return nil
	})
}

func listExtensions() error {
	return withRegistry("extensions", nil, func(reg *registry.ModuleRegistry) error {
		exts := reg.Extensions()
		if len(exts) == 0 {
			fmt.Println("no extensions loaded")
			return nil
		}
		for _, e := range exts {
			d := e.Descriptor
			color.Printf("<cyan>%s</> %s", d.ID, d.Version)
			if d.ParentID != "" {
				color.Printf(" <gray>(part of %s)</>", d.ParentID)
			}
			fmt.Printf(" from %s\n", e.ArchiveName)
		}
		return nil
	})
}

func listDiagnostics() error {
	return withRegistry("diagnostics", nil, func(reg *registry.ModuleRegistry) error {
		diags := reg.Diagnostics()
		if len(diags) == 0 {
			color.Printf("<green>no diagnostics</>\n")
			return nil
		}
		for _, d := range diags {
			color.Printf("<yellow>%s</>\n", d.String())
		}
		fmt.Printf("\n%d diagnostics\n", len(diags))
		return nil
	})
}
