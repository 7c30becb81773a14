// sceneconv checks, reformats and generates scene documents offline.
//
//	sceneconv check [-scripts dir] <scene.json>...
//	sceneconv fmt <scene.json>...
//	sceneconv template <templates.yaml> <out.json>
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stagehand/editor/internal/editor"
	"github.com/stagehand/editor/internal/scene"
	"github.com/stagehand/editor/internal/scripting"
	"gopkg.in/yaml.v3"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "check":
		err = check(os.Args[2:])
	case "fmt":
		err = format(os.Args[2:])
	case "template":
		err = template(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: sceneconv check [-scripts dir] <scene.json>...")
	fmt.Fprintln(os.Stderr, "       sceneconv fmt <scene.json>...")
	fmt.Fprintln(os.Stderr, "       sceneconv template <templates.yaml> <out.json>")
	os.Exit(2)
}

// check parses each scene and compiles every script it references. Script
// paths resolve against -scripts, or the project's scripts/ directory next
// to scenes/.
func check(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	scriptsDir := fs.String("scripts", "", "scripts directory")
	fs.Parse(args)
	if fs.NArg() == 0 {
		usage()
	}

	backend, err := scripting.NewLuaBackend(nil, nil, "", nil)
	if err != nil {
		return err
	}
	defer backend.Close()

	failed := 0
	for _, path := range fs.Args() {
		s, err := scene.Load(path)
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", path, err)
			failed++
			continue
		}
		dir := *scriptsDir
		if dir == "" {
			dir = filepath.Join(filepath.Dir(filepath.Dir(path)), "scripts")
		}
		problems := 0
		s.Walk(func(e *scene.SerializedEntity, _ *scene.SerializedEntity) {
			if e.Components.Script == nil {
				return
			}
			paths := append([]string{e.Components.Script.Path}, e.Components.Script.AdditionalPaths...)
			for _, p := range paths {
				if p == "" {
					continue
				}
				src, err := scripting.ReadSource(filepath.Join(dir, filepath.FromSlash(p)))
				if err == nil {
					err = backend.Compile(p, src)
				}
				if err != nil {
					fmt.Printf("FAIL %s: entity %d: %v\n", path, e.ID, err)
					problems++
				}
			}
		})
		if problems > 0 {
			failed++
			continue
		}
		fmt.Printf("ok   %s (%d entities)\n", path, s.Count())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenes failed", failed, fs.NArg())
	}
	return nil
}

// format rewrites each scene in canonical form.
func format(args []string) error {
	if len(args) == 0 {
		usage()
	}
	var errs []error
	for _, path := range args {
		s, err := scene.Load(path)
		if err == nil {
			err = s.Save(path)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// template turns a template file into a scene with one root entity per
// entry, in file order.
func template(args []string) error {
	if len(args) != 2 {
		usage()
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var entries []editor.TemplateEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	name := filepath.Base(args[1])
	s := &scene.Scene{Name: name[:len(name)-len(filepath.Ext(name))]}
	for i, e := range entries {
		c, err := editor.ComponentsFromYAML(e.Components)
		if err != nil {
			return fmt.Errorf("template %q: %w", e.Name, err)
		}
		if c.Name == nil {
			n := e.Name
			c.Name = &n
		}
		s.Entities = append(s.Entities, scene.SerializedEntity{ID: uint64(i + 1), Components: c})
	}
	if err := s.Save(args[1]); err != nil {
		return err
	}
	fmt.Printf("Wrote %d entities to %s\n", len(s.Entities), args[1])
	return nil
}
