package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dop251/goja"

	"github.com/llxisdsh/stable"
	"github.com/llxisdsh/stable/jsbind"
)

func scriptCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("script", flag.ContinueOnError)
	in := fs.String("in", "", "YAML or JSON document loaded into root before the script runs")
	format := fs.String("format", "", "Dump root after the script (text, json, yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected one script file, got %v", fs.Args())
	}
	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	root := stable.New()
	if *in != "" {
		root.Release()
		if root, err = loadTable(*in); err != nil {
			return err
		}
	}
	defer root.Release()

	v, err := runScript(ctx, root, fs.Arg(0), string(src))
	if err != nil {
		return err
	}
	if v != nil && !goja.IsUndefined(v) {
		fmt.Println(v.String())
	}
	if *format != "" {
		return writeTable(os.Stdout, root, *format)
	}
	return nil
}

// runScript evaluates src with the global "root" bound to root and the
// "stable" helpers registered. Canceling ctx interrupts the script.
func runScript(ctx context.Context, root *stable.Table, name, src string) (goja.Value, error) {
	vm := goja.New()
	if err := jsbind.Register(vm); err != nil {
		return nil, err
	}
	if err := vm.Set("root", jsbind.Wrap(vm, root)); err != nil {
		return nil, err
	}
	if err := vm.Set("log", func(msg string, args ...any) {
		slog.InfoContext(ctx, msg, args...)
	}); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	prg, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, err
	}
	v, err := vm.RunProgram(prg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}
