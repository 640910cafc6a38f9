package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/llxisdsh/stable"
)

func dumpCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	in := fs.String("in", "", "YAML or JSON document to load; a demo table if empty")
	format := fs.String("format", "text", "Output format (text, json, yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unknown arguments: %v", fs.Args())
	}

	var root *stable.Table
	if *in == "" {
		root = demoTable()
	} else {
		var err error
		if root, err = loadTable(*in); err != nil {
			return err
		}
	}
	defer root.Release()
	slog.DebugContext(ctx, "loaded", "in", *in, "stats", root.Stats().ToString())
	return writeTable(os.Stdout, root, *format)
}

// demoTable builds the table printed by a bare "stable dump".
func demoTable() *stable.Table {
	root := stable.New()
	sub := stable.New()
	_ = sub.SetString(stable.Index(0), "world")
	_ = root.SetTable(stable.Name("hello"), sub)
	_ = root.SetNumber(stable.Index(10), 100)
	return root
}

// loadTable reads a YAML or JSON document into a new table. JSON is
// recognized by extension; everything else goes through YAML, which
// accepts JSON too.
func loadTable(path string) (*stable.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t := stable.New()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, t)
	} else {
		var doc any
		if err = yaml.Unmarshal(data, &doc); err == nil {
			err = t.Populate(doc)
		}
	}
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return t, nil
}

func writeTable(w io.Writer, t *stable.Table, format string) error {
	switch format {
	case "text":
		return dump(w, t, 0)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	case "yaml":
		v, err := t.Export()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format: %q", format)
	}
}

// maxDumpDepth stops dumps of tables that contain themselves.
const maxDumpDepth = 64

// dump writes one line per key: "[i] = v" for indices, "name = v" for
// names, and "key:" followed by the indented nested table.
func dump(w io.Writer, t *stable.Table, depth int) error {
	if depth >= maxDumpDepth {
		return errors.New("tables nest too deep")
	}
	indent := strings.Repeat("  ", depth)
	for k, v := range t.All() {
		var err error
		if v.Kind() == stable.KindTable {
			if _, err = fmt.Fprintf(w, "%s%s:\n", indent, k); err == nil {
				err = dump(w, v.Table(), depth+1)
			}
		} else {
			_, err = fmt.Fprintf(w, "%s%s = %s\n", indent, k, formatValue(v))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func formatValue(v stable.Value) string {
	switch v.Kind() {
	case stable.KindNumber:
		return strconv.FormatFloat(v.Number(), 'f', 6, 64)
	case stable.KindString:
		return strconv.Quote(v.Text())
	default:
		return v.String()
	}
}
