package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/llxisdsh/stable"
)

// stressConfig is the optional YAML file of the stress command.
type stressConfig struct {
	// Threads is the number of reader goroutines.
	Threads int `yaml:"threads"`
	// Count is the number of writer rounds.
	Count int `yaml:"count"`
	// Keys bounds the key space: round i writes key i%Keys. Zero writes a
	// new key every round.
	Keys int `yaml:"keys"`
}

func defaultStressConfig() stressConfig {
	return stressConfig{
		Threads: max(runtime.GOMAXPROCS(0)-1, 1),
		Count:   100000,
	}
}

func loadStressConfig(path string, cfg *stressConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func stressCmd(ctx context.Context, args []string) error {
	cfg := defaultStressConfig()
	fs := flag.NewFlagSet("stress", flag.ContinueOnError)
	config := fs.String("config", "", "YAML config file (threads, count, keys)")
	threads := fs.Int("threads", cfg.Threads, "Number of readers")
	count := fs.Int("count", cfg.Count, "Number of writer rounds")
	keys := fs.Int("keys", cfg.Keys, "Size of the key space, 0 for one key per round")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unknown arguments: %v", fs.Args())
	}
	if *config != "" {
		if err := loadStressConfig(*config, &cfg); err != nil {
			return err
		}
	}
	// Flags override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "threads":
			cfg.Threads = *threads
		case "count":
			cfg.Count = *count
		case "keys":
			cfg.Keys = *keys
		}
	})
	return runStress(ctx, cfg)
}

// runStress runs one writer and cfg.Threads readers over a root table
// holding "number" (index i -> "i"), "string" ("i" -> i) and "count".
// Readers follow count and check the entries of the latest round.
func runStress(ctx context.Context, cfg stressConfig) error {
	if cfg.Threads <= 0 || cfg.Count <= 0 || cfg.Keys < 0 {
		return fmt.Errorf("invalid stress config: %+v", cfg)
	}
	root := stable.New()
	defer root.Release()
	_ = root.SetTable(stable.Name("number"), stable.New())
	_ = root.SetTable(stable.Name("string"), stable.New())

	slot := func(i int) int {
		if cfg.Keys > 0 {
			return i % cfg.Keys
		}
		return i
	}

	start := time.Now()
	var reads atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		numbers := root.Table(stable.Name("number"))
		strs := root.Table(stable.Name("string"))
		for i := 0; i < cfg.Count; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			k := slot(i)
			if err := numbers.SetString(stable.Index(k), strconv.Itoa(i)); err != nil {
				return err
			}
			if err := strs.SetNumber(stable.Name(strconv.Itoa(k)), float64(i)); err != nil {
				return err
			}
			if err := root.SetNumber(stable.Name("count"), float64(i+1)); err != nil {
				return err
			}
		}
		return nil
	})
	for r := 0; r < cfg.Threads; r++ {
		g.Go(func() error {
			last := 0
			for last != cfg.Count {
				if err := ctx.Err(); err != nil {
					return err
				}
				c := int(root.Number(stable.Name("count")))
				if c == last {
					runtime.Gosched()
					continue
				}
				last = c
				if err := checkRound(root, c-1, slot); err != nil {
					return fmt.Errorf("reader %d: %w", r, err)
				}
				reads.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "stress done",
		"threads", cfg.Threads,
		"count", cfg.Count,
		"reads", reads.Load(),
		"duration", time.Since(start).Round(time.Millisecond))
	slog.DebugContext(ctx, "string table", "stats", root.Table(stable.Name("string")).Stats().ToString())
	return nil
}

// checkRound validates what a reader sees after observing count = i+1:
// the entries of round i hold round i or a later round of the same key.
func checkRound(root *stable.Table, i int, slot func(int) int) error {
	k := slot(i)
	got, err := strconv.Atoi(root.Table(stable.Name("number")).Text(stable.Index(k)))
	if err != nil || got < i || slot(got) != k {
		return fmt.Errorf("number[%d] = %d after round %d", k, got, i)
	}
	n := root.Table(stable.Name("string")).Number(stable.Name(strconv.Itoa(k)))
	if int(n) < i || slot(int(n)) != k {
		return fmt.Errorf("string[%q] = %v after round %d", strconv.Itoa(k), n, i)
	}
	return nil
}
