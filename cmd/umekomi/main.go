// Package main is the Umekomi CLI entry point.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/umekomi/internal/cache"
	"github.com/hyperjump/umekomi/internal/config"
	"github.com/hyperjump/umekomi/internal/model"
	"github.com/hyperjump/umekomi/pkg/engine"
	"github.com/hyperjump/umekomi/pkg/utils"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "embed":
		runEmbed(os.Args[2:])
	case "rerank":
		runRerank(os.Args[2:])
	case "models":
		runModels(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("umekomi version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: umekomi <command> [options]

Commands:
  embed   [-config file] [-q variant] [text ...]   Embed texts (stdin lines when no args)
  rerank  [-config file] <query> [document ...]    Rank documents against a query
  models  [-config file]                           Show catalog models and cache status
  version                                          Print version`)
}

// loadConfig loads the config at path, or defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newEngine(cfgPath string) (*engine.Engine, *config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, nil, err
	}
	eng, err := engine.New(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return eng, cfg, logger, nil
}

func runEmbed(args []string) {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file path")
	quant := fs.String("q", "", "quantization variant (fp32, fp16, q4, q4f16, q8)")
	_ = fs.Parse(args)

	texts := fs.Args()
	if len(texts) == 0 {
		var err error
		texts, err = readLines(os.Stdin)
		if err != nil {
			fatal("reading stdin: %v", err)
		}
	}
	if len(texts) == 0 {
		fatal("no texts to embed")
	}

	eng, _, logger, err := newEngine(*cfgPath)
	if err != nil {
		fatal("%v", err)
	}
	defer eng.Close()
	defer logger.Sync()

	em, err := eng.NewEmbedder(context.Background(), model.Quantization(*quant))
	if err != nil {
		fatal("%v", err)
	}
	defer em.Close()

	vecs, err := em.Embed(context.Background(), texts)
	if err != nil {
		fatal("%v", err)
	}
	for _, notice := range em.Truncations() {
		fmt.Fprintln(os.Stderr, notice.String())
	}

	out := json.NewEncoder(os.Stdout)
	if err := out.Encode(map[string]interface{}{
		"dimension":  em.Dimension(),
		"embeddings": vecs,
	}); err != nil {
		fatal("%v", err)
	}
}

func runRerank(args []string) {
	fs := flag.NewFlagSet("rerank", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file path")
	_ = fs.Parse(args)

	rest := fs.Args()
	if len(rest) == 0 {
		fatal("rerank requires a query")
	}
	query := rest[0]
	docs := rest[1:]
	if len(docs) == 0 {
		var err error
		docs, err = readLines(os.Stdin)
		if err != nil {
			fatal("reading stdin: %v", err)
		}
	}

	eng, _, logger, err := newEngine(*cfgPath)
	if err != nil {
		fatal("%v", err)
	}
	defer eng.Close()
	defer logger.Sync()

	r, err := eng.NewReranker(context.Background())
	if err != nil {
		fatal("%v", err)
	}
	defer r.Close()

	results, err := r.Rerank(context.Background(), query, docs)
	if err != nil {
		fatal("%v", err)
	}
	if err := json.NewEncoder(os.Stdout).Encode(results); err != nil {
		fatal("%v", err)
	}
}

func runModels(args []string) {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file path")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fatal("%v", err)
	}
	store, err := cache.NewStore(cfg.Cache.Dir, zap.NewNop())
	if err != nil {
		fatal("%v", err)
	}
	catalog := model.NewCatalog(cfg)

	fmt.Printf("cache: %s\n", store.Root())
	for _, role := range []model.Role{model.RoleEmbedding, model.RoleReranker} {
		desc, err := catalog.Describe(role, "")
		if err != nil {
			fatal("%v", err)
		}
		status := "not cached"
		if _, ok := store.Locate(desc.Slot()); ok {
			status = "cached"
		}
		fmt.Printf("%-10s %s (%s): %s\n", role, desc.ID, desc.Quantization, status)
	}
}

// readLines reads non-empty lines from r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "umekomi: "+format+"\n", args...)
	os.Exit(1)
}
