// Command kernelctl is a REPL demonstrating the kernel's external
// collaborator surface (spec.md S6 "Kernel CLI surface"): list, reload,
// emit, exit.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/oracipher/kernel/kernel"
	"github.com/oracipher/kernel/logging"
)

func main() {
	logger := logging.NewLogger(logging.DefaultConfig())
	logging.SetGlobal(logger)

	opts, err := kernel.LoadOptions()
	if err != nil {
		logger.Errorf("loading kernel options: %v", err)
		os.Exit(1)
	}

	k := kernel.New(opts, logger, nil)
	ctx := context.Background()
	if err := k.Init(ctx, nil); err != nil {
		logger.Errorf("kernel init: %v", err)
		os.Exit(1)
	}
	defer k.Shutdown(ctx)

	fmt.Println("kernelctl ready. commands: list, reload <name>, emit <event> [k=v ...], exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "list":
			runList(k)
		case "reload":
			runReload(ctx, k, args)
		case "emit":
			runEmit(ctx, k, args)
		case "exit":
			return
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}

func runList(k *kernel.Kernel) {
	for _, s := range k.List() {
		state := "STOPPED"
		if s.Active {
			state = "ACTIVE"
		}
		fmt.Printf("%s\t%s\t%s\n", s.Name, s.Version.String(), state)
	}
}

func runReload(ctx context.Context, k *kernel.Kernel, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: reload <name>")
		return
	}
	if err := k.Reload(ctx, args[0]); err != nil {
		fmt.Printf("reload failed: %v\n", err)
	}
}

func runEmit(ctx context.Context, k *kernel.Kernel, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: emit <event> [k=v ...]")
		return
	}
	event := args[0]
	kv := make(map[string]any, len(args)-1)
	for _, pair := range args[1:] {
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			fmt.Printf("ignoring malformed argument %q\n", pair)
			continue
		}
		kv[key] = val
	}

	results := k.Publish(event, kv)
	for i, f := range results {
		val, err := f.Get(ctx)
		if err != nil {
			fmt.Printf("[%d] error: %v\n", i, err)
			continue
		}
		fmt.Printf("[%d] %v\n", i, val)
	}
}
