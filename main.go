// Command voxcast evaluates a voxel scene script, optionally against a
// persistent block database, and prints the raycast results as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/chazu/voxcast/pkg/config"
	"github.com/chazu/voxcast/pkg/store/kv"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")
	// TOML configuration file. Leave unset for defaults.
	configFile = flag.String("config", "", "")
	// Script to evaluate, "-" for stdin.
	scriptFile = flag.String("script", "-", "")
	// Skip block meshes in the output if true.
	noMesh = flag.Bool("nomesh", false, "")
)

const helpMessage = `
voxcast evaluates a voxel scene script and prints the result as JSON.

Usage: voxcast [options]

      -config     =string   TOML configuration file.
      -script     =string   Script file, or "-" to read stdin (default).
      -nomesh     (flag)    Do not mesh the resulting blocks.
  -h, -help       (flag)    Show help message
`

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = func() { fmt.Print(helpMessage) }
	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if err := run(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(out io.Writer) error {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return err
		}
	}
	cfg.Logging.SetLogger()

	source, err := readScript(*scriptFile)
	if err != nil {
		return err
	}

	var db *kv.DB
	if cfg.Store.Persistent() {
		opts, err := cfg.Store.KVOptions()
		if err != nil {
			return err
		}
		if db, err = kv.Open(opts); err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Printf("closing block database: %v", err)
			}
		}()
	}

	app := NewAppWithConfig(cfg, db)
	app.Meshing = !*noMesh
	result := app.Evaluate(source)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("evaluation failed with %d error(s)", len(result.Errors))
	}
	return nil
}

func readScript(name string) (string, error) {
	var data []byte
	var err error
	if name == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("could not read script %s: %w", name, err)
	}
	return string(data), nil
}
