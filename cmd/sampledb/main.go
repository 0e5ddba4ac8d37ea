package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/config"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/logging"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/sampledb"
)

func main() {

	var defaults config.Config
	defaults.LoadDefaults()
	host, _ := os.Hostname()

	var (
		opts   sampledb.Options
		others string
	)
	flag.StringVar(&opts.Path, "out", defaults.SourcePath, "database to write")
	flag.StringVar(&opts.KeyFile, "key-file", "", "also write the key here (e.g. next to the database as agent.key)")
	flag.StringVar(&opts.Key, "key", "", "Fernet key (generated when empty)")
	flag.BoolVar(&opts.Plaintext, "plaintext", false, "store values unencrypted")
	flag.BoolVar(&opts.Overwrite, "force", false, "replace an existing database")
	flag.StringVar(&opts.Employee, "employee", host, "employee identifier")
	flag.StringVar(&others, "others", "OTHER-PC-01", "comma separated identifiers of other employees")
	flag.IntVar(&opts.Days, "days", 14, "days of activity, ending today")
	flag.IntVar(&opts.Sessions, "sessions", 12, "sessions per employee and day")
	flag.Int64Var(&opts.Seed, "seed", 1, "random seed")
	flag.Parse()

	if others != "" {
		opts.Others = strings.Split(others, ",")
	}
	if opts.KeyFile == "" && !opts.Plaintext {
		opts.KeyFile = filepath.Join(filepath.Dir(opts.Path), "agent.key")
	}

	logger, closer, err := logging.New(logging.Options{Level: "info", Stderr: true})
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer closer.Close()

	sum, err := sampledb.Generate(context.Background(), opts, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Printf("Wrote %d sessions (%s to %s) to %s\n", sum.Rows, sum.From, sum.To, sum.Path)
	if sum.Key != "" {
		fmt.Printf("Key: %s\n", sum.Key)
	}

}
