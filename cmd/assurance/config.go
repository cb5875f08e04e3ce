// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	flags "github.com/jessevdk/go-flags"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

const (
	defaultConfigFilename = "assurance.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "assurance.log"
	defaultRelayFeePerKb  = 1000
	defaultGCInterval     = "1h"
)

var (
	assuranceHomeDir  = btcutil.AppDataDir("assurance", false)
	defaultConfigFile = filepath.Join(assuranceHomeDir, defaultConfigFilename)
	defaultDataDir    = assuranceHomeDir
	defaultLogDir     = filepath.Join(assuranceHomeDir, defaultLogDirname)
)

// config defines the configuration options for the assurance daemon,
// using go-flags' short/long/description tag convention.
type config struct {
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	DataDir     string `short:"b" long:"datadir" description:"Directory to store pledge and project state"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`

	TestNet bool `long:"testnet" description:"Use the test network (default mainnet)"`
	SimNet  bool `long:"simnet" description:"Use the simulation test network (default mainnet)"`

	RelayFeePerKb int64  `long:"relayfeeperkb" description:"Minimum relay fee rate in satoshis per kilobyte, used for revocation and finalize fee estimation"`
	GCInterval    string `long:"gcinterval" description:"How often to sweep uncommitted pledges older than the GC age (a Go duration string)"`
	GCAge         string `long:"gcage" description:"Age after which an uncommitted pledge is dropped (a Go duration string)"`

	OracleAddr      string `long:"oracleaddr" description:"Address of the chain oracle backend this wallet consults for UTXO lookups"`
	BroadcasterAddr string `long:"broadcastaddr" description:"Address of the transaction broadcast backend"`
}

var activeNet = &chaincfg.MainNetParams

// cleanAndExpandPath expands environment variables and a leading ~ in
// path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		path = strings.Replace(path, "~", filepath.Dir(assuranceHomeDir), 1)
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// validLogLevel reports whether logLevel names a supported log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// supportedSubsystems returns a sorted slice of the supported logging
// subsystems.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels parses debugLevel, either a single level
// applied to every subsystem or a comma-separated list of
// subsystem=level pairs, and applies it.
func parseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid", debugLevel)
		}
		setLogLevels(debugLevel)
		return nil
	}

	for _, pair := range strings.Split(debugLevel, ",") {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("the specified debug level contains an invalid subsystem/level pair [%v]", pair)
		}
		subsysID, logLevel := fields[0], fields[1]
		if _, ok := subsystemLoggers[subsysID]; !ok {
			return fmt.Errorf("the specified subsystem [%v] is invalid -- supported subsystems %v",
				subsysID, supportedSubsystems())
		}
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid", logLevel)
		}
		setLogLevel(subsysID, logLevel)
	}
	return nil
}

// loadConfig starts from sane defaults, loads an ini-style config file,
// and lets command line flags override both in a two-pass go-flags
// parse.
func loadConfig() (*config, []string, error) {
	cfg := config{
		DebugLevel:    defaultLogLevel,
		ConfigFile:    defaultConfigFile,
		DataDir:       defaultDataDir,
		LogDir:        defaultLogDir,
		RelayFeePerKb: defaultRelayFeePerKb,
		GCInterval:    defaultGCInterval,
		GCAge:         "24h",
	}

	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			preParser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	if err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
		configFileError = err
	}

	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	if numNets := boolCount(cfg.TestNet, cfg.SimNet); numNets > 1 {
		err := fmt.Errorf("%s: the testnet and simnet params can't be used together -- choose one", appName)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	switch {
	case cfg.TestNet:
		activeNet = &chaincfg.TestNet3Params
	case cfg.SimNet:
		activeNet = &chaincfg.SimNetParams
	default:
		activeNet = &chaincfg.MainNetParams
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = filepath.Join(cleanAndExpandPath(cfg.LogDir), activeNet.Name)

	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	setLogLevels(defaultLogLevel)

	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("loadConfig: %v", err)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	if configFileError != nil {
		log.Warnf("%v", configFileError)
	}

	return &cfg, remainingArgs, nil
}

func boolCount(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
