// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/pledgeco/assurance/chainoracle"
	"github.com/pledgeco/assurance/contract"
	"github.com/pledgeco/assurance/ownerauth"
	"github.com/pledgeco/assurance/pledge"
	"github.com/pledgeco/assurance/project"
	"github.com/pledgeco/assurance/walletcore"
)

// logRotator holds an active logging file rotator so it can be flushed
// and closed at exit. Rotation is disabled until initLogRotator is
// called.
var logRotator *rotator.Rotator

// Loggers per subsystem. When adding a new subsystem, add a reference
// here, to subsystemLoggers, and to useLogger.
var (
	log         = btclog.Disabled
	projectLog  = btclog.Disabled
	pledgeLog   = btclog.Disabled
	contractLog = btclog.Disabled
	ownerLog    = btclog.Disabled
	walletLog   = btclog.Disabled
	oracleLog   = btclog.Disabled
)

// subsystemLoggers maps each subsystem identifier to its associated
// logger.
var subsystemLoggers = map[string]btclog.Logger{
	"ASUR": log,
	"PROJ": projectLog,
	"PLDG": pledgeLog,
	"CTRC": contractLog,
	"OWNA": ownerLog,
	"WLCR": walletLog,
	"ORCL": oracleLog,
}

// logWriter implements an io.Writer that outputs to both standard
// output and the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

// initLogRotator initializes the logging rotator to write logs to
// logFile and create roll files in the same directory. It must be
// called before the package-level log rotator variable is used.
func initLogRotator(logFile string) {
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %v\n", err)
		os.Exit(1)
	}
	logRotator = r
}

// useLogger updates the logger references for subsystemID to logger.
// Invalid subsystems are ignored.
func useLogger(subsystemID string, logger btclog.Logger) {
	if _, ok := subsystemLoggers[subsystemID]; !ok {
		return
	}
	subsystemLoggers[subsystemID] = logger

	switch subsystemID {
	case "ASUR":
		log = logger
	case "PROJ":
		projectLog = logger
		project.UseLogger(logger)
	case "PLDG":
		pledgeLog = logger
		pledge.UseLogger(logger)
	case "CTRC":
		contractLog = logger
		contract.UseLogger(logger)
	case "OWNA":
		ownerLog = logger
		ownerauth.UseLogger(logger)
	case "WLCR":
		walletLog = logger
		walletcore.UseLogger(logger)
	case "ORCL":
		oracleLog = logger
		chainoracle.UseLogger(logger)
	}
}

// setLogLevel sets the logging level for the provided subsystem.
// Invalid subsystems are ignored. Uninitialized subsystems are
// dynamically created as needed.
func setLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	level, ok := btclog.LevelFromString(logLevel)
	if !ok {
		level = btclog.LevelInfo
	}

	if logger == btclog.Disabled {
		backend := btclog.NewBackend(logWriter{})
		logger = backend.Logger(subsystemID)
		useLogger(subsystemID, logger)
	}
	logger.SetLevel(level)
}

// setLogLevels sets the log level for every subsystem logger to level,
// dynamically creating loggers as needed.
func setLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		setLogLevel(subsystemID, logLevel)
	}
}
