// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/pledgeco/assurance/walletcore"
)

var (
	cfg          *config
	shutdownChan = make(chan struct{})
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Work around defer not running after os.Exit.
	if err := assuranceMain(); err != nil {
		os.Exit(1)
	}
}

// assuranceMain loads configuration, builds a pledging wallet with only
// its clock port connected (no store, broadcaster or key provider), and
// runs the garbage-collection loop until interrupted.
func assuranceMain() error {
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	gcInterval, err := time.ParseDuration(cfg.GCInterval)
	if err != nil {
		log.Errorf("Invalid gcinterval %q: %v", cfg.GCInterval, err)
		return err
	}
	gcAge, err := time.ParseDuration(cfg.GCAge)
	if err != nil {
		log.Errorf("Invalid gcage %q: %v", cfg.GCAge, err)
		return err
	}

	wallet := walletcore.New(activeNet, btcutil.Amount(cfg.RelayFeePerKb),
		nil, nil, systemClock{}, nil)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	log.Infof("Assurance daemon started, network %s, gc every %s (age %s)",
		activeNet.Name, gcInterval, gcAge)

	for {
		select {
		case <-ticker.C:
			dropped, err := wallet.GC(context.Background(), gcAge)
			if err != nil {
				log.Errorf("Pledge garbage collection failed: %v", err)
				continue
			}
			if len(dropped) > 0 {
				log.Infof("Dropped %d stale pending pledge(s)", len(dropped))
			}
		case <-interrupt:
			log.Infof("Received interrupt, shutting down")
			close(shutdownChan)
			return nil
		}
	}
}

// systemClock is the production walletcore.Clock, reading wall-clock
// time directly.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
