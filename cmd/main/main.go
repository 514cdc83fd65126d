package main

import (
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"metaldesk/pkg/config"
	"metaldesk/pkg/info"
	"metaldesk/pkg/xlog"
)

var logger = xlog.GetLogger()

var (
	fApp     string
	fLogDir  string
	fLogFile string
	fFollow  bool
)

var (
	apps = map[string]bool{"api": true, "approval": true, "migrate": true, "fm": true}
)

func init() {
	flag.StringVar(&fApp, "app", "", "")
	flag.StringVar(&fLogDir, "logdir", "", "")
	flag.StringVar(&fLogFile, "logfile", "", "")
	flag.BoolVar(&fFollow, "follow", true, "fm: keep following the journal")
}

func main() {
	var err error
	flag.Parse()

	if !apps[fApp] {
		var validApps []string
		for k := range apps {
			validApps = append(validApps, k)
		}
		sort.Strings(validApps)
		panic("invalid app, only (" + strings.Join(validApps, ", ") + ") avaliable")
	}

	// Initialize the Shared config
	config.EasyInit()

	// Initialize the logger
	if fLogDir == "" {
		fLogDir = filepath.Join(config.Shared.DataDir, "logs")
	}
	if fLogFile == "" {
		fLogFile = fApp + ".log"
	}
	logPath := filepath.Join(fLogDir, fLogFile)
	xlog.Init(fApp, logPath)
	logger.Info(fApp + " started, " + info.Current().String())
	logger.Infof("xlog in %s", logPath)

	// Handle signals
	go handleSignals()

	// Start the app
	switch fApp {
	case "api":
		err = startApi()
	case "approval":
		err = startApproval()
	case "migrate":
		err = runMigrate()
	case "fm":
		err = startJournalMonitor()
	default:
		return
	}

	if err != nil {
		logger.Error(err)
		panic(err)
	}
}

// handleSignals handles linux signals
//
//	Function 1: Change log level via SIGUSR1 signal
//		docker exec <container_id> sh -c 'export MD_LOG_LVL=TRACE && kill -SIGUSR1 1'
func handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGUSR1)

	for sig := range sigChan {
		if sig != syscall.SIGUSR1 {
			continue
		}
		// Read log level from environment variable
		level := os.Getenv("MD_LOG_LVL")
		if level == "" {
			continue
		}
		logger.SetLevel(level)
		logger.Infof("Log level set to %s via signal", level)
	}
}
