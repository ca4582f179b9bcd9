package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/G-Research/forge/cmd/forge/cmd"
	"github.com/G-Research/forge/internal/common"
	"github.com/G-Research/forge/internal/common/forgeerrors"
)

// Config is handled by cmd/params.go
func main() {
	common.ConfigureCommandLineLogging()
	err := cmd.RootCmd().Execute()
	if err != nil {
		if forgeerrors.IsFatal(err) {
			log.Errorf("forge orchestration failed: %+v", err)
		}
		os.Exit(1)
	}
}
