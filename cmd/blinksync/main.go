package main

import (
	"blinksync/pkg/blink"
	"blinksync/pkg/logger"
)

func main() {
	logger.Version = version
	blink.UserAgent = "blinksync/" + version
	Execute()
}
