package main

import (
	"github.com/charmbracelet/log"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/app"
)

func main() {
	if err := app.RunVendorGrouping(); err != nil {
		log.Fatal("vendorgroup terminated", "error", err)
	}
}
