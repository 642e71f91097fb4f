package controllers

import "github.com/developeragencia/conselhoscursor-sub001/config"

// minStartBalance is the credit floor for opening a consultation. main
// overrides it from the loaded configuration at startup.
var minStartBalance = 5.00

// Configure threads process configuration into the handler package.
func Configure(cfg config.Config) {
	if cfg.MinStartBalance >= 0 {
		minStartBalance = cfg.MinStartBalance
	}
}
