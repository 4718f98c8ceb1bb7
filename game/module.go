// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package game

import (
	"github.com/parsdao/ropasci/modules"
)

func init() {
	// Register the confidential game precompile module
	if err := modules.RegisterModule(modules.Module{
		ConfigKey: "roPaSci",
		Address:   ContractAddress,
		Contract:  RoPaSciPrecompile,
	}); err != nil {
		panic(err)
	}
}
